// Package trigger binds the notification rules to record lifecycle events.
//
// Three rules are registered:
//
//	created notifications/{notificationId}  -> the request's recipient
//	created visitors/{visitorId}            -> every resident of the flat
//	updated visitors/{visitorId}            -> the guard, once per decision
//
// Each rule checks eligibility with a pure predicate before touching the
// store, then hands off to the dispatch engine.
package trigger

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/bjaus/pushdispatch"
	"github.com/bjaus/pushdispatch/engine"
	"github.com/bjaus/pushdispatch/internal/logx"
	"github.com/bjaus/pushdispatch/model"
	"github.com/bjaus/pushdispatch/payload"
	"github.com/bjaus/pushdispatch/transport"
)

// Document path patterns the rules are bound to.
const (
	NotificationPattern = model.CollectionNotifications + "/{notificationId}"
	VisitorPattern      = model.CollectionVisitors + "/{visitorId}"
)

// Sender is the part of the dispatch engine the rules use.
type Sender interface {
	SendToUser(ctx context.Context, userID string, build func(token string) transport.Message, opts ...engine.SendOption) pushdispatch.Result
	SendToFlat(ctx context.Context, flatNumber string, build func(tokens []string) transport.Message) pushdispatch.Result
}

// Rules holds the three notification rules.
type Rules struct {
	sender  Sender
	builder *payload.Builder
}

// NewRules returns the rules delivering through s with messages from b.
func NewRules(s Sender, b *payload.Builder) *Rules {
	return &Rules{sender: s, builder: b}
}

// Register binds all three rules to r and returns them.
func Register(r *pushdispatch.Router, s Sender, b *payload.Builder) *Rules {
	rules := NewRules(s, b)
	pushdispatch.RegisterFunc(r, pushdispatch.Created, NotificationPattern, rules.NotifyRecipient)
	pushdispatch.RegisterFunc(r, pushdispatch.Created, VisitorPattern, rules.NotifyResidents)
	pushdispatch.RegisterFunc(r, pushdispatch.Updated, VisitorPattern, rules.NotifyGuard)
	return rules
}

// NotifyRecipient delivers a newly created notification request to its
// recipient. A token the gateway rejects is removed from the recipient.
func (r *Rules) NotifyRecipient(ctx context.Context, c pushdispatch.Change[model.NotificationRequest]) pushdispatch.Result {
	return guard(ctx, "notify_recipient", func() pushdispatch.Result {
		req := c.After
		if ok, reason := RequestEligible(req); !ok {
			logx.From(ctx).Info("request not eligible", "reason", reason)
			return pushdispatch.Skipped(reason)
		}

		id := paramOr(c, "notificationId")
		return r.sender.SendToUser(ctx, req.RecipientID, func(token string) transport.Message {
			return r.builder.ForRequest(id, req, token)
		}, engine.PruneInvalidTokens())
	})
}

// NotifyResidents tells every resident of the visitor's flat that the
// visitor has arrived.
func (r *Rules) NotifyResidents(ctx context.Context, c pushdispatch.Change[model.VisitorRecord]) pushdispatch.Result {
	return guard(ctx, "notify_residents", func() pushdispatch.Result {
		v := c.After
		if ok, reason := ArrivalEligible(v); !ok {
			logx.From(ctx).Info("arrival not eligible", "reason", reason)
			return pushdispatch.Skipped(reason)
		}

		id := paramOr(c, "visitorId")
		return r.sender.SendToFlat(ctx, v.FlatNumber, func(tokens []string) transport.Message {
			return r.builder.ForVisitorArrival(id, v, tokens)
		})
	})
}

// NotifyGuard tells the guard who checked the visitor in that a resident
// approved or denied the visit. Only the first decision is reported.
func (r *Rules) NotifyGuard(ctx context.Context, c pushdispatch.Change[model.VisitorRecord]) pushdispatch.Result {
	return guard(ctx, "notify_guard", func() pushdispatch.Result {
		v := c.After
		if ok, reason := DecisionEligible(c.Before, v); !ok {
			logx.From(ctx).Info("decision not eligible", "reason", reason)
			return pushdispatch.Skipped(reason)
		}

		id := paramOr(c, "visitorId")
		return r.sender.SendToUser(ctx, v.GuardID, func(token string) transport.Message {
			return r.builder.ForVisitorDecision(id, v, token)
		})
	})
}

// RequestEligible reports whether a notification request names a
// recipient.
func RequestEligible(req model.NotificationRequest) (bool, string) {
	if req.RecipientID == "" {
		return false, "no recipient"
	}
	return true, ""
}

// ArrivalEligible reports whether a newly created visitor should be
// announced to the flat.
func ArrivalEligible(v model.VisitorRecord) (bool, string) {
	if v.Status != model.StatusPending {
		return false, fmt.Sprintf("status is %q, not pending", v.Status)
	}
	if v.FlatNumber == "" {
		return false, "no flat number"
	}
	return true, ""
}

// DecisionEligible reports whether a visitor update is the first decision
// on a pending visit with a guard to tell.
func DecisionEligible(before *model.VisitorRecord, after model.VisitorRecord) (bool, string) {
	if before == nil {
		return false, "no prior snapshot"
	}
	if before.Status != model.StatusPending {
		return false, fmt.Sprintf("prior status is %q, not pending", before.Status)
	}
	if !after.Status.Resolved() {
		return false, fmt.Sprintf("status is %q, not a decision", after.Status)
	}
	if after.GuardID == "" {
		return false, "no guard"
	}
	return true, ""
}

func paramOr[T any](c pushdispatch.Change[T], name string) string {
	if v := c.Param(name); v != "" {
		return v
	}
	return c.DocumentID
}

// guard runs fn and converts a panic into a failed result.
func guard(ctx context.Context, rule string, fn func() pushdispatch.Result) (res pushdispatch.Result) {
	defer func() {
		if v := recover(); v != nil {
			logx.From(ctx).Error("rule panicked",
				"rule", rule,
				"panic", v,
				"stack", string(debug.Stack()),
			)
			res = pushdispatch.Failed(fmt.Errorf("%s panic: %v", rule, v))
		}
	}()
	return fn()
}
