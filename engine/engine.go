// Package engine runs the dispatch pipeline: resolve recipients, build the
// message, call the transport, and react to delivery failures.
//
// Every pipeline ends in a pushdispatch.Result. Errors are logged where they
// happen and carried in the result; none are returned to the caller.
package engine

import (
	"context"
	"errors"

	"github.com/bjaus/pushdispatch"
	"github.com/bjaus/pushdispatch/internal/logx"
	"github.com/bjaus/pushdispatch/transport"
)

// Delivery modes reported to the Observer.
const (
	ModeSingle    = "single"
	ModeMulticast = "multicast"
)

// ErrAllDeliveriesFailed is carried by the result of a multicast send in
// which no token was delivered.
var ErrAllDeliveriesFailed = errors.New("all deliveries failed")

// Resolver maps recipients to device tokens.
type Resolver interface {
	ResolveSingle(ctx context.Context, userID string) (token string, ok bool, err error)
	ResolveGroup(ctx context.Context, flatNumber string) ([]string, error)
}

// Cleaner reacts to failed single-target sends. It reports whether the
// user's token was removed.
type Cleaner interface {
	OnDeliveryFailure(ctx context.Context, userID string, err error) bool
}

// Observer receives delivery counts.
type Observer interface {
	ObserveDelivery(mode string, success, failure int)
	ObservePrune()
}

type nopObserver struct{}

func (nopObserver) ObserveDelivery(string, int, int) {}
func (nopObserver) ObservePrune()                    {}

// Engine is stateless and safe for concurrent use.
type Engine struct {
	resolver  Resolver
	transport transport.Transport
	cleaner   Cleaner
	observer  Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver reports delivery counts to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// New returns an Engine. All three collaborators are required.
func New(r Resolver, t transport.Transport, c Cleaner, opts ...Option) *Engine {
	e := &Engine{
		resolver:  r,
		transport: t,
		cleaner:   c,
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type sendOptions struct {
	prune bool
}

// SendOption configures a single SendToUser call.
type SendOption func(*sendOptions)

// PruneInvalidTokens hands a failed send to the Cleaner so a token the
// gateway rejects is removed from the user.
func PruneInvalidTokens() SendOption {
	return func(o *sendOptions) {
		o.prune = true
	}
}

// SendToUser delivers one message to the device of userID. build receives
// the resolved token and returns the message to send.
//
// A missing user id, user, or token ends the pipeline as skipped without
// calling the transport.
func (e *Engine) SendToUser(ctx context.Context, userID string, build func(token string) transport.Message, opts ...SendOption) pushdispatch.Result {
	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}

	log := logx.From(ctx).With("user_id", userID, "mode", ModeSingle)

	if userID == "" {
		log.Info("no recipient id, skipping")
		return pushdispatch.Skipped("no recipient")
	}

	token, ok, err := e.resolver.ResolveSingle(ctx, userID)
	if err != nil {
		log.Warn("failed to resolve recipient", "error", err)
		return pushdispatch.Failed(err)
	}
	if !ok {
		return pushdispatch.Skipped("no device token")
	}

	id, err := e.transport.Send(ctx, build(token))
	if err != nil {
		e.observer.ObserveDelivery(ModeSingle, 0, 1)
		log.Warn("push delivery failed",
			"error", err,
			"error_kind", transport.KindOf(err).String(),
		)
		res := pushdispatch.Failed(err)
		if o.prune && e.cleaner.OnDeliveryFailure(ctx, userID, err) {
			e.observer.ObservePrune()
			res.Pruned = true
		}
		return res
	}

	e.observer.ObserveDelivery(ModeSingle, 1, 0)
	log.Info("push delivered", "delivery_id", id)
	return pushdispatch.Delivered(id)
}

// SendToFlat delivers one message to every resident of the flat that has a
// device token. build receives the resolved tokens and returns the message
// to send.
//
// Per-token failures are logged and counted. The result is delivered when
// at least one token succeeded.
func (e *Engine) SendToFlat(ctx context.Context, flatNumber string, build func(tokens []string) transport.Message) pushdispatch.Result {
	log := logx.From(ctx).With("flat_number", flatNumber, "mode", ModeMulticast)

	if flatNumber == "" {
		log.Info("no flat number, skipping")
		return pushdispatch.Skipped("no flat number")
	}

	tokens, err := e.resolver.ResolveGroup(ctx, flatNumber)
	if err != nil {
		log.Warn("failed to resolve residents", "error", err)
		return pushdispatch.Failed(err)
	}
	if len(tokens) == 0 {
		log.Info("no resident tokens, skipping")
		return pushdispatch.Skipped("no resident tokens")
	}

	resp, err := e.transport.SendMulticast(ctx, build(tokens))
	if err != nil {
		e.observer.ObserveDelivery(ModeMulticast, 0, len(tokens))
		log.Warn("multicast submission failed", "tokens", len(tokens), "error", err)
		return pushdispatch.Failed(err)
	}

	e.observer.ObserveDelivery(ModeMulticast, resp.SuccessCount, resp.FailureCount)

	// TODO: prune tokens that fail with an invalid-token kind here too. This
	// needs the resolver to return the owning user id alongside each token.
	for _, r := range resp.Responses {
		if r.Err != nil {
			log.Debug("multicast token failed",
				"error", r.Err,
				"error_kind", transport.KindOf(r.Err).String(),
			)
		}
	}

	log.Info("multicast sent",
		"success_count", resp.SuccessCount,
		"failure_count", resp.FailureCount,
	)

	var res pushdispatch.Result
	if resp.SuccessCount == 0 && resp.FailureCount > 0 {
		res = pushdispatch.Failed(ErrAllDeliveriesFailed)
	} else {
		res = pushdispatch.Result{Outcome: pushdispatch.OutcomeDelivered}
	}
	res.SuccessCount = resp.SuccessCount
	res.FailureCount = resp.FailureCount
	return res
}
