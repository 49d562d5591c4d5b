// Package recipient resolves push recipients to device tokens.
package recipient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/bjaus/pushdispatch/internal/logx"
	"github.com/bjaus/pushdispatch/model"
	"github.com/bjaus/pushdispatch/store"
)

const defaultConcurrency = 8

// Resolver looks up device tokens for users and flats. It only reads from
// the store.
type Resolver struct {
	store       store.Store
	concurrency int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithConcurrency bounds the number of resident lookups in flight during
// group resolution. Values below one mean sequential.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n < 1 {
			n = 1
		}
		r.concurrency = n
	}
}

// New returns a Resolver reading from s.
func New(s store.Store, opts ...Option) *Resolver {
	r := &Resolver{store: s, concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveSingle returns the device token of the user. A missing user or a
// user without a token yields ok == false and no error.
func (r *Resolver) ResolveSingle(ctx context.Context, userID string) (token string, ok bool, err error) {
	user, found, err := r.user(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if !found {
		logx.From(ctx).Info("user document not found", "user_id", userID)
		return "", false, nil
	}
	if user.FCMToken == "" {
		logx.From(ctx).Info("no device token for user", "user_id", userID)
		return "", false, nil
	}
	return user.FCMToken, true, nil
}

// ResolveGroup returns the device tokens of every resident of the flat.
// Residents that are missing, have no token, or fail to load are skipped.
// Tokens are returned in the order of the flat's resident list.
func (r *Resolver) ResolveGroup(ctx context.Context, flatNumber string) ([]string, error) {
	docs, err := r.store.QueryEqual(ctx, model.CollectionFlats, model.FieldFlatNumber, flatNumber, 1)
	if err != nil {
		return nil, fmt.Errorf("find flat %s: %w", flatNumber, err)
	}
	if len(docs) == 0 {
		logx.From(ctx).Info("flat not found", "flat_number", flatNumber)
		return nil, nil
	}

	var flat model.FlatRecord
	if err := docs[0].DataTo(&flat); err != nil {
		return nil, fmt.Errorf("decode flat %s: %w", docs[0].ID, err)
	}
	if len(flat.ResidentIDs) == 0 {
		logx.From(ctx).Info("no residents in flat", "flat_number", flatNumber)
		return nil, nil
	}

	found := make([]string, len(flat.ResidentIDs))

	// Lookups never return an error to the group so one bad resident
	// cannot cancel the others.
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, residentID := range flat.ResidentIDs {
		g.Go(func() error {
			user, ok, err := r.user(ctx, residentID)
			switch {
			case err != nil:
				logx.From(ctx).Warn("skipping resident", "user_id", residentID, "error", err)
			case !ok:
				logx.From(ctx).Debug("resident document not found", "user_id", residentID)
			case user.FCMToken != "":
				found[i] = user.FCMToken
			}
			return nil
		})
	}
	_ = g.Wait()

	tokens := make([]string, 0, len(found))
	for _, tok := range found {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}

	logx.From(ctx).Debug("resolved flat residents",
		slog.String("flat_number", flatNumber),
		slog.Int("residents", len(flat.ResidentIDs)),
		slog.Int("tokens", len(tokens)),
	)
	return tokens, nil
}

func (r *Resolver) user(ctx context.Context, userID string) (model.UserRecord, bool, error) {
	doc, err := r.store.Get(ctx, model.CollectionUsers, userID)
	if errors.Is(err, store.ErrNotFound) {
		return model.UserRecord{}, false, nil
	}
	if err != nil {
		return model.UserRecord{}, false, fmt.Errorf("get user %s: %w", userID, err)
	}

	var user model.UserRecord
	if err := doc.DataTo(&user); err != nil {
		return model.UserRecord{}, false, fmt.Errorf("decode user %s: %w", userID, err)
	}
	user.ID = doc.ID
	return user, true, nil
}
