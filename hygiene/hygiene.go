// Package hygiene removes device tokens that the push gateway has proven
// undeliverable.
package hygiene

import (
	"context"

	"github.com/bjaus/pushdispatch/internal/logx"
	"github.com/bjaus/pushdispatch/model"
	"github.com/bjaus/pushdispatch/store"
	"github.com/bjaus/pushdispatch/transport"
)

// Manager clears stale tokens from user records.
type Manager struct {
	store store.Store
}

// New returns a Manager writing to s.
func New(s store.Store) *Manager {
	return &Manager{store: s}
}

// OnDeliveryFailure inspects a failed single-target send to userID. When
// the failure proves the token invalid or unregistered, the token field is
// deleted from the user's record. Every other failure, and any error while
// deleting, is logged and swallowed.
//
// It reports whether the token was removed.
func (m *Manager) OnDeliveryFailure(ctx context.Context, userID string, err error) bool {
	kind := transport.KindOf(err)
	log := logx.From(ctx).With("user_id", userID, "error_kind", kind.String())

	if !kind.TokenFailure() {
		log.Warn("delivery failed, token kept", "error", err)
		return false
	}

	log.Info("invalid token, removing from user document")
	if uerr := m.store.Update(ctx, model.CollectionUsers, userID, model.FieldFCMToken, store.Delete); uerr != nil {
		log.Error("failed to remove invalid token", "error", uerr)
		return false
	}
	return true
}
