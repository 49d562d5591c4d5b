package pushdispatch

import (
	"context"
	"encoding/json"
)

// EventKind identifies a record lifecycle transition.
type EventKind string

const (
	// Created is emitted once when a document is first written.
	Created EventKind = "created"

	// Updated is emitted when an existing document changes. Updated events
	// carry the snapshot from before the write.
	Updated EventKind = "updated"
)

// Event is a record lifecycle notification as emitted by the document store.
//
// Before is only present for Updated events. After is the document as it
// exists once the write has been applied.
type Event struct {
	ID         string          `json:"eventId,omitempty"`
	Kind       EventKind       `json:"eventKind"`
	Collection string          `json:"collection"`
	DocumentID string          `json:"documentId"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after"`
}

// Path returns the document path the event refers to, e.g. "visitors/v1".
func (e Event) Path() string {
	return e.Collection + "/" + e.DocumentID
}

// Change is the typed view of an Event handed to a Handler.
type Change[T any] struct {
	// EventID is the store-assigned id of the event, if any.
	EventID string

	// Kind is the lifecycle transition that produced the change.
	Kind EventKind

	// DocumentID is the id of the changed document.
	DocumentID string

	// Params holds the values captured by {name} segments of the route
	// pattern the event matched.
	Params map[string]string

	// Before is nil for Created events.
	Before *T

	// After is the document after the write.
	After T
}

// Param returns the captured route parameter, or "" when absent.
func (c Change[T]) Param(name string) string {
	return c.Params[name]
}

// Handler reacts to a typed record change. Handlers never fail: every
// outcome, including internal errors, is reported through the Result.
//
// Example:
//
//	type WelcomeHandler struct {
//	    mailer Mailer
//	}
//
//	func (h *WelcomeHandler) Handle(ctx context.Context, c pushdispatch.Change[User]) pushdispatch.Result {
//	    if err := h.mailer.Welcome(ctx, c.After.Email); err != nil {
//	        return pushdispatch.Failed(err)
//	    }
//	    return pushdispatch.Delivered("")
//	}
type Handler[T any] interface {
	Handle(ctx context.Context, change Change[T]) Result
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc[T any] func(ctx context.Context, change Change[T]) Result

// Handle implements the Handler interface.
func (f HandlerFunc[T]) Handle(ctx context.Context, change Change[T]) Result {
	return f(ctx, change)
}

// Source parses raw message bytes into an Event.
//
// Sources are registered with Router.AddSource and matched using their
// Discriminator before Parse is called. This allows cheap detection before
// expensive parsing.
//
// Example:
//
//	type legacySource struct{}
//
//	func (legacySource) Name() string { return "legacy" }
//
//	func (legacySource) Discriminator() pushdispatch.Discriminator {
//	    return pushdispatch.HasFields("op", "doc")
//	}
//
//	func (legacySource) Parse(raw []byte) (pushdispatch.Event, error) {
//	    // decode the legacy envelope
//	}
type Source interface {
	// Name returns the source identifier for logging and metrics.
	Name() string

	// Discriminator returns a predicate for cheap message detection.
	Discriminator() Discriminator

	// Parse attempts to parse raw bytes as this source's format.
	Parse(raw []byte) (Event, error)
}

// SourceFunc creates a Source from a name, discriminator, and parse function.
func SourceFunc(name string, disc Discriminator, parse func([]byte) (Event, error)) Source {
	return &sourceFunc{name: name, disc: disc, parse: parse}
}

type sourceFunc struct {
	name  string
	disc  Discriminator
	parse func([]byte) (Event, error)
}

func (s *sourceFunc) Name() string                    { return s.name }
func (s *sourceFunc) Discriminator() Discriminator    { return s.disc }
func (s *sourceFunc) Parse(raw []byte) (Event, error) { return s.parse(raw) }
