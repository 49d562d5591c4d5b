// Package store defines the document store the dispatcher reads recipients
// from and prunes tokens in.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Store is the subset of a document database the dispatcher needs: keyed
// reads, single-field equality queries, and single-field updates.
type Store interface {
	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// QueryEqual returns up to limit documents whose field equals value.
	// A limit of zero or less means no limit.
	QueryEqual(ctx context.Context, collection, field string, value any, limit int) ([]Document, error)

	// Update sets one field of an existing document. Passing Delete as the
	// value removes the field. Returns ErrNotFound if the document is
	// missing.
	Update(ctx context.Context, collection, id, field string, value any) error
}

type deleteSentinel struct{}

// Delete is the sentinel value for Update that removes a field instead of
// writing a value, so later reads see the field as absent.
var Delete = deleteSentinel{}

// IsDelete reports whether v is the Delete sentinel.
func IsDelete(v any) bool {
	_, ok := v.(deleteSentinel)
	return ok
}

// Document is a stored record.
type Document struct {
	ID   string
	Data map[string]any
}

// DataTo decodes the document into v using v's json tags.
func (d Document) DataTo(v any) error {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
