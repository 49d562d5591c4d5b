// Package firestore implements store.Store on Cloud Firestore.
package firestore

import (
	"context"
	"fmt"

	gcfs "cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bjaus/pushdispatch/store"
)

// Store adapts a Firestore client to store.Store.
type Store struct {
	client *gcfs.Client
}

var _ store.Store = (*Store)(nil)

// New wraps an initialised Firestore client. The caller owns the client
// and closes it.
func New(client *gcfs.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return store.Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (s *Store) QueryEqual(ctx context.Context, collection, field string, value any, limit int) ([]store.Document, error) {
	q := s.client.Collection(collection).Where(field, "==", value)
	if limit > 0 {
		q = q.Limit(limit)
	}

	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query %s where %s: %w", collection, field, err)
	}

	docs := make([]store.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, store.Document{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return docs, nil
}

func (s *Store) Update(ctx context.Context, collection, id, field string, value any) error {
	if store.IsDelete(value) {
		value = gcfs.Delete
	}

	_, err := s.client.Collection(collection).Doc(id).Update(ctx, []gcfs.Update{
		{Path: field, Value: value},
	})
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s/%s %s: %w", collection, id, field, err)
	}
	return nil
}
