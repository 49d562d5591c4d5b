package store

import (
	"context"
	"maps"
	"reflect"
	"slices"
	"sync"
)

// Memory is an in-process Store for tests and local runs.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]map[string]any)}
}

// Put creates or replaces a document.
func (m *Memory) Put(collection, id string, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]map[string]any)
		m.collections[collection] = docs
	}
	docs[id] = maps.Clone(data)
}

func (m *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: maps.Clone(data)}, nil
}

func (m *Memory) QueryEqual(_ context.Context, collection, field string, value any, limit int) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := m.collections[collection]
	ids := slices.Sorted(maps.Keys(docs))

	var out []Document
	for _, id := range ids {
		v, ok := docs[id][field]
		if !ok || !reflect.DeepEqual(v, value) {
			continue
		}
		out = append(out, Document{ID: id, Data: maps.Clone(docs[id])})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Update(_ context.Context, collection, id, field string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	if IsDelete(value) {
		delete(data, field)
		return nil
	}
	data[field] = value
	return nil
}
