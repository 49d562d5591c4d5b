package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Get(t *testing.T) {
	m := NewMemory()
	m.Put("users", "u1", map[string]any{"fcmToken": "tok1"})

	t.Run("returns stored document", func(t *testing.T) {
		doc, err := m.Get(context.Background(), "users", "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1", doc.ID)
		assert.Equal(t, "tok1", doc.Data["fcmToken"])
	})

	t.Run("returns ErrNotFound for missing document", func(t *testing.T) {
		_, err := m.Get(context.Background(), "users", "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("returned data is a copy", func(t *testing.T) {
		doc, err := m.Get(context.Background(), "users", "u1")
		require.NoError(t, err)
		doc.Data["fcmToken"] = "changed"

		again, err := m.Get(context.Background(), "users", "u1")
		require.NoError(t, err)
		assert.Equal(t, "tok1", again.Data["fcmToken"])
	})
}

func TestMemory_QueryEqual(t *testing.T) {
	m := NewMemory()
	m.Put("flats", "f2", map[string]any{"flatNumber": "12B"})
	m.Put("flats", "f1", map[string]any{"flatNumber": "12B"})
	m.Put("flats", "f3", map[string]any{"flatNumber": "7A"})

	t.Run("limit one returns first match by id", func(t *testing.T) {
		docs, err := m.QueryEqual(context.Background(), "flats", "flatNumber", "12B", 1)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "f1", docs[0].ID)
	})

	t.Run("no limit returns every match", func(t *testing.T) {
		docs, err := m.QueryEqual(context.Background(), "flats", "flatNumber", "12B", 0)
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})

	t.Run("no match returns empty", func(t *testing.T) {
		docs, err := m.QueryEqual(context.Background(), "flats", "flatNumber", "99", 1)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestMemory_Update(t *testing.T) {
	t.Run("delete removes the field", func(t *testing.T) {
		m := NewMemory()
		m.Put("users", "u1", map[string]any{"fcmToken": "tok1", "name": "Asha"})

		require.NoError(t, m.Update(context.Background(), "users", "u1", "fcmToken", Delete))

		doc, err := m.Get(context.Background(), "users", "u1")
		require.NoError(t, err)
		_, present := doc.Data["fcmToken"]
		assert.False(t, present)
		assert.Equal(t, "Asha", doc.Data["name"])
	})

	t.Run("sets a value", func(t *testing.T) {
		m := NewMemory()
		m.Put("users", "u1", map[string]any{})

		require.NoError(t, m.Update(context.Background(), "users", "u1", "fcmToken", "tok2"))

		doc, err := m.Get(context.Background(), "users", "u1")
		require.NoError(t, err)
		assert.Equal(t, "tok2", doc.Data["fcmToken"])
	})

	t.Run("missing document", func(t *testing.T) {
		m := NewMemory()
		err := m.Update(context.Background(), "users", "u1", "fcmToken", Delete)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDocument_DataTo(t *testing.T) {
	doc := Document{ID: "f1", Data: map[string]any{
		"flatNumber":  "12B",
		"residentIds": []any{"u1", "u2"},
	}}

	var flat struct {
		FlatNumber  string   `json:"flatNumber"`
		ResidentIDs []string `json:"residentIds"`
	}
	require.NoError(t, doc.DataTo(&flat))
	assert.Equal(t, "12B", flat.FlatNumber)
	assert.Equal(t, []string{"u1", "u2"}, flat.ResidentIDs)
}

func TestIsDelete(t *testing.T) {
	assert.True(t, IsDelete(Delete))
	assert.False(t, IsDelete(nil))
	assert.False(t, IsDelete(""))
}
