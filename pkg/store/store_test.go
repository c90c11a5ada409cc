package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/ink-relay/pkg/ink"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "ink.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.Upsert(ctx, ink.Stroke{ID: "a", SessionID: "board", OwnerID: "o1", Color: "#000", Width: 2, Points: []float64{0, 0, 1, 1}}))
			require.NoError(t, s.Upsert(ctx, ink.Stroke{ID: "b", SessionID: "board", OwnerID: "o2", Color: "#f00", Width: 3, Points: []float64{5, 5}}))
			require.NoError(t, s.Upsert(ctx, ink.Stroke{ID: "c", SessionID: "other", OwnerID: "o1", Color: "#0f0", Width: 1, Points: []float64{9, 9}}))

			got, err := s.ListBySession(ctx, "board")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "a", got[0].ID)
			assert.Equal(t, "b", got[1].ID)
			assert.Equal(t, []float64{0, 0, 1, 1}, got[0].Points)
			assert.True(t, got[0].CreatedAt.Before(got[1].CreatedAt))

			// replace fully supersedes the row but keeps its place in the ordering
			require.NoError(t, s.Upsert(ctx, ink.Stroke{ID: "a", SessionID: "board", OwnerID: "o1", Color: "#00f", Width: 7, Points: []float64{3, 3}}))
			got, err = s.ListBySession(ctx, "board")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "a", got[0].ID)
			assert.Equal(t, "#00f", got[0].Color)
			assert.Equal(t, 7, got[0].Width)
			assert.Equal(t, []float64{3, 3}, got[0].Points)

			n, err := s.DeleteByID(ctx, "board", "a")
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)

			n, err = s.DeleteByID(ctx, "board", "a")
			require.NoError(t, err)
			assert.EqualValues(t, 0, n)

			n, err = s.DeleteByID(ctx, "board", "c")
			require.NoError(t, err)
			assert.EqualValues(t, 0, n, "delete is scoped to the session")

			got, err = s.ListBySession(ctx, "board")
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "b", got[0].ID)

			got, err = s.ListBySession(ctx, "empty")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStoreEmptyPoints(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Upsert(ctx, ink.Stroke{ID: "dot", SessionID: "board", OwnerID: "o", Color: "#000", Width: 1}))
			got, err := s.ListBySession(ctx, "board")
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Empty(t, got[0].Points)
		})
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ink.sqlite3")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, ink.Stroke{ID: "keep", SessionID: "board", OwnerID: "o", Color: "#000", Width: 2, Points: []float64{1, 2}}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.ListBySession(ctx, "board")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []float64{1, 2}, got[0].Points)
}

func TestClockIsStrictlyIncreasing(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock{now: func() time.Time { return fixed }}
	a := c.next()
	b := c.next()
	assert.Equal(t, fixed, a)
	assert.True(t, b.After(a))
}
