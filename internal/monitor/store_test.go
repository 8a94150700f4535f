package monitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	file, err := OpenStore(StoreFile, filepath.Join(dir, "history", "snapshots.json"))
	require.NoError(t, err)
	db, err := OpenStore(StoreSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return map[string]Store{"file": file, "sqlite": db}
}

func TestStoresRoundTrip(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 5, 2, 10, 30, 0, 123000000, time.UTC)
	snaps := []Snapshot{
		{ID: "s1", Timestamp: ts, Label: "first", Rows: 10, Columns: 3, Quality: 88, Indicators: map[string]*float64{"revenue": f(100), "broken": nil}},
		{ID: "s2", Timestamp: ts.Add(time.Hour), Label: "second", Rows: 12, Columns: 3, Quality: 91, Indicators: map[string]*float64{"revenue": f(150)}},
	}
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			empty, err := store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, empty)

			for _, s := range snaps {
				require.NoError(t, store.Append(ctx, s))
			}
			got, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "s1", got[0].ID)
			assert.True(t, ts.Equal(got[0].Timestamp))
			assert.Equal(t, 88, got[0].Quality)
			assert.Contains(t, got[0].Indicators, "broken")
			assert.Nil(t, got[0].Indicators["broken"])
			assert.Equal(t, 150.0, *got[1].Indicators["revenue"])

			h, err := LoadHistory(ctx, store, 1)
			require.NoError(t, err)
			latest, ok := h.Latest()
			require.True(t, ok)
			assert.Equal(t, "second", latest.Label)
			assert.Equal(t, 1, h.Len())

			require.NoError(t, store.Clear(ctx))
			got, err = store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStoresKeepLast(t *testing.T) {
	ctx := context.Background()
	file, err := OpenStore(StoreFile, filepath.Join(t.TempDir(), "snapshots.json"), KeepLast(2))
	require.NoError(t, err)
	db, err := OpenStore(StoreSQLite, ":memory:", KeepLast(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for name, store := range map[string]Store{"file": file, "sqlite": db} {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"a", "b", "c", "d"} {
				require.NoError(t, store.Append(ctx, Snapshot{ID: id, Label: id, Indicators: map[string]*float64{}}))
			}
			got, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "c", got[0].ID)
			assert.Equal(t, "d", got[1].ID)
		})
	}
}

func TestMonitorPersistsSnapshots(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "snapshots.json"))
	require.NoError(t, err)
	m := New(NewHistory(5), WithStore(store))
	_, err = m.Snapshot(ctx, sales(10), nil, "one")
	require.NoError(t, err)

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].Label)
}

func TestOpenStoreRejectsUnknownKind(t *testing.T) {
	_, err := OpenStore("redis", "x")
	assert.True(t, errors.IsInvalidRequestError(err))
}
