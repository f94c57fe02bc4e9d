package store_test

import (
	"context"
	"testing"
	"time"

	"factory-erp/internal/core"
	"factory-erp/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productChange(id string, stock int) core.Change {
	return core.Change{
		Table:    core.TableProducts,
		Action:   core.ActionUpdate,
		RecordID: id,
		Record:   core.Product{ID: id, Name: id, CurrentStock: stock},
	}
}

func TestMemoryStore_CommitAppliesAndEnqueuesPerSink(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore("sheet", "kafka")

	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	err := m.Commit(ctx, core.Batch{
		Changes:    []core.Change{productChange("P1", 5)},
		Tombstones: map[string]time.Time{"X1": at},
		Logs:       []core.AuditLog{{ID: "LOG-1", Action: "test"}},
	})
	require.NoError(t, err)

	snap, err := m.Load(ctx)
	require.NoError(t, err)
	p, ok := snap.Product("P1")
	require.True(t, ok)
	assert.Equal(t, 5, p.CurrentStock)
	assert.True(t, snap.Deleted.Has("X1"))
	assert.Len(t, snap.Logs, 1)

	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "sheet", entries[0].Sink)
	assert.Equal(t, "kafka", entries[1].Sink)

	st, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.OutboxStats{Pending: 2}, st)
}

func TestMemoryStore_DueHoldsBackBehindHead(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore("sheet")
	require.NoError(t, m.Commit(ctx, core.Batch{Changes: []core.Change{
		productChange("P1", 1), productChange("P1", 2), productChange("P1", 3),
	}}))

	now := time.Now()
	due, err := m.Due(ctx, "sheet", now, 2)
	require.NoError(t, err)
	require.Len(t, due, 2)

	require.NoError(t, m.MarkFailed(ctx, due[0].ID, 1, now.Add(time.Minute), "boom", false))

	due, err = m.Due(ctx, "sheet", now, 0)
	require.NoError(t, err)
	assert.Empty(t, due, "later entries wait for the head")

	due, err = m.Due(ctx, "sheet", now.Add(2*time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, 1, due[0].Attempts)
	assert.Equal(t, "boom", due[0].LastError)
}

func TestMemoryStore_DeadEntriesAreSkipped(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore("sheet")
	require.NoError(t, m.Commit(ctx, core.Batch{Changes: []core.Change{
		productChange("P1", 1), productChange("P2", 2),
	}}))

	now := time.Now()
	due, err := m.Due(ctx, "sheet", now, 0)
	require.NoError(t, err)
	require.NoError(t, m.MarkFailed(ctx, due[0].ID, 8, now, "gone", true))
	require.NoError(t, m.MarkDelivered(ctx, due[1].ID))

	due, err = m.Due(ctx, "sheet", now, 0)
	require.NoError(t, err)
	assert.Empty(t, due)

	st, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.OutboxStats{Failed: 1}, st)

	assert.ErrorIs(t, m.MarkDelivered(ctx, 999), core.ErrNotFound)
}

func TestMemoryStore_ReplaceKeepsLogsAndTombstones(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	at := time.Now()
	require.NoError(t, m.Commit(ctx, core.Batch{
		Changes:    []core.Change{productChange("OLD", 1)},
		Tombstones: map[string]time.Time{"GONE": at},
		Logs:       []core.AuditLog{{ID: "LOG-1"}},
	}))

	remote := core.NewSnapshot()
	remote.Products = []core.Product{{ID: "NEW", CurrentStock: 9}}
	require.NoError(t, m.Commit(ctx, core.Batch{Replace: remote}))

	snap, err := m.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Products, 1)
	assert.Equal(t, "NEW", snap.Products[0].ID)
	assert.True(t, snap.Deleted.Has("GONE"))
	assert.Len(t, snap.Logs, 1)
	assert.Empty(t, m.Entries())
}

func TestMemoryStore_CommitRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := store.NewMemoryStore("sheet")
	assert.Error(t, m.Commit(ctx, core.Batch{Changes: []core.Change{productChange("P1", 1)}}))
	assert.Empty(t, m.Entries())
}
