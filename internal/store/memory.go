package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"factory-erp/internal/core"
)

// MemoryStore keeps state and the outbox in process memory. It is used when
// no database is configured and in tests. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.Mutex
	snap   *core.Snapshot
	sinks  []string
	outbox []core.OutboxEntry
	nextID int64
	now    func() time.Time
}

// NewMemoryStore returns an empty store that enqueues every change once per sink.
func NewMemoryStore(sinks ...string) *MemoryStore {
	return &MemoryStore{
		snap:  core.NewSnapshot(),
		sinks: sinks,
		now:   time.Now,
	}
}

// Seed replaces the stored snapshot without touching the outbox.
func (m *MemoryStore) Seed(s *core.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = s.Clone()
}

func (m *MemoryStore) Load(ctx context.Context) (*core.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone(), nil
}

func (m *MemoryStore) Commit(ctx context.Context, b core.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := core.ApplyBatch(m.snap.Clone(), b)
	if err != nil {
		return fmt.Errorf("failed to apply batch: %w", err)
	}
	m.snap = next

	now := m.now()
	for _, ch := range b.Changes {
		for _, sink := range m.sinks {
			m.nextID++
			m.outbox = append(m.outbox, core.OutboxEntry{
				ID:            m.nextID,
				Sink:          sink,
				Change:        ch,
				NextAttemptAt: now,
				CreatedAt:     now,
			})
		}
	}
	return nil
}

// ── Outbox ───────────────────────────────────────────────────────────────────

// Due returns the oldest undelivered entries of one sink, in enqueue order.
// Nothing is returned while the head entry is still backing off, so a sink
// never sees a change before the ones enqueued ahead of it.
func (m *MemoryStore) Due(ctx context.Context, sink string, now time.Time, limit int) ([]core.OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []core.OutboxEntry
	for _, e := range m.outbox {
		if e.Sink != sink || e.Failed {
			continue
		}
		if len(due) == 0 && e.NextAttemptAt.After(now) {
			return nil, nil
		}
		due = append(due, e)
		if limit > 0 && len(due) == limit {
			break
		}
	}
	return due, nil
}

func (m *MemoryStore) MarkDelivered(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.outbox, func(e core.OutboxEntry) bool { return e.ID == id })
	if i < 0 {
		return fmt.Errorf("outbox entry %d: %w", id, core.ErrNotFound)
	}
	m.outbox = slices.Delete(m.outbox, i, i+1)
	return nil
}

func (m *MemoryStore) MarkFailed(ctx context.Context, id int64, attempts int, next time.Time, lastErr string, dead bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.outbox, func(e core.OutboxEntry) bool { return e.ID == id })
	if i < 0 {
		return fmt.Errorf("outbox entry %d: %w", id, core.ErrNotFound)
	}
	e := &m.outbox[i]
	e.Attempts = attempts
	e.NextAttemptAt = next
	e.LastError = lastErr
	e.Failed = dead
	return nil
}

func (m *MemoryStore) Stats(ctx context.Context) (core.OutboxStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st core.OutboxStats
	for _, e := range m.outbox {
		if e.Failed {
			st.Failed++
		} else {
			st.Pending++
		}
	}
	return st, nil
}

// Entries returns a copy of the undelivered outbox.
func (m *MemoryStore) Entries() []core.OutboxEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.outbox)
}
