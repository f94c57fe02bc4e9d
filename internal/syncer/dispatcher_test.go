package syncer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"factory-erp/internal/core"
	"factory-erp/internal/logger"
	"factory-erp/internal/store"
	"factory-erp/internal/syncer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSink struct {
	mock.Mock
	name string
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Push(ctx context.Context, ch core.Change) error {
	return m.Called(ch).Error(0)
}

func record(id string) core.Change {
	return core.Change{Table: core.TableProducts, Action: core.ActionUpdate, RecordID: id, Record: core.Product{ID: id}}
}

func byID(id string) any {
	return mock.MatchedBy(func(ch core.Change) bool { return ch.RecordID == id })
}

func seededOutbox(t *testing.T, sinks []string, ids ...string) *store.MemoryStore {
	t.Helper()
	m := store.NewMemoryStore(sinks...)
	var b core.Batch
	for _, id := range ids {
		b.Changes = append(b.Changes, record(id))
	}
	require.NoError(t, m.Commit(context.Background(), b))
	return m
}

func TestDispatcher_DeliversInOrderToEverySink(t *testing.T) {
	outbox := seededOutbox(t, []string{"sheet", "kafka"}, "P1", "P2")

	var order []string
	sheet := &mockSink{name: "sheet"}
	sheet.On("Push", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		order = append(order, args.Get(0).(core.Change).RecordID)
	})
	kafka := &mockSink{name: "kafka"}
	kafka.On("Push", mock.Anything).Return(nil)

	d := syncer.NewDispatcher(outbox, []syncer.Sink{sheet, kafka}, syncer.DispatcherConfig{}, logger.NewNop())
	n, err := d.Flush(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, n)
	assert.Equal(t, []string{"P1", "P2"}, order)
	assert.Empty(t, outbox.Entries())
	sheet.AssertExpectations(t)
	kafka.AssertNumberOfCalls(t, "Push", 2)
}

func TestDispatcher_FailureHoldsBackTheSink(t *testing.T) {
	outbox := seededOutbox(t, []string{"sheet"}, "P1", "P2")

	sheet := &mockSink{name: "sheet"}
	sheet.On("Push", byID("P1")).Return(errors.New("script unavailable"))

	d := syncer.NewDispatcher(outbox, []syncer.Sink{sheet},
		syncer.DispatcherConfig{BaseBackoff: time.Hour, MaxAttempts: 5}, logger.NewNop())

	n, err := d.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	sheet.AssertNumberOfCalls(t, "Push", 1)

	entries := outbox.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Attempts)
	assert.Equal(t, "script unavailable", entries[0].LastError)
	assert.False(t, entries[0].Failed)
	assert.True(t, entries[0].NextAttemptAt.After(time.Now().Add(59*time.Minute)))

	// Still backing off: nothing is attempted.
	_, err = d.Flush(context.Background())
	require.NoError(t, err)
	sheet.AssertNumberOfCalls(t, "Push", 1)
}

func TestDispatcher_AbandonsAfterMaxAttempts(t *testing.T) {
	outbox := seededOutbox(t, []string{"sheet"}, "P1", "P2")

	sheet := &mockSink{name: "sheet"}
	sheet.On("Push", byID("P1")).Return(errors.New("bad row"))
	sheet.On("Push", byID("P2")).Return(nil)

	d := syncer.NewDispatcher(outbox, []syncer.Sink{sheet}, syncer.DispatcherConfig{MaxAttempts: 1}, logger.NewNop())
	n, err := d.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, err := outbox.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.OutboxStats{Failed: 1}, st)
	sheet.AssertExpectations(t)
}

func TestDispatcher_Backoff(t *testing.T) {
	d := syncer.NewDispatcher(store.NewMemoryStore(), nil,
		syncer.DispatcherConfig{BaseBackoff: 2 * time.Second, MaxBackoff: 10 * time.Second}, logger.NewNop())

	assert.Equal(t, 2*time.Second, d.Backoff(1))
	assert.Equal(t, 4*time.Second, d.Backoff(2))
	assert.Equal(t, 8*time.Second, d.Backoff(3))
	assert.Equal(t, 10*time.Second, d.Backoff(4))
	assert.Equal(t, 10*time.Second, d.Backoff(30))
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	outbox := seededOutbox(t, []string{"sheet"}, "P1")
	sheet := &mockSink{name: "sheet"}
	sheet.On("Push", mock.Anything).Return(nil)

	d := syncer.NewDispatcher(outbox, []syncer.Sink{sheet}, syncer.DispatcherConfig{}, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(outbox.Entries()) == 0 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
