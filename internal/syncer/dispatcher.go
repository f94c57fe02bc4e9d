package syncer

import (
	"context"
	"fmt"
	"time"

	"factory-erp/internal/core"
	"factory-erp/internal/logger"
)

// Outbox is the durable queue a Store fills on commit.
type Outbox interface {
	Due(ctx context.Context, sink string, now time.Time, limit int) ([]core.OutboxEntry, error)
	MarkDelivered(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, attempts int, next time.Time, lastErr string, dead bool) error
	Stats(ctx context.Context) (core.OutboxStats, error)
}

// Sink receives committed changes. Name must match the sink name the store enqueues for.
type Sink interface {
	Name() string
	Push(ctx context.Context, ch core.Change) error
}

type DispatcherConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	BatchSize   int
}

// Dispatcher drains the outbox into its sinks. Each sink is drained in enqueue
// order; a failed entry holds back the rest of its sink until it is retried.
type Dispatcher struct {
	outbox Outbox
	sinks  []Sink
	cfg    DispatcherConfig
	log    logger.Logger
	now    func() time.Time
	wake   chan struct{}
}

func NewDispatcher(outbox Outbox, sinks []Sink, cfg DispatcherConfig, log logger.Logger) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Dispatcher{
		outbox: outbox,
		sinks:  sinks,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		wake:   make(chan struct{}, 1),
	}
}

// Notify asks a running dispatcher to flush now. It never blocks.
func (d *Dispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Backoff is the delay before retry number attempts: base doubled per earlier
// attempt, capped at MaxBackoff.
func (d *Dispatcher) Backoff(attempts int) time.Duration {
	delay := d.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	return delay
}

// Flush delivers every due entry once and returns how many were delivered.
func (d *Dispatcher) Flush(ctx context.Context) (int, error) {
	delivered := 0
	for _, sink := range d.sinks {
		n, err := d.flushSink(ctx, sink)
		delivered += n
		if err != nil {
			return delivered, err
		}
	}
	return delivered, nil
}

func (d *Dispatcher) flushSink(ctx context.Context, sink Sink) (int, error) {
	delivered := 0
	for {
		entries, err := d.outbox.Due(ctx, sink.Name(), d.now(), d.cfg.BatchSize)
		if err != nil {
			return delivered, fmt.Errorf("failed to read outbox for %s: %w", sink.Name(), err)
		}
		if len(entries) == 0 {
			return delivered, nil
		}
		for _, e := range entries {
			pushErr := sink.Push(ctx, e.Change)
			if pushErr == nil {
				if err := d.outbox.MarkDelivered(ctx, e.ID); err != nil {
					return delivered, fmt.Errorf("failed to mark entry %d delivered: %w", e.ID, err)
				}
				delivered++
				continue
			}

			attempts := e.Attempts + 1
			dead := attempts >= d.cfg.MaxAttempts
			next := d.now().Add(d.Backoff(attempts))
			if err := d.outbox.MarkFailed(ctx, e.ID, attempts, next, pushErr.Error(), dead); err != nil {
				return delivered, fmt.Errorf("failed to reschedule entry %d: %w", e.ID, err)
			}
			fields := []logger.Field{
				logger.String("sink", sink.Name()),
				logger.Int64("entry_id", e.ID),
				logger.String("table", string(e.Change.Table)),
				logger.String("record_id", e.Change.RecordID),
				logger.Int("attempts", attempts),
				logger.Error(pushErr),
			}
			if dead {
				d.log.Error("outbox entry abandoned", fields...)
				continue
			}
			d.log.Warn("outbox push failed, will retry", append(fields, logger.Duration("retry_in", d.Backoff(attempts)))...)
			return delivered, nil
		}
		if len(entries) < d.cfg.BatchSize {
			return delivered, nil
		}
	}
}

// Run flushes on every tick and on Notify until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.log.Info("outbox dispatcher started", logger.Duration("interval", interval), logger.Int("sinks", len(d.sinks)))
	for {
		if _, err := d.Flush(ctx); err != nil && ctx.Err() == nil {
			d.log.Error("outbox flush failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			d.log.Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
		case <-d.wake:
		}
	}
}
