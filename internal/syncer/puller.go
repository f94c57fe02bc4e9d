package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"factory-erp/internal/core"
	"factory-erp/internal/logger"
)

// maxWorkbookBytes bounds the export download.
const maxWorkbookBytes = 32 << 20

// Applier receives a decoded remote snapshot. *core.Coordinator satisfies it.
type Applier interface {
	ApplyRemoteSnapshot(ctx context.Context, remote *core.Snapshot) (int, error)
	PruneTombstones(ctx context.Context, cutoff time.Time) (int, error)
}

// PullResult describes one completed pull.
type PullResult struct {
	At       time.Time `json:"at"`
	Promoted int       `json:"promoted"`
	Pruned   int       `json:"pruned"`
}

// Puller downloads the spreadsheet export and replaces local state with it.
type Puller struct {
	exportURL string
	client    *http.Client
	applier   Applier
	retention time.Duration
	log       logger.Logger
	now       func() time.Time

	mu       sync.Mutex
	last     *PullResult
	lastErr  error
	inFlight bool
}

// NewPuller returns a puller for exportURL. A retention of zero keeps tombstones forever.
func NewPuller(exportURL string, client *http.Client, applier Applier, retention time.Duration, log logger.Logger) *Puller {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Puller{
		exportURL: exportURL,
		client:    client,
		applier:   applier,
		retention: retention,
		log:       log,
		now:       time.Now,
	}
}

// ErrPullInProgress is returned when a pull is requested while another runs.
var ErrPullInProgress = errors.New("pull already in progress")

// Pull fetches the workbook once and applies it.
func (p *Puller) Pull(ctx context.Context) (*PullResult, error) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return nil, ErrPullInProgress
	}
	p.inFlight = true
	p.mu.Unlock()

	res, err := p.pull(ctx)

	p.mu.Lock()
	p.inFlight = false
	p.lastErr = err
	if err == nil {
		p.last = res
	}
	p.mu.Unlock()
	return res, err
}

func (p *Puller) pull(ctx context.Context) (*PullResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.exportURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build export request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download workbook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download workbook: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxWorkbookBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}

	remote, err := DecodeWorkbook(bytes.NewReader(data), p.log)
	if err != nil {
		return nil, err
	}

	res := &PullResult{At: p.now()}
	if res.Promoted, err = p.applier.ApplyRemoteSnapshot(ctx, remote); err != nil {
		return nil, fmt.Errorf("failed to apply remote snapshot: %w", err)
	}
	if p.retention > 0 {
		if res.Pruned, err = p.applier.PruneTombstones(ctx, p.now().Add(-p.retention)); err != nil {
			return nil, fmt.Errorf("failed to prune tombstones: %w", err)
		}
	}
	p.log.Info("remote snapshot applied",
		logger.Int("customers", len(remote.Customers)),
		logger.Int("products", len(remote.Products)),
		logger.Int("orders", len(remote.Orders)),
		logger.Int("promoted", res.Promoted),
		logger.Int("tombstones_pruned", res.Pruned),
	)
	return res, nil
}

// Status returns the last successful pull and the error of the most recent one.
func (p *Puller) Status() (*PullResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.lastErr
}

// Run pulls once immediately and then on every tick until ctx is cancelled.
// Failures are logged and retried on the next tick.
func (p *Puller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.log.Info("sheet auto-sync started", logger.Duration("interval", interval))
	for {
		if _, err := p.Pull(ctx); err != nil && ctx.Err() == nil {
			p.log.Warn("sheet pull failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			p.log.Info("sheet auto-sync stopped")
			return
		case <-ticker.C:
		}
	}
}
