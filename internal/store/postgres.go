package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"factory-erp/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists records as jsonb documents and keeps the outbox in the
// same database, so a mutation and its pending deliveries commit together.
type PostgresStore struct {
	pool  *pgxpool.Pool
	sinks []string
}

func NewPostgresStore(pool *pgxpool.Pool, sinks ...string) *PostgresStore {
	return &PostgresStore{pool: pool, sinks: sinks}
}

func (p *PostgresStore) Load(ctx context.Context) (*core.Snapshot, error) {
	s := &core.Snapshot{Deleted: core.DeletedSet{}}

	rows, err := p.pool.Query(ctx, `
		SELECT table_name, data, COALESCE(password_hash, '')
		FROM records
		ORDER BY table_name, updated_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	for rows.Next() {
		var table, hash string
		var data []byte
		if err := rows.Scan(&table, &data, &hash); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec, err := decodeRecord(core.Table(table), data)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to decode %s record: %w", table, err)
		}
		if u, ok := rec.(core.User); ok {
			u.PasswordHash = hash
			rec = u
		}
		appendRecord(s, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	logRows, err := p.pool.Query(ctx, "SELECT data FROM audit_logs ORDER BY logged_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	for logRows.Next() {
		var data []byte
		if err := logRows.Scan(&data); err != nil {
			logRows.Close()
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		var l core.AuditLog
		if err := json.Unmarshal(data, &l); err != nil {
			logRows.Close()
			return nil, fmt.Errorf("failed to decode audit log: %w", err)
		}
		s.Logs = append(s.Logs, l)
	}
	logRows.Close()
	if err := logRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit logs: %w", err)
	}

	delRows, err := p.pool.Query(ctx, "SELECT id, deleted_at FROM deleted_ids")
	if err != nil {
		return nil, fmt.Errorf("failed to query tombstones: %w", err)
	}
	defer delRows.Close()
	for delRows.Next() {
		var id string
		var at time.Time
		if err := delRows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("failed to scan tombstone: %w", err)
		}
		s.Deleted[id] = at
	}
	if err := delRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tombstones: %w", err)
	}
	return s, nil
}

func (p *PostgresStore) Commit(ctx context.Context, b core.Batch) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}

	if b.Replace != nil {
		rows, err := snapshotRows(b.Replace)
		if err != nil {
			return err
		}
		batch.Queue("DELETE FROM records")
		for _, r := range rows {
			queueUpsert(batch, r)
		}
	}

	for _, ch := range b.Changes {
		if ch.Action == core.ActionDelete {
			batch.Queue("DELETE FROM records WHERE table_name = $1 AND id = $2", string(ch.Table), ch.RecordID)
		} else {
			r, err := encodeRecord(ch.Table, ch.RecordID, ch.Record)
			if err != nil {
				return err
			}
			queueUpsert(batch, r)
		}

		var payload []byte
		if ch.Record != nil {
			if payload, err = json.Marshal(ch.Record); err != nil {
				return fmt.Errorf("failed to encode outbox payload: %w", err)
			}
		}
		for _, sink := range p.sinks {
			batch.Queue(`
				INSERT INTO outbox (sink, table_name, action, record_id, payload)
				VALUES ($1, $2, $3, $4, $5)
			`, sink, string(ch.Table), string(ch.Action), ch.RecordID, payload)
		}
	}

	for id, at := range b.Tombstones {
		batch.Queue(`
			INSERT INTO deleted_ids (id, deleted_at) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET deleted_at = EXCLUDED.deleted_at
		`, id, at)
	}
	if len(b.Pruned) > 0 {
		batch.Queue("DELETE FROM deleted_ids WHERE id = ANY($1)", b.Pruned)
	}

	for _, l := range b.Logs {
		data, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("failed to encode audit log: %w", err)
		}
		batch.Queue(`
			INSERT INTO audit_logs (id, logged_at, data) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING
		`, l.ID, l.Timestamp, data)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to write batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func queueUpsert(batch *pgx.Batch, r storedRow) {
	batch.Queue(`
		INSERT INTO records (table_name, id, data, password_hash, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (table_name, id) DO UPDATE
		SET data = EXCLUDED.data,
		    password_hash = COALESCE(EXCLUDED.password_hash, records.password_hash),
		    updated_at = NOW()
	`, string(r.Table), r.ID, r.Data, r.PasswordHash)
}

// ── Outbox ───────────────────────────────────────────────────────────────────

func (p *PostgresStore) Due(ctx context.Context, sink string, now time.Time, limit int) ([]core.OutboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, sink, table_name, action, record_id, payload, attempts, next_attempt_at, last_error, created_at
		FROM outbox
		WHERE sink = $1 AND NOT failed
		ORDER BY id
		LIMIT $2
	`, sink, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var due []core.OutboxEntry
	for rows.Next() {
		var e core.OutboxEntry
		var table, action string
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Sink, &table, &action, &e.Change.RecordID, &payload,
			&e.Attempts, &e.NextAttemptAt, &e.LastError, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		e.Change.Table = core.Table(table)
		e.Change.Action = core.Action(action)
		if len(payload) > 0 {
			rec, err := decodeRecord(e.Change.Table, payload)
			if err != nil {
				return nil, fmt.Errorf("failed to decode outbox entry %d: %w", e.ID, err)
			}
			e.Change.Record = rec
		}
		due = append(due, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}
	if len(due) > 0 && due[0].NextAttemptAt.After(now) {
		return nil, nil
	}
	return due, nil
}

func (p *PostgresStore) MarkDelivered(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, "DELETE FROM outbox WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox entry %d delivered: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox entry %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (p *PostgresStore) MarkFailed(ctx context.Context, id int64, attempts int, next time.Time, lastErr string, dead bool) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE outbox
		SET attempts = $2, next_attempt_at = $3, last_error = $4, failed = $5
		WHERE id = $1
	`, id, attempts, next, lastErr, dead)
	if err != nil {
		return fmt.Errorf("failed to reschedule outbox entry %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox entry %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (p *PostgresStore) Stats(ctx context.Context) (core.OutboxStats, error) {
	var st core.OutboxStats
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE NOT failed), COUNT(*) FILTER (WHERE failed)
		FROM outbox
	`).Scan(&st.Pending, &st.Failed)
	if err != nil {
		return st, fmt.Errorf("failed to count outbox entries: %w", err)
	}
	return st, nil
}
