// Package postgres provides the durable record store backing the sync channel.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/routine/internal/domain"
	"example.com/routine/internal/observability"
	"example.com/routine/internal/outbox"
)

// Repository stores one record document per (identity, date) in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetRecord loads the persisted activities for (identity, date). A nil slice
// with nil error means no record exists for that date yet.
func (r *Repository) GetRecord(ctx context.Context, identity domain.Identity, date domain.DateKey) ([]domain.ActivityRecord, error) {
	if identity == "" {
		return nil, domain.ErrNoIdentity
	}

	const query = `SELECT activities FROM daily_records WHERE identity=$1 AND date_key=$2`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.identity', $1, true)", string(identity)); err != nil {
		return nil, err
	}

	var raw []byte
	if err := tx.QueryRow(ctx, query, string(identity), string(date)).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if err := tx.Commit(ctx); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	var records []domain.ActivityRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// PutRecord overwrites the full document at (identity, date). There is no
// field-level patching: last write wins for the whole date.
func (r *Repository) PutRecord(ctx context.Context, identity domain.Identity, date domain.DateKey, schedule domain.DailySchedule) error {
	if identity == "" {
		return domain.ErrNoIdentity
	}

	body, err := json.Marshal([]domain.ActivityRecord(schedule))
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.identity', $1, true)", string(identity)); err != nil {
		return err
	}

	const stmt = `INSERT INTO daily_records (identity, date_key, activities, updated_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (identity, date_key) DO UPDATE SET activities=EXCLUDED.activities, updated_at=EXCLUDED.updated_at`

	if _, err = tx.Exec(ctx, stmt, string(identity), string(date), body, now); err != nil {
		return err
	}

	if err = r.insertOutbox(ctx, tx, outbox.RecordUpdated{
		Identity:   string(identity),
		Date:       string(date),
		Activities: schedule,
		UpdatedAt:  now,
	}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordPersisted(now)
	return nil
}

// insertOutbox records the change event in the same transaction as the
// overwrite so the feed never announces a write that did not land.
func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, event outbox.RecordUpdated) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (identity, event_type, topic, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5)`

	_, err = tx.Exec(ctx, stmt,
		event.Identity,
		outbox.EventTypeRecordUpdated,
		outbox.TopicRecordUpdates,
		event.Identity,
		body,
	)
	return err
}

// Schema returns the DDL for the record and outbox tables, applied by
// migrations and the integration tests.
func Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS daily_records (
            identity   TEXT NOT NULL,
            date_key   TEXT NOT NULL,
            activities JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL,
            PRIMARY KEY (identity, date_key)
        )`,
		`CREATE TABLE IF NOT EXISTS outbox (
            event_id      BIGSERIAL PRIMARY KEY,
            identity      TEXT NOT NULL,
            event_type    TEXT NOT NULL,
            topic         TEXT NOT NULL,
            partition_key TEXT NOT NULL,
            payload       JSONB NOT NULL,
            created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
            claimed_at    TIMESTAMPTZ,
            published_at  TIMESTAMPTZ
        )`,
	}
}
