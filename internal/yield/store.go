package yield

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/postgres"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/resilience"
)

// Store persists aggregator snapshots to PostgreSQL as JSONB rows so a
// run's yield history can be inspected after the fact.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// Snapshot is one persisted yield record.
type Snapshot struct {
	ID         int64     `json:"id"`
	Stats      Stats     `json:"stats"`
	CapturedAt time.Time `json:"captured_at"`
}

// NewStore creates a store and ensures its schema exists.
func NewStore(ctx context.Context, db *postgres.Client, logger *slog.Logger) (*Store, error) {
	s := &Store{db: db, logger: logger.With("component", "yield_store")}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS selection_yields (
			id          BIGSERIAL PRIMARY KEY,
			data        JSONB NOT NULL,
			captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`
	if _, err := s.db.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating selection_yields table: %w", err)
	}
	return nil
}

// maxRetainedSnapshots bounds the table; older rows are pruned on save.
const maxRetainedSnapshots = 500

// SaveSnapshot writes the current aggregator stats as a new row and prunes
// rows beyond the retention bound.
func (s *Store) SaveSnapshot(ctx context.Context, stats Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding yield snapshot: %w", err)
	}
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO selection_yields (data) VALUES ($1)`, data); err != nil {
			return fmt.Errorf("inserting yield snapshot: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM selection_yields
			WHERE id NOT IN (
				SELECT id FROM selection_yields ORDER BY captured_at DESC LIMIT $1
			)`, maxRetainedSnapshots); err != nil {
			return fmt.Errorf("pruning yield snapshots: %w", err)
		}
		return nil
	})
}

// LatestSnapshot returns the most recently captured snapshot, or nil when
// the table is empty.
func (s *Store) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT id, data, captured_at FROM selection_yields ORDER BY captured_at DESC LIMIT 1`)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest yield snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns up to limit snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, data, captured_at FROM selection_yields ORDER BY captured_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing yield snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning yield snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var snap Snapshot
	var data []byte
	if err := row.Scan(&snap.ID, &data, &snap.CapturedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &snap.Stats); err != nil {
		return nil, fmt.Errorf("decoding yield snapshot %d: %w", snap.ID, err)
	}
	return &snap, nil
}

// StartPeriodicSave persists the aggregator's stats on the given interval
// until ctx is cancelled. Save failures are logged and retried on the next
// tick.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := resilience.WithTimeout(ctx, 30*time.Second, "yield-snapshot-save",
					func(ctx context.Context) error {
						return s.SaveSnapshot(ctx, agg.Stats())
					})
				if err != nil {
					s.logger.Error("failed to persist yield snapshot", "error", err)
				}
			}
		}
	}()
}
