package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// BeginRun opens a run ledger entry.
func (s *SQLiteStore) BeginRun(ctx context.Context, scope string) (Run, error) {
	r := Run{ID: uuid.NewString(), Scope: scope, StartedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx, "INSERT INTO runs (run_id, scope, started_at) VALUES (?, ?, ?)", r.ID, r.Scope, r.StartedAt)
	return r, err
}

// FinishRun stores the counters of a completed run.
func (s *SQLiteStore) FinishRun(ctx context.Context, r Run) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	counts, err := json.Marshal(r.Counts)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, counts = ?, deferred = ?, failed = ?, cache_hits = ?, classifier_calls = ?
		WHERE run_id = ?
	`, r.FinishedAt, string(counts), r.Deferred, r.Failed, r.CacheHits, r.Calls, r.ID)
	return err
}

// LastRun returns the most recently started run.
func (s *SQLiteStore) LastRun(ctx context.Context) (Run, bool, error) {
	var (
		r                Run
		finished         sql.NullTime
		counts           sql.NullString
		deferred, failed sql.NullInt64
		hits, calls      sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, COALESCE(scope, ''), started_at, finished_at, counts, deferred, failed, cache_hits, classifier_calls
		FROM runs ORDER BY rowid DESC LIMIT 1
	`).Scan(&r.ID, &r.Scope, &r.StartedAt, &finished, &counts, &deferred, &failed, &hits, &calls)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}

	r.FinishedAt = finished.Time
	if counts.Valid && counts.String != "" {
		if err := json.Unmarshal([]byte(counts.String), &r.Counts); err != nil {
			return Run{}, false, err
		}
	}
	r.Deferred = int(deferred.Int64)
	r.Failed = int(failed.Int64)
	r.CacheHits = hits.Int64
	r.Calls = calls.Int64
	return r, true, nil
}
