package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens the primary database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	// one connection serializes writers from concurrent workers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS repositories (
			repo_id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner TEXT NOT NULL,
			name TEXT NOT NULL,
			UNIQUE (owner, name)
		);`,
		`CREATE TABLE IF NOT EXISTS pull_requests (
			repo_id INTEGER NOT NULL REFERENCES repositories(repo_id),
			pull_number INTEGER NOT NULL,
			title TEXT,
			merged INTEGER NOT NULL DEFAULT 0,
			merge_commit TEXT,
			created_at TIMESTAMP,
			PRIMARY KEY (repo_id, pull_number)
		);`,
		`CREATE TABLE IF NOT EXISTS files_changed (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT NOT NULL,
			commit_hash TEXT NOT NULL,
			repo_id INTEGER NOT NULL REFERENCES repositories(repo_id),
			pull_number INTEGER,
			processed TEXT,
			processed_at TIMESTAMP,
			UNIQUE (filename, commit_hash, repo_id)
		);`,
		`CREATE TABLE IF NOT EXISTS files_downloaded (
			filepath TEXT NOT NULL,
			hash TEXT NOT NULL,
			ending TEXT,
			repo_id INTEGER NOT NULL,
			content_hash TEXT,
			size INTEGER,
			downloaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (filepath, hash, repo_id)
		);`,
		`CREATE TABLE IF NOT EXISTS api_cache (
			classname TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			description TEXT,
			context BLOB,
			response BLOB,
			context_tokens INTEGER,
			response_tokens INTEGER,
			transferred INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS function_cache (
			classname TEXT NOT NULL,
			function_name TEXT NOT NULL,
			subdomain TEXT NOT NULL,
			description TEXT,
			context BLOB,
			response BLOB,
			context_tokens INTEGER,
			response_tokens INTEGER,
			transferred INTEGER,
			UNIQUE (classname, function_name)
		);`,
		`CREATE TABLE IF NOT EXISTS api_file_register (
			filename TEXT NOT NULL,
			commit_hash TEXT NOT NULL,
			classname TEXT NOT NULL,
			function_name TEXT NOT NULL,
			repo_id INTEGER NOT NULL,
			lines TEXT,
			UNIQUE (filename, commit_hash, classname, function_name, repo_id)
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			scope TEXT,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			counts TEXT,
			deferred INTEGER,
			failed INTEGER,
			cache_hits INTEGER,
			classifier_calls INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_files_changed_pending ON files_changed(repo_id, processed);`,
		`CREATE INDEX IF NOT EXISTS idx_register_class ON api_file_register(classname);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- repositories ---

// AllocateRepository returns the repository row for "owner/name", creating it if needed.
func (s *SQLiteStore) AllocateRepository(ctx context.Context, full string) (Repository, error) {
	owner, name, err := SplitRepository(full)
	if err != nil {
		return Repository{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO repositories (owner, name) VALUES (?, ?)
		ON CONFLICT(owner, name) DO NOTHING
	`, owner, name); err != nil {
		return Repository{}, err
	}
	return s.FindRepository(ctx, full)
}

// FindRepository looks up "owner/name" without creating it.
func (s *SQLiteStore) FindRepository(ctx context.Context, full string) (Repository, error) {
	owner, name, err := SplitRepository(full)
	if err != nil {
		return Repository{}, err
	}
	r := Repository{Owner: owner, Name: name}
	err = s.db.QueryRowContext(ctx, "SELECT repo_id FROM repositories WHERE owner = ? AND name = ?", owner, name).Scan(&r.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return Repository{}, fmt.Errorf("%w: repository %s", ErrNotFound, full)
	}
	return r, err
}

// --- change queue ---

// SavePullRequest upserts pull request metadata.
func (s *SQLiteStore) SavePullRequest(ctx context.Context, pr PullRequest) error {
	var created any
	if !pr.CreatedAt.IsZero() {
		created = pr.CreatedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pull_requests (repo_id, pull_number, title, merged, merge_commit, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_id, pull_number) DO UPDATE SET
			title=excluded.title,
			merged=excluded.merged,
			merge_commit=excluded.merge_commit,
			created_at=excluded.created_at
	`, pr.RepoID, pr.Number, pr.Title, pr.Merged, nullString(pr.MergeCommit), created)
	return err
}

// EnqueueChanges inserts units that are not queued yet and reports how many were new.
func (s *SQLiteStore) EnqueueChanges(ctx context.Context, changes []FileChange) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files_changed (filename, commit_hash, repo_id, pull_number)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(filename, commit_hash, repo_id) DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, c := range changes {
		res, err := stmt.ExecContext(ctx, c.Filename, c.Commit, c.Repo.ID, nullInt(c.PullNumber))
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, tx.Commit()
}

// PendingChanges lists unprocessed units in queue order.
func (s *SQLiteStore) PendingChanges(ctx context.Context, scope Scope) ([]FileChange, error) {
	q := `
		SELECT f.id, f.filename, f.commit_hash, f.repo_id, r.owner, r.name, COALESCE(f.pull_number, 0)
		FROM files_changed f JOIN repositories r ON r.repo_id = f.repo_id
		WHERE f.processed IS NULL`
	var args []any
	if scope.RepoID != 0 {
		q += " AND f.repo_id = ?"
		args = append(args, scope.RepoID)
	}
	if scope.PullNumber != 0 {
		q += " AND f.pull_number = ?"
		args = append(args, scope.PullNumber)
	}
	q += " ORDER BY f.id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending changes: %w", err)
	}
	defer rows.Close()

	var out []FileChange
	for rows.Next() {
		var c FileChange
		if err := rows.Scan(&c.ID, &c.Filename, &c.Commit, &c.Repo.ID, &c.Repo.Owner, &c.Repo.Name, &c.PullNumber); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkProcessed writes a terminal status. A unit that already has one is left
// untouched and ErrAlreadyProcessed is returned.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, c FileChange, status Status) error {
	if status == StatusPending {
		return fmt.Errorf("mark %s: empty status", c.Key())
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE files_changed SET processed = ?, processed_at = ?
		WHERE filename = ? AND commit_hash = ? AND repo_id = ? AND processed IS NULL
	`, string(status), time.Now().UTC(), c.Filename, c.Commit, c.Repo.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyProcessed, c.Key())
	}
	return nil
}

// ChangeStatus returns the recorded status of one unit.
func (s *SQLiteStore) ChangeStatus(ctx context.Context, filename, commit string, repoID int64) (Status, error) {
	var st sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT processed FROM files_changed WHERE filename = ? AND commit_hash = ? AND repo_id = ?
	`, filename, commit, repoID).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return StatusPending, fmt.Errorf("%w: %s@%s", ErrNotFound, filename, commit)
	}
	return Status(st.String), err
}

// StatusCounts groups the queue by status. Unprocessed rows count under StatusPending.
func (s *SQLiteStore) StatusCounts(ctx context.Context, repoID int64) (map[Status]int, error) {
	q := "SELECT COALESCE(processed, ''), COUNT(*) FROM files_changed"
	var args []any
	if repoID != 0 {
		q += " WHERE repo_id = ?"
		args = append(args, repoID)
	}
	q += " GROUP BY 1"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[Status]int{}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[Status(st)] = n
	}
	return out, rows.Err()
}

// ResetStatus returns every unit with the given terminal status to the queue.
func (s *SQLiteStore) ResetStatus(ctx context.Context, status Status, repoID int64) (int64, error) {
	q := "UPDATE files_changed SET processed = NULL, processed_at = NULL WHERE processed = ?"
	args := []any{string(status)}
	if repoID != 0 {
		q += " AND repo_id = ?"
		args = append(args, repoID)
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecordDownload notes a fetched snapshot.
func (s *SQLiteStore) RecordDownload(ctx context.Context, d Download) error {
	ending := d.Ending
	if ending == "" {
		ending = filepath.Ext(d.Path)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files_downloaded (filepath, hash, ending, repo_id, content_hash, size)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(filepath, hash, repo_id) DO UPDATE SET
			content_hash=excluded.content_hash,
			size=excluded.size,
			downloaded_at=CURRENT_TIMESTAMP
	`, d.Path, d.Commit, ending, d.RepoID, d.ContentHash, d.Size)
	return err
}

// --- usage edges ---

// RecordUsage stores usage edges, ignoring ones already recorded.
func (s *SQLiteStore) RecordUsage(ctx context.Context, edges []Edge) (int, error) {
	if len(edges) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO api_file_register (filename, commit_hash, classname, function_name, repo_id, lines)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename, commit_hash, classname, function_name, repo_id) DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range edges {
		fn := e.Function
		if fn == "" {
			fn = ClassEdgeFunction
		}
		lines, err := json.Marshal(e.Lines)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx, e.Filename, e.Commit, e.Class, fn, e.RepoID, string(lines))
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, tx.Commit()
}

// Usage lists the edges recorded for one unit, ordered by class then function.
func (s *SQLiteStore) Usage(ctx context.Context, filename, commit string, repoID int64) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT classname, function_name, lines FROM api_file_register
		WHERE filename = ? AND commit_hash = ? AND repo_id = ?
		ORDER BY classname, function_name
	`, filename, commit, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		e := Edge{Filename: filename, Commit: commit, RepoID: repoID}
		var lines sql.NullString
		if err := rows.Scan(&e.Class, &e.Function, &lines); err != nil {
			return nil, err
		}
		if lines.Valid && lines.String != "" {
			if err := json.Unmarshal([]byte(lines.String), &e.Lines); err != nil {
				return nil, fmt.Errorf("failed to decode lines for %s: %w", e.Class, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
