// Package backup mirrors the classification cache into a separate SQLite file.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"taxon/internal/storage"
)

// Store is the backup database with tables apis and functions.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init backup schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS apis (
			classname TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			description TEXT,
			context BLOB,
			response BLOB,
			context_tokens INTEGER,
			response_tokens INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS functions (
			classname TEXT NOT NULL,
			function_name TEXT NOT NULL,
			subdomain TEXT NOT NULL,
			description TEXT,
			context BLOB,
			response BLOB,
			context_tokens INTEGER,
			response_tokens INTEGER,
			UNIQUE (classname, function_name)
		);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// insert adds rows that are absent. Rows already in the backup win.
func (s *Store) insert(ctx context.Context, classes []storage.ClassRecord, functions []storage.FunctionRecord) (int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	nc, nf := 0, 0
	for _, c := range classes {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO apis (classname, domain, description, context, response, context_tokens, response_tokens)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(classname) DO NOTHING
		`, c.Class, c.Domain, c.Description, c.Context, c.Response, c.ContextTokens, c.ResponseTokens)
		if err != nil {
			return 0, 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			nc++
		} else {
			slog.Debug("backup.conflict", "class", c.Class)
		}
	}
	for _, f := range functions {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO functions (classname, function_name, subdomain, description, context, response, context_tokens, response_tokens)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(classname, function_name) DO NOTHING
		`, f.Class, f.Function, f.Subdomain, f.Description, f.Context, f.Response, f.ContextTokens, f.ResponseTokens)
		if err != nil {
			return 0, 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			nf++
		}
	}
	return nc, nf, tx.Commit()
}

// Classes returns every class row.
func (s *Store) Classes(ctx context.Context) ([]storage.ClassRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT classname, domain, COALESCE(description, ''), context, response, COALESCE(context_tokens, 0), COALESCE(response_tokens, 0)
		FROM apis ORDER BY classname
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.ClassRecord
	for rows.Next() {
		var r storage.ClassRecord
		if err := rows.Scan(&r.Class, &r.Domain, &r.Description, &r.Context, &r.Response, &r.ContextTokens, &r.ResponseTokens); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Functions returns every function row.
func (s *Store) Functions(ctx context.Context) ([]storage.FunctionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT classname, function_name, subdomain, COALESCE(description, ''), context, response, COALESCE(context_tokens, 0), COALESCE(response_tokens, 0)
		FROM functions ORDER BY classname, function_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.FunctionRecord
	for rows.Next() {
		var r storage.FunctionRecord
		if err := rows.Scan(&r.Class, &r.Function, &r.Subdomain, &r.Description, &r.Context, &r.Response, &r.ContextTokens, &r.ResponseTokens); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
