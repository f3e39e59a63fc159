package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taxon/internal/knowledge"
)

var _ knowledge.CacheStore = (*SQLiteStore)(nil)

// ClassRecord is an api_cache row with provenance still compressed.
type ClassRecord struct {
	Class          string
	Domain         string
	Description    string
	Context        []byte
	Response       []byte
	ContextTokens  int
	ResponseTokens int
}

// FunctionRecord is a function_cache row with provenance still compressed.
type FunctionRecord struct {
	Class          string
	Function       string
	Subdomain      string
	Description    string
	Context        []byte
	Response       []byte
	ContextTokens  int
	ResponseTokens int
}

func (s *SQLiteStore) ClassDomain(ctx context.Context, class string) (knowledge.Classification, bool, error) {
	var r ClassRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT domain, COALESCE(description, ''), context, response, COALESCE(context_tokens, 0), COALESCE(response_tokens, 0)
		FROM api_cache WHERE classname = ?
	`, class).Scan(&r.Domain, &r.Description, &r.Context, &r.Response, &r.ContextTokens, &r.ResponseTokens)
	if errors.Is(err, sql.ErrNoRows) {
		return knowledge.Classification{}, false, nil
	}
	if err != nil {
		return knowledge.Classification{}, false, fmt.Errorf("failed to read class cache: %w", err)
	}
	c, err := toClassification(r.Domain, r.Description, r.Context, r.Response, r.ContextTokens, r.ResponseTokens)
	return c, err == nil, err
}

func (s *SQLiteStore) FunctionSubdomain(ctx context.Context, class, function string) (knowledge.Classification, bool, error) {
	var r FunctionRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT subdomain, COALESCE(description, ''), context, response, COALESCE(context_tokens, 0), COALESCE(response_tokens, 0)
		FROM function_cache WHERE classname = ? AND function_name = ?
	`, class, function).Scan(&r.Subdomain, &r.Description, &r.Context, &r.Response, &r.ContextTokens, &r.ResponseTokens)
	if errors.Is(err, sql.ErrNoRows) {
		return knowledge.Classification{}, false, nil
	}
	if err != nil {
		return knowledge.Classification{}, false, fmt.Errorf("failed to read function cache: %w", err)
	}
	c, err := toClassification(r.Subdomain, r.Description, r.Context, r.Response, r.ContextTokens, r.ResponseTokens)
	return c, err == nil, err
}

// PutClassDomain inserts the class entry if absent and returns the stored entry.
func (s *SQLiteStore) PutClassDomain(ctx context.Context, class string, c knowledge.Classification) (knowledge.Classification, error) {
	prompt, response, err := compressProvenance(c)
	if err != nil {
		return knowledge.Classification{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO api_cache (classname, domain, description, context, response, context_tokens, response_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(classname) DO NOTHING
	`, class, c.Label, c.Description, prompt, response, c.PromptTokens, c.ResponseTokens); err != nil {
		return knowledge.Classification{}, fmt.Errorf("failed to store class %s: %w", class, err)
	}

	stored, ok, err := s.ClassDomain(ctx, class)
	if err != nil {
		return knowledge.Classification{}, err
	}
	if !ok {
		return knowledge.Classification{}, fmt.Errorf("%w: class %s after insert", ErrNotFound, class)
	}
	return stored, nil
}

// PutFunctionSubdomain inserts the function entry if absent. The class must
// already be cached.
func (s *SQLiteStore) PutFunctionSubdomain(ctx context.Context, class, function string, c knowledge.Classification) (knowledge.Classification, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM api_cache WHERE classname = ?", class).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return knowledge.Classification{}, fmt.Errorf("%w: %s", knowledge.ErrCachePrecondition, class)
	}
	if err != nil {
		return knowledge.Classification{}, err
	}

	prompt, response, err := compressProvenance(c)
	if err != nil {
		return knowledge.Classification{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO function_cache (classname, function_name, subdomain, description, context, response, context_tokens, response_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(classname, function_name) DO NOTHING
	`, class, function, c.Label, c.Description, prompt, response, c.PromptTokens, c.ResponseTokens); err != nil {
		return knowledge.Classification{}, fmt.Errorf("failed to store function %s::%s: %w", class, function, err)
	}

	stored, ok, err := s.FunctionSubdomain(ctx, class, function)
	if err != nil {
		return knowledge.Classification{}, err
	}
	if !ok {
		return knowledge.Classification{}, fmt.Errorf("%w: function %s::%s after insert", ErrNotFound, class, function)
	}
	return stored, nil
}

// CacheCounts reports the number of cached classes and functions.
func (s *SQLiteStore) CacheCounts(ctx context.Context) (classes, functions int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM api_cache), (SELECT COUNT(*) FROM function_cache)
	`).Scan(&classes, &functions)
	return classes, functions, err
}

// --- backup transfer ---

// PendingClasses lists class rows not yet copied to the backup.
func (s *SQLiteStore) PendingClasses(ctx context.Context) ([]ClassRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT classname, domain, COALESCE(description, ''), context, response, COALESCE(context_tokens, 0), COALESCE(response_tokens, 0)
		FROM api_cache WHERE transferred IS NULL ORDER BY classname
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClassRecord
	for rows.Next() {
		var r ClassRecord
		if err := rows.Scan(&r.Class, &r.Domain, &r.Description, &r.Context, &r.Response, &r.ContextTokens, &r.ResponseTokens); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PendingFunctions lists function rows not yet copied to the backup.
func (s *SQLiteStore) PendingFunctions(ctx context.Context) ([]FunctionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT classname, function_name, subdomain, COALESCE(description, ''), context, response, COALESCE(context_tokens, 0), COALESCE(response_tokens, 0)
		FROM function_cache WHERE transferred IS NULL ORDER BY classname, function_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FunctionRecord
	for rows.Next() {
		var r FunctionRecord
		if err := rows.Scan(&r.Class, &r.Function, &r.Subdomain, &r.Description, &r.Context, &r.Response, &r.ContextTokens, &r.ResponseTokens); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkTransferred flags cache rows as present in the backup.
func (s *SQLiteStore) MarkTransferred(ctx context.Context, classes []ClassRecord, functions []FunctionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range classes {
		if _, err := tx.ExecContext(ctx, "UPDATE api_cache SET transferred = 1 WHERE classname = ?", c.Class); err != nil {
			return err
		}
	}
	for _, f := range functions {
		if _, err := tx.ExecContext(ctx, "UPDATE function_cache SET transferred = 1 WHERE classname = ? AND function_name = ?", f.Class, f.Function); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ImportCache inserts rows that are absent, marked as already transferred.
// Existing rows are never overwritten.
func (s *SQLiteStore) ImportCache(ctx context.Context, classes []ClassRecord, functions []FunctionRecord) (int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	nc, nf := 0, 0
	for _, c := range classes {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO api_cache (classname, domain, description, context, response, context_tokens, response_tokens, transferred)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1)
			ON CONFLICT(classname) DO NOTHING
		`, c.Class, c.Domain, c.Description, c.Context, c.Response, c.ContextTokens, c.ResponseTokens)
		if err != nil {
			return 0, 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			nc++
		}
	}
	for _, f := range functions {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO function_cache (classname, function_name, subdomain, description, context, response, context_tokens, response_tokens, transferred)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
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

func compressProvenance(c knowledge.Classification) ([]byte, []byte, error) {
	prompt, err := compressText(c.Prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compress prompt: %w", err)
	}
	response, err := compressText(c.Response)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compress response: %w", err)
	}
	return prompt, response, nil
}

func toClassification(label, desc string, ctxBlob, respBlob []byte, promptTokens, responseTokens int) (knowledge.Classification, error) {
	prompt, err := decompressText(ctxBlob)
	if err != nil {
		return knowledge.Classification{}, err
	}
	response, err := decompressText(respBlob)
	if err != nil {
		return knowledge.Classification{}, err
	}
	return knowledge.Classification{
		Label:          label,
		Description:    desc,
		Prompt:         prompt,
		Response:       response,
		PromptTokens:   promptTokens,
		ResponseTokens: responseTokens,
	}, nil
}
