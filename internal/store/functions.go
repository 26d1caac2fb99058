package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/interruptlabs/header-query-bn/internal/env"
)

// storeFunction is the env.Function handle for one row of the
// functions table.
type storeFunction struct {
	store *Store
	name  string
}

func (f *storeFunction) Name() string { return f.name }

// SetSignature replaces the stored declaration text and marks the
// function stale until the next reanalysis.
func (f *storeFunction) SetSignature(ctx context.Context, source string) error {
	res, err := f.store.conn(ctx).ExecContext(ctx,
		`UPDATE functions SET signature = ?, stale = TRUE, updated_at = ? WHERE name = ?`,
		source, time.Now().UTC().Format(time.RFC3339), f.name)
	if err != nil {
		return fmt.Errorf("set signature for %s: %w", f.name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set signature for %s: no such function", f.name)
	}
	return nil
}

// Reanalyze clears this function's stale mark.
func (f *storeFunction) Reanalyze(ctx context.Context) error {
	_, err := f.store.conn(ctx).ExecContext(ctx,
		`UPDATE functions SET stale = FALSE WHERE name = ?`, f.name)
	if err != nil {
		return fmt.Errorf("reanalyze %s: %w", f.name, err)
	}
	return nil
}

// Functions returns every function in the table, keyed by name.
func (s *Store) Functions(ctx context.Context) (map[string]env.Function, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT name FROM functions`)
	if err != nil {
		return nil, fmt.Errorf("list functions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]env.Function)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan function row: %w", err)
		}
		out[name] = &storeFunction{store: s, name: name}
	}
	return out, rows.Err()
}

// Reanalyze clears every stale mark in the functions table.
func (s *Store) Reanalyze(ctx context.Context) error {
	_, err := s.conn(ctx).ExecContext(ctx, `UPDATE functions SET stale = FALSE WHERE stale = TRUE`)
	if err != nil {
		return fmt.Errorf("global reanalyze: %w", err)
	}
	return nil
}

// SeedFunctions inserts names into the functions table, skipping any
// that already exist. Returns the number inserted.
func (s *Store) SeedFunctions(ctx context.Context, names []string) (int, error) {
	inserted := 0
	now := time.Now().UTC().Format(time.RFC3339)
	for _, name := range names {
		res, err := s.conn(ctx).ExecContext(ctx,
			`INSERT IGNORE INTO functions (name, updated_at) VALUES (?, ?)`, name, now)
		if err != nil {
			return inserted, fmt.Errorf("seed function %s: %w", name, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}
	return inserted, nil
}

// FunctionRow is one row of the functions table, for listing.
type FunctionRow struct {
	Name      string
	Signature string
	Stale     bool
}

// ListFunctions returns all function rows ordered by name.
func (s *Store) ListFunctions(ctx context.Context) ([]FunctionRow, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT name, signature, stale FROM functions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list functions: %w", err)
	}
	defer rows.Close()

	var out []FunctionRow
	for rows.Next() {
		var r FunctionRow
		var sig sql.NullString
		if err := rows.Scan(&r.Name, &sig, &r.Stale); err != nil {
			return nil, fmt.Errorf("scan function row: %w", err)
		}
		r.Signature = sig.String
		out = append(out, r)
	}
	return out, rows.Err()
}
