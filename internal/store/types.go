package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/interruptlabs/header-query-bn/internal/queries"
)

// DefineError is a rejected definition: the source did not parse or
// declared nothing. Reason carries the environment's explanation and
// ends up verbatim in the run report.
type DefineError struct {
	Source string
	Reason string
}

func (e *DefineError) Error() string {
	return fmt.Sprintf("define types: %s", e.Reason)
}

// TypeNames returns the names of all currently defined types,
// placeholder stubs included.
func (s *Store) TypeNames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT name FROM types`)
	if err != nil {
		return nil, fmt.Errorf("list type names: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan type row: %w", err)
		}
		out[name] = struct{}{}
	}
	return out, rows.Err()
}

// DefineTypes compiles raw C declaration text and stores every type it
// declares under each of its names, typedef aliases included. Source
// that fails to parse cleanly is rejected whole.
func (s *Store) DefineTypes(ctx context.Context, source string) ([]string, error) {
	res, err := s.parser.Parse(ctx, []byte(source))
	if err != nil {
		return nil, &DefineError{Source: source, Reason: err.Error()}
	}
	defer res.Close()

	if res.HasErrors() {
		return nil, &DefineError{Source: source, Reason: firstErrorText(s.catalog, res.Root, res.Source)}
	}

	names, stub := s.declaredNames(res.Root, res.Source)
	if len(names) == 0 {
		return nil, &DefineError{Source: source, Reason: "source declares no types"}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, name := range names {
		_, err := s.conn(ctx).ExecContext(ctx,
			`INSERT INTO types (name, source, stub, defined_at) VALUES (?, ?, ?, ?)
			 ON DUPLICATE KEY UPDATE source = VALUES(source), stub = VALUES(stub), defined_at = VALUES(defined_at)`,
			name, source, stub, now)
		if err != nil {
			return nil, fmt.Errorf("store type %s: %w", name, err)
		}
	}
	return names, nil
}

// declaredNames extracts every name the parsed source defines. stub is
// true when the source is a single bodyless placeholder.
func (s *Store) declaredNames(root *sitter.Node, source []byte) ([]string, bool) {
	seen := make(map[string]struct{})
	var names []string
	add := func(name string) {
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	stub := false
	for _, q := range []*sitter.Query{s.catalog.StructSpecifier, s.catalog.EnumSpecifier} {
		for _, match := range queries.Matches(q, root) {
			nameNode := match.Captures["name"]
			node := match.Captures["node"]
			if nameNode == nil || node == nil {
				continue
			}
			add(nameNode.Content(source))
			if body := node.ChildByFieldName("body"); body != nil && body.NamedChildCount() == 0 {
				stub = true
			}
		}
	}

	for _, q := range []*sitter.Query{
		s.catalog.TypedefSpecifier, s.catalog.TypedefTag,
		s.catalog.TypedefSized, s.catalog.TypedefPrimitive,
	} {
		for _, match := range queries.Matches(q, root) {
			nameNode := match.Captures["name"]
			if nameNode == nil {
				continue
			}
			add(nameNode.Content(source))
			if node := match.Captures["node"]; node != nil {
				for _, am := range queries.Matches(s.catalog.AliasName, node) {
					if aliasNode, ok := am.Captures["alias_name"]; ok {
						add(aliasNode.Content(source))
					}
				}
			}
		}
	}

	sort.Strings(names)
	return names, stub && len(names) == 1
}

// firstErrorText returns the text of the first parse-error region, for
// rejection messages.
func firstErrorText(catalog *queries.Catalog, root *sitter.Node, source []byte) string {
	for _, match := range queries.Matches(catalog.ErrorNodes, root) {
		if errNode, ok := match.Captures["error"]; ok {
			return fmt.Sprintf("source does not parse near %q", errNode.Content(source))
		}
	}
	return "source does not parse"
}

// TypeRow is one row of the types table, for listing.
type TypeRow struct {
	Name   string
	Source string
	Stub   bool
}

// ListTypes returns all type rows ordered by name.
func (s *Store) ListTypes(ctx context.Context) ([]TypeRow, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT name, source, stub FROM types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}
	defer rows.Close()

	var out []TypeRow
	for rows.Next() {
		var r TypeRow
		var src sql.NullString
		if err := rows.Scan(&r.Name, &src, &r.Stub); err != nil {
			return nil, fmt.Errorf("scan type row: %w", err)
		}
		r.Source = src.String
		out = append(out, r)
	}
	return out, rows.Err()
}
