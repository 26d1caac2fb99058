package queries

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Catalog holds the compiled form of every pattern, compiled once
// against the C grammar and reused for every file in a run.
type Catalog struct {
	TypedefSpecifier    *sitter.Query
	TypedefTag          *sitter.Query
	TypedefSized        *sitter.Query
	TypedefPrimitive    *sitter.Query
	AliasName           *sitter.Query
	StructSpecifier     *sitter.Query
	EnumSpecifier       *sitter.Query
	FunctionDeclaration *sitter.Query
	FunctionDefinition  *sitter.Query
	FunctionName        *sitter.Query
	ErrorNodes          *sitter.Query
	DependencyFields    *sitter.Query
}

// NewCatalog compiles all patterns against the given language.
func NewCatalog(lang *sitter.Language) (*Catalog, error) {
	c := &Catalog{}
	for _, q := range []struct {
		dst     **sitter.Query
		name    string
		pattern string
	}{
		{&c.TypedefSpecifier, "typedef specifier", TypedefSpecifier},
		{&c.TypedefTag, "typedef tag", TypedefTag},
		{&c.TypedefSized, "typedef sized", TypedefSized},
		{&c.TypedefPrimitive, "typedef primitive", TypedefPrimitive},
		{&c.AliasName, "alias name", AliasName},
		{&c.StructSpecifier, "struct specifier", StructSpecifier},
		{&c.EnumSpecifier, "enum specifier", EnumSpecifier},
		{&c.FunctionDeclaration, "function declaration", FunctionDeclaration},
		{&c.FunctionDefinition, "function definition", FunctionDefinition},
		{&c.FunctionName, "function name", FunctionName},
		{&c.ErrorNodes, "error nodes", ErrorNodes},
		{&c.DependencyFields, "dependency fields", DependencyFields},
	} {
		compiled, err := sitter.NewQuery([]byte(q.pattern), lang)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("compile %s query: %w", q.name, err)
		}
		*q.dst = compiled
	}
	return c, nil
}

// Close releases all compiled queries.
func (c *Catalog) Close() {
	for _, q := range []*sitter.Query{
		c.TypedefSpecifier, c.TypedefTag, c.TypedefSized, c.TypedefPrimitive,
		c.AliasName, c.StructSpecifier, c.EnumSpecifier,
		c.FunctionDeclaration, c.FunctionDefinition, c.FunctionName,
		c.ErrorNodes, c.DependencyFields,
	} {
		if q != nil {
			q.Close()
		}
	}
}

// Match is one query match with its named capture bindings. When a
// capture name appears more than once in a pattern, the last node wins;
// the catalog's patterns bind each name at most once per match.
type Match struct {
	Captures map[string]*sitter.Node
}

// Matches executes a compiled query against a subtree and returns all
// matches with their captures resolved to names.
func Matches(q *sitter.Query, node *sitter.Node) []Match {
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()

	cursor.Exec(q, node)

	var matches []Match
	for {
		m, ok := cursor.NextMatch()
		if !ok {
			break
		}
		if len(m.Captures) == 0 {
			continue
		}

		match := Match{Captures: make(map[string]*sitter.Node, len(m.Captures))}
		for _, capture := range m.Captures {
			match.Captures[q.CaptureNameForId(capture.Index)] = capture.Node
		}
		matches = append(matches, match)
	}
	return matches
}

// First returns the first match of a query against a subtree, or false
// when nothing matches.
func First(q *sitter.Query, node *sitter.Node) (Match, bool) {
	matches := Matches(q, node)
	if len(matches) == 0 {
		return Match{}, false
	}
	return matches[0], true
}
