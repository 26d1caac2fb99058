package extract

import (
	"context"
	"path/filepath"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/interruptlabs/header-query-bn/internal/env"
	"github.com/interruptlabs/header-query-bn/internal/parser"
	"github.com/interruptlabs/header-query-bn/internal/queries"
)

// SyntaxError is one region the parser could not structurally resolve.
// Non-fatal; collected for the run report.
type SyntaxError struct {
	File    string
	Snippet string
}

// Record is the cacheable form of one extracted declaration. Replaying
// records through the extractor reproduces the same node sets as
// parsing the file, including cross-file first-wins deduplication.
type Record struct {
	Name       string       `json:"name"`
	Kind       Kind         `json:"kind"`
	RawText    string       `json:"raw"`
	IsFunction bool         `json:"is_function,omitempty"`
	// Void marks a declarator-only candidate from the void-function
	// pass; it only produces a node when the oracle knows the name.
	Void bool `json:"void,omitempty"`
	// HasBody marks a typedef that carries its own field list and so
	// also participates in general deduplication.
	HasBody bool         `json:"has_body,omitempty"`
	Aliases []string     `json:"aliases,omitempty"`
	Deps    []Dependency `json:"deps,omitempty"`
}

// FileResult is what one file contributed: the records for every node
// the file created (post-dedup) and the parse-error snippets found.
type FileResult struct {
	Records []Record
	Errors  []string
}

// Extractor accumulates declaration nodes across all files of a run.
// Deduplication is by name against everything seen so far: later
// files' redefinitions of a name are silently dropped.
type Extractor struct {
	catalog *queries.Catalog
	oracle  map[string]env.Function
	memo    *DepMemo

	nodes     map[string]*Node // general dedup set, all kinds
	typedefs  map[string]*Node // typedef nodes, all four shapes
	types     map[string]*Node // struct/enum nodes with bodies
	functions map[string]*Node // functions matched against the oracle

	errs     []SyntaxError
	errFiles []string
}

// New creates an extractor. The oracle maps known external function
// names to their entities; only functions present in it become desired
// functions.
func New(catalog *queries.Catalog, oracle map[string]env.Function) *Extractor {
	return &Extractor{
		catalog:   catalog,
		oracle:    oracle,
		memo:      NewDepMemo(catalog),
		nodes:     make(map[string]*Node),
		typedefs:  make(map[string]*Node),
		types:     make(map[string]*Node),
		functions: make(map[string]*Node),
	}
}

// Memo returns the dependency memo shared by all nodes of this run.
func (e *Extractor) Memo() *DepMemo {
	return e.memo
}

// Functions returns the desired functions: callables whose name exists
// in the oracle, keyed by name.
func (e *Extractor) Functions() map[string]*Node {
	return e.functions
}

// Types returns every available type node, keyed by name. A bodied
// struct/enum specifier wins over a bodyless typedef of the same tag;
// bodied typedefs never collide because they claim the name in the
// general dedup set first.
func (e *Extractor) Types() map[string]*Node {
	merged := make(map[string]*Node, len(e.types)+len(e.typedefs))
	for name, n := range e.types {
		merged[name] = n
	}
	for name, n := range e.typedefs {
		if _, bodied := merged[name]; !bodied {
			merged[name] = n
		}
	}
	return merged
}

// Errors returns all parse-error regions seen so far.
func (e *Extractor) Errors() []SyntaxError {
	return e.errs
}

// ErrorFiles returns the base names of files that contained parse
// errors, in the order processed.
func (e *Extractor) ErrorFiles() []string {
	return e.errFiles
}

// ExtractFile walks one parsed header and folds its declarations into
// the run's node sets. The typedef scan runs before the general scan so
// typedef names are known first and `typedef struct Tag {...} Alias;`
// cannot also produce a struct node for Tag. Failure to construct any
// single node drops that node only; parse errors never block other
// matches in the same file.
func (e *Extractor) ExtractFile(ctx context.Context, res *parser.ParseResult) (*FileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fr := &FileResult{}
	e.typedefPass(res, fr)
	e.generalPass(res, fr)
	e.voidPass(res, fr)

	if len(fr.Errors) > 0 {
		e.errFiles = append(e.errFiles, filepath.Base(res.FilePath))
		for _, snippet := range fr.Errors {
			e.errs = append(e.errs, SyntaxError{File: filepath.Base(res.FilePath), Snippet: snippet})
		}
	}
	return fr, nil
}

// Replay folds a file's cached records into the run's node sets,
// applying the same dedup and oracle classification as a live parse.
func (e *Extractor) Replay(res *FileResult, file string) {
	for _, rec := range res.Records {
		node := e.admit(rec, nil, nil)
		if node != nil {
			e.memo.Preload(node, rec.Deps)
		}
	}
	if len(res.Errors) > 0 {
		e.errFiles = append(e.errFiles, filepath.Base(file))
		for _, snippet := range res.Errors {
			e.errs = append(e.errs, SyntaxError{File: filepath.Base(file), Snippet: snippet})
		}
	}
}

// RecordsFor converts nodes back to records with their dependency sets
// materialized through the memo, for cache persistence.
func (e *Extractor) RecordsFor(fr *FileResult) []Record {
	out := make([]Record, len(fr.Records))
	copy(out, fr.Records)
	for i := range out {
		if node := e.lookup(out[i]); node != nil {
			out[i].Deps = e.memo.Dependencies(node)
		}
	}
	return out
}

// lookup finds the live node a record produced, if any.
func (e *Extractor) lookup(rec Record) *Node {
	if rec.Kind == KindTypeDefinition {
		return e.typedefs[rec.Name]
	}
	if rec.Void {
		return e.functions[rec.Name]
	}
	return e.nodes[rec.Name]
}

// admit applies dedup and classification to one candidate declaration
// and installs it into the node sets. Returns nil when the candidate
// was dropped as a duplicate or, for void candidates, unknown to the
// oracle.
func (e *Extractor) admit(rec Record, syntax *sitter.Node, source []byte) *Node {
	if rec.Kind == KindTypeDefinition {
		if _, dup := e.typedefs[rec.Name]; dup {
			return nil
		}
		node := &Node{
			Name:    rec.Name,
			Kind:    rec.Kind,
			RawText: rec.RawText,
			Aliases: rec.Aliases,
			syntax:  syntax,
			source:  source,
		}
		node.seed = typedefSeed(node)
		e.typedefs[rec.Name] = node
		if rec.HasBody {
			e.nodes[rec.Name] = node
		}
		return node
	}

	if rec.Void {
		if _, dup := e.nodes[rec.Name]; dup {
			return nil
		}
		if _, dup := e.functions[rec.Name]; dup {
			return nil
		}
		fn, known := e.oracle[rec.Name]
		if !known {
			// No matching external entity; never define a node for it.
			return nil
		}
		node := &Node{
			Name:       rec.Name,
			Kind:       rec.Kind,
			RawText:    rec.RawText,
			IsFunction: true,
			External:   fn,
			syntax:     syntax,
			source:     source,
		}
		e.functions[rec.Name] = node
		return node
	}

	if _, dup := e.nodes[rec.Name]; dup {
		return nil
	}
	node := &Node{
		Name:       rec.Name,
		Kind:       rec.Kind,
		RawText:    rec.RawText,
		IsFunction: rec.IsFunction,
		syntax:     syntax,
		source:     source,
	}
	e.nodes[rec.Name] = node
	if rec.IsFunction {
		if fn, known := e.oracle[rec.Name]; known {
			node.External = fn
			e.functions[rec.Name] = node
		}
	} else {
		e.types[rec.Name] = node
	}
	return node
}

// typedefSeed builds the extraction-time dependencies of a typedef:
// each alias (unspecified, so stubs can be created for them) plus the
// primary name itself, so the closure can later find the definition.
func typedefSeed(n *Node) []Dependency {
	if len(n.Aliases) == 0 {
		return nil
	}
	seed := make([]Dependency, 0, len(n.Aliases)+1)
	for _, alias := range n.Aliases {
		seed = append(seed, Dependency{Kind: DepUnspecified, Name: alias})
	}
	seed = append(seed, Dependency{Kind: DepUnspecified, Name: n.Name})
	return seed
}

// typedefPass runs the four typedef shapes in priority order; the
// first shape to claim a physical type_definition wins.
func (e *Extractor) typedefPass(res *parser.ParseResult, fr *FileResult) {
	claimed := make(map[uintptr]struct{})

	// Shapes with a tag and alias declarator(s).
	for _, q := range []*sitter.Query{e.catalog.TypedefSpecifier, e.catalog.TypedefTag} {
		for _, match := range queries.Matches(q, res.Root) {
			node := match.Captures["node"]
			nameNode := match.Captures["name"]
			if node == nil || nameNode == nil {
				continue
			}
			if _, ok := claimed[node.ID()]; ok {
				continue
			}
			claimed[node.ID()] = struct{}{}

			name := res.NodeText(nameNode)
			if _, dup := e.typedefs[name]; dup {
				continue
			}

			aliases, selfAlias := e.aliasNames(node, name, res)
			if selfAlias {
				// `typedef struct Foo {...} Foo;` — keeping the
				// typedef would collide with the struct node of the
				// same name when defining, so drop it entirely.
				continue
			}
			_, hasBody := match.Captures["fields"]
			rec := Record{
				Name:    name,
				Kind:    KindTypeDefinition,
				RawText: res.NodeText(node),
				HasBody: hasBody,
				Aliases: aliases,
			}
			if e.admit(rec, node, res.Source) != nil {
				fr.Records = append(fr.Records, rec)
			}
		}
	}

	// Sized and primitive shapes: the declarator is the name itself,
	// so there are no aliases by construction.
	for _, q := range []*sitter.Query{e.catalog.TypedefSized, e.catalog.TypedefPrimitive} {
		for _, match := range queries.Matches(q, res.Root) {
			node := match.Captures["node"]
			nameNode := match.Captures["name"]
			if node == nil || nameNode == nil {
				continue
			}
			if _, ok := claimed[node.ID()]; ok {
				continue
			}
			claimed[node.ID()] = struct{}{}

			name := res.NodeText(nameNode)
			if _, dup := e.typedefs[name]; dup {
				continue
			}
			rec := Record{
				Name:    name,
				Kind:    KindTypeDefinition,
				RawText: res.NodeText(node),
			}
			if e.admit(rec, node, res.Source) != nil {
				fr.Records = append(fr.Records, rec)
			}
		}
	}
}

// aliasNames collects the bare alias identifiers of a typedef,
// stripping pointer wrapping. selfAlias reports the degenerate case
// where an alias equals the tag name.
func (e *Extractor) aliasNames(node *sitter.Node, name string, res *parser.ParseResult) (aliases []string, selfAlias bool) {
	seen := make(map[string]struct{})
	for _, match := range queries.Matches(e.catalog.AliasName, node) {
		aliasNode, ok := match.Captures["alias_name"]
		if !ok {
			continue
		}
		alias := res.NodeText(aliasNode)
		if alias == name {
			return nil, true
		}
		if _, dup := seen[alias]; dup {
			continue
		}
		seen[alias] = struct{}{}
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases, false
}

// generalPass matches function declarations/definitions and struct/enum
// specifiers, and collects parse-error regions.
func (e *Extractor) generalPass(res *parser.ParseResult, fr *FileResult) {
	for _, match := range queries.Matches(e.catalog.ErrorNodes, res.Root) {
		if errNode, ok := match.Captures["error"]; ok {
			fr.Errors = append(fr.Errors, res.NodeText(errNode))
		}
	}

	for _, shape := range []struct {
		query *sitter.Query
		kind  Kind
	}{
		{e.catalog.FunctionDeclaration, KindFunctionDeclaration},
		{e.catalog.FunctionDefinition, KindFunctionDefinition},
	} {
		for _, match := range queries.Matches(shape.query, res.Root) {
			node := match.Captures["node"]
			if node == nil {
				continue
			}
			// Recover the declarator identifier; a declaration that
			// structurally resembles a function but has none (for
			// example a variable declaration) is skipped silently.
			// Only the first extractor match is taken: nested and
			// local function definitions are unsupported.
			nameMatch, ok := queries.First(e.catalog.FunctionName, node)
			if !ok {
				continue
			}
			nameNode, ok := nameMatch.Captures["name"]
			if !ok {
				continue
			}
			name := res.NodeText(nameNode)
			if _, dup := e.nodes[name]; dup {
				continue
			}

			rec := Record{
				Name:       name,
				Kind:       shape.kind,
				RawText:    res.NodeText(node),
				IsFunction: true,
			}
			created := e.admit(rec, node, res.Source)
			if created == nil {
				continue
			}
			if dep, ok := returnTypeDependency(match, res); ok {
				created.seed = append(created.seed, dep)
			}
			fr.Records = append(fr.Records, rec)
		}
	}

	for _, shape := range []struct {
		query *sitter.Query
		kind  Kind
	}{
		{e.catalog.StructSpecifier, KindStructSpecifier},
		{e.catalog.EnumSpecifier, KindEnumSpecifier},
	} {
		for _, match := range queries.Matches(shape.query, res.Root) {
			node := match.Captures["node"]
			nameNode := match.Captures["name"]
			if node == nil || nameNode == nil {
				continue
			}
			name := res.NodeText(nameNode)
			if _, dup := e.nodes[name]; dup {
				continue
			}
			rec := Record{
				Name:    name,
				Kind:    shape.kind,
				RawText: res.NodeText(node),
			}
			if e.admit(rec, node, res.Source) != nil {
				fr.Records = append(fr.Records, rec)
			}
		}
	}
}

// returnTypeDependency records the top-level dependency carried by a
// named return type. Primitive and sized built-ins carry none.
func returnTypeDependency(match queries.Match, res *parser.ParseResult) (Dependency, bool) {
	t, ok := match.Captures["return_type"]
	if !ok {
		return Dependency{}, false
	}
	switch t.Type() {
	case "primitive_type", "sized_type_specifier":
		return Dependency{}, false
	case "struct_specifier", "enum_specifier", "union_specifier":
		// The tag identifier is the specifier's second child
		// (`struct` keyword, then the name).
		child := t.Child(1)
		if child == nil || child.Type() != "type_identifier" {
			// Malformed capture; drop the dependency, keep the node.
			return Dependency{}, false
		}
		return Dependency{Kind: depKindForNodeType(t.Type()), Name: res.NodeText(child)}, true
	case "type_identifier":
		return Dependency{Kind: DepUnspecified, Name: res.NodeText(t)}, true
	default:
		return Dependency{}, false
	}
}

// voidPass catches function declarators with no explicit return-type
// capture (implicit/void-like signatures). A candidate produces a node
// only when the oracle knows the name.
func (e *Extractor) voidPass(res *parser.ParseResult, fr *FileResult) {
	for _, match := range queries.Matches(e.catalog.FunctionName, res.Root) {
		node := match.Captures["node"]
		nameNode := match.Captures["name"]
		if node == nil || nameNode == nil {
			continue
		}
		name := res.NodeText(nameNode)
		if _, dup := e.nodes[name]; dup {
			continue
		}
		if _, dup := e.functions[name]; dup {
			continue
		}
		rec := Record{
			Name:       name,
			Kind:       KindFunctionDeclaration,
			RawText:    res.NodeText(node),
			IsFunction: true,
			Void:       true,
		}
		// Record the candidate even when the oracle does not know it:
		// the oracle can differ on a later cache replay.
		fr.Records = append(fr.Records, rec)
		e.admit(rec, node, res.Source)
	}
}

// NodesForNames returns the available-type nodes whose name or any
// alias is in names, keyed by primary name.
func NodesForNames(names map[string]struct{}, types map[string]*Node) map[string]*Node {
	out := make(map[string]*Node)
	for _, node := range types {
		if _, ok := names[node.Name]; ok {
			out[node.Name] = node
			continue
		}
		for _, alias := range node.Aliases {
			if _, ok := names[alias]; ok {
				out[node.Name] = node
				break
			}
		}
	}
	return out
}

// SortedNames returns the keys of a node map in sorted order, for
// deterministic iteration.
func SortedNames(nodes map[string]*Node) []string {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
