package extract

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/interruptlabs/header-query-bn/internal/queries"
)

// DependencyKind distinguishes how a dependency was spelled at its use
// site. It determines the prefix used when generating a placeholder
// definition for a name that is referenced but never defined.
type DependencyKind int

const (
	// DepUnspecified is a bare named type (`Foo x;`). Stubbed as a
	// struct, matching how the C type compiler resolves bare names.
	DepUnspecified DependencyKind = iota
	// DepStruct is a struct-qualified reference (`struct Foo x;`).
	DepStruct
	// DepEnum is an enum-qualified reference (`enum Foo x;`).
	DepEnum
)

// Prefix returns the keyword used when stubbing this dependency.
func (k DependencyKind) Prefix() string {
	if k == DepEnum {
		return "enum"
	}
	return "struct"
}

var depKindNames = map[DependencyKind]string{
	DepUnspecified: "unspecified",
	DepStruct:      "struct",
	DepEnum:        "enum",
}

// MarshalJSON encodes the kind by name.
func (k DependencyKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(depKindNames[k])
}

// UnmarshalJSON decodes a kind by name.
func (k *DependencyKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for kind, name := range depKindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown dependency kind %q", s)
}

// depKindForNodeType maps a captured specifier's tree-sitter type to a
// dependency kind. Anything that is not a struct or enum specifier
// (including unions) rides the unspecified/struct path.
func depKindForNodeType(t string) DependencyKind {
	switch t {
	case "struct_specifier":
		return DepStruct
	case "enum_specifier":
		return DepEnum
	default:
		return DepUnspecified
	}
}

// Dependency is one named type a node's signature directly references.
type Dependency struct {
	Kind DependencyKind `json:"kind"`
	Name string         `json:"name"`
}

// DepMemo is the memoization table for top-level dependency
// computation. A node's dependencies are computed at most once, on the
// first closure visit, and are read-only thereafter; repeat visits are
// free and never duplicate entries.
type DepMemo struct {
	catalog *queries.Catalog
	deps    map[*Node][]Dependency
}

// NewDepMemo creates an empty memo backed by the given catalog.
func NewDepMemo(catalog *queries.Catalog) *DepMemo {
	return &DepMemo{
		catalog: catalog,
		deps:    make(map[*Node][]Dependency),
	}
}

// Preload records a node's dependency set directly, used for nodes
// restored from the extraction cache where no syntax tree is available.
func (m *DepMemo) Preload(n *Node, deps []Dependency) {
	m.deps[n] = deps
}

// Dependencies returns the node's top-level dependencies: the seed
// dependencies recorded at extraction plus the results of the
// dependency-field queries over the node's own subtree. Set semantics
// by (kind, name).
func (m *DepMemo) Dependencies(n *Node) []Dependency {
	if deps, ok := m.deps[n]; ok {
		return deps
	}

	seen := make(map[Dependency]struct{})
	var deps []Dependency
	add := func(d Dependency) {
		if _, ok := seen[d]; ok {
			return
		}
		seen[d] = struct{}{}
		deps = append(deps, d)
	}

	for _, d := range n.seed {
		add(d)
	}

	if n.syntax != nil {
		for _, match := range queries.Matches(m.catalog.DependencyFields, n.syntax) {
			nameNode, ok := match.Captures["name"]
			if !ok {
				continue
			}
			kind := DepUnspecified
			if typeNode, ok := match.Captures["type"]; ok {
				kind = depKindForNodeType(typeNode.Type())
			}
			add(Dependency{Kind: kind, Name: nameNode.Content(n.source)})
		}
	}

	m.deps[n] = deps
	return deps
}

// Names returns the sorted unique names of the node's dependencies.
func (m *DepMemo) Names(n *Node) []string {
	seen := make(map[string]struct{})
	for _, d := range m.Dependencies(n) {
		seen[d.Name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
