// Package extract turns parsed C header trees into a normalized
// declaration-node model and computes the type-dependency closure
// needed to redefine function signatures.
package extract

import (
	"encoding/json"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/interruptlabs/header-query-bn/internal/env"
)

// Kind classifies a declaration node. The kind is decided once at match
// time from the shape of the query that produced the node; nothing
// downstream dispatches on raw tree-sitter type strings.
type Kind int

const (
	// KindFunctionDeclaration is a function prototype (including the
	// declarator-only candidates from the void-function pass).
	KindFunctionDeclaration Kind = iota
	// KindFunctionDefinition is a function with a body.
	KindFunctionDefinition
	// KindStructSpecifier is a struct (or union) with a body.
	KindStructSpecifier
	// KindEnumSpecifier is an enum with a body.
	KindEnumSpecifier
	// KindTypeDefinition is any of the four typedef shapes.
	KindTypeDefinition
)

var kindNames = map[Kind]string{
	KindFunctionDeclaration: "function_declaration",
	KindFunctionDefinition:  "function_definition",
	KindStructSpecifier:     "struct_specifier",
	KindEnumSpecifier:       "enum_specifier",
	KindTypeDefinition:      "type_definition",
}

// String returns the kind's stable name, also used in the cache format.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalJSON encodes the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind by name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for kind, name := range kindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown declaration kind %q", s)
}

// Node is the normalized record for one recognized declaration:
// a function, struct, enum, or typedef.
//
// Name, Kind and RawText are immutable after construction. Node
// identity is by Name: within a run, two nodes never share a name —
// the first occurrence wins and later redefinitions are dropped.
type Node struct {
	// Name is the primary identifier: function name, type tag, or
	// typedef name.
	Name string
	// Kind is the structural classification.
	Kind Kind
	// RawText is the exact source span, handed verbatim to the
	// external type/signature compiler.
	RawText string
	// IsFunction reports whether this node denotes a callable
	// signature.
	IsFunction bool
	// Aliases are the alternate names this node is also known by.
	// Populated only for typedefs of the form
	// `typedef struct Tag {...} Alias1, Alias2;`.
	Aliases []string
	// External is the matching entity in the analysis environment.
	// Set only for function nodes whose name exists there.
	External env.Function

	// syntax is the matched subtree, used for on-demand dependency
	// queries. Nil for nodes restored from the extraction cache, whose
	// dependencies are preloaded instead.
	syntax *sitter.Node
	// source is the file the subtree was parsed from.
	source []byte
	// seed holds the dependencies recorded at extraction time: the
	// return-type capture and, for typedefs, the alias and tag names.
	seed []Dependency
}

// HasAlias reports whether name is one of the node's aliases.
func (n *Node) HasAlias(name string) bool {
	for _, a := range n.Aliases {
		if a == name {
			return true
		}
	}
	return false
}
