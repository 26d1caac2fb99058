// Package plan turns a dependency closure into ordered definition work
// against the analysis environment: placeholder stubs first, then real
// type definitions, then function signature redefinitions.
package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/interruptlabs/header-query-bn/internal/env"
	"github.com/interruptlabs/header-query-bn/internal/extract"
)

// Policy controls what happens to a type whose name is already defined
// in the environment.
type Policy int

const (
	// OverwriteNone skips every already-defined type.
	OverwriteNone Policy = iota
	// OverwriteAll redefines every already-defined type.
	OverwriteAll
	// OverwriteSelect asks the Selector per already-defined type.
	OverwriteSelect
)

// PolicyFromString parses the --overwrite flag value.
func PolicyFromString(s string) (Policy, error) {
	switch s {
	case "no":
		return OverwriteNone, nil
	case "yes":
		return OverwriteAll, nil
	case "select":
		return OverwriteSelect, nil
	}
	return OverwriteNone, fmt.Errorf("unknown overwrite policy %q (want no, yes, or select)", s)
}

// Selector decides whether one already-defined type should be
// overwritten. Wired to a prompt at the command layer; the planner
// itself never reads input.
type Selector func(name string) bool

// TypeOutcome is the result of attempting one real type definition.
type TypeOutcome struct {
	Name string
	Err  error
}

// FunctionOutcome is the result of redefining one function signature.
type FunctionOutcome struct {
	Name string
	Err  error
}

// Result collects per-item outcomes of a full run. A failed item never
// aborts the run; it is recorded here and the rest proceeds.
type Result struct {
	// Types holds every attempted real definition, in definition order.
	Types []TypeOutcome
	// BlankStubs are placeholder names whose real definition never
	// arrived or failed, left in the environment as empty types.
	BlankStubs []string
	// Skipped are already-defined names left alone under the policy.
	Skipped []string
	// Functions holds every attempted signature redefinition.
	Functions []FunctionOutcome
}

// Planner executes a run against one environment. TotalFunctions is the
// size of the environment's function table, used to decide between
// per-function and global reanalysis.
type Planner struct {
	Env            env.Environment
	Memo           *extract.DepMemo
	Policy         Policy
	Selector       Selector
	TotalFunctions int
	Logf           func(format string, args ...any)
}

func (p *Planner) logf(format string, args ...any) {
	if p.Logf != nil {
		p.Logf(format, args...)
	}
}

// Run computes the closure of the desired functions, defines the types
// it reaches, and redefines the functions' signatures. The two mutation
// phases each run in their own transaction so cancellation between or
// during them leaves the environment at a phase boundary.
func (p *Planner) Run(ctx context.Context, functions, types map[string]*extract.Node) (*Result, error) {
	closure := extract.NewClosure(p.Memo).Names(functions, types)
	nodes := extract.NodesForNames(closure, types)
	p.logf("closure reaches %d names, %d defined by available nodes", len(closure), len(nodes))

	result := &Result{}
	if err := p.Env.Transact(ctx, func(ctx context.Context) error {
		return p.defineTypes(ctx, nodes, functions, result)
	}); err != nil {
		return result, fmt.Errorf("define types: %w", err)
	}
	if err := p.Env.Transact(ctx, func(ctx context.Context) error {
		return p.redefineFunctions(ctx, functions, result)
	}); err != nil {
		return result, fmt.Errorf("redefine functions: %w", err)
	}
	return result, nil
}

// defineTypes creates placeholder stubs for every referenced-but-
// undefined name, then the real definitions, enums before everything
// else so enum constants used in array sizes resolve.
func (p *Planner) defineTypes(ctx context.Context, nodes, functions map[string]*extract.Node, result *Result) error {
	existing, err := p.Env.TypeNames(ctx)
	if err != nil {
		return err
	}

	toDefine := make(map[string]*extract.Node)
	for _, name := range extract.SortedNames(nodes) {
		node := nodes[name]
		if _, defined := existing[name]; defined {
			switch p.Policy {
			case OverwriteNone:
				result.Skipped = append(result.Skipped, name)
				continue
			case OverwriteSelect:
				if p.Selector == nil || !p.Selector(name) {
					result.Skipped = append(result.Skipped, name)
					continue
				}
			}
		}
		toDefine[name] = node
	}

	created := p.createStubs(ctx, toDefine, functions, existing)

	// Enums first. Their constants can appear in array sizes of structs
	// defined later in the same phase.
	order := make([]string, 0, len(toDefine))
	for _, name := range extract.SortedNames(toDefine) {
		if toDefine[name].Kind == extract.KindEnumSpecifier {
			order = append(order, name)
		}
	}
	for _, name := range extract.SortedNames(toDefine) {
		if toDefine[name].Kind != extract.KindEnumSpecifier {
			order = append(order, name)
		}
	}

	defined := make(map[string]struct{})
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, done := defined[name]; done {
			continue
		}
		node := toDefine[name]
		source := definitionSource(node)
		names, err := p.Env.DefineTypes(ctx, source)
		if err != nil {
			p.logf("define %s: %v", name, err)
			result.Types = append(result.Types, TypeOutcome{Name: name, Err: err})
			continue
		}
		result.Types = append(result.Types, TypeOutcome{Name: name})
		for _, n := range names {
			defined[n] = struct{}{}
			delete(created, n)
		}
	}

	result.BlankStubs = append(result.BlankStubs, sortedKeys(created)...)
	return nil
}

// createStubs defines an empty placeholder for every dependency name
// not already present in the environment, planned definitions included.
// Placeholders in front of every referenced name let mutually
// referencing definitions compile in either order; a placeholder whose
// real definition lands later is dropped from the returned set.
func (p *Planner) createStubs(ctx context.Context, toDefine, functions map[string]*extract.Node, existing map[string]struct{}) map[string]struct{} {
	var deps []extract.Dependency
	seen := make(map[string]struct{})
	collect := func(node *extract.Node) {
		for _, dep := range p.Memo.Dependencies(node) {
			if _, dup := seen[dep.Name]; dup {
				continue
			}
			seen[dep.Name] = struct{}{}
			deps = append(deps, dep)
		}
	}
	for _, name := range extract.SortedNames(toDefine) {
		collect(toDefine[name])
	}
	for _, name := range extract.SortedNames(functions) {
		collect(functions[name])
	}

	created := make(map[string]struct{})
	for _, dep := range deps {
		if _, ok := existing[dep.Name]; ok {
			continue
		}
		stub := fmt.Sprintf("%s %s {};", dep.Kind.Prefix(), dep.Name)
		if _, err := p.Env.DefineTypes(ctx, stub); err != nil {
			p.logf("stub %s: %v", dep.Name, err)
			continue
		}
		created[dep.Name] = struct{}{}
	}
	p.logf("created %d placeholder stubs", len(created))
	return created
}

// definitionSource renders a node as standalone compilable C. Typedef
// spans already include the trailing semicolon; bare specifiers do not.
func definitionSource(node *extract.Node) string {
	raw := node.RawText
	if node.Kind == extract.KindTypeDefinition {
		return raw
	}
	if strings.HasSuffix(strings.TrimSpace(raw), ";") {
		return raw
	}
	return raw + ";"
}

// redefineFunctions applies each desired function's declaration text to
// its environment entity. Reanalysis is per function when only a small
// share of the function table was touched, global otherwise.
func (p *Planner) redefineFunctions(ctx context.Context, functions map[string]*extract.Node, result *Result) error {
	perFunction := p.TotalFunctions == 0 || len(functions)*2 < p.TotalFunctions

	touched := 0
	for _, name := range extract.SortedNames(functions) {
		if err := ctx.Err(); err != nil {
			return err
		}
		node := functions[name]
		if node.External == nil {
			continue
		}
		if err := node.External.SetSignature(ctx, node.RawText); err != nil {
			p.logf("set signature %s: %v", name, err)
			result.Functions = append(result.Functions, FunctionOutcome{Name: name, Err: err})
			continue
		}
		result.Functions = append(result.Functions, FunctionOutcome{Name: name})
		touched++
		if perFunction {
			if err := node.External.Reanalyze(ctx); err != nil {
				p.logf("reanalyze %s: %v", name, err)
			}
		}
	}

	if !perFunction && touched > 0 {
		if err := p.Env.Reanalyze(ctx); err != nil {
			p.logf("global reanalysis: %v", err)
		}
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
