package extract

import (
	"context"
	"testing"

	"github.com/interruptlabs/header-query-bn/internal/env"
	"github.com/interruptlabs/header-query-bn/internal/parser"
	"github.com/interruptlabs/header-query-bn/internal/queries"
)

type fakeFunction struct {
	name       string
	signature  string
	reanalyzed int
}

func (f *fakeFunction) Name() string { return f.name }

func (f *fakeFunction) SetSignature(_ context.Context, source string) error {
	f.signature = source
	return nil
}

func (f *fakeFunction) Reanalyze(_ context.Context) error {
	f.reanalyzed++
	return nil
}

func oracleOf(names ...string) map[string]env.Function {
	oracle := make(map[string]env.Function, len(names))
	for _, name := range names {
		oracle[name] = &fakeFunction{name: name}
	}
	return oracle
}

// newTestExtractor builds an extractor backed by a freshly compiled
// catalog. The catalog leaks for the duration of the test; that is fine.
func newTestExtractor(t *testing.T, oracle map[string]env.Function) *Extractor {
	t.Helper()
	catalog, err := queries.NewCatalog(parser.Language())
	if err != nil {
		t.Fatalf("compile catalog: %v", err)
	}
	t.Cleanup(catalog.Close)
	return New(catalog, oracle)
}

func extractSource(t *testing.T, e *Extractor, source string) *FileResult {
	t.Helper()
	p := parser.New()
	t.Cleanup(p.Close)

	res, err := p.Parse(context.Background(), []byte(source))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	t.Cleanup(res.Close)
	res.FilePath = "test.h"

	fr, err := e.ExtractFile(context.Background(), res)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	return fr
}

func TestExtractTypedefShapes(t *testing.T) {
	e := newTestExtractor(t, nil)
	extractSource(t, e, `
typedef struct Point { int x; int y; } Point_t;
typedef struct Opaque OpaqueRef;
typedef unsigned long u64;
typedef int handle;
`)

	types := e.Types()
	for _, name := range []string{"Point", "Opaque", "u64", "handle"} {
		if _, ok := types[name]; !ok {
			t.Errorf("missing typedef node %q, have %v", name, SortedNames(types))
		}
	}

	point := types["Point"]
	if point.Kind != KindTypeDefinition {
		t.Errorf("Point kind = %v, want type_definition", point.Kind)
	}
	if !point.HasAlias("Point_t") {
		t.Errorf("Point aliases = %v, want Point_t", point.Aliases)
	}
	if len(types["u64"].Aliases) != 0 {
		t.Errorf("u64 aliases = %v, want none", types["u64"].Aliases)
	}
}

func TestExtractSelfAliasTypedefDropped(t *testing.T) {
	e := newTestExtractor(t, nil)
	extractSource(t, e, `typedef struct Node { int v; } Node;`)

	// A typedef whose alias equals its tag would collide with itself
	// when defined, so the typedef is dropped; the struct itself is
	// still picked up by the general scan.
	node, ok := e.Types()["Node"]
	if !ok {
		t.Fatal("struct behind a self-aliased typedef must survive")
	}
	if node.Kind != KindStructSpecifier {
		t.Errorf("Node kind = %v, want struct_specifier", node.Kind)
	}
	if len(node.Aliases) != 0 {
		t.Errorf("Node aliases = %v, want none", node.Aliases)
	}
}

func TestExtractPointerAlias(t *testing.T) {
	e := newTestExtractor(t, nil)
	extractSource(t, e, `typedef struct Buf { int n; } *BufRef;`)

	buf, ok := e.Types()["Buf"]
	if !ok {
		t.Fatal("missing Buf node")
	}
	if !buf.HasAlias("BufRef") {
		t.Errorf("Buf aliases = %v, want BufRef", buf.Aliases)
	}
}

func TestExtractStructAndEnum(t *testing.T) {
	e := newTestExtractor(t, nil)
	extractSource(t, e, `
struct Color { int r; int g; int b; };
enum Mode { MODE_A, MODE_B };
struct Forward;
`)

	types := e.Types()
	if node, ok := types["Color"]; !ok || node.Kind != KindStructSpecifier {
		t.Errorf("Color: got %v", node)
	}
	if node, ok := types["Mode"]; !ok || node.Kind != KindEnumSpecifier {
		t.Errorf("Mode: got %v", node)
	}
	if _, ok := types["Forward"]; ok {
		t.Error("bodyless forward declaration should not produce a node")
	}
}

func TestExtractFunctions(t *testing.T) {
	e := newTestExtractor(t, oracleOf("known_fn", "with_body"))
	extractSource(t, e, `
int known_fn(int a, char *b);
void unknown_fn(void);
int with_body(int x) { return x; }
int not_a_function;
`)

	funcs := e.Functions()
	if _, ok := funcs["known_fn"]; !ok {
		t.Errorf("known_fn missing from desired functions: %v", SortedNames(funcs))
	}
	if _, ok := funcs["with_body"]; !ok {
		t.Errorf("with_body missing from desired functions: %v", SortedNames(funcs))
	}
	if _, ok := funcs["unknown_fn"]; ok {
		t.Error("unknown_fn should not be a desired function")
	}
	if _, ok := e.nodes["not_a_function"]; ok {
		t.Error("variable declaration should not produce a node")
	}
	if funcs["with_body"].Kind != KindFunctionDefinition {
		t.Errorf("with_body kind = %v, want function_definition", funcs["with_body"].Kind)
	}
}

func TestVoidCandidateRequiresOracle(t *testing.T) {
	e := newTestExtractor(t, oracleOf("blessed"))
	e.Replay(&FileResult{Records: []Record{
		{Name: "blessed", Kind: KindFunctionDeclaration, RawText: "blessed(int a)", IsFunction: true, Void: true},
		{Name: "cursed", Kind: KindFunctionDeclaration, RawText: "cursed(int a)", IsFunction: true, Void: true},
	}}, "partial.h")

	if _, ok := e.Functions()["blessed"]; !ok {
		t.Errorf("blessed should match the function table: %v", SortedNames(e.Functions()))
	}
	if _, ok := e.Functions()["cursed"]; ok {
		t.Error("cursed is not in the function table and must not produce a node")
	}
	// Unknown void candidates leave no trace in the type sets either.
	if len(e.Types()) != 0 {
		t.Errorf("types = %v, want none", SortedNames(e.Types()))
	}
}

func TestBodiedStructOutranksBodylessTypedef(t *testing.T) {
	e := newTestExtractor(t, nil)
	extractSource(t, e, `typedef struct Conn ConnRef;`)
	extractSource(t, e, `struct Conn { int fd; };`)

	// The bodyless typedef saw the tag first, but the struct carries the
	// actual field list; the merged view must hand out the definition.
	node := e.Types()["Conn"]
	if node == nil {
		t.Fatal("missing Conn")
	}
	if node.Kind != KindStructSpecifier {
		t.Errorf("Conn kind = %v, want struct_specifier", node.Kind)
	}
}

func TestExtractionIdempotent(t *testing.T) {
	source := `
typedef struct Point { int x; } Point_t;
struct Color { int r; int g; };
enum Mode { MODE_A, MODE_B };
int known_fn(struct Ctx *c);
`
	first := newTestExtractor(t, oracleOf("known_fn"))
	extractSource(t, first, source)
	second := newTestExtractor(t, oracleOf("known_fn"))
	extractSource(t, second, source)

	compare := func(label string, a, b map[string]*Node, am, bm *DepMemo) {
		if len(a) != len(b) {
			t.Fatalf("%s: %v vs %v", label, SortedNames(a), SortedNames(b))
		}
		for _, name := range SortedNames(a) {
			an, bn := a[name], b[name]
			if bn == nil {
				t.Errorf("%s: %q missing from the second run", label, name)
				continue
			}
			if an.Kind != bn.Kind || an.RawText != bn.RawText {
				t.Errorf("%s: %q differs: %v/%q vs %v/%q",
					label, name, an.Kind, an.RawText, bn.Kind, bn.RawText)
			}
			if len(an.Aliases) != len(bn.Aliases) {
				t.Errorf("%s: %q aliases %v vs %v", label, name, an.Aliases, bn.Aliases)
			}
			aDeps, bDeps := am.Names(an), bm.Names(bn)
			if len(aDeps) != len(bDeps) {
				t.Errorf("%s: %q deps %v vs %v", label, name, aDeps, bDeps)
				continue
			}
			for i := range aDeps {
				if aDeps[i] != bDeps[i] {
					t.Errorf("%s: %q deps %v vs %v", label, name, aDeps, bDeps)
					break
				}
			}
		}
	}
	compare("types", first.Types(), second.Types(), first.Memo(), second.Memo())
	compare("functions", first.Functions(), second.Functions(), first.Memo(), second.Memo())
}

func TestFirstOccurrenceWinsAcrossFiles(t *testing.T) {
	e := newTestExtractor(t, nil)
	extractSource(t, e, `struct S { int first; };`)
	extractSource(t, e, `struct S { int second; };`)

	node := e.Types()["S"]
	if node == nil {
		t.Fatal("missing S")
	}
	if got := node.RawText; got != "struct S { int first; }" {
		t.Errorf("second definition replaced the first: %q", got)
	}
}

func TestParseErrorsCollected(t *testing.T) {
	e := newTestExtractor(t, nil)
	fr := extractSource(t, e, `
struct Ok { int x; };
#garbage $$$ !!!
`)

	if len(fr.Errors) == 0 {
		t.Fatal("expected parse errors")
	}
	if _, ok := e.Types()["Ok"]; !ok {
		t.Error("parse errors must not block extraction of valid declarations")
	}
	if len(e.ErrorFiles()) != 1 || e.ErrorFiles()[0] != "test.h" {
		t.Errorf("error files = %v", e.ErrorFiles())
	}
}

func TestDependenciesFromFieldsAndParams(t *testing.T) {
	e := newTestExtractor(t, oracleOf("f"))
	extractSource(t, e, `
struct Outer { Inner a; struct Other b; enum Flag c; int d; };
Result f(Arg x, struct Ctx *y);
`)

	outer := e.Types()["Outer"]
	deps := e.Memo().Names(outer)
	want := []string{"Flag", "Inner", "Other"}
	if len(deps) != len(want) {
		t.Fatalf("Outer deps = %v, want %v", deps, want)
	}
	for i := range want {
		if deps[i] != want[i] {
			t.Fatalf("Outer deps = %v, want %v", deps, want)
		}
	}

	kinds := map[string]DependencyKind{}
	for _, d := range e.Memo().Dependencies(outer) {
		kinds[d.Name] = d.Kind
	}
	if kinds["Other"] != DepStruct || kinds["Flag"] != DepEnum || kinds["Inner"] != DepUnspecified {
		t.Errorf("dependency kinds = %v", kinds)
	}

	fn := e.Functions()["f"]
	fnDeps := e.Memo().Names(fn)
	wantFn := []string{"Arg", "Ctx", "Result"}
	if len(fnDeps) != len(wantFn) {
		t.Fatalf("f deps = %v, want %v", fnDeps, wantFn)
	}
}

func TestDependenciesMemoized(t *testing.T) {
	e := newTestExtractor(t, nil)
	extractSource(t, e, `struct A { B b; };`)

	node := e.Types()["A"]
	first := e.Memo().Dependencies(node)
	second := e.Memo().Dependencies(node)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("repeat queries must not grow the set: %v then %v", first, second)
	}
}

func TestReplayReproducesExtraction(t *testing.T) {
	source := `
typedef struct Point { int x; } Point_t;
int known_fn(struct Ctx *c);
`
	live := newTestExtractor(t, oracleOf("known_fn"))
	fr := extractSource(t, live, source)
	records := live.RecordsFor(fr)
	stored := &FileResult{Records: records, Errors: fr.Errors}

	replayed := newTestExtractor(t, oracleOf("known_fn"))
	replayed.Replay(stored, "test.h")

	if len(replayed.Types()) != len(live.Types()) {
		t.Errorf("replayed types = %v, live = %v",
			SortedNames(replayed.Types()), SortedNames(live.Types()))
	}
	if len(replayed.Functions()) != len(live.Functions()) {
		t.Errorf("replayed functions = %v, live = %v",
			SortedNames(replayed.Functions()), SortedNames(live.Functions()))
	}

	// Replayed nodes have no syntax tree; their dependencies come from
	// the preloaded records and must match the live computation.
	liveDeps := live.Memo().Names(live.Functions()["known_fn"])
	replayDeps := replayed.Memo().Names(replayed.Functions()["known_fn"])
	if len(liveDeps) != len(replayDeps) {
		t.Errorf("replayed deps = %v, live = %v", replayDeps, liveDeps)
	}
}

func TestReplayAppliesDedup(t *testing.T) {
	live := newTestExtractor(t, nil)
	fr := extractSource(t, live, `struct S { int first; };`)
	stored := &FileResult{Records: live.RecordsFor(fr)}

	e := newTestExtractor(t, nil)
	extractSource(t, e, `struct S { int zeroth; };`)
	e.Replay(stored, "cached.h")

	if got := e.Types()["S"].RawText; got != "struct S { int zeroth; }" {
		t.Errorf("replayed record must lose to an earlier live one: %q", got)
	}
}
