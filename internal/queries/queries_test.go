package queries

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := NewCatalog(c.GetLanguage())
	if err != nil {
		t.Fatalf("compile catalog: %v", err)
	}
	t.Cleanup(catalog.Close)
	return catalog
}

func parseC(t *testing.T, source string) (*sitter.Node, []byte) {
	t.Helper()
	p := sitter.NewParser()
	p.SetLanguage(c.GetLanguage())
	t.Cleanup(p.Close)

	tree, err := p.ParseCtx(context.Background(), nil, []byte(source))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	t.Cleanup(tree.Close)
	return tree.RootNode(), []byte(source)
}

func captureText(t *testing.T, m Match, name string, source []byte) string {
	t.Helper()
	node, ok := m.Captures[name]
	if !ok {
		t.Fatalf("capture %q missing: have %v", name, m.Captures)
	}
	return node.Content(source)
}

func TestTypedefSpecifierCaptures(t *testing.T) {
	catalog := newTestCatalog(t)
	root, src := parseC(t, "typedef struct Point { int x; } Point_t;")

	matches := Matches(catalog.TypedefSpecifier, root)
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	if got := captureText(t, matches[0], "name", src); got != "Point" {
		t.Errorf("name = %q, want Point", got)
	}
	if _, ok := matches[0].Captures["fields"]; !ok {
		t.Error("fields capture missing for a bodied typedef")
	}
}

func TestTypedefTagHasNoFields(t *testing.T) {
	catalog := newTestCatalog(t)
	root, src := parseC(t, "typedef struct Opaque OpaqueRef;")

	matches := Matches(catalog.TypedefTag, root)
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	if got := captureText(t, matches[0], "name", src); got != "Opaque" {
		t.Errorf("name = %q", got)
	}
}

func TestTypedefSizedAndPrimitive(t *testing.T) {
	catalog := newTestCatalog(t)
	root, src := parseC(t, "typedef unsigned long u64;\ntypedef int handle;\n")

	sized := Matches(catalog.TypedefSized, root)
	if len(sized) != 1 || captureText(t, sized[0], "name", src) != "u64" {
		t.Errorf("sized matches = %v", sized)
	}
	prim := Matches(catalog.TypedefPrimitive, root)
	if len(prim) != 1 || captureText(t, prim[0], "name", src) != "handle" {
		t.Errorf("primitive matches = %v", prim)
	}
}

func TestStructSpecifierRequiresBody(t *testing.T) {
	catalog := newTestCatalog(t)
	root, _ := parseC(t, "struct Fwd;\nstruct Real { int x; };\n")

	matches := Matches(catalog.StructSpecifier, root)
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1 (forward declarations excluded)", len(matches))
	}
}

func TestFunctionNameThroughPointerDeclarator(t *testing.T) {
	catalog := newTestCatalog(t)
	root, src := parseC(t, "char *dup_string(const char *s);")

	decls := Matches(catalog.FunctionDeclaration, root)
	if len(decls) != 1 {
		t.Fatalf("declaration matches = %d, want 1", len(decls))
	}
	name, ok := First(catalog.FunctionName, decls[0].Captures["node"])
	if !ok {
		t.Fatal("no function name match")
	}
	if got := captureText(t, name, "name", src); got != "dup_string" {
		t.Errorf("name = %q, want dup_string", got)
	}
}

func TestErrorNodesMatchBrokenRegions(t *testing.T) {
	catalog := newTestCatalog(t)
	root, _ := parseC(t, "struct Ok { int x; };\n$$$ !!!\n")

	if len(Matches(catalog.ErrorNodes, root)) == 0 {
		t.Error("expected at least one error region")
	}
}

func TestDependencyFieldsCaptures(t *testing.T) {
	catalog := newTestCatalog(t)
	root, src := parseC(t, "struct S { Inner a; struct Other b; int c; };")

	names := map[string]bool{}
	typed := map[string]bool{}
	for _, m := range Matches(catalog.DependencyFields, root) {
		name := captureText(t, m, "name", src)
		names[name] = true
		if _, ok := m.Captures["type"]; ok {
			typed[name] = true
		}
	}

	if !names["Inner"] || !names["Other"] {
		t.Errorf("names = %v", names)
	}
	if names["c"] || names["int"] {
		t.Errorf("primitive fields must not match: %v", names)
	}
	if typed["Inner"] || !typed["Other"] {
		t.Errorf("type capture should mark only specifier-qualified fields: %v", typed)
	}
}
