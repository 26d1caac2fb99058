package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func parseString(t *testing.T, source string) *ParseResult {
	t.Helper()
	p := New()
	t.Cleanup(p.Close)

	res, err := p.Parse(context.Background(), []byte(source))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	t.Cleanup(res.Close)
	return res
}

func TestParseCleanHeader(t *testing.T) {
	res := parseString(t, "struct Point { int x; int y; };\n")
	if res.HasErrors() {
		t.Error("clean header reported errors")
	}
	if res.Root.Type() != "translation_unit" {
		t.Errorf("root = %q", res.Root.Type())
	}
}

func TestParseNeverRejectsBrokenInput(t *testing.T) {
	res := parseString(t, "#include <missing>\nMACRO_SOUP(struct { $$$\n")
	if !res.HasErrors() {
		t.Error("broken header should report errors")
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.h")
	if err := os.WriteFile(path, []byte("int f(void);\n"), 0644); err != nil {
		t.Fatal(err)
	}

	p := New()
	defer p.Close()

	res, err := p.ParseFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()

	if res.FilePath != path {
		t.Errorf("file path = %q", res.FilePath)
	}
}

func TestParseFileMissing(t *testing.T) {
	p := New()
	defer p.Close()

	_, err := p.ParseFile(context.Background(), filepath.Join(t.TempDir(), "absent.h"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := err.(*FileReadError); !ok {
		t.Errorf("err = %T, want *FileReadError", err)
	}
}

func TestNodeText(t *testing.T) {
	res := parseString(t, "struct A { int x; };")
	decl := res.Root.NamedChild(0)
	if got := res.NodeText(decl); got == "" {
		t.Error("empty node text")
	}
	if got := res.NodeText(nil); got != "" {
		t.Errorf("nil node text = %q", got)
	}
}
