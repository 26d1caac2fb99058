package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/interruptlabs/header-query-bn/internal/extract"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func writeHeader(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.h")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sampleResult() *extract.FileResult {
	return &extract.FileResult{
		Records: []extract.Record{
			{
				Name:    "Point",
				Kind:    extract.KindTypeDefinition,
				RawText: "typedef struct Point { int x; } Point_t;",
				Aliases: []string{"Point_t"},
				Deps: []extract.Dependency{
					{Kind: extract.DepUnspecified, Name: "Point_t"},
				},
			},
			{
				Name:       "open_file",
				Kind:       extract.KindFunctionDeclaration,
				RawText:    "int open_file(const char *path);",
				IsFunction: true,
			},
		},
		Errors: []string{"#bad directive"},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c := openTestCache(t)
	path := writeHeader(t, "typedef struct Point { int x; } Point_t;\n")

	if err := c.Put(path, sampleResult()); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := c.Get(path)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(got.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(got.Records))
	}
	rec := got.Records[0]
	if rec.Name != "Point" || rec.Kind != extract.KindTypeDefinition {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Aliases) != 1 || rec.Aliases[0] != "Point_t" {
		t.Errorf("aliases = %v", rec.Aliases)
	}
	if len(rec.Deps) != 1 || rec.Deps[0].Name != "Point_t" {
		t.Errorf("deps = %v", rec.Deps)
	}
	if len(got.Errors) != 1 {
		t.Errorf("errors = %v", got.Errors)
	}
}

func TestGetMissesOnUnknownFile(t *testing.T) {
	c := openTestCache(t)
	path := writeHeader(t, "int x;\n")

	_, ok, err := c.Get(path)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected a miss for a never-cached file")
	}
}

func TestGetMissesAfterModification(t *testing.T) {
	c := openTestCache(t)
	path := writeHeader(t, "int x;\n")

	if err := c.Put(path, sampleResult()); err != nil {
		t.Fatal(err)
	}

	// Same size, different mtime.
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(path); ok {
		t.Error("expected a miss after mtime change")
	}

	// Different size too.
	if err := os.WriteFile(path, []byte("int x; int y;\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(path); ok {
		t.Error("expected a miss after content change")
	}
}

func TestPutOverwrites(t *testing.T) {
	c := openTestCache(t)
	path := writeHeader(t, "int x;\n")

	if err := c.Put(path, sampleResult()); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(path, &extract.FileResult{}); err != nil {
		t.Fatal(err)
	}

	got, ok, err := c.Get(path)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(got.Records) != 0 {
		t.Errorf("records = %v, want none after overwrite", got.Records)
	}

	stats, err := c.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("entries = %d, want 1", stats.Entries)
	}
}

func TestClear(t *testing.T) {
	c := openTestCache(t)
	path := writeHeader(t, "int x;\n")

	if err := c.Put(path, sampleResult()); err != nil {
		t.Fatal(err)
	}
	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(path); ok {
		t.Error("expected a miss after clear")
	}
}
