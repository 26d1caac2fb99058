package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	hqDir := filepath.Join(dir, ConfigDirName)
	if err := os.MkdirAll(hqDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(hqDir, ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaultsWithoutConfig(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Plan.Overwrite != "no" {
		t.Errorf("overwrite = %q, want no", cfg.Plan.Overwrite)
	}
	if cfg.Report.MaxErrorSnippets != 15 {
		t.Errorf("max_error_snippets = %d, want 15", cfg.Report.MaxErrorSnippets)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache should default to enabled")
	}
	if len(cfg.Scan.Extensions) != 1 || cfg.Scan.Extensions[0] != ".h" {
		t.Errorf("extensions = %v, want [.h]", cfg.Scan.Extensions)
	}
}

func TestLoadMergesPartialConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
plan:
  overwrite: yes
scan:
  exclude: ["*_generated.h"]
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Plan.Overwrite != "yes" {
		t.Errorf("overwrite = %q, want yes", cfg.Plan.Overwrite)
	}
	if len(cfg.Scan.Exclude) != 1 || cfg.Scan.Exclude[0] != "*_generated.h" {
		t.Errorf("exclude = %v", cfg.Scan.Exclude)
	}
	// Untouched sections keep defaults.
	if cfg.Report.Path != "hq-report.md" {
		t.Errorf("report path = %q", cfg.Report.Path)
	}
}

func TestExplicitCacheDisableSurvivesMerge(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "cache:\n  enabled: false\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cache.Enabled {
		t.Error("explicit enabled: false must not be overridden by the default")
	}
}

func TestFindConfigDirWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "")

	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindConfigDir(nested)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, ConfigDirName)
	// Temp dirs can involve symlinks on some platforms; compare the
	// resolved paths.
	gotReal, _ := filepath.EvalSymlinks(got)
	wantReal, _ := filepath.EvalSymlinks(want)
	if gotReal != wantReal {
		t.Errorf("FindConfigDir = %q, want %q", got, want)
	}
}

func TestFindConfigDirNotFound(t *testing.T) {
	if _, err := FindConfigDir(t.TempDir()); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("err = %v, want ErrConfigNotFound", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	bad := []func(*Config){
		func(c *Config) { c.Plan.Overwrite = "maybe" },
		func(c *Config) { c.Report.MaxErrorSnippets = -1 },
		func(c *Config) { c.Scan.Extensions = nil },
		func(c *Config) { c.Scan.Extensions = []string{"h"} },
		func(c *Config) { c.Scan.Exclude = []string{"[bad"} },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := Validate(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("case %d: err = %v, want ErrInvalidConfig", i, err)
		}
	}
}

func TestSaveDefaultRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path, err := SaveDefault(dir)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("saved defaults do not validate: %v", err)
	}
	if _, err := SaveDefault(dir); err == nil {
		t.Error("second SaveDefault should refuse to overwrite")
	}
}
