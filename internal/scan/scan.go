// Package scan drives extraction over a set of header files and
// directories: file discovery, cache lookup, parsing, and folding every
// file into one shared extractor.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/interruptlabs/header-query-bn/internal/cache"
	"github.com/interruptlabs/header-query-bn/internal/env"
	"github.com/interruptlabs/header-query-bn/internal/extract"
	"github.com/interruptlabs/header-query-bn/internal/parser"
	"github.com/interruptlabs/header-query-bn/internal/queries"
)

// Options configures one scan.
type Options struct {
	// Paths are files or directories. Directories are walked
	// recursively for files matching Extensions.
	Paths []string
	// Extensions selects files during directory walks (".h").
	Extensions []string
	// Exclude lists glob patterns of base names to skip.
	Exclude []string
	// Cache is the extraction cache; nil disables caching.
	Cache *cache.Cache
	// Oracle is the known-names function table.
	Oracle map[string]env.Function
	// Logf receives progress output; nil silences it.
	Logf func(format string, args ...any)
}

// Result is the outcome of a scan. Close must be called once the
// extracted nodes are no longer needed; it releases every parse tree
// the nodes still reference.
type Result struct {
	Extractor *extract.Extractor
	Files     int
	CacheHits int

	parser  *parser.Parser
	catalog *queries.Catalog
	open    []*parser.ParseResult
}

// Close releases parser, query, and tree resources.
func (r *Result) Close() {
	for _, res := range r.open {
		res.Close()
	}
	r.open = nil
	if r.parser != nil {
		r.parser.Close()
		r.parser = nil
	}
	if r.catalog != nil {
		r.catalog.Close()
		r.catalog = nil
	}
}

// Run discovers, parses, and extracts every requested header. Files are
// processed in sorted path order so first-occurrence-wins deduplication
// is stable across runs.
func Run(ctx context.Context, opts Options) (*Result, error) {
	files, err := discover(opts.Paths, opts.Extensions, opts.Exclude)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no header files found under %v", opts.Paths)
	}

	catalog, err := queries.NewCatalog(parser.Language())
	if err != nil {
		return nil, fmt.Errorf("compile queries: %w", err)
	}

	r := &Result{
		Extractor: extract.New(catalog, opts.Oracle),
		parser:    parser.New(),
		catalog:   catalog,
	}

	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			r.Close()
			return nil, err
		}

		if opts.Cache != nil {
			cached, hit, err := opts.Cache.Get(path)
			if err == nil && hit {
				r.Extractor.Replay(cached, path)
				r.Files++
				r.CacheHits++
				logf("cached  %s", path)
				continue
			}
		}

		res, err := r.parser.ParseFile(ctx, path)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		r.open = append(r.open, res)

		fr, err := r.Extractor.ExtractFile(ctx, res)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.Files++
		logf("scanned %s (%d declarations, %d parse errors)", path, len(fr.Records), len(fr.Errors))

		if opts.Cache != nil {
			// RecordsFor materializes dependencies through the memo so
			// the cached row replays without a syntax tree.
			stored := &extract.FileResult{Records: r.Extractor.RecordsFor(fr), Errors: fr.Errors}
			if err := opts.Cache.Put(path, stored); err != nil {
				logf("cache write %s: %v", path, err)
			}
		}
	}

	return r, nil
}

// discover expands paths into a sorted, deduplicated file list.
func discover(paths, extensions, exclude []string) ([]string, error) {
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[ext] = struct{}{}
	}

	excluded := func(path string) bool {
		base := filepath.Base(path)
		for _, pattern := range exclude {
			if ok, _ := filepath.Match(pattern, base); ok {
				return true
			}
		}
		return false
	}

	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", path, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.IsDir() {
			if !excluded(abs) {
				add(abs)
			}
			continue
		}
		err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if _, ok := extSet[filepath.Ext(p)]; !ok {
				return nil
			}
			if excluded(p) {
				return nil
			}
			add(p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", path, err)
		}
	}

	sort.Strings(files)
	return files, nil
}
