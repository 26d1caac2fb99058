// Package cmd implements the scan command for hq CLI.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/interruptlabs/header-query-bn/internal/cache"
	"github.com/interruptlabs/header-query-bn/internal/config"
	"github.com/interruptlabs/header-query-bn/internal/env"
	"github.com/interruptlabs/header-query-bn/internal/extract"
	"github.com/interruptlabs/header-query-bn/internal/scan"
	"github.com/interruptlabs/header-query-bn/internal/store"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [paths...]",
	Short: "Extract declarations from header files without changing anything",
	Long: `Scan header files or directories and list the declarations found.

Nothing is written to the type database; scan is the dry-run companion
to import. When a type database exists, functions are split into known
(present in the function table) and unknown.

Examples:
  hq scan include/                 # scan a directory of headers
  hq scan a.h b.h --json           # machine-readable output
  hq scan include/ --no-cache      # bypass the extraction cache`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

var (
	scanJSON    bool
	scanNoCache bool
)

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Output JSON instead of text")
	scanCmd.Flags().BoolVar(&scanNoCache, "no-cache", false, "Bypass the extraction cache")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	oracle := map[string]env.Function{}
	if hqDir, err := config.FindConfigDir("."); err == nil {
		st, err := store.Open(hqDir)
		if err != nil {
			return fmt.Errorf("open type database: %w", err)
		}
		defer st.Close()
		oracle, err = st.Functions(ctx)
		if err != nil {
			return fmt.Errorf("load function table: %w", err)
		}
	}

	var c *cache.Cache
	if cfg.Cache.Enabled && !scanNoCache {
		if hqDir, err := config.FindConfigDir("."); err == nil {
			if c, err = cache.Open(hqDir); err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer c.Close()
		}
	}

	res, err := scan.Run(ctx, scan.Options{
		Paths:      args,
		Extensions: cfg.Scan.Extensions,
		Exclude:    cfg.Scan.Exclude,
		Cache:      c,
		Oracle:     oracle,
		Logf:       logf,
	})
	if err != nil {
		return err
	}
	defer res.Close()

	ext := res.Extractor
	if scanJSON {
		return printScanJSON(res)
	}

	fmt.Printf("Scanned %d file(s) (%d from cache)\n", res.Files, res.CacheHits)

	funcs := ext.Functions()
	fmt.Printf("\nKnown functions (%d):\n", len(funcs))
	for _, name := range extract.SortedNames(funcs) {
		fmt.Printf("  %s\n", name)
	}

	types := ext.Types()
	fmt.Printf("\nTypes (%d):\n", len(types))
	for _, name := range extract.SortedNames(types) {
		node := types[name]
		if len(node.Aliases) > 0 {
			fmt.Printf("  %s (%s, aliases: %v)\n", name, node.Kind, node.Aliases)
		} else {
			fmt.Printf("  %s (%s)\n", name, node.Kind)
		}
	}

	if errs := ext.Errors(); len(errs) > 0 {
		fmt.Printf("\n%d region(s) did not parse, in: %v\n", len(errs), ext.ErrorFiles())
	}
	return nil
}

func printScanJSON(res *scan.Result) error {
	ext := res.Extractor
	type decl struct {
		Name    string   `json:"name"`
		Kind    string   `json:"kind"`
		Aliases []string `json:"aliases,omitempty"`
	}
	out := struct {
		Files       int    `json:"files"`
		CacheHits   int    `json:"cache_hits"`
		Functions   []decl `json:"functions"`
		Types       []decl `json:"types"`
		ParseErrors int    `json:"parse_errors"`
	}{Files: res.Files, CacheHits: res.CacheHits, ParseErrors: len(ext.Errors())}

	funcs := ext.Functions()
	for _, name := range extract.SortedNames(funcs) {
		out.Functions = append(out.Functions, decl{Name: name, Kind: funcs[name].Kind.String()})
	}
	types := ext.Types()
	for _, name := range extract.SortedNames(types) {
		node := types[name]
		out.Types = append(out.Types, decl{Name: name, Kind: node.Kind.String(), Aliases: node.Aliases})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
