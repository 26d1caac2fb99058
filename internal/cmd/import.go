// Package cmd implements the import command for hq CLI.
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/interruptlabs/header-query-bn/internal/cache"
	"github.com/interruptlabs/header-query-bn/internal/config"
	"github.com/interruptlabs/header-query-bn/internal/extract"
	"github.com/interruptlabs/header-query-bn/internal/plan"
	"github.com/interruptlabs/header-query-bn/internal/report"
	"github.com/interruptlabs/header-query-bn/internal/scan"
	"github.com/interruptlabs/header-query-bn/internal/store"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import [paths...]",
	Short: "Define extracted types and redefine known function signatures",
	Long: `Import header declarations into the type database.

The headers are scanned, the type-dependency closure of every known
function is computed, and the reachable type definitions are applied:
placeholder stubs first so partial headers still compile, then the real
definitions, enums before everything else. Finally each known
function's signature is replaced with its declaration text.

A markdown report of what succeeded and what was rejected is written
after the run.

Examples:
  hq import include/                    # default policy: keep existing types
  hq import include/ --overwrite yes    # redefine already-defined types
  hq import include/ --overwrite select # decide per type
  hq import a.h --report out.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var (
	importOverwrite string
	importReport    string
	importNoCache   bool
	importDryRun    bool
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importOverwrite, "overwrite", "", "Overwrite policy for already-defined types: no|yes|select (default from config)")
	importCmd.Flags().StringVar(&importReport, "report", "", "Report output path (default from config)")
	importCmd.Flags().BoolVar(&importNoCache, "no-cache", false, "Bypass the extraction cache")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Compute the closure and print what would be defined, without writing")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	overwrite := importOverwrite
	if overwrite == "" {
		overwrite = cfg.Plan.Overwrite
	}
	policy, err := plan.PolicyFromString(overwrite)
	if err != nil {
		return err
	}

	hqDir, err := config.FindConfigDir(".")
	if err != nil {
		return errors.New("no .hq directory found: run 'hq db init' first")
	}

	st, err := store.Open(hqDir)
	if err != nil {
		return fmt.Errorf("open type database: %w", err)
	}
	defer st.Close()

	oracle, err := st.Functions(ctx)
	if err != nil {
		return fmt.Errorf("load function table: %w", err)
	}
	if len(oracle) == 0 {
		return errors.New("function table is empty: run 'hq db seed' first")
	}

	var c *cache.Cache
	if cfg.Cache.Enabled && !importNoCache {
		if c, err = cache.Open(hqDir); err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		defer c.Close()
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
	logf("extracted %d known functions, %d types from %d files",
		len(ext.Functions()), len(ext.Types()), res.Files)

	if importDryRun {
		return printDryRun(ext)
	}

	planner := &plan.Planner{
		Env:            st,
		Memo:           ext.Memo(),
		Policy:         policy,
		Selector:       promptSelector(cmd),
		TotalFunctions: len(oracle),
		Logf:           logf,
	}
	result, err := planner.Run(ctx, ext.Functions(), ext.Types())
	if err != nil {
		return err
	}

	reportPath := importReport
	if reportPath == "" {
		reportPath = cfg.Report.Path
	}
	if err := writeReport(reportPath, cfg, ext, result); err != nil {
		return err
	}

	printImportSummary(result, reportPath)
	return nil
}

// printDryRun reports what a real run would define, without touching
// the type database.
func printDryRun(ext *extract.Extractor) error {
	functions := ext.Functions()
	types := ext.Types()
	closure := extract.NewClosure(ext.Memo()).Names(functions, types)
	resolved := extract.NodesForNames(closure, types)

	var stubs []string
	for _, name := range extract.SortedSet(closure) {
		if _, ok := resolved[name]; ok {
			continue
		}
		covered := false
		for _, node := range resolved {
			if node.HasAlias(name) {
				covered = true
				break
			}
		}
		if !covered {
			stubs = append(stubs, name)
		}
	}

	fmt.Printf("Would redefine %d function signature(s):\n", len(functions))
	for _, name := range extract.SortedNames(functions) {
		fmt.Printf("  %s\n", name)
	}
	fmt.Printf("\nWould define %d type(s):\n", len(resolved))
	for _, name := range extract.SortedNames(resolved) {
		fmt.Printf("  %s\n", name)
	}
	if len(stubs) > 0 {
		fmt.Printf("\nWould stub %d referenced-but-undefined name(s):\n", len(stubs))
		for _, name := range stubs {
			fmt.Printf("  %s\n", name)
		}
	}
	fmt.Println("\nDry run: nothing was written")
	return nil
}

// promptSelector asks on stdin whether one already-defined type should
// be overwritten. Used only under --overwrite select.
func promptSelector(cmd *cobra.Command) plan.Selector {
	reader := bufio.NewReader(cmd.InOrStdin())
	return func(name string) bool {
		fmt.Fprintf(cmd.OutOrStdout(), "Type %q is already defined. Overwrite? [y/N] ", name)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

func writeReport(path string, cfg *config.Config, ext *extract.Extractor, result *plan.Result) error {
	data := report.Data{
		BlankStubs:       result.BlankStubs,
		Skipped:          result.Skipped,
		ErrorFiles:       ext.ErrorFiles(),
		MaxErrorSnippets: cfg.Report.MaxErrorSnippets,
	}
	for _, t := range result.Types {
		if t.Err != nil {
			data.TypesFailed = append(data.TypesFailed, report.Failure{Name: t.Name, Reason: t.Err.Error()})
		} else {
			data.TypesOK = append(data.TypesOK, t.Name)
		}
	}
	for _, f := range result.Functions {
		if f.Err != nil {
			data.FunctionsFailed = append(data.FunctionsFailed, report.Failure{Name: f.Name, Reason: f.Err.Error()})
		} else {
			data.FunctionsOK = append(data.FunctionsOK, f.Name)
		}
	}
	for _, e := range ext.Errors() {
		data.Errors = append(data.Errors, report.ErrorSnippet{File: e.File, Snippet: e.Snippet})
	}

	if err := os.WriteFile(path, []byte(report.Build(data)), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func printImportSummary(result *plan.Result, reportPath string) {
	typesOK, typesFailed := 0, 0
	for _, t := range result.Types {
		if t.Err != nil {
			typesFailed++
		} else {
			typesOK++
		}
	}
	funcsOK, funcsFailed := 0, 0
	for _, f := range result.Functions {
		if f.Err != nil {
			funcsFailed++
		} else {
			funcsOK++
		}
	}

	fmt.Printf("Defined %d type(s)", typesOK)
	if typesFailed > 0 {
		fmt.Printf(" (%d failed)", typesFailed)
	}
	fmt.Printf(", redefined %d function signature(s)", funcsOK)
	if funcsFailed > 0 {
		fmt.Printf(" (%d failed)", funcsFailed)
	}
	fmt.Println()
	if len(result.BlankStubs) > 0 {
		fmt.Printf("%d referenced type(s) left as empty placeholders\n", len(result.BlankStubs))
	}
	if len(result.Skipped) > 0 {
		fmt.Printf("%d already-defined type(s) left untouched\n", len(result.Skipped))
	}
	fmt.Printf("Report written to %s\n", reportPath)
}
