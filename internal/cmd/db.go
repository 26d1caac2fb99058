// Package cmd implements the db command group for hq CLI.
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/interruptlabs/header-query-bn/internal/config"
	"github.com/interruptlabs/header-query-bn/internal/store"
)

// dbCmd groups type-database maintenance commands
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the type database",
	Long: `Manage the .hq/typedb/ type database.

The database holds the function table (the names import matches
declarations against) and every type definition applied so far. It is
a Dolt repository, so standard Dolt tooling can inspect its history.

Examples:
  hq db init               # create .hq/ and the database
  hq db seed names.txt     # load function names, one per line
  hq db functions          # list the function table
  hq db types              # list defined types`,
}

// dbInitCmd represents the db init command
var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the .hq directory and type database",
	RunE:  runDBInit,
}

// dbSeedCmd represents the db seed command
var dbSeedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Load function names into the function table",
	Long: `Load function names into the function table from a text file,
one name per line. Blank lines and lines starting with # are skipped.
Names already present are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runDBSeed,
}

// dbFunctionsCmd represents the db functions command
var dbFunctionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the function table",
	RunE:  runDBFunctions,
}

// dbTypesCmd represents the db types command
var dbTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List defined types",
	RunE:  runDBTypes,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbSeedCmd)
	dbCmd.AddCommand(dbFunctionsCmd)
	dbCmd.AddCommand(dbTypesCmd)
}

func runDBInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	hqDir := filepath.Join(cwd, config.ConfigDirName)
	st, err := store.Open(hqDir)
	if err != nil {
		return fmt.Errorf("initialize type database: %w", err)
	}
	defer st.Close()

	if path, err := config.SaveDefault(cwd); err == nil {
		relPath, _ := filepath.Rel(cwd, path)
		fmt.Printf("Wrote default config to %s\n", relPath)
	}

	relPath, _ := filepath.Rel(cwd, hqDir)
	fmt.Printf("Initialized type database at %s\n", relPath)
	return nil
}

// openStore opens the nearest type database, requiring db init first.
func openStore() (*store.Store, error) {
	hqDir, err := config.FindConfigDir(".")
	if err != nil {
		return nil, fmt.Errorf("no .hq directory found: run 'hq db init' first")
	}
	return store.Open(hqDir)
}

func runDBSeed(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open names file: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read names file: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	inserted, err := st.SeedFunctions(cmd.Context(), names)
	if err != nil {
		return err
	}
	fmt.Printf("Seeded %d function(s) (%d already present)\n", inserted, len(names)-inserted)
	return nil
}

func runDBFunctions(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.ListFunctions(cmd.Context())
	if err != nil {
		return err
	}
	for _, r := range rows {
		marker := " "
		if r.Stale {
			marker = "*"
		}
		if r.Signature != "" {
			fmt.Printf("%s %-40s %s\n", marker, r.Name, r.Signature)
		} else {
			fmt.Printf("%s %s\n", marker, r.Name)
		}
	}
	fmt.Printf("%d function(s), * = pending reanalysis\n", len(rows))
	return nil
}

func runDBTypes(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.ListTypes(cmd.Context())
	if err != nil {
		return err
	}
	stubs := 0
	for _, r := range rows {
		if r.Stub {
			stubs++
			fmt.Printf("%-40s (placeholder)\n", r.Name)
		} else {
			fmt.Println(r.Name)
		}
	}
	fmt.Printf("%d type(s), %d placeholder(s)\n", len(rows), stubs)
	return nil
}
