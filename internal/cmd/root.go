// Package cmd contains all CLI commands for hq.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is the current version of hq
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hq",
	Short: "Extract C header declarations and import them into a type database",
	Long: `hq extracts function, struct, enum, and typedef declarations from C
header files, computes the type-dependency closure of the functions the
type database already knows about, and imports the reachable definitions.

Headers do not need to be complete or preprocessed: regions the parser
cannot resolve are skipped and reported, and everything that did parse
is still used.

Typical session:
  hq db init                  # create .hq/ and the type database
  hq db seed names.txt        # load the known function names
  hq scan include/            # inspect what the headers declare
  hq import include/          # define types and redefine signatures
  hq import include/ --overwrite select

See 'hq <command> --help' for command-specific options.`,
	Version: Version,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: .hq/config.yaml)")
}

// logf writes progress output to stderr when --verbose is set.
func logf(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
