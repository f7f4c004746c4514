// Package main provides the locdb CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		// SilenceErrors is set, so cobra's own errors (bad flags) are printed here
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "locdb",
	Short: "Linked open citation database",
	Long: `locdb links the reference lists of scanned and digital publications
to bibliographic records.

Core features:
  - Suggestions for reference strings from Crossref, SWB, GVI and K10plus
  - Duplicate-free curation of [child, parent] resource hierarchies
  - Review of OCR-extracted bibliographic entries
  - Background precalculation of suggestions via Temporal

Resources are stored in SQLite (default) or PostgreSQL.
All commands output JSON by default; pass --human for plain text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env file is fine
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}
