package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var (
	suggestK      int
	suggestCached bool
)

func init() {
	suggestCmd.Flags().IntVarP(&suggestK, "k", "k", 0, "Maximum number of suggestions (default from config)")
	suggestCmd.Flags().BoolVar(&suggestCached, "entry", false, "Treat the argument as an entry id and show its precalculated suggestions")
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(internalCmd)
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <query>",
	Short: "Suggest catalogue records for a reference string",
	Long: `Query every configured catalogue for a reference string and print the
candidates ranked by edit distance, best first.

A query containing a DOI is answered by Crossref alone.

Examples:
  locdb suggest "Price 1965 Networks of scientific papers" -k 5
  locdb suggest "see doi:10.1126/science.149.3683.510"
  locdb suggest --entry 3f2a...`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSuggest,
}

func runSuggest(cmd *cobra.Command, args []string) error {
	ctx := contextOrBackground(cmd)
	a := mustNewApp(ctx, false)
	defer a.Close()

	if suggestCached {
		out, err := a.cachedSuggestions(ctx, args[0])
		exitOnError(err, "loading suggestions")
		if humanOutput {
			printScoredHuman(out)
		} else {
			outputJSON(out)
		}
		return nil
	}

	k := suggestK
	if k == 0 {
		k = a.cfg.Suggestions.K
	}
	out, err := a.ranker.ExternalScored(ctx, strings.Join(args, " "), k)
	exitOnError(err, "suggesting")

	if humanOutput {
		printScoredHuman(out)
	} else {
		outputJSON(out)
	}
	return nil
}

var internalCmd = &cobra.Command{
	Use:   "internal <title>",
	Short: "Find stored entries and resources with a title",
	Long: `Find reviewed entries and stored resources whose title equals the
argument exactly.

Example:
  locdb internal "Networks of Scientific Papers"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInternal,
}

func runInternal(cmd *cobra.Command, args []string) error {
	ctx := contextOrBackground(cmd)
	a := mustNewApp(ctx, false)
	defer a.Close()

	out, err := a.ranker.Internal(ctx, strings.Join(args, " "))
	exitOnError(err, "searching")

	if humanOutput {
		printEntriesHuman(out)
	} else {
		outputJSON(out)
	}
	return nil
}
