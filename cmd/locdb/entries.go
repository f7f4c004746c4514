package main

import (
	"github.com/spf13/cobra"

	"github.com/locdb/locdb/internal/resource"
)

var todoScan string

func init() {
	todoCmd.Flags().StringVar(&todoScan, "scan", "", "Only entries of this scan")
	rootCmd.AddCommand(todoCmd)
	rootCmd.AddCommand(entryCmd)
}

var todoCmd = &cobra.Command{
	Use:   "todo",
	Short: "List entries awaiting review",
	Long: `List OCR-extracted bibliographic entries that have not been linked yet.

Example:
  locdb todo --scan 6f1c3a52-0b7e-4c55-9a0e-2d2b7f0e8a11 --human`,
	Args: cobra.NoArgs,
	RunE: runTodo,
}

func runTodo(cmd *cobra.Command, args []string) error {
	ctx := contextOrBackground(cmd)
	a := mustNewApp(ctx, false)
	defer a.Close()

	out, err := a.entries.ToDo(ctx, todoScan)
	exitOnError(err, "listing entries")

	if humanOutput {
		printEntriesHuman(out)
	} else {
		outputJSON(out)
	}
	return nil
}

var entryCmd = &cobra.Command{
	Use:   "entry <id>",
	Short: "Show one bibliographic entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntry,
}

func runEntry(cmd *cobra.Command, args []string) error {
	ctx := contextOrBackground(cmd)
	a := mustNewApp(ctx, false)
	defer a.Close()

	e, err := a.entries.Get(ctx, args[0])
	exitOnError(err, "getting entry")

	if humanOutput {
		printEntriesHuman([]resource.Entry{e})
		if e.BibliographicEntryText != "" {
			outputHuman("\n%s\n", wrapText(e.BibliographicEntryText, TextWrapWidth, ""))
		}
	} else {
		outputJSON(e)
	}
	return nil
}
