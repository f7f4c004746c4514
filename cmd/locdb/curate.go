package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/locdb/locdb/internal/resource"
)

func init() {
	rootCmd.AddCommand(curateCmd)
}

var curateCmd = &cobra.Command{
	Use:   "curate <hierarchy.json>",
	Short: "Store a [child, parent] hierarchy without duplicates",
	Long: `Store a hierarchy read from a JSON file ("-" for stdin). Resources that
are already stored are merged rather than duplicated.

The file holds {"child": {...}, "parent": {...}}; the parent is optional.

Example:
  locdb suggest "Price 1965" -k 1 | jq '.[0]' | locdb curate -`,
	Args: cobra.ExactArgs(1),
	RunE: runCurate,
}

func runCurate(cmd *cobra.Command, args []string) error {
	ctx := contextOrBackground(cmd)

	f, err := readJSONFile(args[0])
	if err != nil {
		exitWithError(ExitError, "opening %s: %v", args[0], err)
	}
	var h resource.Hierarchy
	err = json.NewDecoder(f).Decode(&h)
	f.Close()
	if err != nil {
		exitWithError(ExitDataError, "parsing %s: %v", args[0], err)
	}

	a := mustNewApp(ctx, false)
	defer a.Close()

	res, err := a.curator.CurateResult(ctx, h)
	exitOnError(err, "curating")

	if humanOutput {
		outputHuman("child %s (%s)\n", res.Hierarchy.Child.ID, createdOrMatched(res.ChildCreated))
		if res.Hierarchy.Parent != nil {
			outputHuman("parent %s (%s)\n", res.Hierarchy.Parent.ID, createdOrMatched(res.ParentCreated))
		}
		if res.Orphan {
			fmt.Println("warning: child has no parent")
		}
	} else {
		outputJSON(res.Hierarchy)
	}
	return nil
}

func createdOrMatched(created bool) string {
	if created {
		return "created"
	}
	return "matched"
}
