package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/locdb/locdb/internal/intake"
	"github.com/locdb/locdb/internal/pdf"
	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/storage"
)

var (
	addScheme    string
	addValue     string
	addType      string
	addFirstPage string
	addLastPage  string
	addPDF       string
	addScan      string

	listType   string
	listStatus string
	listQuery  string
	listLimit  int
)

func init() {
	addCmd.Flags().StringVar(&addScheme, "scheme", string(resource.SchemeDOI), "Identifier scheme (DOI, SWB_PPN, ZDB_PPN, ...)")
	addCmd.Flags().StringVar(&addValue, "value", "", "Identifier value")
	addCmd.Flags().StringVar(&addType, "type", "", "Resource type (JOURNAL_ARTICLE, MONOGRAPH, BOOK_CHAPTER, ...)")
	addCmd.Flags().StringVar(&addFirstPage, "first-page", "", "First page, for chapters")
	addCmd.Flags().StringVar(&addLastPage, "last-page", "", "Last page, for chapters")
	addCmd.Flags().StringVar(&addPDF, "pdf", "", "Textual PDF to read the DOI from when --value is not given")
	addCmd.Flags().StringVar(&addScan, "scan", "", "Like --pdf, but a file name inside the configured scan directory")
	addCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(addCmd)

	listCmd.Flags().StringVar(&listType, "type", "", "Filter by resource type")
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Keyword search in titles")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum number of resources")
	rootCmd.AddCommand(listCmd)

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(deleteCmd)
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a resource by identifier",
	Long: `Add a resource by identifier, fetching its metadata from Crossref or
the SWB catalogue and storing it together with its container.

Examples:
  locdb add --type JOURNAL_ARTICLE --value 10.1007/s11192-018-1234-5
  locdb add --type MONOGRAPH --scheme SWB_PPN --value 012345678
  locdb add --type BOOK_CHAPTER --scheme SWB_PPN --value 012345678 --first-page 1 --last-page 20
  locdb add --type JOURNAL_ARTICLE --pdf paper.pdf`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := contextOrBackground(cmd)
	a := mustNewApp(ctx, true)
	defer a.Close()

	scheme, err := resource.ParseScheme(addScheme)
	exitOnError(err, "parsing --scheme")
	typ, err := resource.ParseType(addType)
	exitOnError(err, "parsing --type")

	value := addValue
	if value == "" {
		path := addPDF
		if addScan != "" {
			path, err = pdf.NewScanDir(a.cfg.ScanDir).Resolve(addScan)
			if err != nil {
				exitWithError(ExitDataError, "%v", err)
			}
		}
		if path == "" {
			exitWithError(ExitError, "one of --value, --pdf or --scan is required")
		}
		value, err = pdf.ExtractDOI(path)
		if err != nil {
			exitWithError(ExitDataError, "reading %s: %v", path, err)
		}
		if value == "" {
			exitWithError(ExitDataError, "no DOI found in %s", path)
		}
		scheme = resource.SchemeDOI
	}

	res, err := a.intake.Save(ctx, intake.Request{
		Identifier: resource.Identifier{Scheme: scheme, LiteralValue: value},
		Type:       typ,
		FirstPage:  addFirstPage,
		LastPage:   addLastPage,
	})
	exitOnError(err, "adding resource")

	if humanOutput {
		printResourceDetail(res.Hierarchy.Child)
		if res.Hierarchy.Parent != nil {
			fmt.Println()
			printResourceDetail(*res.Hierarchy.Parent)
		}
	} else {
		outputJSON(res.Hierarchy)
	}
	return nil
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a single resource by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := contextOrBackground(cmd)
	a := mustNewApp(ctx, false)
	defer a.Close()

	r, err := a.store.Get(ctx, args[0])
	exitOnError(err, "getting resource")
	if r == nil {
		exitWithError(ExitNotFound, "resource not found: %s", args[0])
	}

	if humanOutput {
		printResourceDetail(*r)
	} else {
		outputJSON(r)
	}
	return nil
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a resource and its entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := contextOrBackground(cmd)
	a := mustNewApp(ctx, false)
	defer a.Close()

	exitOnError(a.store.Delete(ctx, args[0]), "deleting resource")
	if humanOutput {
		outputHuman("Deleted %s\n", args[0])
	} else {
		outputJSON(StatusResponse{Status: "deleted"})
	}
	return nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored resources",
	Long: `List stored resources, optionally filtered.

Examples:
  locdb list --type MONOGRAPH
  locdb list --status OCR_PROCESSED --human
  locdb list -q citation`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := contextOrBackground(cmd)
	a := mustNewApp(ctx, false)
	defer a.Close()

	f := storage.ListFilter{Query: listQuery, Limit: listLimit}
	var err error
	if listType != "" {
		f.Type, err = resource.ParseType(listType)
		exitOnError(err, "parsing --type")
	}
	if listStatus != "" {
		f.Status, err = resource.ParseStatus(listStatus)
		exitOnError(err, "parsing --status")
	}

	out, err := a.store.List(ctx, f)
	exitOnError(err, "listing resources")
	if out == nil {
		out = []resource.Resource{}
	}

	if humanOutput {
		for _, r := range out {
			printResourceLine(r)
		}
		outputHuman("%d resource(s)\n", len(out))
	} else {
		outputJSON(out)
	}
	return nil
}

// readJSONFile opens path, or stdin for "-".
func readJSONFile(path string) (*os.File, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	return os.Open(path)
}
