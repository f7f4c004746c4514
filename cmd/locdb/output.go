package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/locdb/locdb/internal/curator"
	"github.com/locdb/locdb/internal/resource"
)

// Constants for output formatting.
const (
	ListTitleMaxLen   = 60 // Used in list and todo output
	SearchTitleMaxLen = 70 // Used in suggestion output
	TextWrapWidth     = 60
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// exitOnError exits with the code matching err. Ambiguous matches list
// their candidates.
func exitOnError(err error, what string) {
	if err == nil {
		return
	}
	resp := ErrorResponse{Error: fmt.Sprintf("%s: %v", what, err)}
	var ae *curator.AmbiguousMatchError
	if errors.As(err, &ae) {
		resp.Candidates = ae.Candidates
	}
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", resp.Error)
		if len(resp.Candidates) > 0 {
			fmt.Fprintf(os.Stderr, "candidates: %s\n", strings.Join(resp.Candidates, ", "))
		}
	} else {
		outputJSON(resp)
	}
	os.Exit(exitCodeFor(err))
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error      string   `json:"error"`
	Candidates []string `json:"candidates,omitempty"`
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// wrapText wraps text to the specified width with indentation on subsequent lines.
func wrapText(text string, width int, indent string) string {
	if len(text) <= width {
		return text
	}

	var lines []string
	var line strings.Builder
	for _, word := range strings.Fields(text) {
		switch {
		case line.Len() == 0:
			line.WriteString(word)
		case line.Len()+1+len(word) <= width:
			line.WriteString(" ")
			line.WriteString(word)
		default:
			lines = append(lines, line.String())
			line.Reset()
			line.WriteString(word)
		}
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n"+indent)
}

// formatAuthors joins author names, abbreviating after maxCount.
func formatAuthors(names []string, maxCount int) string {
	if len(names) > maxCount {
		names = append(names[:maxCount:maxCount], "et al.")
	}
	return strings.Join(names, ", ")
}

// formatIdentifiers formats identifiers as "SCHEME:value" pairs.
func formatIdentifiers(ids []resource.Identifier) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id.Scheme) + ":" + id.LiteralValue
	}
	return strings.Join(parts, ", ")
}

func printResourceDetail(r resource.Resource) {
	fmt.Println(r.ID)
	fmt.Println(strings.Repeat("=", SearchTitleMaxLen))

	fmt.Printf("Type:     %s\n", r.Type)
	fmt.Printf("Title:    %s\n", wrapText(r.Title, TextWrapWidth, "          "))
	if r.Subtitle != "" {
		fmt.Printf("Subtitle: %s\n", r.Subtitle)
	}
	if authors := r.AuthorNames(); len(authors) > 0 {
		fmt.Printf("Authors:  %s\n", wrapText(strings.Join(authors, ", "), TextWrapWidth, "          "))
	}
	if r.ContainerTitle != "" {
		fmt.Printf("In:       %s\n", r.ContainerTitle)
	}
	if r.PublicationYear != 0 {
		fmt.Printf("Year:     %d\n", r.PublicationYear)
	}
	if r.Number != "" {
		fmt.Printf("Number:   %s\n", r.Number)
	}
	if len(r.Identifiers) > 0 {
		fmt.Printf("IDs:      %s\n", formatIdentifiers(r.Identifiers))
	}
	if r.PartOf != "" {
		fmt.Printf("Part of:  %s\n", r.PartOf)
	}
	fmt.Printf("Status:   %s\n", r.Status)
	if len(r.Parts) > 0 {
		fmt.Printf("Entries:  %d\n", len(r.Parts))
	}
}

func printResourceLine(r resource.Resource) {
	fmt.Printf("%s  %-18s %s\n", r.ID, r.Type, truncateString(r.Title, ListTitleMaxLen))
}

func printScoredHuman(results []resource.Scored) {
	if len(results) == 0 {
		fmt.Println("No suggestions.")
		return
	}
	for i, s := range results {
		fmt.Printf("%d. [%d] %s (%s)\n", i+1, s.Score, truncateString(s.Child.Title, SearchTitleMaxLen), s.Source)
		if authors := s.Child.AuthorNames(); len(authors) > 0 {
			fmt.Printf("   %s\n", formatAuthors(authors, 3))
		}
		if s.Parent != nil {
			fmt.Printf("   in: %s\n", truncateString(s.Parent.Title, SearchTitleMaxLen))
		}
	}
}

func printEntriesHuman(entries []resource.Entry) {
	if len(entries) == 0 {
		fmt.Println("No entries.")
		return
	}
	for _, e := range entries {
		text := e.OCRData.Title
		if text == "" {
			text = e.BibliographicEntryText
		}
		fmt.Printf("%s  %-14s %s\n", e.ID, e.Status, truncateString(text, ListTitleMaxLen))
	}
}
