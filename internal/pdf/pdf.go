// Package pdf reads the text layer of uploaded scans that are textual PDFs
// and finds the DOI printed in them.
package pdf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/locdb/locdb/internal/doi"
)

// doiPages is how many leading pages are searched for a DOI.
const doiPages = 3

// ExtractDOI returns the first DOI printed on the first pages of the PDF at
// path, or "" if there is none.
func ExtractDOI(path string) (string, error) {
	text, err := ExtractText(path, doiPages)
	if err != nil {
		return "", err
	}
	return doi.FindInDocument(text), nil
}

// ExtractDOIReader is ExtractDOI for an in-memory upload.
func ExtractDOIReader(r io.ReaderAt, size int64) (string, error) {
	text, err := ExtractTextReader(r, size, doiPages)
	if err != nil {
		return "", err
	}
	return doi.FindInDocument(text), nil
}

// ExtractText extracts all text from the first maxPages pages of a PDF.
// maxPages <= 0 reads every page.
func ExtractText(path string, maxPages int) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return pageText(r, maxPages), nil
}

// ExtractTextReader extracts text from a PDF reader.
func ExtractTextReader(r io.ReaderAt, size int64, maxPages int) (string, error) {
	pdfReader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}
	return pageText(pdfReader, maxPages), nil
}

func pageText(r *pdf.Reader, maxPages int) string {
	if maxPages <= 0 || maxPages > r.NumPage() {
		maxPages = r.NumPage()
	}

	var builder strings.Builder
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		// Pages with broken fonts are skipped rather than failing the scan.
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	return builder.String()
}

// ExtractTitle returns the first substantial line of the first page, a
// best-effort title used as a text query when a scan has no DOI.
func ExtractTitle(path string) (string, error) {
	text, err := ExtractText(path, 1)
	if err != nil {
		return "", err
	}
	return firstTitleLine(text), nil
}

func firstTitleLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 20 && !isHeaderLine(line) {
			return line
		}
	}
	return ""
}

// isHeaderLine checks if a line is likely a running header or footer.
func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "journal"):
		return true
	case strings.Contains(lower, "volume") && strings.Contains(lower, "issue"):
		return true
	case strings.Contains(lower, "copyright"):
		return true
	case strings.Contains(lower, "article") && strings.Contains(lower, "published"):
		return true
	case strings.HasPrefix(lower, "doi"):
		return true
	}
	return false
}

// ScanDir resolves scan file names inside the upload directory.
type ScanDir struct {
	root string
}

// NewScanDir returns a ScanDir rooted at root.
func NewScanDir(root string) *ScanDir {
	return &ScanDir{root: root}
}

// Resolve returns the absolute path of the scan file name. Names that
// escape the upload directory are rejected.
func (d *ScanDir) Resolve(name string) (string, error) {
	if d.root == "" {
		return "", fmt.Errorf("scan directory not configured")
	}
	if name == "" {
		return "", fmt.Errorf("no scan name specified")
	}

	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("scan name %q is outside the scan directory", name)
	}
	fullPath := filepath.Join(d.root, clean)

	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("scan not found: %s", fullPath)
		}
		return "", fmt.Errorf("checking scan: %w", err)
	}
	return fullPath, nil
}
