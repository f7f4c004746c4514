package export

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"github.com/locdb/locdb/internal/resource"
)

var (
	// Match entry start: @type{key,
	entryStartRegex = regexp.MustCompile(`@\w+\{([^,]+),`)
	// Match DOI field: doi = {value} or doi = "value"
	doiFieldRegex = regexp.MustCompile(`(?i)^\s*doi\s*=\s*[\{"]([^\}"]+)[\}"]`)
)

// BibTeXIndex indexes existing BibTeX entries for deduplication.
type BibTeXIndex struct {
	// Keys maps citation keys to true for existence check
	Keys map[string]bool
	// DOIs maps normalised DOI values to citation keys
	DOIs map[string]string
}

// NewBibTeXIndex creates an empty BibTeX index.
func NewBibTeXIndex() *BibTeXIndex {
	return &BibTeXIndex{
		Keys: make(map[string]bool),
		DOIs: make(map[string]string),
	}
}

// HasResource reports whether r is already in the index. DOI is the
// primary match; the citation key is the fallback.
func (idx *BibTeXIndex) HasResource(r resource.Resource) bool {
	if doi, ok := r.IdentifierValue(resource.SchemeDOI); ok {
		if _, exists := idx.DOIs[resource.NormalizeDOI(doi)]; exists {
			return true
		}
	}
	return idx.Keys[CitationKey(r)]
}

// Add records r in the index.
func (idx *BibTeXIndex) Add(r resource.Resource) {
	key := CitationKey(r)
	idx.Keys[key] = true
	if doi, ok := r.IdentifierValue(resource.SchemeDOI); ok {
		idx.DOIs[resource.NormalizeDOI(doi)] = key
	}
}

// ParseBibTeXFile builds an index from an existing .bib file.
// Returns an empty index if the file doesn't exist or is empty.
func ParseBibTeXFile(path string) (*BibTeXIndex, error) {
	idx := NewBibTeXIndex()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var currentKey string

	for scanner.Scan() {
		line := scanner.Text()

		if matches := entryStartRegex.FindStringSubmatch(line); len(matches) > 1 {
			currentKey = strings.TrimSpace(matches[1])
			idx.Keys[currentKey] = true
		}

		if matches := doiFieldRegex.FindStringSubmatch(line); len(matches) > 1 {
			doi := resource.NormalizeDOI(matches[1])
			if doi != "" && currentKey != "" {
				idx.DOIs[doi] = currentKey
			}
		}
	}

	return idx, scanner.Err()
}

// AppendNew appends the resources not yet present in the .bib file at path
// and returns how many were written.
func AppendNew(path string, resources []resource.Resource) (int, error) {
	idx, err := ParseBibTeXFile(path)
	if err != nil {
		return 0, err
	}

	var fresh []resource.Resource
	for _, r := range resources {
		if idx.HasResource(r) {
			continue
		}
		idx.Add(r)
		fresh = append(fresh, r)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	// Containers are resolved against the full set, not just the new ones.
	byID := make(map[string]*resource.Resource, len(resources))
	for i := range resources {
		byID[resources[i].ID] = &resources[i]
	}
	var entries []string
	for _, r := range fresh {
		var container *resource.Resource
		if r.PartOf != "" {
			container = byID[r.PartOf]
		}
		entries = append(entries, ToBibTeX(r, container))
	}

	if err := appendToBibFile(path, strings.Join(entries, "\n")); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

// appendToBibFile appends BibTeX content to a file.
func appendToBibFile(path, content string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	// Ensure we start on a new line
	_, err = file.WriteString("\n" + content)
	return err
}
