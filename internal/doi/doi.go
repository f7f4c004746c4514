// Package doi finds Digital Object Identifiers in free text.
package doi

import (
	"regexp"
	"strings"
)

// Pattern is the Crossref-recommended DOI pattern, unanchored and
// case-insensitive. The dot after "10" is deliberately a wildcard.
var Pattern = regexp.MustCompile(`(?i)10.\d{4,9}/[-._;()/:A-Z0-9]+`)

// Extract returns the first DOI in text, trimmed. The second result is
// false when text contains no DOI.
func Extract(text string) (string, bool) {
	m := Pattern.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.TrimSpace(m), true
}

// FindInDocument returns the first plausible DOI in extracted document
// text. Trailing sentence punctuation picked up by the pattern is removed.
func FindInDocument(text string) string {
	for _, match := range Pattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:)")
		if isPlausible(match) {
			return match
		}
	}
	return ""
}

// isPlausible rejects matches with nothing after the registrant prefix.
func isPlausible(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slash := strings.Index(doi, "/")
	return slash != -1 && slash < len(doi)-1
}
