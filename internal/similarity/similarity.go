// Package similarity scores how closely a bibliographic resource matches a
// free-text citation query.
package similarity

import (
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/locdb/locdb/internal/resource"
)

// Scorer computes a distance between a query and a resource. Lower is a
// better match.
type Scorer interface {
	Score(query string, r resource.Resource) int
}

// Levenshtein is the default Scorer: edit distance between the query and
// the resource's representation.
type Levenshtein struct{}

// Score implements Scorer.
func (Levenshtein) Score(query string, r resource.Resource) int {
	return Score(query, r)
}

// Representation renders the fields of r used for matching as
// "title subtitle family year number", where family is the recorded family
// name of the first contributor whatever its role. Empty segments are kept
// so field positions stay stable, except that a resource with no matching
// fields at all renders as "".
func Representation(r resource.Resource) string {
	var family string
	if len(r.Contributors) > 0 {
		family = r.Contributors[0].HeldBy.FamilyName
	}
	var year string
	if r.PublicationYear != 0 {
		year = strconv.Itoa(r.PublicationYear)
	}

	segments := []string{r.Title, r.Subtitle, family, year, r.Number}
	for _, s := range segments {
		if s != "" {
			return strings.Join(segments, " ")
		}
	}
	return ""
}

// Score returns the rune-level Levenshtein distance between query and the
// representation of r.
func Score(query string, r resource.Resource) int {
	return levenshtein.ComputeDistance(Representation(r), query)
}
