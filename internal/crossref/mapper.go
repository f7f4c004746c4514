package crossref

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/locdb/locdb/internal/resource"
)

// typeMap translates Crossref work types to resource types.
var typeMap = map[string]resource.Type{
	"journal-article":     resource.TypeJournalArticle,
	"journal":             resource.TypeJournal,
	"journal-issue":       resource.TypeJournalIssue,
	"journal-volume":      resource.TypeJournalVolume,
	"book":                resource.TypeBook,
	"book-chapter":        resource.TypeBookChapter,
	"book-part":           resource.TypeBookPart,
	"book-section":        resource.TypeBookSection,
	"book-series":         resource.TypeBookSeries,
	"book-set":            resource.TypeBookSet,
	"book-track":          resource.TypeBookTrack,
	"edited-book":         resource.TypeEditedBook,
	"component":           resource.TypeComponent,
	"dataset":             resource.TypeDataset,
	"dissertation":        resource.TypeDissertation,
	"proceedings":         resource.TypeProceedings,
	"proceedings-article": resource.TypeProceedingsArticle,
	"monograph":           resource.TypeMonograph,
	"reference-book":      resource.TypeReferenceBook,
	"reference-entry":     resource.TypeReferenceEntry,
	"report":              resource.TypeReport,
	"report-series":       resource.TypeReportSeries,
	"standard":            resource.TypeStandard,
	"standard-series":     resource.TypeStandardSeries,
}

// MapType returns the resource type for a Crossref work type, or "" for
// types without an equivalent (e.g. "posted-content").
func MapType(crossrefType string) resource.Type {
	return typeMap[crossrefType]
}

// MapWork converts a Crossref work to a resource with status EXTERNAL.
func MapWork(w Work) resource.Resource {
	r := resource.Resource{
		Type:            MapType(w.Type),
		Title:           first(w.Title),
		Subtitle:        first(w.Subtitle),
		ContainerTitle:  first(w.ContainerTitle),
		PublicationYear: publicationYear(w),
		Status:          resource.StatusExternal,
		Source:          resource.SourceCrossref,
	}

	r.AddIdentifier(resource.Identifier{Scheme: resource.SchemeDOI, LiteralValue: w.DOI})
	r.AddIdentifier(resource.Identifier{Scheme: resource.SchemeCrossref, LiteralValue: w.URL})
	for _, issn := range w.ISSN {
		r.AddIdentifier(resource.Identifier{Scheme: resource.SchemeISSN, LiteralValue: issn})
	}
	for _, isbn := range w.ISBN {
		r.AddIdentifier(resource.Identifier{Scheme: resource.SchemeISBN, LiteralValue: isbn})
	}

	for _, a := range w.Author {
		r.Contributors = append(r.Contributors, resource.AgentRole{RoleType: resource.RoleAuthor, HeldBy: mapPerson(a)})
	}
	for _, e := range w.Editor {
		r.Contributors = append(r.Contributors, resource.AgentRole{RoleType: resource.RoleEditor, HeldBy: mapPerson(e)})
	}
	if w.Publisher != "" {
		r.Contributors = append(r.Contributors, resource.AgentRole{
			RoleType: resource.RolePublisher,
			HeldBy:   resource.Agent{NameString: w.Publisher},
		})
	}

	firstPage, lastPage := splitPages(w.Page)
	r.EmbodiedAs = []resource.Embodiment{{FirstPage: firstPage, LastPage: lastPage}}

	r.Parts = MapReferences(w.Reference)

	return r
}

// MapReferences converts a deposited reference list to entries.
func MapReferences(refs []Reference) []resource.Entry {
	if len(refs) == 0 {
		return nil
	}
	entries := make([]resource.Entry, 0, len(refs))
	for _, ref := range refs {
		title := ref.ArticleTitle
		if title == "" {
			title = ref.VolumeTitle
		}
		var comments string
		if ref.FirstPage != "" {
			comments = "First page: " + ref.FirstPage
		}
		e := resource.Entry{
			BibliographicEntryText: ref.Unstructured,
			OCRData: resource.OCRData{
				Title:    title,
				Date:     ref.Year,
				Journal:  ref.JournalTitle,
				Volume:   ref.Volume,
				Comments: comments,
			},
			Status: resource.StatusExternal,
		}
		if ref.Author != "" {
			e.OCRData.Authors = []string{ref.Author}
		}
		if ref.DOI != "" {
			e.Identifiers = []resource.Identifier{{Scheme: resource.SchemeDOI, LiteralValue: ref.DOI}}
		}
		entries = append(entries, e)
	}
	return entries
}

// MapHierarchy converts a work to a [child, parent?] hierarchy. The parent
// is the container named by container-title; works without one are
// returned parentless.
func MapHierarchy(w Work) resource.Hierarchy {
	child := MapWork(w)
	h := resource.Hierarchy{Child: child, Source: resource.SourceCrossref}

	if child.ContainerTitle == "" {
		return h
	}

	parentType := child.Type.ParentType()
	if parentType == "" {
		parentType = resource.TypeJournal
	}
	parent := resource.Resource{
		Type:            parentType,
		Title:           child.ContainerTitle,
		PublicationYear: child.PublicationYear,
		Status:          resource.StatusExternal,
		Source:          resource.SourceCrossref,
	}
	switch parentType {
	case resource.TypeJournalIssue:
		parent.Number = w.Issue
	case resource.TypeJournalVolume:
		parent.Number = w.Volume
	}
	for _, issn := range w.ISSN {
		parent.AddIdentifier(resource.Identifier{Scheme: resource.SchemeISSN, LiteralValue: issn})
	}
	h.Parent = &parent
	return h
}

// RemoveDiacritics strips combining marks, e.g. "Müller" becomes "Muller".
// Crossref's query parser handles accented input poorly.
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func mapPerson(p Person) resource.Agent {
	if p.Family == "" && p.Given == "" {
		return resource.Agent{NameString: p.Name}
	}
	return resource.NewPersonAgent(p.Given, p.Family)
}

// publicationYear falls back from issued to print to online dates.
func publicationYear(w Work) int {
	for _, d := range []DateParts{w.Issued, w.PublishedPrint, w.PublishedOnline} {
		if y := d.Year(); y != 0 {
			return y
		}
	}
	return 0
}

// splitPages splits "12-34" into its bounds. Anything else is treated as a
// single first page.
func splitPages(page string) (firstPage, lastPage string) {
	parts := strings.Split(page, "-")
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return page, ""
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
