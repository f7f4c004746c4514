// Package export renders stored resources as BibTeX.
package export

import (
	"fmt"
	"strings"

	"github.com/locdb/locdb/internal/resource"
)

// ToBibTeX converts a resource to a BibTeX entry. container is the parent
// resource, if known; it supplies the journal or book title.
func ToBibTeX(r resource.Resource, container *resource.Resource) string {
	entryType := EntryType(r.Type)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", entryType, CitationKey(r)))

	if authors := formatAgents(r, resource.RoleAuthor); authors != "" {
		b.WriteString(fmt.Sprintf("  author = {%s},\n", authors))
	}
	if editors := formatAgents(r, resource.RoleEditor); editors != "" {
		b.WriteString(fmt.Sprintf("  editor = {%s},\n", editors))
	}

	title := r.Title
	if r.Subtitle != "" {
		title += ": " + r.Subtitle
	}
	b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(title)))

	// Container
	containerTitle := r.ContainerTitle
	if container != nil && container.Title != "" {
		containerTitle = container.Title
	}
	if containerTitle != "" {
		fieldName := "journal"
		if entryType != "article" {
			fieldName = "booktitle"
		}
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", fieldName, escapeLatex(containerTitle)))
	}

	if r.PublicationYear != 0 {
		b.WriteString(fmt.Sprintf("  year = {%d},\n", r.PublicationYear))
	}

	number := r.Number
	if number == "" && container != nil {
		number = container.Number
	}
	if number != "" {
		fieldName := "number"
		if container != nil && container.Type == resource.TypeJournalVolume {
			fieldName = "volume"
		}
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", fieldName, escapeLatex(number)))
	}

	if r.Edition != "" {
		b.WriteString(fmt.Sprintf("  edition = {%s},\n", escapeLatex(r.Edition)))
	}
	if publisher := formatAgents(r, resource.RolePublisher); publisher != "" {
		b.WriteString(fmt.Sprintf("  publisher = {%s},\n", publisher))
	}
	if pages := pageRange(r); pages != "" {
		b.WriteString(fmt.Sprintf("  pages = {%s},\n", pages))
	}

	// Identifiers (optional)
	for _, field := range []struct {
		name   string
		scheme resource.Scheme
	}{
		{"doi", resource.SchemeDOI},
		{"isbn", resource.SchemeISBN},
		{"issn", resource.SchemeISSN},
	} {
		if v, ok := r.IdentifierValue(field.scheme); ok {
			b.WriteString(fmt.Sprintf("  %s = {%s},\n", field.name, v))
		}
	}

	b.WriteString("}\n")

	return b.String()
}

// ToBibTeXList converts multiple resources to BibTeX. Containers are
// looked up among the same resources by id.
func ToBibTeXList(resources []resource.Resource) string {
	byID := make(map[string]*resource.Resource, len(resources))
	for i := range resources {
		byID[resources[i].ID] = &resources[i]
	}

	var entries []string
	for _, r := range resources {
		var container *resource.Resource
		if r.PartOf != "" {
			container = byID[r.PartOf]
		}
		entries = append(entries, ToBibTeX(r, container))
	}
	return strings.Join(entries, "\n")
}

// CitationKey returns the BibTeX key of r: first author family name and
// year when known, followed by the first eight characters of the id.
func CitationKey(r resource.Resource) string {
	var key string
	if a, ok := r.FirstAuthor(); ok {
		key = strings.Join(strings.Fields(a.Family()), "")
	}
	if r.PublicationYear != 0 {
		key += fmt.Sprint(r.PublicationYear)
	}
	id := r.ID
	if len(id) > 8 {
		id = id[:8]
	}
	if key == "" {
		return id
	}
	if id == "" {
		return key
	}
	return key + "-" + id
}

// EntryType returns the BibTeX entry type for a resource type.
func EntryType(t resource.Type) string {
	switch t {
	case resource.TypeJournalArticle:
		return "article"
	case resource.TypeBook, resource.TypeEditedBook, resource.TypeMonograph, resource.TypeReferenceBook:
		return "book"
	case resource.TypeBookChapter, resource.TypeBookPart, resource.TypeBookSection, resource.TypeBookTrack,
		resource.TypeReferenceEntry:
		return "incollection"
	case resource.TypeProceedingsArticle:
		return "inproceedings"
	case resource.TypeProceedings:
		return "proceedings"
	case resource.TypeDissertation:
		return "phdthesis"
	case resource.TypeReport:
		return "techreport"
	case resource.TypeJournal, resource.TypeJournalVolume, resource.TypeJournalIssue,
		resource.TypeBookSeries, resource.TypeBookSet, resource.TypeComponent, resource.TypeDataset,
		resource.TypeReportSeries, resource.TypeStandard, resource.TypeStandardSeries:
		return "misc"
	}
	return "misc"
}

// formatAgents formats agents holding role in BibTeX style:
// "Family, Given and Family, Given".
func formatAgents(r resource.Resource, role resource.RoleType) string {
	var formatted []string
	for _, c := range r.Contributors {
		if c.RoleType != role {
			continue
		}
		a := c.HeldBy
		switch {
		case role == resource.RolePublisher || role == resource.RoleCorporate:
			formatted = append(formatted, escapeLatex(a.NameString))
		case a.GivenName != "":
			formatted = append(formatted, escapeLatex(fmt.Sprintf("%s, %s", a.Family(), a.GivenName)))
		default:
			formatted = append(formatted, escapeLatex(a.Family()))
		}
	}
	return strings.Join(formatted, " and ")
}

func pageRange(r resource.Resource) string {
	for _, e := range r.EmbodiedAs {
		switch {
		case e.FirstPage != "" && e.LastPage != "":
			return e.FirstPage + "--" + e.LastPage
		case e.FirstPage != "":
			return e.FirstPage
		}
	}
	return ""
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
