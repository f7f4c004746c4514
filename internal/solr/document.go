package solr

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/locdb/locdb/internal/resource"
)

type selectResponse struct {
	Response struct {
		NumFound int        `json:"numFound"`
		Docs     []Document `json:"docs"`
	} `json:"response"`
	Error *struct {
		Msg  string `json:"msg"`
		Code int    `json:"code"`
	} `json:"error,omitempty"`
}

// Document is a catalogue record in the VuFind-style Solr schema shared
// by GVI and K10plus.
type Document struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	TitleSub           string   `json:"title_sub"`
	Author             []string `json:"author"`
	Author2            []string `json:"author2"`
	PublishDate        []string `json:"publishDate"`
	ISBN               []string `json:"isbn"`
	ISSN               []string `json:"issn"`
	Format             []string `json:"format"`
	ContainerTitle     string   `json:"container_title"`
	ContainerReference string   `json:"container_reference"`
	ContainerVolume    string   `json:"container_volume"`
	Series             []string `json:"series"`
	DOI                []string `json:"doi_str_mv"`
}

// UnmarshalJSON accepts single-valued and multi-valued forms of the list
// fields, since the two indexes disagree on which fields are multi-valued.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Document{
		ID:                 str(raw["id"]),
		Title:              str(raw["title"]),
		TitleSub:           str(raw["title_sub"]),
		Author:             list(raw["author"]),
		Author2:            list(raw["author2"]),
		PublishDate:        list(raw["publishDate"]),
		ISBN:               list(raw["isbn"]),
		ISSN:               list(raw["issn"]),
		Format:             list(raw["format"]),
		ContainerTitle:     str(raw["container_title"]),
		ContainerReference: str(raw["container_reference"]),
		ContainerVolume:    str(raw["container_volume"]),
		Series:             list(raw["series"]),
		DOI:                list(raw["doi_str_mv"]),
	}
	return nil
}

func list(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil && one != "" {
		return []string{one}
	}
	return nil
}

func str(raw json.RawMessage) string {
	values := list(raw)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// formatType maps the catalogue's format facet to a resource type.
func formatType(formats []string) resource.Type {
	for _, f := range formats {
		switch strings.ToLower(f) {
		case "article", "electronicarticle":
			return resource.TypeJournalArticle
		case "journal", "serial", "electronicjournal":
			return resource.TypeJournal
		case "book", "ebook":
			return resource.TypeBook
		case "bookchapter", "bookcomponentpart":
			return resource.TypeBookChapter
		case "thesis", "dissertation":
			return resource.TypeDissertation
		case "conferenceproceeding", "proceedings":
			return resource.TypeProceedings
		}
	}
	return ""
}

// MapDocument converts a Solr document to a hierarchy tagged with the
// client's source. Component parts with a container title get a parent.
func (c *Client) MapDocument(d Document) resource.Hierarchy {
	child := resource.Resource{
		Type:           formatType(d.Format),
		Title:          strings.TrimSpace(d.Title),
		Subtitle:       strings.TrimSpace(d.TitleSub),
		ContainerTitle: d.ContainerTitle,
		Status:         resource.StatusExternal,
		Source:         c.src,
	}

	child.AddIdentifier(resource.Identifier{Scheme: c.idScheme, LiteralValue: d.ID})
	for _, v := range d.DOI {
		child.AddIdentifier(resource.Identifier{Scheme: resource.SchemeDOI, LiteralValue: v})
	}
	for _, v := range d.ISBN {
		child.AddIdentifier(resource.Identifier{Scheme: resource.SchemeISBN, LiteralValue: v})
	}

	for _, name := range d.Author {
		child.Contributors = append(child.Contributors, resource.AgentRole{RoleType: resource.RoleAuthor, HeldBy: resource.NewAgent(name)})
	}
	for _, name := range d.Author2 {
		child.Contributors = append(child.Contributors, resource.AgentRole{RoleType: resource.RoleEditor, HeldBy: resource.NewAgent(name)})
	}

	for _, date := range d.PublishDate {
		if y := yearPattern.FindString(date); y != "" {
			child.PublicationYear, _ = strconv.Atoi(y)
			break
		}
	}
	if len(d.Series) > 0 {
		child.Number = seriesNumber(d.Series[0])
	}

	h := resource.Hierarchy{Child: child, Source: c.src}

	if d.ContainerTitle == "" {
		for _, v := range d.ISSN {
			h.Child.AddIdentifier(resource.Identifier{Scheme: resource.SchemeISSN, LiteralValue: v})
		}
		return h
	}

	parentType := child.Type.ParentType()
	if child.Type == resource.TypeJournalArticle || parentType == "" {
		parentType = resource.TypeJournal
	}
	parent := resource.Resource{
		Type:   parentType,
		Title:  d.ContainerTitle,
		Number: d.ContainerVolume,
		Status: resource.StatusExternal,
		Source: c.src,
	}
	for _, v := range d.ISSN {
		parent.AddIdentifier(resource.Identifier{Scheme: resource.SchemeISSN, LiteralValue: v})
	}
	if d.ContainerReference != "" {
		parent.AddIdentifier(resource.Identifier{Scheme: c.idScheme, LiteralValue: d.ContainerReference})
	}
	h.Parent = &parent
	return h
}

// seriesNumber extracts the volume number from a series statement such as
// "Lecture notes in computer science ; 1234".
func seriesNumber(series string) string {
	if idx := strings.LastIndex(series, ";"); idx >= 0 {
		return strings.TrimSpace(series[idx+1:])
	}
	return ""
}
