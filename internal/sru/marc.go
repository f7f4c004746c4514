package sru

import (
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"

	"github.com/locdb/locdb/internal/resource"
)

// searchRetrieveResponse is the SRU 1.1 response envelope. Element names
// are matched without namespace so both srw: and default-namespaced
// responses decode.
type searchRetrieveResponse struct {
	XMLName         xml.Name     `xml:"searchRetrieveResponse"`
	NumberOfRecords int          `xml:"numberOfRecords"`
	Records         []sruRecord  `xml:"records>record"`
	Diagnostics     []diagnostic `xml:"diagnostics>diagnostic"`
}

type sruRecord struct {
	Data struct {
		Record MARCRecord `xml:"record"`
	} `xml:"recordData"`
}

type diagnostic struct {
	URI     string `xml:"uri"`
	Message string `xml:"message"`
	Details string `xml:"details"`
}

// MARCRecord is a MARC 21 record in MARCXML form.
type MARCRecord struct {
	Leader        string         `xml:"leader"`
	ControlFields []ControlField `xml:"controlfield"`
	DataFields    []DataField    `xml:"datafield"`
}

// ControlField is a MARC control field (001-009).
type ControlField struct {
	Tag   string `xml:"tag,attr"`
	Value string `xml:",chardata"`
}

// DataField is a MARC data field with indicators and subfields.
type DataField struct {
	Tag       string     `xml:"tag,attr"`
	Ind1      string     `xml:"ind1,attr"`
	Ind2      string     `xml:"ind2,attr"`
	Subfields []Subfield `xml:"subfield"`
}

// Subfield is a coded MARC subfield.
type Subfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

// Control returns the value of control field tag.
func (r MARCRecord) Control(tag string) string {
	for _, cf := range r.ControlFields {
		if cf.Tag == tag {
			return strings.TrimSpace(cf.Value)
		}
	}
	return ""
}

// Fields returns all data fields with the given tag.
func (r MARCRecord) Fields(tag string) []DataField {
	var out []DataField
	for _, df := range r.DataFields {
		if df.Tag == tag {
			out = append(out, df)
		}
	}
	return out
}

// First returns subfield code of the first field with tag.
func (r MARCRecord) First(tag, code string) string {
	for _, df := range r.Fields(tag) {
		if v := df.Sub(code); v != "" {
			return v
		}
	}
	return ""
}

// Sub returns the first subfield with code, trimmed of ISBD punctuation.
func (df DataField) Sub(code string) string {
	for _, sf := range df.Subfields {
		if sf.Code == code {
			return cleanISBD(sf.Value)
		}
	}
	return ""
}

// SubAll returns every subfield with code.
func (df DataField) SubAll(code string) []string {
	var out []string
	for _, sf := range df.Subfields {
		if sf.Code == code {
			out = append(out, cleanISBD(sf.Value))
		}
	}
	return out
}

// cleanISBD removes the trailing " /", " :" and similar separators
// catalogue records carry between subfields.
func cleanISBD(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), " /:;,="))
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// leaderType maps leader position 7 (bibliographic level) to a type.
func leaderType(leader string) resource.Type {
	if len(leader) < 8 {
		return ""
	}
	switch leader[7] {
	case 'a':
		return resource.TypeBookChapter
	case 'b':
		return resource.TypeJournalArticle
	case 's':
		return resource.TypeJournal
	case 'm':
		return resource.TypeMonograph
	}
	return ""
}

// MapRecord converts a MARC record to a hierarchy. Component parts that
// name their host in field 773 get a parent.
func MapRecord(rec MARCRecord) resource.Hierarchy {
	child := resource.Resource{
		Type:     leaderType(rec.Leader),
		Title:    rec.First("245", "a"),
		Subtitle: rec.First("245", "b"),
		Edition:  rec.First("250", "a"),
		Status:   resource.StatusExternal,
		Source:   resource.SourceSWB,
	}

	child.AddIdentifier(resource.Identifier{Scheme: resource.SchemeSWBPPN, LiteralValue: rec.Control("001")})
	for _, df := range rec.Fields("020") {
		child.AddIdentifier(resource.Identifier{Scheme: resource.SchemeISBN, LiteralValue: df.Sub("a")})
	}
	for _, df := range rec.Fields("022") {
		child.AddIdentifier(resource.Identifier{Scheme: resource.SchemeISSN, LiteralValue: df.Sub("a")})
	}
	for _, df := range rec.Fields("024") {
		if df.Ind1 == "7" && strings.EqualFold(df.Sub("2"), "doi") {
			child.AddIdentifier(resource.Identifier{Scheme: resource.SchemeDOI, LiteralValue: df.Sub("a")})
		}
	}

	for _, tag := range []string{"100", "700"} {
		for _, df := range rec.Fields(tag) {
			if name := df.Sub("a"); name != "" {
				child.Contributors = append(child.Contributors, resource.AgentRole{
					RoleType: resource.RoleAuthor,
					HeldBy:   resource.NewAgent(name),
				})
			}
		}
	}
	for _, tag := range []string{"110", "710"} {
		for _, df := range rec.Fields(tag) {
			if name := df.Sub("a"); name != "" {
				child.Contributors = append(child.Contributors, resource.AgentRole{
					RoleType: resource.RoleCorporate,
					HeldBy:   resource.Agent{NameString: name},
				})
			}
		}
	}

	publisher, date := rec.First("264", "b"), rec.First("264", "c")
	if publisher == "" {
		publisher = rec.First("260", "b")
	}
	if date == "" {
		date = rec.First("260", "c")
	}
	if publisher != "" {
		child.Contributors = append(child.Contributors, resource.AgentRole{
			RoleType: resource.RolePublisher,
			HeldBy:   resource.Agent{NameString: publisher},
		})
	}
	if y := yearPattern.FindString(date); y != "" {
		child.PublicationYear, _ = strconv.Atoi(y)
	}

	child.Number = rec.First("830", "v")
	if child.Number == "" {
		child.Number = rec.First("490", "v")
	}

	h := resource.Hierarchy{Child: child, Source: resource.SourceSWB}

	hosts := rec.Fields("773")
	if len(hosts) == 0 {
		return h
	}
	host := hosts[0]
	parent := resource.Resource{
		Title:  host.Sub("t"),
		Status: resource.StatusExternal,
		Source: resource.SourceSWB,
	}
	switch child.Type {
	case resource.TypeJournalArticle:
		parent.Type = resource.TypeJournal
	case resource.TypeBookChapter:
		parent.Type = resource.TypeBook
	default:
		parent.Type = child.Type.ParentType()
	}
	for _, w := range host.SubAll("w") {
		if id, ok := hostIdentifier(w); ok {
			parent.AddIdentifier(id)
		}
	}
	if parent.Title == "" && len(parent.Identifiers) == 0 {
		return h
	}
	child.ContainerTitle = parent.Title
	h.Child = child
	h.Parent = &parent
	return h
}

// hostIdentifier parses a 773$w record control number such as
// "(DE-600)2012345-6" (ZDB) or "(DE-576)123456789" (SWB).
func hostIdentifier(w string) (resource.Identifier, bool) {
	switch {
	case strings.HasPrefix(w, "(DE-600)"):
		return resource.Identifier{Scheme: resource.SchemeZDBPPN, LiteralValue: strings.TrimPrefix(w, "(DE-600)")}, true
	case strings.HasPrefix(w, "(DE-576)"):
		return resource.Identifier{Scheme: resource.SchemeSWBPPN, LiteralValue: strings.TrimPrefix(w, "(DE-576)")}, true
	}
	return resource.Identifier{}, false
}
