// Package resource defines the bibliographic resource model: resources,
// their identifiers, contributors and embodiments, and the citation entries
// extracted from their scans.
package resource

import (
	"strings"
)

// Identifier is a (scheme, value) pair naming a resource in some registry.
type Identifier struct {
	Scheme       Scheme `json:"scheme"`
	LiteralValue string `json:"literalValue"`
}

// Key returns the identifier's set key. DOIs are normalised so that
// differently cased or prefixed DOIs compare equal.
func (id Identifier) Key() string {
	return string(id.Scheme) + ":" + id.Normalized()
}

// Normalized returns the literal value in comparison form.
func (id Identifier) Normalized() string {
	v := strings.TrimSpace(id.LiteralValue)
	if id.Scheme == SchemeDOI {
		return NormalizeDOI(v)
	}
	return v
}

// NormalizeDOI lower-cases a DOI and strips resolver prefixes.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		if strings.HasPrefix(lower, prefix) {
			lower = lower[len(prefix):]
			break
		}
	}
	return lower
}

// Agent is a person or organisation holding a contributor role.
type Agent struct {
	NameString string `json:"nameString"`
	GivenName  string `json:"givenName,omitempty"`
	FamilyName string `json:"familyName,omitempty"`
}

// AgentRole binds an agent to a role on a resource.
type AgentRole struct {
	RoleType RoleType `json:"roleType"`
	HeldBy   Agent    `json:"heldBy"`
}

// Scan is one uploaded page image or textual PDF attached to an embodiment.
type Scan struct {
	ID         string `json:"id"`
	ScanName   string `json:"scanName"`
	TextualPDF bool   `json:"textualPdf,omitempty"`
	Status     Status `json:"status"`
}

// Embodiment is a physical or digital manifestation of a resource.
type Embodiment struct {
	Type      string `json:"type,omitempty"` // PRINT, DIGITAL
	FirstPage string `json:"firstPage,omitempty"`
	LastPage  string `json:"lastPage,omitempty"`
	Scans     []Scan `json:"scans,omitempty"`
}

// OCRData is the structured guess produced by reference segmentation.
type OCRData struct {
	Title       string   `json:"title,omitempty"`
	Date        string   `json:"date,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	Journal     string   `json:"journal,omitempty"`
	Volume      string   `json:"volume,omitempty"`
	Comments    string   `json:"comments,omitempty"`
	Coordinates string   `json:"coordinates,omitempty"`
}

// Entry is one citation found in a scan, or a suggestion derived from a
// stored resource.
type Entry struct {
	ID                     string       `json:"id,omitempty"`
	BibliographicEntryText string       `json:"bibliographicEntryText,omitempty"`
	OCRData                OCRData      `json:"ocrData"`
	Status                 Status       `json:"status,omitempty"`
	ScanID                 string       `json:"scanId,omitempty"`
	Marker                 string       `json:"marker,omitempty"`
	Coordinates            string       `json:"coordinates,omitempty"`
	References             string       `json:"references,omitempty"` // id of the matched resource
	Identifiers            []Identifier `json:"identifiers,omitempty"`
}

// Resource is a bibliographic resource: a journal, article, book, chapter
// and so on.
type Resource struct {
	// Identity
	ID   string `json:"id,omitempty"` // Store-assigned; empty until persisted
	Type Type   `json:"type,omitempty"`

	// Descriptive metadata
	Title           string `json:"title,omitempty"`
	Subtitle        string `json:"subtitle,omitempty"`
	ContainerTitle  string `json:"containerTitle,omitempty"`
	PublicationYear int    `json:"publicationYear,omitempty"` // 0 if undated
	Number          string `json:"number,omitempty"`          // e.g. issue or volume number
	Edition         string `json:"edition,omitempty"`

	Identifiers  []Identifier `json:"identifiers,omitempty"`
	Contributors []AgentRole  `json:"contributors,omitempty"`

	Status Status `json:"status,omitempty"`

	// Hierarchy
	PartOf string   `json:"partOf,omitempty"` // id of the parent resource
	Parts  []Entry  `json:"parts,omitempty"`  // citation entries found in this resource's scans
	Cites  []string `json:"cites,omitempty"`  // ids of cited resources

	EmbodiedAs []Embodiment `json:"embodiedAs,omitempty"`

	// Provenance of an external candidate; empty for curated records.
	Source Source `json:"source,omitempty"`
}

// AddIdentifier appends id unless an identifier with the same key is
// already present. It reports whether id was added.
func (r *Resource) AddIdentifier(id Identifier) bool {
	if strings.TrimSpace(id.LiteralValue) == "" {
		return false
	}
	key := id.Key()
	for _, existing := range r.Identifiers {
		if existing.Key() == key {
			return false
		}
	}
	r.Identifiers = append(r.Identifiers, id)
	return true
}

// IdentifierValue returns the first identifier value for scheme.
func (r Resource) IdentifierValue(scheme Scheme) (string, bool) {
	for _, id := range r.Identifiers {
		if id.Scheme == scheme {
			return id.LiteralValue, true
		}
	}
	return "", false
}

// FirstAuthor returns the first contributor in an author role, falling back
// to the first contributor of any role.
func (r Resource) FirstAuthor() (Agent, bool) {
	for _, c := range r.Contributors {
		if c.RoleType == RoleAuthor {
			return c.HeldBy, true
		}
	}
	if len(r.Contributors) > 0 {
		return r.Contributors[0].HeldBy, true
	}
	return Agent{}, false
}

// AuthorNames returns the display names of all authors.
func (r Resource) AuthorNames() []string {
	var names []string
	for _, c := range r.Contributors {
		if c.RoleType != RoleAuthor {
			continue
		}
		name := c.HeldBy.NameString
		if name == "" {
			name = strings.TrimSpace(c.HeldBy.FamilyName + " " + c.HeldBy.GivenName)
		}
		names = append(names, name)
	}
	return names
}

// HasDescriptiveFields reports whether any field used for matching is set.
func (r Resource) HasDescriptiveFields() bool {
	return r.Title != "" || r.Subtitle != "" || r.PublicationYear != 0 ||
		r.Number != "" || len(r.Contributors) > 0
}

// EntryIndex returns the index of the embedded entry with the given id.
func (r Resource) EntryIndex(entryID string) int {
	for i, e := range r.Parts {
		if e.ID == entryID {
			return i
		}
	}
	return -1
}

// Validate checks the structural invariants of a resource.
func (r Resource) Validate() error {
	if r.Type != "" && !r.Type.Valid() {
		return &ValidationError{Field: "type", Reason: "unknown resource type " + quote(string(r.Type))}
	}
	if r.Status != "" && !r.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "unknown status " + quote(string(r.Status))}
	}
	if r.PartOf != "" && !r.Type.CanHaveParent() {
		return &ValidationError{Field: "partOf", Reason: "a journal cannot be part of another resource"}
	}
	seen := make(map[string]bool, len(r.Identifiers))
	for _, id := range r.Identifiers {
		if err := ValidateIdentifier(id); err != nil {
			return err
		}
		if seen[id.Key()] {
			return &ValidationError{Field: "identifiers", Reason: "duplicate identifier " + id.Key()}
		}
		seen[id.Key()] = true
	}
	for _, c := range r.Contributors {
		if !c.RoleType.Valid() {
			return &ValidationError{Field: "contributors", Reason: "unknown role " + quote(string(c.RoleType))}
		}
	}
	return nil
}

// Hierarchy is a candidate child resource with its optional parent, as
// returned by an external provider.
type Hierarchy struct {
	Child  Resource  `json:"child"`
	Parent *Resource `json:"parent,omitempty"`
	Source Source    `json:"source,omitempty"`
}

// Members returns the present members of the hierarchy, child first.
func (h Hierarchy) Members() []Resource {
	if h.Parent == nil {
		return []Resource{h.Child}
	}
	return []Resource{h.Child, *h.Parent}
}

// Tag sets the source and status on every member.
func (h *Hierarchy) Tag(src Source, status Status) {
	h.Source = src
	h.Child.Source = src
	h.Child.Status = status
	if h.Parent != nil {
		h.Parent.Source = src
		h.Parent.Status = status
	}
}

// Scored is a candidate hierarchy with its ranking score. Lower is better.
type Scored struct {
	Hierarchy
	Score int `json:"score"`
}
