package resource

import "strconv"

// Merge combines a stored resource with a freshly fetched candidate and
// returns a new value. The store is authoritative: scalar fields keep the
// stored value when it is set and only fill gaps from the candidate.
// Neither argument is modified.
func Merge(stored, candidate Resource) Resource {
	merged := Clone(stored)

	merged.ID = nonEmpty(stored.ID, candidate.ID)
	if merged.Type == "" {
		merged.Type = candidate.Type
	}
	merged.Title = nonEmpty(stored.Title, candidate.Title)
	merged.Subtitle = nonEmpty(stored.Subtitle, candidate.Subtitle)
	merged.ContainerTitle = nonEmpty(stored.ContainerTitle, candidate.ContainerTitle)
	if merged.PublicationYear == 0 {
		merged.PublicationYear = candidate.PublicationYear
	}
	merged.Number = nonEmpty(stored.Number, candidate.Number)
	merged.Edition = nonEmpty(stored.Edition, candidate.Edition)
	if merged.Status == "" {
		merged.Status = candidate.Status
	}
	merged.PartOf = nonEmpty(stored.PartOf, candidate.PartOf)

	for _, id := range candidate.Identifiers {
		merged.AddIdentifier(id)
	}

	// Lists are all-or-nothing: the stored list is never spliced.
	if len(merged.Contributors) == 0 && len(candidate.Contributors) > 0 {
		merged.Contributors = append([]AgentRole(nil), candidate.Contributors...)
	}
	if len(merged.EmbodiedAs) == 0 && len(candidate.EmbodiedAs) > 0 {
		merged.EmbodiedAs = cloneEmbodiments(candidate.EmbodiedAs)
	}
	if len(merged.Parts) == 0 && len(candidate.Parts) > 0 {
		merged.Parts = cloneEntries(candidate.Parts)
	}

	merged.Cites = unionStrings(stored.Cites, candidate.Cites)

	// Provenance of a curated record is not overwritten by a candidate.
	merged.Source = stored.Source

	return merged
}

// Diff returns the names of the fields that differ between before and
// after. An empty result means a write would be a no-op.
func Diff(before, after Resource) []string {
	var fields []string
	check := func(name string, changed bool) {
		if changed {
			fields = append(fields, name)
		}
	}

	check("id", before.ID != after.ID)
	check("type", before.Type != after.Type)
	check("title", before.Title != after.Title)
	check("subtitle", before.Subtitle != after.Subtitle)
	check("containerTitle", before.ContainerTitle != after.ContainerTitle)
	check("publicationYear", before.PublicationYear != after.PublicationYear)
	check("number", before.Number != after.Number)
	check("edition", before.Edition != after.Edition)
	check("status", before.Status != after.Status)
	check("partOf", before.PartOf != after.PartOf)
	check("source", before.Source != after.Source)
	check("identifiers", !identifiersEqual(before.Identifiers, after.Identifiers))
	check("contributors", !contributorsEqual(before.Contributors, after.Contributors))
	check("cites", !stringsEqual(before.Cites, after.Cites))
	check("embodiedAs", !embodimentsEqual(before.EmbodiedAs, after.EmbodiedAs))
	check("parts", !entriesEqual(before.Parts, after.Parts))

	return fields
}

// Clone returns a deep copy of r.
func Clone(r Resource) Resource {
	c := r
	c.Identifiers = append([]Identifier(nil), r.Identifiers...)
	c.Contributors = append([]AgentRole(nil), r.Contributors...)
	c.Cites = append([]string(nil), r.Cites...)
	c.EmbodiedAs = cloneEmbodiments(r.EmbodiedAs)
	c.Parts = cloneEntries(r.Parts)
	return c
}

// CloneHierarchy deep-copies both members of h.
func CloneHierarchy(h Hierarchy) Hierarchy {
	c := Hierarchy{Child: Clone(h.Child), Source: h.Source}
	if h.Parent != nil {
		p := Clone(*h.Parent)
		c.Parent = &p
	}
	return c
}

// YearString formats a publication year for display, "" when undated.
func YearString(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}

func cloneEmbodiments(in []Embodiment) []Embodiment {
	if len(in) == 0 {
		return nil
	}
	out := make([]Embodiment, len(in))
	for i, e := range in {
		out[i] = e
		out[i].Scans = append([]Scan(nil), e.Scans...)
	}
	return out
}

func cloneEntries(in []Entry) []Entry {
	if len(in) == 0 {
		return nil
	}
	out := make([]Entry, len(in))
	for i, e := range in {
		out[i] = CloneEntry(e)
	}
	return out
}

// CloneEntry deep-copies an entry.
func CloneEntry(e Entry) Entry {
	c := e
	if len(e.OCRData.Authors) > 0 {
		c.OCRData.Authors = append([]string(nil), e.OCRData.Authors...)
	}
	if len(e.Identifiers) > 0 {
		c.Identifiers = append([]Identifier(nil), e.Identifiers...)
	}
	return c
}

// nonEmpty returns the first non-empty string.
func nonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// unionStrings returns the union of two string slices, first-seen order.
func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var result []string
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	return result
}

func identifiersEqual(a, b []Identifier) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key() != b[i].Key() {
			return false
		}
	}
	return true
}

func contributorsEqual(a, b []AgentRole) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func embodimentsEqual(a, b []Embodiment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || a[i].FirstPage != b[i].FirstPage || a[i].LastPage != b[i].LastPage {
			return false
		}
		if len(a[i].Scans) != len(b[i].Scans) {
			return false
		}
		for j := range a[i].Scans {
			if a[i].Scans[j] != b[i].Scans[j] {
				return false
			}
		}
	}
	return true
}

func entriesEqual(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !entryEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func entryEqual(a, b Entry) bool {
	if a.ID != b.ID || a.BibliographicEntryText != b.BibliographicEntryText ||
		a.Status != b.Status || a.ScanID != b.ScanID || a.Marker != b.Marker ||
		a.Coordinates != b.Coordinates || a.References != b.References {
		return false
	}
	oa, ob := a.OCRData, b.OCRData
	if oa.Title != ob.Title || oa.Date != ob.Date || oa.Journal != ob.Journal ||
		oa.Volume != ob.Volume || oa.Comments != ob.Comments || oa.Coordinates != ob.Coordinates {
		return false
	}
	return stringsEqual(oa.Authors, ob.Authors) && identifiersEqual(a.Identifiers, b.Identifiers)
}
