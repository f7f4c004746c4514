package resource

// Status is the lifecycle tag of a resource or entry.
type Status string

const (
	StatusValid         Status = "VALID"
	StatusExternal      Status = "EXTERNAL"
	StatusObsolete      Status = "OBSOLETE"
	StatusOCRProcessing Status = "OCR_PROCESSING"
	StatusOCRProcessed  Status = "OCR_PROCESSED"
)

// Statuses lists every Status in declaration order.
var Statuses = []Status{StatusValid, StatusExternal, StatusObsolete, StatusOCRProcessing, StatusOCRProcessed}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusValid, StatusExternal, StatusObsolete, StatusOCRProcessing, StatusOCRProcessed:
		return true
	}
	return false
}

// Live reports whether an entry with this status still counts for its
// (scan, marker) slot.
func (s Status) Live() bool {
	switch s {
	case StatusValid, StatusOCRProcessed:
		return true
	case StatusExternal, StatusObsolete, StatusOCRProcessing:
		return false
	}
	return false
}

// ParseStatus converts a string to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Reason: "unknown status " + quote(s)}
	}
	return st, nil
}

// Type is the kind of work a bibliographic resource represents.
type Type string

const (
	TypeJournal            Type = "JOURNAL"
	TypeJournalVolume      Type = "JOURNAL_VOLUME"
	TypeJournalIssue       Type = "JOURNAL_ISSUE"
	TypeJournalArticle     Type = "JOURNAL_ARTICLE"
	TypeBook               Type = "BOOK"
	TypeEditedBook         Type = "EDITED_BOOK"
	TypeBookChapter        Type = "BOOK_CHAPTER"
	TypeBookPart           Type = "BOOK_PART"
	TypeBookSection        Type = "BOOK_SECTION"
	TypeBookSeries         Type = "BOOK_SERIES"
	TypeBookSet            Type = "BOOK_SET"
	TypeBookTrack          Type = "BOOK_TRACK"
	TypeMonograph          Type = "MONOGRAPH"
	TypeProceedings        Type = "PROCEEDINGS"
	TypeProceedingsArticle Type = "PROCEEDINGS_ARTICLE"
	TypeComponent          Type = "COMPONENT"
	TypeDataset            Type = "DATASET"
	TypeDissertation       Type = "DISSERTATION"
	TypeReferenceBook      Type = "REFERENCE_BOOK"
	TypeReferenceEntry     Type = "REFERENCE_ENTRY"
	TypeReport             Type = "REPORT"
	TypeReportSeries       Type = "REPORT_SERIES"
	TypeStandard           Type = "STANDARD"
	TypeStandardSeries     Type = "STANDARD_SERIES"
)

// Valid reports whether t is a known resource type. The empty type is
// allowed on candidates whose provider did not report one.
func (t Type) Valid() bool {
	switch t {
	case TypeJournal, TypeJournalVolume, TypeJournalIssue, TypeJournalArticle,
		TypeBook, TypeEditedBook, TypeBookChapter, TypeBookPart, TypeBookSection,
		TypeBookSeries, TypeBookSet, TypeBookTrack, TypeMonograph,
		TypeProceedings, TypeProceedingsArticle, TypeComponent, TypeDataset,
		TypeDissertation, TypeReferenceBook, TypeReferenceEntry, TypeReport,
		TypeReportSeries, TypeStandard, TypeStandardSeries:
		return true
	}
	return false
}

// ParentType returns the conventional container type for t, or "" when a
// resource of this type usually stands alone.
func (t Type) ParentType() Type {
	switch t {
	case TypeJournalArticle:
		return TypeJournalIssue
	case TypeJournalIssue:
		return TypeJournalVolume
	case TypeJournalVolume:
		return TypeJournal
	case TypeBookChapter, TypeBookPart, TypeBookSection, TypeBookTrack:
		return TypeBook
	case TypeProceedingsArticle:
		return TypeProceedings
	case TypeReferenceEntry:
		return TypeReferenceBook
	case TypeBook, TypeEditedBook, TypeMonograph, TypeProceedings, TypeReferenceBook:
		return ""
	case TypeJournal, TypeBookSeries, TypeBookSet, TypeComponent, TypeDataset,
		TypeDissertation, TypeReport, TypeReportSeries, TypeStandard, TypeStandardSeries:
		return ""
	}
	return ""
}

// CanHaveParent reports whether a resource of type t may carry a partOf link.
func (t Type) CanHaveParent() bool {
	return t != TypeJournal
}

// ParseType converts a string to a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", &ValidationError{Field: "type", Reason: "unknown resource type " + quote(s)}
	}
	return t, nil
}

// RoleType is the role a contributor holds.
type RoleType string

const (
	RoleAuthor    RoleType = "AUTHOR"
	RoleEditor    RoleType = "EDITOR"
	RolePublisher RoleType = "PUBLISHER"
	RoleCorporate RoleType = "CORPORATE"
)

// Valid reports whether r is a known role.
func (r RoleType) Valid() bool {
	switch r {
	case RoleAuthor, RoleEditor, RolePublisher, RoleCorporate:
		return true
	}
	return false
}

// Scheme is an identifier scheme.
type Scheme string

const (
	SchemeDOI       Scheme = "DOI"
	SchemeISSN      Scheme = "ISSN"
	SchemeISBN      Scheme = "ISBN"
	SchemeZDBPPN    Scheme = "ZDB_PPN"
	SchemeSWBPPN    Scheme = "SWB_PPN"
	SchemeOLCPPN    Scheme = "OLC_PPN"
	SchemeGVIID     Scheme = "GVI_ID"
	SchemeK10plusID Scheme = "K10PLUS_ID"
	SchemeURI       Scheme = "URI"
	SchemeCrossref  Scheme = "CROSSREF"
	SchemeLocdbID   Scheme = "LOCDB_ID"
)

// Valid reports whether s is a known identifier scheme.
func (s Scheme) Valid() bool {
	switch s {
	case SchemeDOI, SchemeISSN, SchemeISBN, SchemeZDBPPN, SchemeSWBPPN, SchemeOLCPPN,
		SchemeGVIID, SchemeK10plusID, SchemeURI, SchemeCrossref, SchemeLocdbID:
		return true
	}
	return false
}

// ParseScheme converts a string to a Scheme.
func ParseScheme(s string) (Scheme, error) {
	sc := Scheme(s)
	if !sc.Valid() {
		return "", &ValidationError{Field: "scheme", Reason: "unknown identifier scheme " + quote(s)}
	}
	return sc, nil
}

// Source is an external metadata provider.
type Source string

const (
	SourceSWB      Source = "SWB"
	SourceGVI      Source = "GVI"
	SourceK10plus  Source = "K10PLUS"
	SourceCrossref Source = "CROSSREF"
)

// Sources lists every provider in canonical dispatch order.
var Sources = []Source{SourceSWB, SourceGVI, SourceK10plus, SourceCrossref}

// Valid reports whether s is a known provider.
func (s Source) Valid() bool {
	return s.Rank() >= 0
}

// Rank returns the position of s in the canonical dispatch order, or -1.
func (s Source) Rank() int {
	switch s {
	case SourceSWB:
		return 0
	case SourceGVI:
		return 1
	case SourceK10plus:
		return 2
	case SourceCrossref:
		return 3
	}
	return -1
}

// ParseSource converts a string to a Source.
func ParseSource(s string) (Source, error) {
	src := Source(s)
	if !src.Valid() {
		return "", &ValidationError{Field: "source", Reason: "unknown source " + quote(s)}
	}
	return src, nil
}

func quote(s string) string {
	return "\"" + s + "\""
}
