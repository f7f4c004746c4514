package jobs

import "github.com/locdb/locdb/internal/resource"

type PrecalculateInput struct {
	ResourceID string `json:"resource_id"`
	K          int    `json:"k,omitempty"`
}

type PrecalculateOutput struct {
	Entries int `json:"entries"`
	Stored  int `json:"stored"`
	Failed  int `json:"failed"`
}

type ListPendingInput struct {
	ResourceID string `json:"resource_id"`
}

// PendingEntry is an entry still waiting for a match, with the text used
// to query the catalogues.
type PendingEntry struct {
	EntryID string `json:"entry_id"`
	Query   string `json:"query"`
}

type ListPendingOutput struct {
	Entries []PendingEntry `json:"entries"`
}

type SuggestInput struct {
	PendingEntry
	K int `json:"k"`
}

type SuggestOutput struct {
	Suggestions int `json:"suggestions"`
}

type RelinkInput struct {
	ResourceID string `json:"resource_id"`
}

type RelinkOutput struct {
	Linked   bool   `json:"linked"`
	ParentID string `json:"parent_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type LookupContainerInput struct {
	ResourceID string `json:"resource_id"`
}

// LookupContainerOutput carries the container Crossref now reports for an
// orphan, or the reason there is none.
type LookupContainerOutput struct {
	Parent *resource.Resource `json:"parent,omitempty"`
	Reason string             `json:"reason,omitempty"`
}

type AttachInput struct {
	ResourceID string            `json:"resource_id"`
	Parent     resource.Resource `json:"parent"`
}

type AttachOutput struct {
	ParentID string `json:"parent_id"`
}
