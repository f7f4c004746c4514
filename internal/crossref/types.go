package crossref

// listResponse is the envelope of GET /works.
type listResponse struct {
	Status  string `json:"status"`
	Message struct {
		TotalResults int    `json:"total-results"`
		Items        []Work `json:"items"`
	} `json:"message"`
}

// workResponse is the envelope of GET /works/{doi}.
type workResponse struct {
	Status  string `json:"status"`
	Message Work   `json:"message"`
}

// Work is a Crossref work record. Only the fields mapped onto resources
// are decoded.
type Work struct {
	DOI             string      `json:"DOI"`
	URL             string      `json:"URL"`
	Type            string      `json:"type"`
	Title           []string    `json:"title"`
	Subtitle        []string    `json:"subtitle"`
	ContainerTitle  []string    `json:"container-title"`
	ISSN            []string    `json:"ISSN"`
	ISBN            []string    `json:"ISBN"`
	Author          []Person    `json:"author"`
	Editor          []Person    `json:"editor"`
	Publisher       string      `json:"publisher"`
	Page            string      `json:"page"`
	Volume          string      `json:"volume"`
	Issue           string      `json:"issue"`
	Issued          DateParts   `json:"issued"`
	PublishedPrint  DateParts   `json:"published-print"`
	PublishedOnline DateParts   `json:"published-online"`
	Reference       []Reference `json:"reference"`
}

// Person is an author or editor of a work.
type Person struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"` // organisational authors carry only a name
}

// DateParts holds Crossref's [[year, month, day]] date encoding.
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
}

// Year returns the year component, or 0.
func (d DateParts) Year() int {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}

// Reference is one entry of a work's deposited reference list.
type Reference struct {
	Key          string `json:"key"`
	DOI          string `json:"DOI"`
	Unstructured string `json:"unstructured"`
	ArticleTitle string `json:"article-title"`
	VolumeTitle  string `json:"volume-title"`
	Author       string `json:"author"`
	Year         string `json:"year"`
	JournalTitle string `json:"journal-title"`
	Volume       string `json:"volume"`
	FirstPage    string `json:"first-page"`
}
