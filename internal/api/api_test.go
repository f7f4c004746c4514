package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/locdb/locdb/internal/curator"
	"github.com/locdb/locdb/internal/entries"
	"github.com/locdb/locdb/internal/intake"
	"github.com/locdb/locdb/internal/metrics"
	"github.com/locdb/locdb/internal/ranker"
	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/source"
	"github.com/locdb/locdb/internal/storage"
)

const scanID = "6f1c3a52-0b7e-4c55-9a0e-2d2b7f0e8a11"

type stubAdapter struct {
	src     resource.Source
	results []resource.Hierarchy
	err     error
}

func (s stubAdapter) Source() resource.Source { return s.src }

func (s stubAdapter) QueryByText(ctx context.Context, text string) ([]resource.Hierarchy, error) {
	return s.results, s.err
}

func (s stubAdapter) QueryByDOI(ctx context.Context, doi string) (*resource.Hierarchy, error) {
	return nil, source.ErrUnsupported
}

type stubCrossref struct {
	work *resource.Hierarchy
}

func (s stubCrossref) QueryByDOI(ctx context.Context, doi string) (*resource.Hierarchy, error) {
	if s.work == nil {
		return nil, nil
	}
	h := resource.CloneHierarchy(*s.work)
	return &h, nil
}

func (s stubCrossref) QueryReferences(ctx context.Context, doi string) ([]resource.Entry, error) {
	return nil, nil
}

func (s stubCrossref) QueryChapterMetadata(ctx context.Context, containerTitle, firstPage, lastPage string) ([]resource.Resource, error) {
	return nil, nil
}

type APITestSuite struct {
	suite.Suite
	db       *storage.SQLite
	metrics  *metrics.Metrics
	adapters []source.Adapter
	handler  http.Handler

	bookID  string
	entryID string
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func (s *APITestSuite) SetupTest() {
	db, err := storage.OpenSQLite(filepath.Join(s.T().TempDir(), "api.db"))
	s.Require().NoError(err)
	s.T().Cleanup(func() { db.Close() })
	s.db = db
	s.metrics = metrics.New()

	s.bookID, err = db.Insert(context.Background(), resource.Resource{
		Type:   resource.TypeMonograph,
		Title:  "Citation Indexing",
		Status: resource.StatusValid,
		EmbodiedAs: []resource.Embodiment{{
			Scans: []resource.Scan{{ID: scanID, ScanName: "page1.pdf", Status: resource.StatusOCRProcessed}},
		}},
		Parts: []resource.Entry{{
			BibliographicEntryText: "Price, D. Networks of scientific papers. 1965.",
			Status:                 resource.StatusOCRProcessed,
			ScanID:                 scanID,
			Marker:                 "1",
		}},
	})
	s.Require().NoError(err)
	stored, err := db.Get(context.Background(), s.bookID)
	s.Require().NoError(err)
	s.entryID = stored.Parts[0].ID

	s.adapters = []source.Adapter{
		stubAdapter{src: resource.SourceSWB, results: []resource.Hierarchy{
			{Child: resource.Resource{Title: "Networks of Scientific Papers", Type: resource.TypeJournalArticle}},
		}},
		stubAdapter{src: resource.SourceGVI, err: errors.New("solr down")},
	}
	s.build()
}

func (s *APITestSuite) build() {
	cur := curator.New(s.db, curator.WithMetrics(s.metrics))
	work := &resource.Hierarchy{
		Child: resource.Resource{
			Type:        resource.TypeJournalArticle,
			Title:       "Linked Open Citation Data",
			Identifiers: []resource.Identifier{{Scheme: resource.SchemeDOI, LiteralValue: "10.1007/s11192-018-1234-5"}},
		},
		Parent: &resource.Resource{Type: resource.TypeJournalIssue, Title: "Scientometrics"},
	}
	srv := NewServer(Deps{
		Store:    s.db,
		Ranker:   ranker.New(s.adapters, ranker.WithStore(s.db), ranker.WithMetrics(s.metrics)),
		Curator:  cur,
		Entries:  entries.New(s.db, nil),
		Intake:   intake.New(s.db, cur, intake.WithCrossref(stubCrossref{work: work})),
		Metrics:  s.metrics,
		DefaultK: 5,
	})
	s.handler = srv.Router()
}

func (s *APITestSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *APITestSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (s *APITestSuite) TestGetResource() {
	rec := s.do("GET", "/resources/"+s.bookID, nil)
	s.Equal(http.StatusOK, rec.Code)

	var r resource.Resource
	s.decode(rec, &r)
	s.Equal("Citation Indexing", r.Title)

	rec = s.do("GET", "/resources/missing", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.JSONEq(`{"message":"No resource found with id missing."}`, rec.Body.String())
}

func (s *APITestSuite) TestDeleteResource() {
	s.Equal(http.StatusOK, s.do("DELETE", "/resources/"+s.bookID, nil).Code)
	s.Equal(http.StatusNotFound, s.do("DELETE", "/resources/"+s.bookID, nil).Code)
}

func (s *APITestSuite) TestListResources() {
	rec := s.do("GET", "/resources?type=MONOGRAPH&status=VALID", nil)
	s.Equal(http.StatusOK, rec.Code)
	var out []resource.Resource
	s.decode(rec, &out)
	s.Len(out, 1)

	rec = s.do("GET", "/resources?type=JOURNAL", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`[]`, rec.Body.String())

	s.Equal(http.StatusBadRequest, s.do("GET", "/resources?type=PAMPHLET", nil).Code)
	s.Equal(http.StatusBadRequest, s.do("GET", "/resources?limit=-1", nil).Code)
}

func (s *APITestSuite) TestSaveResource() {
	body := map[string]any{
		"identifier":   map[string]string{"scheme": "DOI", "literalValue": "10.1007/s11192-018-1234-5"},
		"resourceType": "JOURNAL_ARTICLE",
	}
	rec := s.do("POST", "/resources", body)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var h resource.Hierarchy
	s.decode(rec, &h)
	s.NotEmpty(h.Child.ID)
	s.Require().NotNil(h.Parent)
	s.Equal(h.Parent.ID, h.Child.PartOf)

	rec = s.do("POST", "/resources", body)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.JSONEq(`{"message":"The resource already exists."}`, rec.Body.String())

	body["resourceType"] = "DATASET"
	s.Equal(http.StatusBadRequest, s.do("POST", "/resources", body).Code)
}

func (s *APITestSuite) TestExternalSuggestions() {
	rec := s.do("GET", "/suggestions/external?query=networks+of+scientific+papers&k=3", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var out []resource.Hierarchy
	s.decode(rec, &out)
	s.Require().Len(out, 1)
	s.Equal(resource.SourceSWB, out[0].Source)
	s.Equal(resource.StatusExternal, out[0].Child.Status)

	s.Equal(http.StatusBadRequest, s.do("GET", "/suggestions/external?query=x&k=many", nil).Code)
}

func (s *APITestSuite) TestExternalSuggestions_AllAdaptersFailed() {
	s.adapters = []source.Adapter{stubAdapter{src: resource.SourceSWB, err: errors.New("timeout")}}
	s.build()

	rec := s.do("GET", "/suggestions/external?query=anything", nil)
	s.Equal(http.StatusBadGateway, rec.Code)
	s.Contains(rec.Body.String(), "all adapters failed")
}

func (s *APITestSuite) TestInternalSuggestions() {
	rec := s.do("POST", "/suggestions/internal", map[string]string{"title": "Citation Indexing"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var out []resource.Entry
	s.decode(rec, &out)
	s.Require().Len(out, 1)
	s.Equal(s.bookID, out[0].References)
}

func (s *APITestSuite) TestCachedSuggestions() {
	s.Require().NoError(s.db.SaveSuggestions(context.Background(), s.entryID, []resource.Scored{{Score: 2}}))

	rec := s.do("GET", "/suggestions/entries/"+s.entryID, nil)
	s.Equal(http.StatusOK, rec.Code)
	var out []resource.Scored
	s.decode(rec, &out)
	s.Len(out, 1)

	rec = s.do("GET", "/suggestions/entries/none", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`[]`, rec.Body.String())
}

func (s *APITestSuite) TestEntries() {
	rec := s.do("GET", "/entries/todo?scanId="+scanID, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var todo []resource.Entry
	s.decode(rec, &todo)
	s.Require().Len(todo, 1)

	rec = s.do("PUT", "/entries/"+s.entryID, map[string]string{"status": "VALID", "references": s.bookID})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do("GET", "/entries/"+s.entryID, nil)
	var e resource.Entry
	s.decode(rec, &e)
	s.Equal(resource.StatusValid, e.Status)

	s.Equal(http.StatusBadRequest, s.do("GET", "/entries/todo?scanId=not-a-uuid", nil).Code)
	s.Equal(http.StatusNotFound, s.do("GET", "/entries/"+scanID, nil).Code)
	s.Equal(http.StatusBadRequest, s.do("PUT", "/entries/"+s.entryID, map[string]string{"colour": "red"}).Code)
}

func (s *APITestSuite) TestCorrectEntry() {
	body := map[string]string{
		"bibliographicEntryText": "Price, D. J. de S. Networks of Scientific Papers. Science 149, 1965.",
		"marker":                 "1",
		"bibliographicEntryId":   s.entryID,
	}
	rec := s.do("POST", fmt.Sprintf("/scans/%s/entries", scanID), body)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var e resource.Entry
	s.decode(rec, &e)
	s.NotEqual(s.entryID, e.ID)
	s.Equal(resource.StatusOCRProcessed, e.Status)

	rec = s.do("GET", "/entries/"+s.entryID, nil)
	var old resource.Entry
	s.decode(rec, &old)
	s.Equal(resource.StatusObsolete, old.Status)
}

func (s *APITestSuite) TestCurate() {
	h := resource.Hierarchy{
		Child:  resource.Resource{Type: resource.TypeBookChapter, Title: "Introduction"},
		Parent: &resource.Resource{Type: resource.TypeMonograph, Title: "Citation Indexing"},
	}
	rec := s.do("POST", "/curate", h)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var out resource.Hierarchy
	s.decode(rec, &out)
	s.Require().NotNil(out.Parent)
	s.Equal(s.bookID, out.Parent.ID, "existing book is reused")

	rec = s.do("POST", "/curate", resource.Hierarchy{Child: resource.Resource{Type: resource.TypeJournal, Title: "J"}})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APITestSuite) TestCurate_Ambiguous() {
	_, err := s.db.Insert(context.Background(), resource.Resource{Type: resource.TypeMonograph, Title: "Citation Indexing"})
	s.Require().NoError(err)

	h := resource.Hierarchy{Child: resource.Resource{Type: resource.TypeMonograph, Title: "Citation Indexing"}}
	rec := s.do("POST", "/curate", h)
	s.Equal(http.StatusConflict, rec.Code)

	var body errorBody
	s.decode(rec, &body)
	s.Len(body.Candidates, 2)
}

func (s *APITestSuite) TestHealthAndMetrics() {
	rec := s.do("GET", "/__health", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok","resources":1}`, rec.Body.String())

	rec = s.do("GET", "/__metrics", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.True(strings.Contains(rec.Body.String(), `locdb_http_requests_total{code="200",route="/__health"} 1`), rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&resource.ValidationError{Field: "f", Reason: "r"}, http.StatusBadRequest},
		{&curator.AmbiguousMatchError{Role: "child"}, http.StatusConflict},
		{&ranker.AllAdaptersFailedError{}, http.StatusBadGateway},
		{fmt.Errorf("get: %w", storage.ErrNotFound), http.StatusNotFound},
		{&storage.StoreError{Op: "insert", Err: errors.New("disk full")}, http.StatusInternalServerError},
		{intake.ErrExists, http.StatusBadRequest},
		{intake.ErrNoMetadata, http.StatusNotFound},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestWriteError_HidesStoreDetails(t *testing.T) {
	srv := NewServer(Deps{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/resources/x", nil)

	srv.writeError(rec, req, &storage.StoreError{Op: "get", Err: errors.New("database is locked")})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal error."}`, rec.Body.String())
}
