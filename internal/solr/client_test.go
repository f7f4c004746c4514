package solr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/source"
)

const selectJSON = `{
  "responseHeader": {"status": 0},
  "response": {"numFound": 2, "docs": [
    {
      "id": "gvi-1",
      "title": "Soil carbon dynamics",
      "author": ["Doe, Jane"],
      "publishDate": ["2018"],
      "format": ["Article"],
      "issn": "0038-075X",
      "container_title": "Soil Science",
      "container_volume": "183",
      "container_reference": "gvi-journal-9",
      "doi_str_mv": ["10.1097/ss.1"]
    },
    {
      "id": "gvi-2",
      "title": "Lecture notes on soils",
      "title_sub": "collected essays",
      "author2": ["Roe, Richard"],
      "publishDate": "c1999",
      "format": ["Book"],
      "isbn": ["9780000000002"],
      "series": ["Soil monographs ; 12"]
    }
  ]}
}`

func newTestClient(t *testing.T, src resource.Source, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := NewClient(src, server.URL+"/biblio", WithRateLimit(1000), WithRows(7))
	require.NoError(t, err)
	return c
}

func TestQueryByText(t *testing.T) {
	client := newTestClient(t, resource.SourceGVI, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/biblio/select", r.URL.Path)
		assert.Equal(t, "soil carbon", r.URL.Query().Get("q"))
		assert.Equal(t, "7", r.URL.Query().Get("rows"))
		assert.Equal(t, "json", r.URL.Query().Get("wt"))
		_, _ = w.Write([]byte(selectJSON))
	})

	hs, err := client.QueryByText(context.Background(), "soil carbon")
	require.NoError(t, err)
	require.Len(t, hs, 2)

	article := hs[0]
	assert.Equal(t, resource.SourceGVI, article.Source)
	assert.Equal(t, resource.TypeJournalArticle, article.Child.Type)
	assert.Equal(t, 2018, article.Child.PublicationYear)
	id, _ := article.Child.IdentifierValue(resource.SchemeGVIID)
	assert.Equal(t, "gvi-1", id)
	require.NotNil(t, article.Parent)
	assert.Equal(t, resource.TypeJournal, article.Parent.Type)
	assert.Equal(t, "Soil Science", article.Parent.Title)
	assert.Equal(t, "183", article.Parent.Number)
	issn, _ := article.Parent.IdentifierValue(resource.SchemeISSN)
	assert.Equal(t, "0038-075X", issn, "single-valued fields decode as lists")

	book := hs[1]
	assert.Nil(t, book.Parent)
	assert.Equal(t, resource.TypeBook, book.Child.Type)
	assert.Equal(t, "collected essays", book.Child.Subtitle)
	assert.Equal(t, 1999, book.Child.PublicationYear)
	assert.Equal(t, "12", book.Child.Number)
	require.Len(t, book.Child.Contributors, 1)
	assert.Equal(t, resource.RoleEditor, book.Child.Contributors[0].RoleType)
}

func TestQueryByText_K10plusIdentifierScheme(t *testing.T) {
	client := newTestClient(t, resource.SourceK10plus, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(selectJSON))
	})

	hs, err := client.QueryByText(context.Background(), "soil")
	require.NoError(t, err)
	_, ok := hs[1].Child.IdentifierValue(resource.SchemeK10plusID)
	assert.True(t, ok)
	assert.Equal(t, resource.SourceK10plus, hs[1].Child.Source)
}

func TestQueryByText_SolrError(t *testing.T) {
	client := newTestClient(t, resource.SourceGVI, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"msg":"undefined field foo","code":400}}`))
	})

	_, err := client.QueryByText(context.Background(), "foo:bar")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "undefined field foo", apiErr.Message)
}

func TestNewClient_RejectsNonSolrSources(t *testing.T) {
	_, err := NewClient(resource.SourceCrossref, "http://localhost")
	assert.Error(t, err)
	_, err = NewClient(resource.SourceGVI, "")
	assert.Error(t, err)
}

func TestQueryByDOI_Unsupported(t *testing.T) {
	c, err := NewClient(resource.SourceGVI, "http://localhost")
	require.NoError(t, err)
	_, err = c.QueryByDOI(context.Background(), "10.1000/x")
	assert.ErrorIs(t, err, source.ErrUnsupported)
}
