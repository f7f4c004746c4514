package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
	"go.temporal.io/sdk/testsuite"

	"github.com/locdb/locdb/internal/curator"
	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/storage"
)

type fakeSuggester struct {
	mu      sync.Mutex
	fail    string
	queries []string
}

func (f *fakeSuggester) ExternalScored(ctx context.Context, query string, k int) ([]resource.Scored, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if query == f.fail {
		return nil, errors.New("all adapters failed")
	}
	return []resource.Scored{{
		Hierarchy: resource.Hierarchy{
			Child:  resource.Resource{Type: resource.TypeJournalArticle, Title: query, Status: resource.StatusExternal},
			Source: resource.SourceSWB,
		},
		Score: 3,
	}}, nil
}

type fakeLookup struct {
	h   *resource.Hierarchy
	err error
}

func (f fakeLookup) QueryByDOI(ctx context.Context, doi string) (*resource.Hierarchy, error) {
	return f.h, f.err
}

func openStore(t *testing.T) *storage.SQLite {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// seedScan stores a monograph with three entries: two pending, one done.
func seedScan(t *testing.T, db *storage.SQLite) string {
	t.Helper()
	id, err := db.Insert(context.Background(), resource.Resource{
		Type:   resource.TypeMonograph,
		Title:  "Scanned Monograph",
		Status: resource.StatusValid,
		Parts: []resource.Entry{
			{BibliographicEntryText: "Garfield, E. Citation indexing. 1979.", Status: resource.StatusOCRProcessed},
			{OCRData: resource.OCRData{Title: "Little Science, Big Science", Authors: []string{"Price"}}, Status: resource.StatusOCRProcessed},
			{BibliographicEntryText: "Already matched", Status: resource.StatusValid},
		},
	})
	require.NoError(t, err)
	return id
}

func seedOrphan(t *testing.T, db *storage.SQLite) string {
	t.Helper()
	id, err := db.Insert(context.Background(), resource.Resource{
		Type:        resource.TypeJournalArticle,
		Title:       "Linked Open Citation Data",
		Status:      resource.StatusValid,
		Identifiers: []resource.Identifier{{Scheme: resource.SchemeDOI, LiteralValue: "10.1007/s11192-018-1234-5"}},
	})
	require.NoError(t, err)
	return id
}

func journal() *resource.Resource {
	return &resource.Resource{
		Type:        resource.TypeJournal,
		Title:       "Scientometrics",
		Status:      resource.StatusExternal,
		Identifiers: []resource.Identifier{{Scheme: resource.SchemeISSN, LiteralValue: "0138-9130"}},
	}
}

func TestEntryQuery(t *testing.T) {
	assert.Equal(t, "raw text", EntryQuery(resource.Entry{BibliographicEntryText: "  raw text "}))
	assert.Equal(t, "Little Science Price de Solla",
		EntryQuery(resource.Entry{OCRData: resource.OCRData{Title: "Little  Science", Authors: []string{"Price", "de Solla"}}}))
	assert.Empty(t, EntryQuery(resource.Entry{}))
}

func TestListPendingEntriesActivity(t *testing.T) {
	db := openStore(t)
	id := seedScan(t, db)
	a := NewActivities(db, &fakeSuggester{}, nil, nil, 5, nil)

	out, err := a.ListPendingEntriesActivity(context.Background(), ListPendingInput{ResourceID: id})
	require.NoError(t, err)
	require.Len(t, out.Entries, 2)
	assert.Equal(t, "Garfield, E. Citation indexing. 1979.", out.Entries[0].Query)
	assert.Equal(t, "Little Science, Big Science Price", out.Entries[1].Query)
	assert.NotEmpty(t, out.Entries[0].EntryID)

	_, err = a.ListPendingEntriesActivity(context.Background(), ListPendingInput{ResourceID: "missing"})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSuggestForEntryActivity_CachesResults(t *testing.T) {
	db := openStore(t)
	s := &fakeSuggester{}
	a := NewActivities(db, s, nil, nil, 5, nil)

	out, err := a.SuggestForEntryActivity(context.Background(), SuggestInput{PendingEntry: PendingEntry{EntryID: "e1", Query: "citation indexing"}})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Suggestions)

	cached, err := db.LoadSuggestions(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "citation indexing", cached[0].Child.Title)
}

func TestLookupContainerActivity(t *testing.T) {
	db := openStore(t)
	orphan := seedOrphan(t, db)
	monograph := seedScan(t, db)
	ctx := context.Background()

	withParent := NewActivities(db, nil, fakeLookup{h: &resource.Hierarchy{Parent: journal()}}, nil, 5, nil)
	out, err := withParent.LookupContainerActivity(ctx, LookupContainerInput{ResourceID: orphan})
	require.NoError(t, err)
	require.NotNil(t, out.Parent)
	assert.Equal(t, "Scientometrics", out.Parent.Title)

	out, err = withParent.LookupContainerActivity(ctx, LookupContainerInput{ResourceID: monograph})
	require.NoError(t, err)
	assert.Nil(t, out.Parent)
	assert.Equal(t, "no DOI", out.Reason)

	noParent := NewActivities(db, nil, fakeLookup{h: &resource.Hierarchy{}}, nil, 5, nil)
	out, err = noParent.LookupContainerActivity(ctx, LookupContainerInput{ResourceID: orphan})
	require.NoError(t, err)
	assert.Equal(t, "no container registered", out.Reason)

	unconfigured := NewActivities(db, nil, nil, nil, 5, nil)
	out, err = unconfigured.LookupContainerActivity(ctx, LookupContainerInput{ResourceID: orphan})
	require.NoError(t, err)
	assert.Equal(t, "crossref not configured", out.Reason)

	failing := NewActivities(db, nil, fakeLookup{err: errors.New("503")}, nil, 5, nil)
	_, err = failing.LookupContainerActivity(ctx, LookupContainerInput{ResourceID: orphan})
	assert.Error(t, err)
}

func TestPrecalculateSuggestionsWorkflow(t *testing.T) {
	db := openStore(t)
	id := seedScan(t, db)
	s := &fakeSuggester{fail: "Little Science, Big Science Price"}

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PrecalculateSuggestionsWorkflow)
	env.RegisterActivity(NewActivities(db, s, nil, nil, 5, nil))

	env.ExecuteWorkflow(PrecalculateSuggestionsWorkflow, PrecalculateInput{ResourceID: id})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out PrecalculateOutput
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.Equal(t, PrecalculateOutput{Entries: 2, Stored: 1, Failed: 1}, out)
}

func TestPrecalculateSuggestionsWorkflow_MissingResource(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PrecalculateSuggestionsWorkflow)
	env.RegisterActivity(NewActivities(openStore(t), &fakeSuggester{}, nil, nil, 5, nil))

	env.ExecuteWorkflow(PrecalculateSuggestionsWorkflow, PrecalculateInput{ResourceID: "missing"})
	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
}

func TestRelinkOrphanWorkflow(t *testing.T) {
	db := openStore(t)
	orphan := seedOrphan(t, db)
	a := NewActivities(db, nil, fakeLookup{h: &resource.Hierarchy{Parent: journal()}}, curator.New(db), 5, nil)

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(RelinkOrphanWorkflow)
	env.RegisterActivity(a)

	env.ExecuteWorkflow(RelinkOrphanWorkflow, RelinkInput{ResourceID: orphan})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out RelinkOutput
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.True(t, out.Linked)
	require.NotEmpty(t, out.ParentID)

	stored, err := db.Get(context.Background(), orphan)
	require.NoError(t, err)
	assert.Equal(t, out.ParentID, stored.PartOf)
}

func TestRelinkOrphanWorkflow_NothingToLink(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(RelinkOrphanWorkflow)
	env.RegisterActivity(&Activities{})

	env.OnActivity(LookupContainerActivityName, mock.Anything, LookupContainerInput{ResourceID: "r1"}).
		Return(LookupContainerOutput{Reason: "no DOI"}, nil)

	env.ExecuteWorkflow(RelinkOrphanWorkflow, RelinkInput{ResourceID: "r1"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out RelinkOutput
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.Equal(t, RelinkOutput{Reason: "no DOI"}, out)
}

func TestTemporalScheduler(t *testing.T) {
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything,
		mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
			return o.ID == "precalculate-r1" && o.TaskQueue == "locdb-jobs"
		}),
		mock.Anything, PrecalculateInput{ResourceID: "r1"}).
		Return(&mocks.WorkflowRun{}, nil).Once()
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, RelinkInput{ResourceID: "r2"}).
		Return(nil, errors.New("unavailable")).Once()

	s := NewTemporalScheduler(c, "locdb-jobs", nil)
	require.NoError(t, s.Precalculate(context.Background(), "r1"))

	err := s.Relink(context.Background(), "r2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relink-r2")

	c.AssertExpectations(t)
}

func TestNoopScheduler(t *testing.T) {
	var s Scheduler = Noop{}
	assert.NoError(t, s.Precalculate(context.Background(), "r1"))
	assert.NoError(t, s.Relink(context.Background(), "r1"))
}
