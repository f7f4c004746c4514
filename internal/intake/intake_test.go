package intake

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locdb/locdb/internal/curator"
	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/storage"
)

const articleDOI = "10.1007/s11192-018-1234-5"

type fakeCrossref struct {
	works    map[string]*resource.Hierarchy
	refs     []resource.Entry
	chapters []resource.Resource
	err      error
}

func (f *fakeCrossref) QueryByDOI(ctx context.Context, doi string) (*resource.Hierarchy, error) {
	if f.err != nil {
		return nil, f.err
	}
	h, ok := f.works[doi]
	if !ok {
		return nil, nil
	}
	c := resource.CloneHierarchy(*h)
	return &c, nil
}

func (f *fakeCrossref) QueryReferences(ctx context.Context, doi string) ([]resource.Entry, error) {
	return f.refs, nil
}

func (f *fakeCrossref) QueryChapterMetadata(ctx context.Context, containerTitle, firstPage, lastPage string) ([]resource.Resource, error) {
	return f.chapters, nil
}

type fakeCatalogue map[string]*resource.Hierarchy

func (f fakeCatalogue) QueryByPPN(ctx context.Context, ppn string) (*resource.Hierarchy, error) {
	h, ok := f[ppn]
	if !ok {
		return nil, nil
	}
	c := resource.CloneHierarchy(*h)
	return &c, nil
}

type recordingScheduler struct {
	precalculated []string
	relinked      []string
}

func (r *recordingScheduler) Precalculate(ctx context.Context, id string) error {
	r.precalculated = append(r.precalculated, id)
	return nil
}

func (r *recordingScheduler) Relink(ctx context.Context, id string) error {
	r.relinked = append(r.relinked, id)
	return nil
}

func setup(t *testing.T, cr *fakeCrossref, cat fakeCatalogue) (*Service, *storage.SQLite, *recordingScheduler) {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "intake.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sched := &recordingScheduler{}
	opts := []Option{WithScheduler(sched)}
	if cr != nil {
		opts = append(opts, WithCrossref(cr))
	}
	if cat != nil {
		opts = append(opts, WithCatalogue(cat))
	}
	return New(db, curator.New(db), opts...), db, sched
}

func article() *resource.Hierarchy {
	return &resource.Hierarchy{
		Child: resource.Resource{
			Type:        resource.TypeJournalArticle,
			Title:       "Linked Open Citation Data",
			Identifiers: []resource.Identifier{{Scheme: resource.SchemeDOI, LiteralValue: articleDOI}},
			Status:      resource.StatusExternal,
			Source:      resource.SourceCrossref,
		},
		Parent: &resource.Resource{
			Type:   resource.TypeJournalIssue,
			Title:  "Scientometrics",
			Number: "3",
			Status: resource.StatusExternal,
		},
		Source: resource.SourceCrossref,
	}
}

func doiRequest(doi string) Request {
	return Request{
		Identifier: resource.Identifier{Scheme: resource.SchemeDOI, LiteralValue: doi},
		Type:       resource.TypeJournalArticle,
	}
}

func TestSave_ArticleByDOI(t *testing.T) {
	s, db, sched := setup(t, &fakeCrossref{works: map[string]*resource.Hierarchy{articleDOI: article()}}, nil)
	ctx := context.Background()

	res, err := s.Save(ctx, doiRequest(articleDOI))
	require.NoError(t, err)
	assert.True(t, res.ChildCreated)
	assert.True(t, res.ParentCreated)
	require.NotNil(t, res.Hierarchy.Parent)
	assert.Equal(t, res.Hierarchy.Parent.ID, res.Hierarchy.Child.PartOf)
	assert.Equal(t, []string{res.Hierarchy.Child.ID}, sched.precalculated)
	assert.Empty(t, sched.relinked)

	n, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.Save(ctx, doiRequest(articleDOI))
	assert.ErrorIs(t, err, ErrExists)
}

func TestSave_UnknownDOIGetsSyntheticIssue(t *testing.T) {
	s, _, _ := setup(t, &fakeCrossref{}, nil)

	res, err := s.Save(context.Background(), doiRequest("10.9999/unknown"))
	require.NoError(t, err)
	require.NotNil(t, res.Hierarchy.Parent)
	assert.Equal(t, resource.TypeJournalIssue, res.Hierarchy.Parent.Type)
	v, ok := res.Hierarchy.Child.IdentifierValue(resource.SchemeDOI)
	assert.True(t, ok)
	assert.Equal(t, "10.9999/unknown", v)
}

func TestSave_OrphanSchedulesRelink(t *testing.T) {
	h := article()
	h.Parent = nil
	s, _, sched := setup(t, &fakeCrossref{works: map[string]*resource.Hierarchy{articleDOI: h}}, nil)

	res, err := s.Save(context.Background(), doiRequest(articleDOI))
	require.NoError(t, err)
	assert.True(t, res.Orphan)
	assert.Equal(t, []string{res.Hierarchy.Child.ID}, sched.relinked)
}

func TestSave_CrossrefFailure(t *testing.T) {
	s, db, sched := setup(t, &fakeCrossref{err: errors.New("503")}, nil)

	_, err := s.Save(context.Background(), doiRequest(articleDOI))
	require.Error(t, err)
	n, _ := db.Count(context.Background())
	assert.Zero(t, n)
	assert.Empty(t, sched.precalculated)
}

func TestSave_JournalByZDB(t *testing.T) {
	cat := fakeCatalogue{"011-4": {Child: resource.Resource{
		Type:        resource.TypeJournal,
		Title:       "Journal of Documentation",
		Identifiers: []resource.Identifier{{Scheme: resource.SchemeZDBPPN, LiteralValue: "011-4"}},
	}, Source: resource.SourceSWB}}
	s, _, _ := setup(t, nil, cat)

	req := Request{Identifier: resource.Identifier{Scheme: resource.SchemeZDBPPN, LiteralValue: "011-4"}, Type: resource.TypeJournal}
	res, err := s.Save(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Hierarchy.Child.ID)
	assert.Equal(t, resource.StatusValid, res.Hierarchy.Child.Status)

	_, err = s.Save(context.Background(), req)
	assert.ErrorIs(t, err, ErrExists)

	req.Identifier = resource.Identifier{Scheme: resource.SchemeISSN, LiteralValue: "0022-0418"}
	_, err = s.Save(context.Background(), req)
	assert.True(t, resource.IsValidation(err))
}

func TestSave_ChapterInBook(t *testing.T) {
	cat := fakeCatalogue{"123": {Child: resource.Resource{
		Type:        resource.TypeBook,
		Title:       "Handbook of Citation Analysis",
		Identifiers: []resource.Identifier{{Scheme: resource.SchemeSWBPPN, LiteralValue: "123"}},
	}, Source: resource.SourceSWB}}
	cr := &fakeCrossref{chapters: []resource.Resource{{Title: "Introduction"}}}
	s, _, _ := setup(t, cr, cat)

	req := Request{
		Identifier: resource.Identifier{Scheme: resource.SchemeSWBPPN, LiteralValue: "123"},
		Type:       resource.TypeBookChapter,
		FirstPage:  "1",
		LastPage:   "12",
	}
	res, err := s.Save(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Introduction", res.Hierarchy.Child.Title)
	assert.Equal(t, resource.TypeBookChapter, res.Hierarchy.Child.Type)
	require.Len(t, res.Hierarchy.Child.EmbodiedAs, 1)
	assert.Equal(t, "1", res.Hierarchy.Child.EmbodiedAs[0].FirstPage)
	require.NotNil(t, res.Hierarchy.Parent)
	assert.Equal(t, "Handbook of Citation Analysis", res.Hierarchy.Parent.Title)
}

func TestSave_MonographWithReferences(t *testing.T) {
	cat := fakeCatalogue{"456": {Child: resource.Resource{
		Type:  resource.TypeMonograph,
		Title: "Little Science, Big Science",
		Identifiers: []resource.Identifier{
			{Scheme: resource.SchemeSWBPPN, LiteralValue: "456"},
			{Scheme: resource.SchemeDOI, LiteralValue: "10.7312/pric91844"},
		},
	}, Source: resource.SourceSWB}}
	cr := &fakeCrossref{refs: []resource.Entry{{BibliographicEntryText: "Garfield 1955"}}}
	s, _, _ := setup(t, cr, cat)

	res, err := s.Save(context.Background(), Request{
		Identifier: resource.Identifier{Scheme: resource.SchemeSWBPPN, LiteralValue: "456"},
		Type:       resource.TypeMonograph,
	})
	require.NoError(t, err)
	require.Len(t, res.Hierarchy.Child.Parts, 1)
	assert.Equal(t, resource.StatusOCRProcessed, res.Hierarchy.Child.Parts[0].Status)
	assert.False(t, res.Orphan)
}

func TestSave_Errors(t *testing.T) {
	s, _, _ := setup(t, nil, fakeCatalogue{})
	ctx := context.Background()

	_, err := s.Save(ctx, doiRequest("not-a-doi"))
	assert.True(t, resource.IsValidation(err), "malformed DOI")

	_, err = s.Save(ctx, Request{Identifier: resource.Identifier{Scheme: resource.SchemeDOI, LiteralValue: articleDOI}, Type: "PAMPHLET"})
	assert.True(t, resource.IsValidation(err), "unknown type")

	_, err = s.Save(ctx, Request{Identifier: resource.Identifier{Scheme: resource.SchemeDOI, LiteralValue: articleDOI}, Type: resource.TypeDataset})
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, err = s.Save(ctx, Request{Identifier: resource.Identifier{Scheme: resource.SchemeOLCPPN, LiteralValue: "1"}, Type: resource.TypeJournalArticle})
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, err = s.Save(ctx, doiRequest(articleDOI))
	assert.ErrorIs(t, err, ErrNoCatalogue)

	_, err = s.Save(ctx, Request{Identifier: resource.Identifier{Scheme: resource.SchemeSWBPPN, LiteralValue: "missing"}, Type: resource.TypeBook})
	assert.ErrorIs(t, err, ErrNoMetadata)
}
