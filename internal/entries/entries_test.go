package entries

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locdb/locdb/internal/resource"
	"github.com/locdb/locdb/internal/storage"
)

type fixture struct {
	svc    *Service
	db     *storage.SQLite
	brID   string
	scanID string
	todoID string
	doneID string
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "entries.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := fixture{
		db:     db,
		scanID: uuid.NewString(),
		todoID: uuid.NewString(),
		doneID: uuid.NewString(),
	}
	f.brID, err = db.Insert(context.Background(), resource.Resource{
		Type:  resource.TypeMonograph,
		Title: "Scanned Book",
		EmbodiedAs: []resource.Embodiment{{
			Scans: []resource.Scan{{ID: f.scanID, ScanName: "p1.png", Status: resource.StatusOCRProcessed}},
		}},
		Parts: []resource.Entry{
			{ID: f.todoID, ScanID: f.scanID, Marker: "1", Status: resource.StatusOCRProcessed,
				OCRData: resource.OCRData{Title: "Wrongly Segmented"}},
			{ID: f.doneID, ScanID: f.scanID, Marker: "2", Status: resource.StatusValid,
				OCRData: resource.OCRData{Title: "Checked"}},
		},
	})
	require.NoError(t, err)

	f.svc = New(db, nil)
	return f
}

func TestToDo(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	all, err := f.svc.ToDo(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, f.todoID, all[0].ID)

	byScan, err := f.svc.ToDo(ctx, f.scanID)
	require.NoError(t, err)
	assert.Len(t, byScan, 1)

	none, err := f.svc.ToDo(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = f.svc.ToDo(ctx, "not-a-uuid")
	assert.True(t, resource.IsValidation(err))
}

func TestUpdate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	title := "Correct Title"
	status := resource.StatusValid
	got, err := f.svc.Update(ctx, f.todoID, Patch{Title: &title, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Correct Title", got.OCRData.Title)
	assert.Equal(t, resource.StatusValid, got.Status)
	assert.Equal(t, "1", got.Marker)

	stored, err := f.svc.Get(ctx, f.todoID)
	require.NoError(t, err)
	assert.Equal(t, "Correct Title", stored.OCRData.Title)

	todo, err := f.svc.ToDo(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, todo)
}

func TestUpdate_Errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Update(ctx, uuid.NewString(), Patch{})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	bad := resource.Status("DONE")
	_, err = f.svc.Update(ctx, f.todoID, Patch{Status: &bad})
	assert.True(t, resource.IsValidation(err))

	// Taking a marker another live entry holds is rejected.
	marker := "2"
	_, err = f.svc.Update(ctx, f.todoID, Patch{Marker: &marker})
	assert.True(t, resource.IsValidation(err))

	obsolete := resource.StatusObsolete
	_, err = f.svc.Update(ctx, f.todoID, Patch{Status: &obsolete})
	require.NoError(t, err)
	valid := resource.StatusValid
	_, err = f.svc.Update(ctx, f.todoID, Patch{Status: &valid})
	assert.True(t, resource.IsValidation(err))
}

func TestCorrect_RetiresOldEntry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	replacement := resource.Entry{
		ID:      "ignored",
		Marker:  "1",
		Status:  resource.StatusValid,
		OCRData: resource.OCRData{Title: "Properly Segmented"},
	}
	got, err := f.svc.Correct(ctx, f.scanID, f.todoID, replacement)
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", got.ID)
	assert.Equal(t, f.scanID, got.ScanID)
	assert.Equal(t, resource.StatusOCRProcessed, got.Status)

	br, err := f.db.Get(ctx, f.brID)
	require.NoError(t, err)
	require.Len(t, br.Parts, 3)
	assert.Equal(t, resource.StatusObsolete, br.Parts[br.EntryIndex(f.todoID)].Status)

	todo, err := f.svc.ToDo(ctx, f.scanID)
	require.NoError(t, err)
	require.Len(t, todo, 1)
	assert.Equal(t, got.ID, todo[0].ID)
}

func TestCorrect_Errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Correct(ctx, uuid.NewString(), "", resource.Entry{})
	assert.ErrorIs(t, err, ErrScanNotFound)

	_, err = f.svc.Correct(ctx, f.scanID, uuid.NewString(), resource.Entry{})
	assert.ErrorIs(t, err, ErrEntryNotFound)

	_, err = f.svc.Correct(ctx, "scan", "", resource.Entry{})
	assert.True(t, resource.IsValidation(err))

	// Without retiring entry 1 the replacement would share its slot.
	_, err = f.svc.Correct(ctx, f.scanID, "", resource.Entry{Marker: "1"})
	assert.True(t, resource.IsValidation(err))
}
