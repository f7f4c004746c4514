package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locdb/locdb/internal/resource"
)

func TestQueryBuilder(t *testing.T) {
	var b queryBuilder
	b.sql = `SELECT doc FROM resources WHERE title=` + b.arg("x")
	b.sql += ` AND part_of=` + b.arg("p")
	b.sql += ` LIMIT ` + b.arg(5)

	assert.Equal(t, `SELECT doc FROM resources WHERE title=$1 AND part_of=$2 LIMIT $3`, b.sql)
	assert.Equal(t, []any{"x", "p", 5}, b.args)
}

// TestPostgres_RoundTrip runs against a live database when
// LOCDB_TEST_POSTGRES_DSN is set.
func TestPostgres_RoundTrip(t *testing.T) {
	dsn := os.Getenv("LOCDB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LOCDB_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	db, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	id, err := db.Insert(ctx, resource.Resource{
		Type:        resource.TypeJournal,
		Title:       "Postgres Round Trip",
		Identifiers: []resource.Identifier{{Scheme: resource.SchemeISSN, LiteralValue: "1234-5678"}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Delete(ctx, id) })

	got, err := db.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Postgres Round Trip", got.Title)

	found, err := db.FindByIdentifier(ctx, resource.SchemeISSN, "1234-5678")
	require.NoError(t, err)
	assert.NotEmpty(t, found)

	assert.ErrorIs(t, db.Update(ctx, "missing-"+id, *got), ErrNotFound)
}
