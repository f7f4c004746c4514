package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/locdb/locdb/internal/resource"
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is a document store on top of a PostgreSQL database. Documents
// are kept as jsonb next to the same index tables the SQLite store uses.
type Postgres struct {
	pool *pgxpool.Pool
	q    pgQuerier
	inTx bool
}

var (
	_ Store           = (*Postgres)(nil)
	_ Transactor      = (*Postgres)(nil)
	_ SuggestionCache = (*Postgres)(nil)
)

// OpenPostgres connects to dsn and creates the schema if needed.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Postgres{pool: pool, q: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS resources (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  subtitle TEXT NOT NULL DEFAULT '',
  authors_text TEXT NOT NULL DEFAULT '',
  part_of TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT '',
  doc JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resources_title ON resources(title);
CREATE INDEX IF NOT EXISTS idx_resources_part_of ON resources(part_of);
CREATE INDEX IF NOT EXISTS idx_resources_fts ON resources
  USING GIN (to_tsvector('simple', title || ' ' || subtitle || ' ' || authors_text));

CREATE TABLE IF NOT EXISTS identifiers (
  resource_id TEXT NOT NULL,
  scheme TEXT NOT NULL,
  value TEXT NOT NULL,
  UNIQUE (resource_id, scheme, value)
);
CREATE INDEX IF NOT EXISTS idx_identifiers_lookup ON identifiers(scheme, value);

CREATE TABLE IF NOT EXISTS entries (
  id TEXT PRIMARY KEY,
  resource_id TEXT NOT NULL,
  position INT NOT NULL,
  scan_id TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT '',
  doc JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_title ON entries(title, status);
CREATE INDEX IF NOT EXISTS idx_entries_scan ON entries(scan_id, status);

CREATE TABLE IF NOT EXISTS scans (
  id TEXT PRIMARY KEY,
  resource_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS suggestions (
  entry_id TEXT PRIMARY KEY,
  doc JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// WithTx runs fn inside a serializable transaction.
func (p *Postgres) WithTx(ctx context.Context, fn func(Store) error) error {
	if p.inTx {
		return fn(p)
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return wrapErr("begin", err)
	}
	if err := fn(&Postgres{pool: p.pool, q: tx, inTx: true}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapErr("commit", err)
	}
	return nil
}

// Get retrieves a resource by its ID.
func (p *Postgres) Get(ctx context.Context, id string) (*resource.Resource, error) {
	r, err := pgScanResource(p.q.QueryRow(ctx, `SELECT doc FROM resources WHERE id=$1`, id))
	return r, wrapErr("get", err)
}

// FindByIdentifier returns every resource carrying the identifier.
func (p *Postgres) FindByIdentifier(ctx context.Context, scheme resource.Scheme, value string) ([]resource.Resource, error) {
	out, err := p.queryResources(ctx, `
SELECT r.doc FROM resources r
WHERE r.id IN (SELECT resource_id FROM identifiers WHERE scheme=$1 AND value=$2)
ORDER BY r.id`, string(scheme), normalizeValue(scheme, value))
	return out, wrapErr("find by identifier", err)
}

// FindByTitle returns resources whose title equals title.
func (p *Postgres) FindByTitle(ctx context.Context, title string, scope Scope) ([]resource.Resource, error) {
	var b queryBuilder
	b.sql = `SELECT doc FROM resources WHERE title=` + b.arg(title)
	if scope.Set {
		b.sql += ` AND part_of=` + b.arg(scope.PartOf)
	}
	b.sql += ` ORDER BY id`

	out, err := p.queryResources(ctx, b.sql, b.args...)
	return out, wrapErr("find by title", err)
}

// FindEntriesByTitle returns embedded entries with the given title and status.
func (p *Postgres) FindEntriesByTitle(ctx context.Context, title string, status resource.Status) ([]resource.Entry, error) {
	out, err := p.queryEntries(ctx, `
SELECT doc FROM entries WHERE title=$1 AND status=$2 ORDER BY resource_id, position`,
		title, string(status))
	return out, wrapErr("find entries by title", err)
}

// ListEntries returns embedded entries matching filter.
func (p *Postgres) ListEntries(ctx context.Context, filter EntryFilter) ([]resource.Entry, error) {
	var b queryBuilder
	b.sql = `SELECT doc FROM entries WHERE TRUE`
	if filter.Status != "" {
		b.sql += ` AND status=` + b.arg(string(filter.Status))
	}
	if filter.ScanID != "" {
		b.sql += ` AND scan_id=` + b.arg(filter.ScanID)
	}
	b.sql += ` ORDER BY resource_id, position`
	if filter.Limit > 0 {
		b.sql += ` LIMIT ` + b.arg(filter.Limit)
	}

	out, err := p.queryEntries(ctx, b.sql, b.args...)
	return out, wrapErr("list entries", err)
}

// FindByEntryID returns the resource embedding the entry.
func (p *Postgres) FindByEntryID(ctx context.Context, entryID string) (*resource.Resource, error) {
	r, err := pgScanResource(p.q.QueryRow(ctx, `
SELECT r.doc FROM resources r JOIN entries e ON e.resource_id = r.id WHERE e.id=$1`, entryID))
	return r, wrapErr("find by entry", err)
}

// FindByScanID returns the resource owning the scan.
func (p *Postgres) FindByScanID(ctx context.Context, scanID string) (*resource.Resource, error) {
	r, err := pgScanResource(p.q.QueryRow(ctx, `
SELECT r.doc FROM resources r JOIN scans sc ON sc.resource_id = r.id WHERE sc.id=$1`, scanID))
	return r, wrapErr("find by scan", err)
}

// List returns resources matching filter.
func (p *Postgres) List(ctx context.Context, filter ListFilter) ([]resource.Resource, error) {
	var b queryBuilder
	b.sql = `SELECT doc FROM resources WHERE TRUE`
	if filter.Query != "" {
		b.sql += ` AND to_tsvector('simple', title || ' ' || subtitle || ' ' || authors_text) @@ plainto_tsquery('simple', ` + b.arg(filter.Query) + `)`
	}
	if filter.Type != "" {
		b.sql += ` AND type=` + b.arg(string(filter.Type))
	}
	if filter.Status != "" {
		b.sql += ` AND status=` + b.arg(string(filter.Status))
	}
	b.sql += ` ORDER BY id`
	if filter.Limit > 0 {
		b.sql += ` LIMIT ` + b.arg(filter.Limit)
	}

	out, err := p.queryResources(ctx, b.sql, b.args...)
	return out, wrapErr("list", err)
}

// Insert stores a new resource.
func (p *Postgres) Insert(ctx context.Context, r resource.Resource) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	r = prepareDocument(r)
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	err := p.WithTx(ctx, func(tx Store) error {
		return tx.(*Postgres).write(ctx, r, true)
	})
	if err != nil {
		return "", wrapErr("insert", err)
	}
	return r.ID, nil
}

// Update replaces a stored resource.
func (p *Postgres) Update(ctx context.Context, id string, r resource.Resource) error {
	if err := r.Validate(); err != nil {
		return err
	}
	r = prepareDocument(r)
	r.ID = id

	err := p.WithTx(ctx, func(tx Store) error {
		return tx.(*Postgres).write(ctx, r, false)
	})
	return wrapErr("update", err)
}

// Delete removes a resource and its index rows.
func (p *Postgres) Delete(ctx context.Context, id string) error {
	err := p.WithTx(ctx, func(tx Store) error {
		q := tx.(*Postgres).q
		if err := pgDeleteIndex(ctx, q, id); err != nil {
			return err
		}
		tag, err := q.Exec(ctx, `DELETE FROM resources WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	return wrapErr("delete", err)
}

// Count returns the total number of resources.
func (p *Postgres) Count(ctx context.Context) (int, error) {
	var count int
	err := p.q.QueryRow(ctx, `SELECT COUNT(*) FROM resources`).Scan(&count)
	return count, wrapErr("count", err)
}

// SaveSuggestions replaces the cached suggestions for an entry.
func (p *Postgres) SaveSuggestions(ctx context.Context, entryID string, suggestions []resource.Scored) error {
	doc, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("encoding suggestions: %w", err)
	}
	_, err = p.q.Exec(ctx, `
INSERT INTO suggestions (entry_id, doc, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (entry_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		entryID, doc)
	return wrapErr("save suggestions", err)
}

// LoadSuggestions returns the cached suggestions for an entry, or nil.
func (p *Postgres) LoadSuggestions(ctx context.Context, entryID string) ([]resource.Scored, error) {
	var doc []byte
	err := p.q.QueryRow(ctx, `SELECT doc FROM suggestions WHERE entry_id=$1`, entryID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("load suggestions", err)
	}
	var out []resource.Scored
	if err := json.Unmarshal(doc, &out); err != nil {
		return nil, wrapErr("load suggestions", fmt.Errorf("decoding suggestions for %s: %w", entryID, err))
	}
	return out, nil
}

func (p *Postgres) write(ctx context.Context, r resource.Resource, insert bool) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding resource %s: %w", r.ID, err)
	}
	idx := deriveIndex(r)

	if insert {
		_, err = p.q.Exec(ctx, `
INSERT INTO resources (id, type, title, subtitle, authors_text, part_of, status, doc)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			r.ID, string(r.Type), r.Title, r.Subtitle, idx.authorsText, r.PartOf, string(r.Status), doc)
		if err != nil {
			return err
		}
	} else {
		tag, err := p.q.Exec(ctx, `
UPDATE resources SET type=$2, title=$3, subtitle=$4, authors_text=$5, part_of=$6, status=$7, doc=$8
WHERE id=$1`,
			r.ID, string(r.Type), r.Title, r.Subtitle, idx.authorsText, r.PartOf, string(r.Status), doc)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if err := pgDeleteIndex(ctx, p.q, r.ID); err != nil {
			return err
		}
	}

	for _, id := range idx.identifiers {
		if _, err := p.q.Exec(ctx, `
INSERT INTO identifiers (resource_id, scheme, value) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			r.ID, string(id.Scheme), id.LiteralValue); err != nil {
			return fmt.Errorf("indexing identifier %s: %w", id.Key(), err)
		}
	}
	for i, e := range idx.entries {
		entryDoc, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding entry %s: %w", e.ID, err)
		}
		if _, err := p.q.Exec(ctx, `
INSERT INTO entries (id, resource_id, position, scan_id, title, status, doc) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.ID, r.ID, i, e.ScanID, e.OCRData.Title, string(e.Status), entryDoc); err != nil {
			return fmt.Errorf("indexing entry %s: %w", e.ID, err)
		}
	}
	for _, scanID := range idx.scanIDs {
		if _, err := p.q.Exec(ctx, `INSERT INTO scans (id, resource_id) VALUES ($1, $2)`, scanID, r.ID); err != nil {
			return fmt.Errorf("indexing scan %s: %w", scanID, err)
		}
	}
	return nil
}

func (p *Postgres) queryResources(ctx context.Context, sql string, args ...any) ([]resource.Resource, error) {
	rows, err := p.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []resource.Resource
	for rows.Next() {
		r, err := pgScanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (p *Postgres) queryEntries(ctx context.Context, sql string, args ...any) ([]resource.Entry, error) {
	rows, err := p.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []resource.Entry
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var e resource.Entry
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, fmt.Errorf("decoding entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func pgDeleteIndex(ctx context.Context, q pgQuerier, id string) error {
	for _, stmt := range []string{
		`DELETE FROM identifiers WHERE resource_id=$1`,
		`DELETE FROM entries WHERE resource_id=$1`,
		`DELETE FROM scans WHERE resource_id=$1`,
	} {
		if _, err := q.Exec(ctx, stmt, id); err != nil {
			return err
		}
	}
	return nil
}

// pgScanResource decodes one document row. A missing row yields nil, nil.
func pgScanResource(row pgx.Row) (*resource.Resource, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var r resource.Resource
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("decoding resource: %w", err)
	}
	return &r, nil
}

// queryBuilder numbers positional parameters as they are appended.
type queryBuilder struct {
	sql  string
	args []any
}

func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}
