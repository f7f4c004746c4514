package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/locdb/locdb/internal/resource"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLite is a document store on top of a single SQLite database file.
type SQLite struct {
	db *sql.DB
	q  querier
}

var (
	_ Store           = (*SQLite)(nil)
	_ Transactor      = (*SQLite)(nil)
	_ SuggestionCache = (*SQLite)(nil)
)

// busyTimeout is how long a writer waits for another process holding the
// write lock on the same file.
var busyTimeout = 5 * time.Second

// sqliteDSN opens path with immediate transactions, so WithTx takes the
// write lock when it begins rather than at its first write.
func sqliteDSN(path string) string {
	return fmt.Sprintf("%s?_txlock=immediate&_pragma=busy_timeout(%d)", path, busyTimeout.Milliseconds())
}

// OpenSQLite opens or creates a SQLite database at the given path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection serialises every writer, which also makes WithTx
	// exclusive for its duration.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLite{db: db, q: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS resources (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			part_of TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			doc TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_resources_title ON resources(title);
		CREATE INDEX IF NOT EXISTS idx_resources_part_of ON resources(part_of);

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
			scan_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			doc TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_entries_title ON entries(title, status);
		CREATE INDEX IF NOT EXISTS idx_entries_scan ON entries(scan_id, status);

		CREATE TABLE IF NOT EXISTS scans (
			id TEXT PRIMARY KEY,
			resource_id TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS suggestions (
			entry_id TEXT PRIMARY KEY,
			doc TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Full-text search over titles and authors (standalone table)
		CREATE VIRTUAL TABLE IF NOT EXISTS resources_fts USING fts5(
			id UNINDEXED,
			title,
			subtitle,
			authors_text
		);
	`

	_, err := db.Exec(schema)
	return err
}

// WithTx runs fn inside a single BEGIN IMMEDIATE transaction.
func (s *SQLite) WithTx(ctx context.Context, fn func(Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("begin", err)
	}
	if err := fn(&SQLite{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapErr("commit", err)
	}
	return nil
}

// Get retrieves a resource by its ID.
func (s *SQLite) Get(ctx context.Context, id string) (*resource.Resource, error) {
	row := s.q.QueryRowContext(ctx, `SELECT doc FROM resources WHERE id = ?`, id)
	r, err := scanResource(row)
	return r, wrapErr("get", err)
}

// FindByIdentifier returns every resource carrying the identifier.
func (s *SQLite) FindByIdentifier(ctx context.Context, scheme resource.Scheme, value string) ([]resource.Resource, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT r.doc FROM resources r
		WHERE r.id IN (SELECT resource_id FROM identifiers WHERE scheme = ? AND value = ?)
		ORDER BY r.id`, string(scheme), normalizeValue(scheme, value))
	if err != nil {
		return nil, wrapErr("find by identifier", err)
	}
	defer rows.Close()

	out, err := scanResources(rows)
	return out, wrapErr("find by identifier", err)
}

// FindByTitle returns resources whose title equals title.
func (s *SQLite) FindByTitle(ctx context.Context, title string, scope Scope) ([]resource.Resource, error) {
	query := `SELECT doc FROM resources WHERE title = ?`
	args := []any{title}
	if scope.Set {
		query += ` AND part_of = ?`
		args = append(args, scope.PartOf)
	}
	query += ` ORDER BY id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("find by title", err)
	}
	defer rows.Close()

	out, err := scanResources(rows)
	return out, wrapErr("find by title", err)
}

// FindEntriesByTitle returns embedded entries with the given title and status.
func (s *SQLite) FindEntriesByTitle(ctx context.Context, title string, status resource.Status) ([]resource.Entry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT doc FROM entries WHERE title = ? AND status = ? ORDER BY resource_id, rowid`,
		title, string(status))
	if err != nil {
		return nil, wrapErr("find entries by title", err)
	}
	defer rows.Close()

	out, err := scanEntries(rows)
	return out, wrapErr("find entries by title", err)
}

// ListEntries returns embedded entries matching filter.
func (s *SQLite) ListEntries(ctx context.Context, filter EntryFilter) ([]resource.Entry, error) {
	query := `SELECT doc FROM entries WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ScanID != "" {
		query += ` AND scan_id = ?`
		args = append(args, filter.ScanID)
	}
	query += ` ORDER BY resource_id, rowid`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list entries", err)
	}
	defer rows.Close()

	out, err := scanEntries(rows)
	return out, wrapErr("list entries", err)
}

// FindByEntryID returns the resource embedding the entry.
func (s *SQLite) FindByEntryID(ctx context.Context, entryID string) (*resource.Resource, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT r.doc FROM resources r JOIN entries e ON e.resource_id = r.id WHERE e.id = ?`, entryID)
	r, err := scanResource(row)
	return r, wrapErr("find by entry", err)
}

// FindByScanID returns the resource owning the scan.
func (s *SQLite) FindByScanID(ctx context.Context, scanID string) (*resource.Resource, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT r.doc FROM resources r JOIN scans sc ON sc.resource_id = r.id WHERE sc.id = ?`, scanID)
	r, err := scanResource(row)
	return r, wrapErr("find by scan", err)
}

// List returns resources matching filter.
func (s *SQLite) List(ctx context.Context, filter ListFilter) ([]resource.Resource, error) {
	query := `SELECT doc FROM resources WHERE 1=1`
	var args []any
	if filter.Query != "" {
		query += ` AND id IN (SELECT id FROM resources_fts WHERE resources_fts MATCH ?)`
		args = append(args, prepareFTSQuery(filter.Query))
	}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list", err)
	}
	defer rows.Close()

	out, err := scanResources(rows)
	return out, wrapErr("list", err)
}

// Insert stores a new resource.
func (s *SQLite) Insert(ctx context.Context, r resource.Resource) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	r = prepareDocument(r)
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	err := s.WithTx(ctx, func(tx Store) error {
		return tx.(*SQLite).write(ctx, r, true)
	})
	if err != nil {
		return "", wrapErr("insert", err)
	}
	return r.ID, nil
}

// Update replaces a stored resource.
func (s *SQLite) Update(ctx context.Context, id string, r resource.Resource) error {
	if err := r.Validate(); err != nil {
		return err
	}
	r = prepareDocument(r)
	r.ID = id

	err := s.WithTx(ctx, func(tx Store) error {
		return tx.(*SQLite).write(ctx, r, false)
	})
	return wrapErr("update", err)
}

// Delete removes a resource and its index rows.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	err := s.WithTx(ctx, func(tx Store) error {
		q := tx.(*SQLite).q
		if err := deleteIndex(ctx, q, id); err != nil {
			return err
		}
		res, err := q.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	return wrapErr("delete", err)
}

// Count returns the total number of resources.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources`).Scan(&count)
	return count, wrapErr("count", err)
}

// SaveSuggestions replaces the cached suggestions for an entry.
func (s *SQLite) SaveSuggestions(ctx context.Context, entryID string, suggestions []resource.Scored) error {
	doc, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("encoding suggestions: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO suggestions (entry_id, doc, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(entry_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		entryID, string(doc))
	return wrapErr("save suggestions", err)
}

// LoadSuggestions returns the cached suggestions for an entry, or nil.
func (s *SQLite) LoadSuggestions(ctx context.Context, entryID string) ([]resource.Scored, error) {
	var doc string
	err := s.q.QueryRowContext(ctx, `SELECT doc FROM suggestions WHERE entry_id = ?`, entryID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("load suggestions", err)
	}
	var out []resource.Scored
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, wrapErr("load suggestions", fmt.Errorf("decoding suggestions for %s: %w", entryID, err))
	}
	return out, nil
}

// write stores r and rebuilds its index rows. It must run inside WithTx.
func (s *SQLite) write(ctx context.Context, r resource.Resource, insert bool) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding resource %s: %w", r.ID, err)
	}

	if insert {
		_, err = s.q.ExecContext(ctx, `
			INSERT INTO resources (id, type, title, part_of, status, doc) VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, string(r.Type), r.Title, r.PartOf, string(r.Status), string(doc))
		if err != nil {
			return err
		}
	} else {
		res, err := s.q.ExecContext(ctx, `
			UPDATE resources SET type = ?, title = ?, part_of = ?, status = ?, doc = ? WHERE id = ?`,
			string(r.Type), r.Title, r.PartOf, string(r.Status), string(doc), r.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if err := deleteIndex(ctx, s.q, r.ID); err != nil {
			return err
		}
	}

	idx := deriveIndex(r)
	for _, id := range idx.identifiers {
		if _, err := s.q.ExecContext(ctx, `
			INSERT OR IGNORE INTO identifiers (resource_id, scheme, value) VALUES (?, ?, ?)`,
			r.ID, string(id.Scheme), id.LiteralValue); err != nil {
			return fmt.Errorf("indexing identifier %s: %w", id.Key(), err)
		}
	}
	for _, e := range idx.entries {
		entryDoc, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding entry %s: %w", e.ID, err)
		}
		if _, err := s.q.ExecContext(ctx, `
			INSERT INTO entries (id, resource_id, scan_id, title, status, doc) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, r.ID, e.ScanID, e.OCRData.Title, string(e.Status), string(entryDoc)); err != nil {
			return fmt.Errorf("indexing entry %s: %w", e.ID, err)
		}
	}
	for _, scanID := range idx.scanIDs {
		if _, err := s.q.ExecContext(ctx, `
			INSERT INTO scans (id, resource_id) VALUES (?, ?)`, scanID, r.ID); err != nil {
			return fmt.Errorf("indexing scan %s: %w", scanID, err)
		}
	}
	if _, err := s.q.ExecContext(ctx, `
		INSERT INTO resources_fts (id, title, subtitle, authors_text) VALUES (?, ?, ?, ?)`,
		r.ID, r.Title, r.Subtitle, idx.authorsText); err != nil {
		return fmt.Errorf("indexing text: %w", err)
	}
	return nil
}

func deleteIndex(ctx context.Context, q querier, id string) error {
	for _, stmt := range []string{
		`DELETE FROM identifiers WHERE resource_id = ?`,
		`DELETE FROM entries WHERE resource_id = ?`,
		`DELETE FROM scans WHERE resource_id = ?`,
		`DELETE FROM resources_fts WHERE id = ?`,
	} {
		if _, err := q.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	return nil
}

// prepareDocument returns a copy of r whose embedded entries all carry ids.
func prepareDocument(r resource.Resource) resource.Resource {
	r = resource.Clone(r)
	for i := range r.Parts {
		if r.Parts[i].ID == "" {
			r.Parts[i].ID = uuid.NewString()
		}
	}
	return r
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanResource(s scanner) (*resource.Resource, error) {
	var doc string
	if err := s.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var r resource.Resource
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("decoding resource: %w", err)
	}
	return &r, nil
}

func scanResources(rows *sql.Rows) ([]resource.Resource, error) {
	var out []resource.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, rows.Err()
}

func scanEntries(rows *sql.Rows) ([]resource.Entry, error) {
	var out []resource.Entry
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var e resource.Entry
		if err := json.Unmarshal([]byte(doc), &e); err != nil {
			return nil, fmt.Errorf("decoding entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// prepareFTSQuery escapes special characters for FTS5 queries.
func prepareFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	// FTS5 uses double quotes for phrase matching
	if strings.ContainsAny(query, "\"*+-:(){}[]^~") {
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}

	return query
}
