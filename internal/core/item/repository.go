package item

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"synapse/internal/logger"
)

// ErrNotFound is returned when a requested item does not exist.
var ErrNotFound = errors.New("item not found")

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	raw_content TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT '{}',
	keywords    TEXT NOT NULL DEFAULT '[]',
	tags        TEXT NOT NULL DEFAULT '[]',
	image       TEXT NOT NULL DEFAULT '',
	voice       TEXT,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_type ON items(type);
CREATE INDEX IF NOT EXISTS idx_items_created_at ON items(created_at DESC);
`

// Repository is the SQLite-backed item store.
type Repository struct {
	db  *sql.DB
	log *logger.Logger
}

// Open opens (or creates) the item database in dataDir and applies the
// schema. Pass ":memory:" for an in-memory database (used by tests).
func Open(dataDir string) (*Repository, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "synapse.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Single connection avoids "database is locked" under concurrent writes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Repository{db: db, log: logger.New("ItemRepo")}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error { return r.db.Close() }

// HealthCheck verifies the database responds.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create persists a new item. CreatedAt/UpdatedAt are set when zero.
func (r *Repository) Create(ctx context.Context, it *Item) error {
	now := time.Now().UTC()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	if it.UpdatedAt.IsZero() {
		it.UpdatedAt = it.CreatedAt
	}
	meta, keywords, tags, voice, err := marshalFields(it)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO items (id, type, raw_content, url, metadata, keywords, tags, image, voice, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.Type, it.RawContent, it.URL, meta, keywords, tags, it.Image, voice, it.CreatedAt, it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting item %s: %w", it.ID, err)
	}
	return nil
}

// Update rewrites an existing item and refreshes UpdatedAt.
func (r *Repository) Update(ctx context.Context, it *Item) error {
	it.UpdatedAt = time.Now().UTC()
	meta, keywords, tags, voice, err := marshalFields(it)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE items SET type=?, raw_content=?, url=?, metadata=?, keywords=?, tags=?, image=?, voice=?, updated_at=?
		WHERE id=?`,
		it.Type, it.RawContent, it.URL, meta, keywords, tags, it.Image, voice, it.UpdatedAt, it.ID)
	if err != nil {
		return fmt.Errorf("updating item %s: %w", it.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns one item by id, or ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*Item, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, raw_content, url, metadata, keywords, tags, image, voice, created_at, updated_at
		FROM items WHERE id=?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return it, err
}

// Delete removes one item by id, or returns ErrNotFound.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("deleting item %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns items newest first. An empty typeFilter returns everything.
func (r *Repository) List(ctx context.Context, typeFilter string) ([]Item, error) {
	query := `SELECT id, type, raw_content, url, metadata, keywords, tags, image, voice, created_at, updated_at
		FROM items`
	args := []interface{}{}
	if typeFilter != "" {
		query += ` WHERE type=?`
		args = append(args, typeFilter)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// Stats returns aggregate counts over the stored collection.
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByType: map[string]int{}}

	rows, err := r.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM items GROUP BY type`)
	if err != nil {
		return stats, fmt.Errorf("counting items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return stats, err
		}
		stats.ByType[t] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	var latest, oldest sql.NullTime
	if err := r.db.QueryRowContext(ctx,
		`SELECT MAX(created_at), MIN(created_at) FROM items`).Scan(&latest, &oldest); err != nil {
		return stats, err
	}
	if latest.Valid {
		stats.LatestDate = &latest.Time
	}
	if oldest.Valid {
		stats.OldestDate = &oldest.Time
	}
	return stats, nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanItem(row scannable) (*Item, error) {
	var it Item
	var meta, keywords, tags string
	var voice sql.NullString
	if err := row.Scan(&it.ID, &it.Type, &it.RawContent, &it.URL, &meta, &keywords, &tags,
		&it.Image, &voice, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(meta), &it.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata for %s: %w", it.ID, err)
	}
	if err := json.Unmarshal([]byte(keywords), &it.Keywords); err != nil {
		return nil, fmt.Errorf("decoding keywords for %s: %w", it.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &it.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags for %s: %w", it.ID, err)
	}
	if voice.Valid && voice.String != "" {
		it.Voice = &VoiceAnalysis{}
		if err := json.Unmarshal([]byte(voice.String), it.Voice); err != nil {
			return nil, fmt.Errorf("decoding voice analysis for %s: %w", it.ID, err)
		}
	}
	return &it, nil
}

func marshalFields(it *Item) (meta, keywords, tags string, voice interface{}, err error) {
	mb, err := json.Marshal(it.Metadata)
	if err != nil {
		return "", "", "", nil, fmt.Errorf("encoding metadata: %w", err)
	}
	if it.Keywords == nil {
		it.Keywords = []string{}
	}
	kb, err := json.Marshal(it.Keywords)
	if err != nil {
		return "", "", "", nil, fmt.Errorf("encoding keywords: %w", err)
	}
	if it.Tags == nil {
		it.Tags = []string{}
	}
	tb, err := json.Marshal(it.Tags)
	if err != nil {
		return "", "", "", nil, fmt.Errorf("encoding tags: %w", err)
	}
	var v interface{}
	if it.Voice != nil {
		vb, err := json.Marshal(it.Voice)
		if err != nil {
			return "", "", "", nil, fmt.Errorf("encoding voice analysis: %w", err)
		}
		v = string(vb)
	}
	return string(mb), string(kb), string(tb), v, nil
}
