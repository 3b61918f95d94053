// internal/index/cache.go
package index

import (
	"database/sql"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"chronicle/internal/store"
)

// Cache is a SQLite-backed listing cache: session metadata keyed by file path
// and mtime, so re-listing a large project directory only re-scans files that
// changed. The cache is advisory; the store falls back to scanning on miss.
type Cache struct {
	db *sql.DB
}

// Open creates or opens the cache database at the given path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	c := &Cache{db: db}
	if err := c.init(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_meta (
		path TEXT PRIMARY KEY,
		mtime INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		preview TEXT,
		slug TEXT,
		custom_title TEXT,
		message_count INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_session_meta_session ON session_meta(session_id);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Get returns the cached metadata for a session file if its mtime still
// matches.
func (c *Cache) Get(path string, mtime time.Time) (*store.StoredSession, bool) {
	row := c.db.QueryRow(
		`SELECT session_id, preview, slug, custom_title, message_count
		 FROM session_meta WHERE path = ? AND mtime = ?`,
		path, mtime.UnixNano(),
	)

	var sess store.StoredSession
	var preview, slug, title sql.NullString
	if err := row.Scan(&sess.ID, &preview, &slug, &title, &sess.MessageCount); err != nil {
		return nil, false
	}
	sess.Timestamp = mtime
	sess.Preview = preview.String
	sess.Slug = slug.String
	sess.CustomTitle = title.String
	return &sess, true
}

// Put stores or refreshes the metadata for a session file.
func (c *Cache) Put(path string, mtime time.Time, sess *store.StoredSession) {
	_, err := c.db.Exec(
		`INSERT INTO session_meta (path, mtime, session_id, preview, slug, custom_title, message_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			mtime = excluded.mtime,
			preview = excluded.preview,
			slug = excluded.slug,
			custom_title = excluded.custom_title,
			message_count = excluded.message_count,
			updated_at = CURRENT_TIMESTAMP`,
		path, mtime.UnixNano(), sess.ID, sess.Preview, sess.Slug, sess.CustomTitle, sess.MessageCount,
	)
	if err != nil {
		log.Printf("[Index] Failed to cache session metadata for %s: %v", path, err)
	}
}

// Evict drops the cached row for a session file, e.g. after delete.
func (c *Cache) Evict(path string) error {
	_, err := c.db.Exec(`DELETE FROM session_meta WHERE path = ?`, path)
	return err
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
