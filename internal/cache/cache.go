// Package cache provides SQLite-backed caching of per-file extraction
// results. The cache is stored in .hq/cache.db, keyed by file path and
// invalidated by mtime and size, so unchanged headers skip parsing on
// repeat runs.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/interruptlabs/header-query-bn/internal/extract"
)

// Cache manages the .hq/cache.db SQLite database.
type Cache struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the cache database under the given .hq
// directory, initializing the schema if new.
func Open(hqDir string) (*Cache, error) {
	if err := os.MkdirAll(hqDir, 0755); err != nil {
		return nil, fmt.Errorf("create .hq directory: %w", err)
	}
	dbPath := filepath.Join(hqDir, "cache.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	// WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	c := &Cache{db: db, dbPath: dbPath}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return c, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Clear removes all cached extraction results.
func (c *Cache) Clear() error {
	if _, err := c.db.Exec("DELETE FROM extractions"); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.dbPath
}

// Get returns the cached result for path when the stored mtime and
// size still match the file on disk. ok is false on miss or stale.
func (c *Cache) Get(path string) (res *extract.FileResult, ok bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, fmt.Errorf("stat %s: %w", path, err)
	}

	var mtime int64
	var size int64
	var recordsJSON, errorsJSON string
	row := c.db.QueryRow(
		`SELECT mtime_unix, size, records, errors FROM extractions WHERE file_path = ?`, path)
	if err := row.Scan(&mtime, &size, &recordsJSON, &errorsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache row: %w", err)
	}
	if mtime != info.ModTime().Unix() || size != info.Size() {
		return nil, false, nil
	}

	res = &extract.FileResult{}
	if err := json.Unmarshal([]byte(recordsJSON), &res.Records); err != nil {
		// Corrupt row; treat as a miss so the file is re-extracted.
		return nil, false, nil
	}
	if errorsJSON != "" {
		if err := json.Unmarshal([]byte(errorsJSON), &res.Errors); err != nil {
			return nil, false, nil
		}
	}
	return res, true, nil
}

// Put stores the extraction result for path keyed by its current mtime
// and size.
func (c *Cache) Put(path string, res *extract.FileResult) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	recordsJSON, err := json.Marshal(res.Records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	errorsJSON, err := json.Marshal(res.Errors)
	if err != nil {
		return fmt.Errorf("encode errors: %w", err)
	}

	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO extractions (file_path, mtime_unix, size, records, errors, cached_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		path, info.ModTime().Unix(), info.Size(), string(recordsJSON), string(errorsJSON),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write cache row: %w", err)
	}
	return nil
}

// Stats returns cache statistics.
type Stats struct {
	Entries int64
}

// GetStats returns statistics about the cache contents.
func (c *Cache) GetStats() (*Stats, error) {
	var stats Stats
	if err := c.db.QueryRow("SELECT COUNT(*) FROM extractions").Scan(&stats.Entries); err != nil {
		return nil, fmt.Errorf("count extractions: %w", err)
	}
	return &stats, nil
}
