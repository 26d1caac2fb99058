package cache

// schemaSQL defines the SQLite schema for the extraction cache.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS extractions (
    file_path TEXT PRIMARY KEY,
    mtime_unix INTEGER NOT NULL,
    size INTEGER NOT NULL,
    records TEXT NOT NULL,            -- JSON array of extraction records
    errors TEXT NOT NULL,             -- JSON array of parse-error snippets
    cached_at TEXT NOT NULL
);
`

func (c *Cache) initSchema() error {
	_, err := c.db.Exec(schemaSQL)
	return err
}
