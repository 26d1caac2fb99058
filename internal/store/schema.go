package store

// schemaSQL defines the type database schema.
var schemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS functions (
		name VARCHAR(512) PRIMARY KEY,
		signature TEXT,                 -- raw C declaration text, NULL until set
		stale BOOLEAN NOT NULL DEFAULT FALSE, -- needs reanalysis
		updated_at VARCHAR(64)
	)`,
	`CREATE TABLE IF NOT EXISTS types (
		name VARCHAR(512) PRIMARY KEY,
		source TEXT NOT NULL,           -- raw C definition text
		stub BOOLEAN NOT NULL DEFAULT FALSE,  -- empty placeholder
		defined_at VARCHAR(64)
	)`,
}

func (s *Store) initSchema() error {
	for _, stmt := range schemaSQL {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
