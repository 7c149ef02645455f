package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database connection at the given path.
// It enables foreign keys and sets connection pool settings.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys (disabled by default in SQLite)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate runs database migrations to create the required tables.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS policy_chunks (
			id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			text TEXT NOT NULL,
			policy_source TEXT NOT NULL,
			policy_section TEXT NOT NULL,
			policy_path TEXT NOT NULL,
			policy_section_level TEXT NOT NULL,
			region TEXT NOT NULL DEFAULT 'global',
			content_type TEXT NOT NULL DEFAULT 'general',
			doc_url TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_policy_chunks_doc_id ON policy_chunks(doc_id);`,
		`CREATE INDEX IF NOT EXISTS idx_policy_chunks_source ON policy_chunks(policy_source);`,
		`CREATE INDEX IF NOT EXISTS idx_policy_chunks_section ON policy_chunks(policy_section);`,
		`CREATE INDEX IF NOT EXISTS idx_policy_chunks_region ON policy_chunks(region);`,
		`CREATE INDEX IF NOT EXISTS idx_policy_chunks_content_type ON policy_chunks(content_type);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
