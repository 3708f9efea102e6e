package cache

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database that keeps session cookies between runs.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database and runs migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS cookies (
			host TEXT NOT NULL,
			name TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '/',
			value TEXT NOT NULL,
			domain TEXT NOT NULL DEFAULT '',
			expires_unix INTEGER NOT NULL,
			secure INTEGER DEFAULT 0,
			http_only INTEGER DEFAULT 0,
			saved_at INTEGER NOT NULL,
			PRIMARY KEY (host, name, path)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cookies_expires ON cookies(expires_unix)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("executing migration: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
