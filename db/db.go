package db

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens the embedded store and prepares the metadata schema. The
// handle is handed to every engine component explicitly; there is no
// package-level database state.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := Bootstrap(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

// Bootstrap creates the registry tables. Idempotent.
func Bootstrap(conn *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta_projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS meta_tables (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			display_name TEXT NOT NULL,
			internal_name TEXT NOT NULL UNIQUE,
			owner_id TEXT NOT NULL,
			project_id INTEGER REFERENCES meta_projects(id),
			kind TEXT NOT NULL DEFAULT 'tabular',
			file_path TEXT NOT NULL DEFAULT '',
			columns TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_meta_tables_owner ON meta_tables (owner_id)`,
	}

	for _, stmt := range stmts {
		if _, err := conn.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
