package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

var schemaTables = []string{"users", "subjects", "tasks", "task_history", "settings"}

// Open opens the SQLite database at path and applies the schema.
// The pool holds a single connection: every unit of work is serialized and
// ":memory:" databases survive for the life of the handle.
func Open(path string) (*sql.DB, error) {
	db, err := openConn(path)
	if err != nil {
		return nil, err
	}

	if err := applySchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Init creates the schema at path if it is absent. It reports whether any
// table had to be created.
func Init(ctx context.Context, path string) (bool, error) {
	db, err := openConn(path)
	if err != nil {
		return false, err
	}
	defer db.Close()

	present, err := SchemaPresent(ctx, db)
	if err != nil {
		return false, err
	}
	if err := applySchema(ctx, db); err != nil {
		return false, err
	}
	return !present, nil
}

func openConn(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// SchemaPresent reports whether every table of the schema already exists.
func SchemaPresent(ctx context.Context, db *sql.DB) (bool, error) {
	for _, table := range schemaTables {
		var exists int
		err := db.QueryRowContext(ctx, "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ? LIMIT 1", table).Scan(&exists)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("check table %s: %w", table, err)
		}
	}
	return true, nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	return nil
}
