package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultSubjects seeds the subject catalog on first start
var DefaultSubjects = []string{
	"математика",
	"русский язык",
	"физика",
	"биология",
	"история",
	"обществознание",
	"география",
	"литература",
	"английский язык",
}

// Connect establishes a connection to the database and initializes the schema
func Connect(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if driver == "sqlite3" {
		// Create data directory if it doesn't exist
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite3" {
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}
		db.SetMaxOpenConns(1) // SQLite doesn't support multiple writers
		db.SetMaxIdleConns(1)
	}

	if err := initializeSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(ctx context.Context, db *sqlx.DB) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	realType := "REAL"
	if db.DriverName() == "postgres" {
		idColumn = "id BIGSERIAL PRIMARY KEY"
		realType = "DOUBLE PRECISION"
	}

	statements := []struct {
		table string
		query string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				` + idColumn + `,
				chat_id BIGINT UNIQUE NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				last_name TEXT NOT NULL DEFAULT '',
				statistics TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`},
		{"rating", `
			CREATE TABLE IF NOT EXISTS rating (
				` + idColumn + `,
				chat_id BIGINT UNIQUE NOT NULL,
				total_score INTEGER NOT NULL DEFAULT 0,
				attempts INTEGER NOT NULL DEFAULT 0,
				avg_score ` + realType + ` NOT NULL DEFAULT 0
			)`},
		{"admin_stats", `
			CREATE TABLE IF NOT EXISTS admin_stats (
				` + idColumn + `,
				chat_id BIGINT UNIQUE NOT NULL,
				commands_used INTEGER NOT NULL DEFAULT 0,
				quizzes_taken INTEGER NOT NULL DEFAULT 0,
				total_score INTEGER NOT NULL DEFAULT 0
			)`},
		{"subjects", `
			CREATE TABLE IF NOT EXISTS subjects (
				` + idColumn + `,
				subject TEXT UNIQUE NOT NULL
			)`},
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt.query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", stmt.table, err)
		}
	}

	seed := db.Rebind("INSERT INTO subjects (subject) VALUES (?) ON CONFLICT (subject) DO NOTHING")
	for _, subject := range DefaultSubjects {
		if _, err := db.ExecContext(ctx, seed, subject); err != nil {
			return fmt.Errorf("failed to seed subjects: %w", err)
		}
	}
	return nil
}
