package answers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS answers (
	category   TEXT NOT NULL,
	question   TEXT NOT NULL,
	answer     TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (category, question)
)`

// SQLiteBackend keeps all categories in one SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// SQLite doesn't support concurrent writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating answers table: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Read(ctx context.Context, category Category) (map[string]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT question, answer FROM answers WHERE category = ?`, string(category))
	if err != nil {
		return nil, fmt.Errorf("querying %s answers: %w", category, err)
	}
	defer rows.Close()

	data := make(map[string]string)
	for rows.Next() {
		var question, answer string
		if err := rows.Scan(&question, &answer); err != nil {
			return nil, fmt.Errorf("scanning %s answer: %w", category, err)
		}
		data[question] = answer
	}

	return data, rows.Err()
}

// Write replaces the category inside a single transaction.
func (b *SQLiteBackend) Write(ctx context.Context, category Category, data map[string]string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE category = ?`, string(category)); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing %s answers: %w", category, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO answers (category, question, answer) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for question, answer := range data {
		if _, err := stmt.ExecContext(ctx, string(category), question, answer); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting %s answer: %w", category, err)
		}
	}

	return tx.Commit()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
