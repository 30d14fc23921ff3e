package answers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS formfill_answers (
	category   TEXT NOT NULL,
	question   TEXT NOT NULL,
	answer     TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (category, question)
)`

// PostgresBackend shares answer stores between machines through one table.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and makes sure the answers table exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating answers table: %w", err)
	}

	return &PostgresBackend{pool: pool}, nil
}

func (b *PostgresBackend) Read(ctx context.Context, category Category) (map[string]string, error) {
	rows, err := b.pool.Query(ctx, `SELECT question, answer FROM formfill_answers WHERE category = $1`, string(category))
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
func (b *PostgresBackend) Write(ctx context.Context, category Category, data map[string]string) error {
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM formfill_answers WHERE category = $1`, string(category)); err != nil {
			return fmt.Errorf("clearing %s answers: %w", category, err)
		}

		batch := &pgx.Batch{}
		for question, answer := range data {
			batch.Queue(`INSERT INTO formfill_answers (category, question, answer) VALUES ($1, $2, $3)`,
				string(category), question, answer)
		}

		if batch.Len() == 0 {
			return nil
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting %s answers: %w", category, err)
		}

		return nil
	})
}

func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}
