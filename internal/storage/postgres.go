package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type PostgresRepository struct {
	sqlRepository
}

func NewPostgresRepository(connStr string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(time.Hour)

	repo := &PostgresRepository{sqlRepository{
		db:      db,
		dialect: dialect{numbered: true, lockRow: " FOR UPDATE"},
	}}
	if err := repo.createTables(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: create tables: %w", err)
	}

	return repo, nil
}

func (r *PostgresRepository) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS recipes (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at_ms BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS recipe_steps (
		recipe_id TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		step_number INTEGER NOT NULL,
		instruction TEXT NOT NULL,
		expected_state TEXT,
		PRIMARY KEY (recipe_id, position)
	);

	CREATE TABLE IF NOT EXISTS cooking_sessions (
		id TEXT PRIMARY KEY,
		recipe_id TEXT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		current_step_index INTEGER NOT NULL,
		step_count INTEGER NOT NULL,
		status TEXT NOT NULL,
		cached_step_index INTEGER,
		cached_guidance TEXT,
		started_at_ms BIGINT NOT NULL,
		updated_at_ms BIGINT NOT NULL,
		completed_at_ms BIGINT,
		is_demo BOOLEAN NOT NULL DEFAULT FALSE
	);

	ALTER TABLE cooking_sessions ADD COLUMN IF NOT EXISTS is_demo BOOLEAN NOT NULL DEFAULT FALSE;

	CREATE INDEX IF NOT EXISTS idx_sessions_user ON cooking_sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_recipe ON cooking_sessions(recipe_id);
	`

	_, err := r.db.ExecContext(ctx, schema)
	return err
}
