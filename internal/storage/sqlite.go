package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteConfig struct {
	BusyTimeout time.Duration
}

func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{BusyTimeout: 5 * time.Second}
}

type SQLiteRepository struct {
	sqlRepository
}

func NewSQLiteRepository(dbPath string, cfg SQLiteConfig) (*SQLiteRepository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}

	// One connection serialises writers, which makes the AdvanceSession
	// read-then-update transaction exclusive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	repo := &SQLiteRepository{sqlRepository{db: db}}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migration failed: %w", err)
	}

	return repo, nil
}

// sqliteMigrations[i] upgrades a database from user_version i to i+1.
var sqliteMigrations = []string{
	`
	CREATE TABLE IF NOT EXISTS recipes (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at_ms INTEGER NOT NULL
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
		started_at_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL,
		completed_at_ms INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user ON cooking_sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_recipe ON cooking_sessions(recipe_id);
	`,
	`ALTER TABLE cooking_sessions ADD COLUMN is_demo INTEGER NOT NULL DEFAULT 0;`,
}

func (r *SQLiteRepository) migrate(ctx context.Context) error {
	var version int
	if err := r.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return err
	}

	for ; version < len(sqliteMigrations); version++ {
		if err := r.applyMigration(ctx, version+1, sqliteMigrations[version]); err != nil {
			return fmt.Errorf("migrate to version %d: %w", version+1, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) applyMigration(ctx context.Context, to int, stmt string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", to)); err != nil {
		return err
	}
	return tx.Commit()
}
