package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hperssn/chefmentor/internal/domain"
)

// dialect captures the differences between the SQL backends.
type dialect struct {
	numbered bool   // $1, $2 placeholders instead of ?
	lockRow  string // appended to the row read inside AdvanceSession
}

// sqlRepository holds the queries shared by SQLite and Postgres.
type sqlRepository struct {
	db      *sql.DB
	dialect dialect
}

const sessionColumns = `id, recipe_id, user_id, current_step_index, step_count, status,
		cached_step_index, cached_guidance, started_at_ms, updated_at_ms, completed_at_ms, is_demo`

func (r *sqlRepository) rebind(query string) string {
	if !r.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *sqlRepository) SaveRecipe(ctx context.Context, recipe *domain.Recipe) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, r.rebind(`
		INSERT INTO recipes (id, title, created_at_ms)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title
	`), recipe.ID, recipe.Title, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save recipe: %w", err)
	}

	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM recipe_steps WHERE recipe_id = ?`), recipe.ID); err != nil {
		return fmt.Errorf("replace steps: %w", err)
	}

	insert := r.rebind(`
		INSERT INTO recipe_steps (recipe_id, position, step_number, instruction, expected_state)
		VALUES (?, ?, ?, ?, ?)
	`)
	for pos, step := range recipe.Steps {
		expected := sql.NullString{String: step.ExpectedState, Valid: step.ExpectedState != ""}
		if _, err := tx.ExecContext(ctx, insert, recipe.ID, pos, step.Number, step.Instruction, expected); err != nil {
			return fmt.Errorf("insert step %d: %w", pos, err)
		}
	}

	return tx.Commit()
}

func (r *sqlRepository) GetRecipe(ctx context.Context, id string) (*domain.Recipe, error) {
	recipe := &domain.Recipe{ID: id}

	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT title FROM recipes WHERE id = ?`), id).Scan(&recipe.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT recipe_id, position, step_number, instruction, expected_state
		FROM recipe_steps
		WHERE recipe_id = ?
		ORDER BY step_number ASC, position ASC
	`), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rec StepRecord
		if err := rows.Scan(&rec.RecipeID, &rec.Position, &rec.Number, &rec.Instruction, &rec.ExpectedState); err != nil {
			return nil, err
		}
		recipe.Steps = append(recipe.Steps, rec.ToDomain())
	}

	return recipe, rows.Err()
}

func (r *sqlRepository) CreateSession(ctx context.Context, s *domain.Session) error {
	rec := FromDomainSession(s)

	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO cooking_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		rec.ID,
		rec.RecipeID,
		rec.UserID,
		rec.CurrentStepIndex,
		rec.StepCount,
		rec.Status,
		rec.CachedStepIndex,
		rec.CachedGuidance,
		rec.StartedAtMs,
		rec.UpdatedAtMs,
		rec.CompletedAtMs,
		rec.IsDemo,
	)
	return err
}

func (r *sqlRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+sessionColumns+` FROM cooking_sessions WHERE id = ?`), id)

	rec, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	return rec.ToDomain(), nil
}

func (r *sqlRepository) AdvanceSession(ctx context.Context, id string) (*AdvanceResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, r.rebind(`SELECT `+sessionColumns+` FROM cooking_sessions WHERE id = ?`+r.dialect.lockRow), id)
	rec, err := scanSession(row)
	if err != nil {
		return nil, err
	}

	before := rec.ToDomain()
	if before.IsComplete() {
		return &AdvanceResult{Session: before}, nil
	}

	now := time.Now().UTC()
	after := *before
	after.CurrentStepIndex++
	after.Cached = nil
	after.UpdatedAt = now
	if after.IsComplete() {
		after.Status = domain.StatusComplete
		after.CompletedAt = now
	}
	next := FromDomainSession(&after)

	_, err = tx.ExecContext(ctx, r.rebind(`
		UPDATE cooking_sessions
		SET current_step_index = ?,
			status = ?,
			cached_step_index = NULL,
			cached_guidance = NULL,
			updated_at_ms = ?,
			completed_at_ms = ?
		WHERE id = ?
	`), next.CurrentStepIndex, next.Status, next.UpdatedAtMs, next.CompletedAtMs, id)
	if err != nil {
		return nil, fmt.Errorf("advance session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &AdvanceResult{
		Session:  &after,
		Consumed: before.Cached,
		Advanced: true,
	}, nil
}

func (r *sqlRepository) StoreGuidance(ctx context.Context, sessionID string, stepIndex int, text string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.rebind(`
		UPDATE cooking_sessions
		SET cached_step_index = ?, cached_guidance = ?, updated_at_ms = ?
		WHERE id = ?
			AND current_step_index <= ?
			AND (cached_step_index IS NULL OR cached_step_index <= ?)
	`), stepIndex, text, time.Now().UnixMilli(), sessionID, stepIndex, stepIndex)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *sqlRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*SessionRecord, error) {
	var rec SessionRecord
	err := row.Scan(
		&rec.ID,
		&rec.RecipeID,
		&rec.UserID,
		&rec.CurrentStepIndex,
		&rec.StepCount,
		&rec.Status,
		&rec.CachedStepIndex,
		&rec.CachedGuidance,
		&rec.StartedAtMs,
		&rec.UpdatedAtMs,
		&rec.CompletedAtMs,
		&rec.IsDemo,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
