package storage

import (
	"context"
	"errors"

	"github.com/hperssn/chefmentor/internal/domain"
)

var ErrNotFound = errors.New("record not found")

// Repository persists recipes and cooking sessions. Every method that touches
// a session's pointer or cache slot is a single atomic operation.
type Repository interface {
	SaveRecipe(ctx context.Context, recipe *domain.Recipe) error

	// GetRecipe returns the recipe with its steps ordered by step number,
	// ties broken by insertion order.
	GetRecipe(ctx context.Context, id string) (*domain.Recipe, error)

	CreateSession(ctx context.Context, s *domain.Session) error

	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// AdvanceSession clears the cache slot and moves the pointer forward by
	// one in a single transaction. A complete session is returned unchanged.
	AdvanceSession(ctx context.Context, id string) (*AdvanceResult, error)

	// StoreGuidance writes text into the cache slot for stepIndex unless the
	// session already moved past stepIndex or the slot holds guidance for a
	// later step. It reports whether the write landed.
	StoreGuidance(ctx context.Context, sessionID string, stepIndex int, text string) (bool, error)

	Close() error
}

type AdvanceResult struct {
	Session *domain.Session
	// Consumed is the slot content that the advance cleared, if any.
	Consumed *domain.CachedGuidance
	Advanced bool
}
