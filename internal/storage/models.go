package storage

import (
	"database/sql"
	"time"

	"github.com/hperssn/chefmentor/internal/domain"
)

type SessionRecord struct {
	ID               string
	RecipeID         string
	UserID           string
	CurrentStepIndex int
	StepCount        int
	Status           string
	IsDemo           bool
	CachedStepIndex  sql.NullInt64
	CachedGuidance   sql.NullString
	StartedAtMs      int64
	UpdatedAtMs      int64
	CompletedAtMs    sql.NullInt64
}

type StepRecord struct {
	RecipeID      string
	Position      int
	Number        int
	Instruction   string
	ExpectedState sql.NullString
}

// FromDomainSession converts a domain.Session to a SessionRecord
func FromDomainSession(s *domain.Session) *SessionRecord {
	rec := &SessionRecord{
		ID:               s.ID,
		RecipeID:         s.RecipeID,
		UserID:           s.UserID,
		CurrentStepIndex: s.CurrentStepIndex,
		StepCount:        s.StepCount,
		Status:           string(s.Status),
		IsDemo:           s.IsDemo,
		StartedAtMs:      toMillis(s.StartedAt),
		UpdatedAtMs:      toMillis(s.UpdatedAt),
	}
	if s.Cached != nil {
		rec.CachedStepIndex = sql.NullInt64{Int64: int64(s.Cached.StepIndex), Valid: true}
		rec.CachedGuidance = sql.NullString{String: s.Cached.Text, Valid: true}
	}
	if !s.CompletedAt.IsZero() {
		rec.CompletedAtMs = sql.NullInt64{Int64: toMillis(s.CompletedAt), Valid: true}
	}
	return rec
}

func (r *SessionRecord) ToDomain() *domain.Session {
	s := &domain.Session{
		ID:               r.ID,
		RecipeID:         r.RecipeID,
		UserID:           r.UserID,
		CurrentStepIndex: r.CurrentStepIndex,
		StepCount:        r.StepCount,
		Status:           domain.Status(r.Status),
		IsDemo:           r.IsDemo,
		StartedAt:        fromMillis(r.StartedAtMs),
		UpdatedAt:        fromMillis(r.UpdatedAtMs),
	}
	if r.CachedStepIndex.Valid && r.CachedGuidance.Valid {
		s.Cached = &domain.CachedGuidance{
			StepIndex: int(r.CachedStepIndex.Int64),
			Text:      r.CachedGuidance.String,
		}
	}
	if r.CompletedAtMs.Valid {
		s.CompletedAt = fromMillis(r.CompletedAtMs.Int64)
	}
	return s
}

func (r *StepRecord) ToDomain() domain.Step {
	return domain.Step{
		Number:        r.Number,
		Instruction:   r.Instruction,
		ExpectedState: r.ExpectedState.String,
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
