// Package cooking drives a user through a recipe one step at a time and keeps
// AI guidance for the upcoming step warm in a single per-session cache slot.
//
// The slot holds (step index, text). Reads serve it only when the index
// matches the session's current step, so a prefetch that lands late can never
// show guidance for the wrong step.
package cooking

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hperssn/chefmentor/internal/domain"
	"github.com/hperssn/chefmentor/internal/guidance"
	"github.com/hperssn/chefmentor/internal/log"
	"github.com/hperssn/chefmentor/internal/metrics"
	"github.com/hperssn/chefmentor/internal/prefetch"
	"github.com/hperssn/chefmentor/internal/storage"
)

// FallbackGuidance is shown whenever the provider cannot produce a tip.
const FallbackGuidance = "Keep going, you're doing great!"

// Store is the persistence the engine needs.
type Store interface {
	GetRecipe(ctx context.Context, id string) (*domain.Recipe, error)
	CreateSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	AdvanceSession(ctx context.Context, id string) (*storage.AdvanceResult, error)
	StoreGuidance(ctx context.Context, sessionID string, stepIndex int, text string) (bool, error)
}

// Scheduler accepts prefetch jobs without blocking.
type Scheduler interface {
	Schedule(job prefetch.Job) bool
}

type Engine struct {
	store    Store
	provider guidance.Provider
	prefetch Scheduler
	events   *Broker
	logger   zerolog.Logger
}

type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithBroker(b *Broker) Option {
	return func(e *Engine) { e.events = b }
}

func NewEngine(store Store, provider guidance.Provider, scheduler Scheduler, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		provider: provider,
		prefetch: scheduler,
		events:   NewBroker(),
		logger:   log.WithComponent("cooking"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Events() *Broker {
	return e.events
}

type startOptions struct {
	demo bool
}

type StartOption func(*startOptions)

// AsDemo marks the session as a guest session.
func AsDemo(demo bool) StartOption {
	return func(o *startOptions) { o.demo = demo }
}

// Start creates a session at the first step and schedules guidance for it.
// The returned session usually has an empty cache; the prefetch is still in
// flight.
func (e *Engine) Start(ctx context.Context, recipeID, userID string, opts ...StartOption) (*domain.Session, error) {
	var so startOptions
	for _, opt := range opts {
		opt(&so)
	}

	recipe, err := e.loadRecipe(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	s := domain.NewSession("", recipe.ID, userID, len(recipe.Steps))
	s.IsDemo = so.demo
	if err := e.store.CreateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	metrics.RecordSessionStarted()

	log.WithContext(ctx, e.logger).Info().
		Str(log.FieldSessionID, s.ID).
		Str(log.FieldRecipeID, recipe.ID).
		Int("step_count", s.StepCount).
		Bool("demo", s.IsDemo).
		Msg("session started")

	if !s.IsComplete() {
		e.schedule(ctx, s.ID, 0)
	}
	return s, nil
}

// Session returns the stored session.
func (e *Engine) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.loadSession(ctx, sessionID)
}

// CurrentStep returns the view of the session's current step. Guidance comes
// from the cache slot when it was computed for this step, otherwise from a
// synchronous provider call. It never fails because of guidance.
func (e *Engine) CurrentStep(ctx context.Context, sessionID string) (*domain.StepView, error) {
	s, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.IsComplete() {
		return domain.TerminalView(s.CurrentStepIndex), nil
	}

	recipe, err := e.loadRecipe(ctx, s.RecipeID)
	if err != nil {
		return nil, err
	}
	return e.view(ctx, s, recipe.Steps, s.Cached), nil
}

// Advance moves the session one step forward and returns the new current
// step. The cache slot is cleared in the same write as the pointer move; if
// the cleared value was computed for the new step it is used for the returned
// view. Advancing a complete session returns the terminal view again.
func (e *Engine) Advance(ctx context.Context, sessionID string) (*domain.StepView, error) {
	res, err := e.store.AdvanceSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("advance session: %w", err)
	}
	s := res.Session

	if res.Advanced {
		e.events.Publish(Event{Type: EventAdvanced, SessionID: s.ID, StepIndex: s.CurrentStepIndex})

		if s.IsComplete() {
			metrics.RecordSessionCompleted()
			log.WithContext(ctx, e.logger).Info().
				Str(log.FieldSessionID, s.ID).
				Msg("session complete")
		} else if next := s.CurrentStepIndex + 1; next < s.StepCount {
			e.schedule(ctx, s.ID, next)
		}
	}

	if s.IsComplete() {
		return domain.TerminalView(s.CurrentStepIndex), nil
	}

	recipe, err := e.loadRecipe(ctx, s.RecipeID)
	if err != nil {
		return nil, err
	}
	return e.view(ctx, s, recipe.Steps, res.Consumed), nil
}

// Prefetch computes guidance for job.StepIndex and offers it to the session's
// cache slot. It runs on the prefetch workers, concurrently with requests on
// the same session, so it re-reads everything it needs.
func (e *Engine) Prefetch(ctx context.Context, job prefetch.Job) error {
	logger := e.logger.With().
		Str(log.FieldSessionID, job.SessionID).
		Int(log.FieldStepIndex, job.StepIndex).
		Logger()

	s, err := e.store.GetSession(ctx, job.SessionID)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.RecordPrefetch("skipped")
		return nil
	}
	if err != nil {
		metrics.RecordPrefetch("failed")
		return fmt.Errorf("load session: %w", err)
	}

	if s.CurrentStepIndex > job.StepIndex {
		metrics.RecordPrefetch("skipped")
		logger.Debug().Int("current_step_index", s.CurrentStepIndex).Msg("session already past prefetch target")
		return nil
	}
	if _, ok := s.GuidanceFor(job.StepIndex); ok {
		metrics.RecordPrefetch("skipped")
		return nil
	}

	recipe, err := e.store.GetRecipe(ctx, s.RecipeID)
	if err != nil {
		metrics.RecordPrefetch("failed")
		return fmt.Errorf("load recipe: %w", err)
	}
	steps := domain.OrderSteps(recipe.Steps)
	if job.StepIndex >= len(steps) {
		metrics.RecordPrefetch("skipped")
		return nil
	}

	tip, err := e.provider.StepGuidance(ctx, steps[job.StepIndex].Instruction)
	if err != nil {
		metrics.RecordPrefetch("failed")
		return fmt.Errorf("step guidance: %w", err)
	}

	stored, err := e.store.StoreGuidance(ctx, job.SessionID, job.StepIndex, tip)
	if err != nil {
		metrics.RecordPrefetch("failed")
		return fmt.Errorf("store guidance: %w", err)
	}
	if !stored {
		metrics.RecordPrefetch("stale")
		logger.Debug().Msg("prefetched guidance discarded, session moved on")
		return nil
	}

	metrics.RecordPrefetch("stored")
	e.events.Publish(Event{Type: EventGuidanceReady, SessionID: job.SessionID, StepIndex: job.StepIndex})
	return nil
}

func (e *Engine) view(ctx context.Context, s *domain.Session, steps []domain.Step, cached *domain.CachedGuidance) *domain.StepView {
	steps = domain.OrderSteps(steps)
	idx := s.CurrentStepIndex
	if idx >= len(steps) {
		return domain.TerminalView(idx)
	}
	step := steps[idx]

	if cached != nil && cached.StepIndex == idx {
		metrics.RecordGuidanceLookup("hit")
		return domain.NewStepView(step, idx, len(steps), cached.Text)
	}

	return domain.NewStepView(step, idx, len(steps), e.fetchGuidance(ctx, s.ID, idx, step.Instruction))
}

// fetchGuidance is the cache-miss path. Failures turn into FallbackGuidance.
func (e *Engine) fetchGuidance(ctx context.Context, sessionID string, idx int, instruction string) string {
	tip, err := e.provider.StepGuidance(ctx, instruction)
	if err != nil {
		metrics.RecordGuidanceLookup("fallback")
		log.WithContext(ctx, e.logger).Debug().
			Err(err).
			Str(log.FieldSessionID, sessionID).
			Int(log.FieldStepIndex, idx).
			Msg("guidance unavailable, using fallback")
		return FallbackGuidance
	}
	metrics.RecordGuidanceLookup("miss")
	return tip
}

func (e *Engine) schedule(ctx context.Context, sessionID string, stepIndex int) {
	if e.prefetch.Schedule(prefetch.Job{SessionID: sessionID, StepIndex: stepIndex}) {
		return
	}
	log.WithContext(ctx, e.logger).Debug().
		Str(log.FieldSessionID, sessionID).
		Int(log.FieldStepIndex, stepIndex).
		Msg("prefetch not scheduled")
}

func (e *Engine) loadSession(ctx context.Context, id string) (*domain.Session, error) {
	s, err := e.store.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return s, nil
}

func (e *Engine) loadRecipe(ctx context.Context, id string) (*domain.Recipe, error) {
	r, err := e.store.GetRecipe(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrRecipeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load recipe: %w", err)
	}
	return r, nil
}
