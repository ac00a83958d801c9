package domain

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
)

const (
	CompletionMessage     = "Recipe complete!"
	CompletionInstruction = "All done!"
	CompletionGuidance    = "Congratulations! You've completed the recipe!"
)

// CachedGuidance is the single cache slot of a session. StepIndex records the
// step the text was computed for.
type CachedGuidance struct {
	StepIndex int
	Text      string
}

type Session struct {
	ID               string
	RecipeID         string
	UserID           string
	CurrentStepIndex int
	StepCount        int
	Status           Status
	IsDemo           bool
	Cached           *CachedGuidance
	StartedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      time.Time
}

func NewSession(id, recipeID, userID string, stepCount int) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	s := &Session{
		ID:        id,
		RecipeID:  recipeID,
		UserID:    userID,
		StepCount: stepCount,
		Status:    StatusInProgress,
		StartedAt: now,
		UpdatedAt: now,
	}
	if stepCount <= 0 {
		s.StepCount = 0
		s.Status = StatusComplete
		s.CompletedAt = now
	}
	return s
}

func (s *Session) IsComplete() bool {
	return s.CurrentStepIndex >= s.StepCount
}

// GuidanceFor returns the cached text only when it was computed for idx.
func (s *Session) GuidanceFor(idx int) (string, bool) {
	if s.Cached == nil || s.Cached.StepIndex != idx {
		return "", false
	}
	return s.Cached.Text, true
}

// StepView is what a client sees for the current position in a session.
type StepView struct {
	StepNumber    int    `json:"step_number"`
	Instruction   string `json:"instruction"`
	ExpectedState string `json:"expected_state,omitempty"`
	IsLastStep    bool   `json:"is_last_step"`
	Guidance      string `json:"guidance"`
	Message       string `json:"message,omitempty"`
}

func NewStepView(step Step, idx, stepCount int, guidance string) *StepView {
	return &StepView{
		StepNumber:    step.Number,
		Instruction:   step.Instruction,
		ExpectedState: step.ExpectedState,
		IsLastStep:    idx == stepCount-1,
		Guidance:      guidance,
	}
}

// TerminalView is returned once the pointer has moved past the final step.
func TerminalView(idx int) *StepView {
	return &StepView{
		StepNumber:  idx,
		Instruction: CompletionInstruction,
		IsLastStep:  true,
		Guidance:    CompletionGuidance,
		Message:     CompletionMessage,
	}
}
