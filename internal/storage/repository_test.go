package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hperssn/chefmentor/internal/domain"
)

func seedRecipe(t *testing.T, repo Repository, steps ...string) *domain.Recipe {
	t.Helper()
	recipe := &domain.Recipe{ID: "recipe-" + t.Name(), Title: "Noodles"}
	for i, s := range steps {
		recipe.Steps = append(recipe.Steps, domain.Step{Number: i + 1, Instruction: s})
	}
	require.NoError(t, repo.SaveRecipe(context.Background(), recipe))
	return recipe
}

func seedSession(t *testing.T, repo Repository, recipe *domain.Recipe) *domain.Session {
	t.Helper()
	s := domain.NewSession("", recipe.ID, "user-1", len(recipe.Steps))
	require.NoError(t, repo.CreateSession(context.Background(), s))
	return s
}

// runRepositorySuite exercises the behavior every Repository backend shares.
func runRepositorySuite(t *testing.T, newRepo func(*testing.T) Repository) {
	tests := []struct {
		name string
		run  func(*testing.T, func(*testing.T) Repository)
	}{
		{"RecipeStepsOrdered", testRecipeStepsOrdered},
		{"SaveRecipeReplacesSteps", testSaveRecipeReplacesSteps},
		{"NotFound", testNotFound},
		{"SessionRoundTrip", testSessionRoundTrip},
		{"AdvanceClearsSlotAndReturnsIt", testAdvanceClearsSlotAndReturnsIt},
		{"AdvanceToCompletionIsIdempotent", testAdvanceToCompletionIsIdempotent},
		{"StoreGuidanceGuards", testStoreGuidanceGuards},
		{"ConcurrentAdvanceNoLostUpdate", testConcurrentAdvanceNoLostUpdate},
		{"DemoFlagRoundTrip", testDemoFlagRoundTrip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.run(t, newRepo) })
	}
}

func testRecipeStepsOrdered(t *testing.T, newRepo func(*testing.T) Repository) {
	repo := newRepo(t)
	ctx := context.Background()

	recipe := &domain.Recipe{
		ID:    "r1",
		Title: "Pasta",
		Steps: []domain.Step{
			{Number: 2, Instruction: "Add noodles"},
			{Number: 1, Instruction: "Boil water", ExpectedState: "rolling boil"},
			{Number: 2, Instruction: "Stir"},
		},
	}
	require.NoError(t, repo.SaveRecipe(ctx, recipe))

	got, err := repo.GetRecipe(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Pasta", got.Title)
	require.Len(t, got.Steps, 3)
	assert.Equal(t, "Boil water", got.Steps[0].Instruction)
	assert.Equal(t, "rolling boil", got.Steps[0].ExpectedState)
	assert.Equal(t, "Add noodles", got.Steps[1].Instruction)
	assert.Equal(t, "Stir", got.Steps[2].Instruction)
}

func testSaveRecipeReplacesSteps(t *testing.T, newRepo func(*testing.T) Repository) {
	repo := newRepo(t)
	ctx := context.Background()

	recipe := seedRecipe(t, repo, "a", "b", "c")
	recipe.Steps = recipe.Steps[:1]
	require.NoError(t, repo.SaveRecipe(ctx, recipe))

	got, err := repo.GetRecipe(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Len(t, got.Steps, 1)
}

func testNotFound(t *testing.T, newRepo func(*testing.T) Repository) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.GetRecipe(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.AdvanceSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := repo.StoreGuidance(ctx, "missing", 0, "tip")
	require.NoError(t, err)
	assert.False(t, stored)
}

func testSessionRoundTrip(t *testing.T, newRepo func(*testing.T) Repository) {
	repo := newRepo(t)
	ctx := context.Background()
	recipe := seedRecipe(t, repo, "a", "b")
	s := seedSession(t, repo, recipe)

	got, err := repo.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, recipe.ID, got.RecipeID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, 0, got.CurrentStepIndex)
	assert.Equal(t, 2, got.StepCount)
	assert.Equal(t, domain.StatusInProgress, got.Status)
	assert.Nil(t, got.Cached)
	assert.Equal(t, s.StartedAt.UnixMilli(), got.StartedAt.UnixMilli())
}

func testAdvanceClearsSlotAndReturnsIt(t *testing.T, newRepo func(*testing.T) Repository) {
	repo := newRepo(t)
	ctx := context.Background()
	recipe := seedRecipe(t, repo, "a", "b", "c")
	s := seedSession(t, repo, recipe)

	stored, err := repo.StoreGuidance(ctx, s.ID, 0, "tip-0")
	require.NoError(t, err)
	require.True(t, stored)

	res, err := repo.AdvanceSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Equal(t, 1, res.Session.CurrentStepIndex)
	assert.Nil(t, res.Session.Cached)
	require.NotNil(t, res.Consumed)
	assert.Equal(t, domain.CachedGuidance{StepIndex: 0, Text: "tip-0"}, *res.Consumed)

	got, err := repo.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentStepIndex)
	assert.Nil(t, got.Cached)
}

func testAdvanceToCompletionIsIdempotent(t *testing.T, newRepo func(*testing.T) Repository) {
	repo := newRepo(t)
	ctx := context.Background()
	recipe := seedRecipe(t, repo, "a", "b")
	s := seedSession(t, repo, recipe)

	for i := 0; i < 2; i++ {
		res, err := repo.AdvanceSession(ctx, s.ID)
		require.NoError(t, err)
		require.True(t, res.Advanced)
	}

	got, err := repo.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentStepIndex)
	assert.Equal(t, domain.StatusComplete, got.Status)
	assert.False(t, got.CompletedAt.IsZero())

	res, err := repo.AdvanceSession(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Equal(t, 2, res.Session.CurrentStepIndex)
	assert.Equal(t, domain.StatusComplete, res.Session.Status)
}

func testStoreGuidanceGuards(t *testing.T, newRepo func(*testing.T) Repository) {
	tests := []struct {
		name       string
		advance    int
		existing   *domain.CachedGuidance
		target     int
		wantStored bool
		wantSlot   *domain.CachedGuidance
	}{
		{
			name:       "empty slot, current step",
			target:     0,
			wantStored: true,
			wantSlot:   &domain.CachedGuidance{StepIndex: 0, Text: "new"},
		},
		{
			name:       "lookahead step",
			target:     2,
			wantStored: true,
			wantSlot:   &domain.CachedGuidance{StepIndex: 2, Text: "new"},
		},
		{
			name:       "session already past target",
			advance:    2,
			target:     1,
			wantStored: false,
		},
		{
			name:       "lower target does not replace lookahead",
			existing:   &domain.CachedGuidance{StepIndex: 2, Text: "old"},
			target:     1,
			wantStored: false,
			wantSlot:   &domain.CachedGuidance{StepIndex: 2, Text: "old"},
		},
		{
			name:       "higher target replaces older value",
			existing:   &domain.CachedGuidance{StepIndex: 1, Text: "old"},
			target:     2,
			wantStored: true,
			wantSlot:   &domain.CachedGuidance{StepIndex: 2, Text: "new"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()
			recipe := seedRecipe(t, repo, "a", "b", "c", "d")
			s := seedSession(t, repo, recipe)

			for i := 0; i < tt.advance; i++ {
				_, err := repo.AdvanceSession(ctx, s.ID)
				require.NoError(t, err)
			}
			if tt.existing != nil {
				ok, err := repo.StoreGuidance(ctx, s.ID, tt.existing.StepIndex, tt.existing.Text)
				require.NoError(t, err)
				require.True(t, ok)
			}

			stored, err := repo.StoreGuidance(ctx, s.ID, tt.target, "new")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStored, stored)

			got, err := repo.GetSession(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSlot, got.Cached)
		})
	}
}

func testConcurrentAdvanceNoLostUpdate(t *testing.T, newRepo func(*testing.T) Repository) {
	repo := newRepo(t)
	ctx := context.Background()
	recipe := seedRecipe(t, repo, "a", "b", "c", "d", "e", "f")
	s := seedSession(t, repo, recipe)

	const callers = 4
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.AdvanceSession(ctx, s.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := repo.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, callers, got.CurrentStepIndex)
}

func testDemoFlagRoundTrip(t *testing.T, newRepo func(*testing.T) Repository) {
	repo := newRepo(t)
	ctx := context.Background()
	recipe := seedRecipe(t, repo, "a")

	s := domain.NewSession("", recipe.ID, "guest", 1)
	s.IsDemo = true
	require.NoError(t, repo.CreateSession(ctx, s))

	got, err := repo.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDemo)

	res, err := repo.AdvanceSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, res.Session.IsDemo)
}
