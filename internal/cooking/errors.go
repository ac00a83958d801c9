package cooking

import (
	"errors"
	"fmt"
)

// ErrNotFound is the only error class the engine surfaces to callers.
var ErrNotFound = errors.New("not found")

var (
	ErrSessionNotFound = fmt.Errorf("session %w", ErrNotFound)
	ErrRecipeNotFound  = fmt.Errorf("recipe %w", ErrNotFound)
)
