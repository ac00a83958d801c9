package guidance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hperssn/chefmentor/internal/metrics"
)

const memoKeyPrefix = "chefmentor:guidance:"

// Memo reuses tips across sessions for identical instructions. Redis errors
// are logged and the call falls through to the wrapped provider.
type Memo struct {
	client    *redis.Client
	next      Provider
	namespace string
	ttl       time.Duration
	logger    zerolog.Logger
}

// NewMemo wraps next. namespace is mixed into the key so that tips from
// different models do not collide.
func NewMemo(client *redis.Client, next Provider, namespace string, ttl time.Duration, logger zerolog.Logger) *Memo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Memo{
		client:    client,
		next:      next,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger,
	}
}

func (m *Memo) key(instruction string) string {
	sum := sha256.Sum256([]byte(m.namespace + "\x00" + instruction))
	return memoKeyPrefix + hex.EncodeToString(sum[:])
}

func (m *Memo) StepGuidance(ctx context.Context, instruction string) (string, error) {
	key := m.key(instruction)

	tip, err := m.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		metrics.RecordMemoLookup("hit")
		return tip, nil
	case errors.Is(err, redis.Nil):
		metrics.RecordMemoLookup("miss")
	default:
		metrics.RecordMemoLookup("error")
		m.logger.Warn().Err(err).Msg("guidance memo read failed")
	}

	tip, err = m.next.StepGuidance(ctx, instruction)
	if err != nil {
		return "", err
	}

	if err := m.client.Set(ctx, key, tip, m.ttl).Err(); err != nil {
		m.logger.Warn().Err(err).Msg("guidance memo write failed")
	}
	return tip, nil
}
