// Package guidance produces short AI cooking tips for recipe steps.
package guidance

import (
	"context"
	"errors"
	"time"

	"github.com/hperssn/chefmentor/internal/metrics"
	"github.com/hperssn/chefmentor/internal/resilience"
)

var ErrEmptyResponse = errors.New("guidance: empty response")

// Provider returns a tip for one step instruction. Implementations may be slow
// and may fail; callers decide what to do on error.
type Provider interface {
	StepGuidance(ctx context.Context, instruction string) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, instruction string) (string, error)

func (f ProviderFunc) StepGuidance(ctx context.Context, instruction string) (string, error) {
	return f(ctx, instruction)
}

// Static always returns the same tip.
type Static string

func (s Static) StepGuidance(context.Context, string) (string, error) {
	return string(s), nil
}

// Breaker fails fast with resilience.ErrCircuitOpen while the upstream keeps
// failing.
type Breaker struct {
	next Provider
	cb   *resilience.CircuitBreaker
}

func NewBreaker(next Provider, cb *resilience.CircuitBreaker) *Breaker {
	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) StepGuidance(ctx context.Context, instruction string) (string, error) {
	var tip string
	err := b.cb.Execute(func() error {
		var err error
		tip, err = b.next.StepGuidance(ctx, instruction)
		return err
	})
	return tip, err
}

// Instrumented records latency and outcome of every call.
type Instrumented struct {
	name string
	next Provider
}

func NewInstrumented(name string, next Provider) *Instrumented {
	return &Instrumented{name: name, next: next}
}

func (p *Instrumented) StepGuidance(ctx context.Context, instruction string) (string, error) {
	start := time.Now()
	tip, err := p.next.StepGuidance(ctx, instruction)
	metrics.ObserveProviderCall(p.name, time.Since(start), err)
	return tip, err
}
