package collector

import (
	"context"
	"errors"

	"ArtalePriceBot/internal/model"
)

// Strategy is one way of obtaining the full item list from upstream.
type Strategy interface {
	Fetch(ctx context.Context) ([]model.ItemRecord, error)
	Name() string
}

// Fallback is implemented by strategies that serve placeholder data instead
// of live upstream data.
type Fallback interface {
	Fallback() bool
}

var (
	// ErrUnavailable means the strategy cannot run in this environment
	// (for example no browser binary). The chain skips it without a warning.
	ErrUnavailable = errors.New("strategy unavailable")

	// ErrChallenge means the upstream answered with an anti-automation page.
	ErrChallenge = errors.New("challenge page detected")
)

func isFallback(s Strategy) bool {
	f, ok := s.(Fallback)
	return ok && f.Fallback()
}
