package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/astromechza/ink-relay/pkg/ink"
)

// BreakerSettings configures the circuit breaker in front of a Store.
type BreakerSettings struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

func DefaultBreakerSettings(name string) BreakerSettings {
	return BreakerSettings{
		Name:         name,
		MaxRequests:  5,
		Interval:     30 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.8,
		MinRequests:  5,
	}
}

// Guarded wraps a Store with a per-call timeout and a circuit breaker. While the breaker is open calls
// fail fast with gobreaker.ErrOpenState instead of piling up on a sick database.
type Guarded struct {
	inner   Store
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
}

func NewGuarded(inner Store, timeout time.Duration, settings BreakerSettings, logger *slog.Logger) *Guarded {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("store breaker changed state", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// a caller going away says nothing about the health of the store
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &Guarded{inner: inner, timeout: timeout, cb: cb}
}

func (g *Guarded) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Guarded) Upsert(ctx context.Context, stroke ink.Stroke) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.inner.Upsert(ctx, stroke)
	})
	return err
}

func (g *Guarded) DeleteByID(ctx context.Context, sessionID, id string) (int64, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.inner.DeleteByID(ctx, sessionID, id)
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

func (g *Guarded) ListBySession(ctx context.Context, sessionID string) ([]ink.Stroke, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.inner.ListBySession(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return res.([]ink.Stroke), nil
}

// State reports the breaker state, mainly for logging and tests.
func (g *Guarded) State() gobreaker.State {
	return g.cb.State()
}
