// Package circuitbreaker wraps sony/gobreaker with typed results and
// defaults tuned for external call paths (RPC, exchange REST).
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned when the breaker rejects a call.
var ErrOpen = errors.New("circuitbreaker: open")

// Config holds breaker tuning.
type Config struct {
	Name string

	// MaxFailures opens the breaker once this many failures accumulate
	// within Interval.
	MaxFailures uint32

	// Interval is the cyclic period over which failure counts are
	// accumulated while the breaker is closed.
	Interval time.Duration

	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration

	// HalfOpenMaxRequests is how many probe requests pass in half-open.
	HalfOpenMaxRequests uint32
}

// DefaultConfig returns settings suited to RPC-style dependencies.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		MaxFailures:         5,
		Interval:            60 * time.Second,
		Cooldown:            30 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// CircuitBreaker guards calls returning T.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// New creates a breaker from cfg.
func New[T any](cfg Config) *CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.TotalFailures >= cfg.MaxFailures
		},
	}
	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn through the breaker.
func (c *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	res, err := c.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, ErrOpen
	}
	return res, err
}

// State returns the breaker state name ("closed", "half-open", "open").
func (c *CircuitBreaker[T]) State() string {
	return c.cb.State().String()
}

// IsOpen reports whether calls would currently be rejected.
func (c *CircuitBreaker[T]) IsOpen() bool {
	return c.cb.State() == gobreaker.StateOpen
}
