package domain

import (
	"sync"
	"time"

	"github.com/fd1az/arb-engine/internal/apperror"
)

// ReplayGuard rejects signal ids seen within the TTL window. Expired entries
// are pruned lazily on each check.
type ReplayGuard struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
}

// NewReplayGuard creates a guard with the given window.
func NewReplayGuard(ttl time.Duration) *ReplayGuard {
	return &ReplayGuard{
		ttl:  ttl,
		seen: make(map[string]time.Time),
	}
}

// Register records the id, failing with DUPLICATE_SIGNAL when it was seen
// inside the window.
func (g *ReplayGuard) Register(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-g.ttl)
	for k, ts := range g.seen {
		if ts.Before(cutoff) {
			delete(g.seen, k)
		}
	}

	if _, dup := g.seen[id]; dup {
		return apperror.New(apperror.CodeDuplicateSignal, apperror.WithContext(id))
	}
	g.seen[id] = now
	return nil
}

// Len returns the number of ids currently tracked.
func (g *ReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
