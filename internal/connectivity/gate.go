// Package connectivity decides whether an immediate synchronization
// attempt is worth making.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Probe checks whether the backend answers its health endpoint
type Probe interface {
	CheckHealth(ctx context.Context) error
}

// Gate answers "is the remote backend currently reachable"
type Gate interface {
	BackendAccessible(ctx context.Context) bool
}

// ProbeGate implements Gate by probing the backend, caching the result
// for a short window so bursts of completed sales don't each pay a
// round-trip.
type ProbeGate struct {
	probe  Probe
	expiry time.Duration

	mu         sync.Mutex
	lastCheck  time.Time
	lastResult bool
}

// NewProbeGate creates a gate over the given probe
func NewProbeGate(probe Probe, expiry time.Duration) *ProbeGate {
	return &ProbeGate{probe: probe, expiry: expiry}
}

// BackendAccessible reports whether the backend answered a recent probe
func (g *ProbeGate) BackendAccessible(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.expiry > 0 && time.Since(g.lastCheck) < g.expiry {
		return g.lastResult
	}

	err := g.probe.CheckHealth(ctx)
	reachable := err == nil
	if reachable != g.lastResult || g.lastCheck.IsZero() {
		if reachable {
			log.Info().Msg("Backend is reachable")
		} else {
			log.Warn().Err(err).Msg("Backend is unreachable, sales will queue locally")
		}
	}
	g.lastCheck = time.Now()
	g.lastResult = reachable
	return reachable
}
