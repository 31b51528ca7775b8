package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	HeaderRateLimitRemaining = "Bitvavo-Ratelimit-Remaining"
	HeaderRateLimitResetAt   = "Bitvavo-Ratelimit-Resetat"
)

// RateLimitState is the last rate-limit weight reported by the exchange.
type RateLimitState struct {
	Remaining int
	ResetAt   time.Time
	Known     bool
}

// rateLimitGuard tracks the server-side weight budget and holds requests back
// once it runs low, until the reported reset time.
type rateLimitGuard struct {
	mu           sync.Mutex
	state        RateLimitState
	minRemaining int
	now          func() time.Time
}

func newRateLimitGuard(minRemaining int) *rateLimitGuard {
	return &rateLimitGuard{
		minRemaining: minRemaining,
		now:          time.Now,
	}
}

func (g *rateLimitGuard) observe(h http.Header) {
	remaining, err := strconv.Atoi(h.Get(HeaderRateLimitRemaining))
	if err != nil {
		return
	}
	var resetAt time.Time
	if ms, err := strconv.ParseInt(h.Get(HeaderRateLimitResetAt), 10, 64); err == nil {
		resetAt = time.UnixMilli(ms)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = RateLimitState{Remaining: remaining, ResetAt: resetAt, Known: true}
}

func (g *rateLimitGuard) snapshot() RateLimitState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *rateLimitGuard) delay() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.state.Known || g.state.Remaining > g.minRemaining {
		return 0
	}
	d := g.state.ResetAt.Sub(g.now())
	if d < 0 {
		return 0
	}
	return d
}

func (g *rateLimitGuard) wait(ctx context.Context) error {
	d := g.delay()
	if d <= 0 {
		return nil
	}

	log.Warn().
		Int("remaining", g.snapshot().Remaining).
		Dur("wait", d).
		Msg("Rate limit budget low, waiting for reset")

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	g.mu.Lock()
	g.state.Known = false
	g.mu.Unlock()
	return nil
}
