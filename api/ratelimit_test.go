package api

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func rateLimitHeader(remaining int, resetAt time.Time) http.Header {
	h := http.Header{}
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(remaining))
	h.Set(HeaderRateLimitResetAt, strconv.FormatInt(resetAt.UnixMilli(), 10))
	return h
}

func TestRateLimitGuardDelay(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	g := newRateLimitGuard(10)
	g.now = func() time.Time { return now }

	assert.Zero(t, g.delay())

	g.observe(http.Header{})
	assert.False(t, g.snapshot().Known)

	g.observe(rateLimitHeader(500, now.Add(time.Minute)))
	assert.Zero(t, g.delay())
	assert.Equal(t, 500, g.snapshot().Remaining)

	g.observe(rateLimitHeader(10, now.Add(3*time.Second)))
	assert.Equal(t, 3*time.Second, g.delay())

	g.observe(rateLimitHeader(0, now.Add(-time.Second)))
	assert.Zero(t, g.delay())
}

func TestRateLimitGuardWait(t *testing.T) {
	g := newRateLimitGuard(10)
	g.observe(rateLimitHeader(1, time.Now().Add(50*time.Millisecond)))

	start := time.Now()
	assert.NoError(t, g.wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.False(t, g.snapshot().Known)

	g.observe(rateLimitHeader(1, time.Now().Add(time.Hour)))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.wait(ctx), context.DeadlineExceeded)
}
