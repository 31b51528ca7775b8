package stream

import "time"

const (
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// Backoff returns base * 2^retry, capped at limit.
func Backoff(retry int, base, limit time.Duration) time.Duration {
	if retry < 0 {
		return base
	}
	// 2^30 seconds is far beyond any sensible cap.
	if retry > 30 {
		return limit
	}
	d := base * time.Duration(1<<retry)
	if d > limit || d <= 0 {
		return limit
	}
	return d
}
