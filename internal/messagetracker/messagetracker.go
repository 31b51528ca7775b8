package messagetracker

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// MessageTracker remembers when a connection last delivered a message.
type MessageTracker struct {
	lastMessage    atomic.Int64
	name           string
	staleThreshold time.Duration
	now            func() time.Time
}

func NewMessageTracker(name string, staleThreshold time.Duration) *MessageTracker {
	return newMessageTracker(name, staleThreshold, time.Now)
}

func newMessageTracker(name string, staleThreshold time.Duration, now func() time.Time) *MessageTracker {
	mt := &MessageTracker{
		name:           name,
		staleThreshold: staleThreshold,
		now:            now,
	}
	mt.RecordMessage()
	return mt
}

func (mt *MessageTracker) RecordMessage() {
	mt.lastMessage.Store(mt.now().UnixNano())
}

func (mt *MessageTracker) LastMessage() time.Time {
	return time.Unix(0, mt.lastMessage.Load())
}

// CheckStaleConnection reports whether nothing was received for longer than
// the stale threshold.
func (mt *MessageTracker) CheckStaleConnection() bool {
	since := mt.now().Sub(mt.LastMessage())
	if since > mt.staleThreshold {
		log.Warn().
			Str("connection", mt.name).
			Dur("timeSinceLastMessage", since).
			Msg("Connection may be stale")
		return true
	}
	log.Debug().
		Str("connection", mt.name).
		Dur("timeSinceLastMessage", since).
		Msg("Connection does not appear stale")
	return false
}
