package game

import (
	"sync"
	"time"
)

// SessionTracker counts active viewers from heartbeat traffic. Expiry
// is lazy: stale entries are pruned whenever the tracker is touched,
// never by a background sweep. The count is advisory only and never
// gates state access.
type SessionTracker struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]time.Time
}

func NewSessionTracker(ttl time.Duration) *SessionTracker {
	return &SessionTracker{
		ttl:      ttl,
		sessions: make(map[string]time.Time),
	}
}

// Heartbeat upserts the session and returns the current viewer count.
func (t *SessionTracker) Heartbeat(sessionID string, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[sessionID] = now
	t.pruneLocked(now)
	return len(t.sessions)
}

// Touch refreshes a session on a state read. Unknown sessions are
// created; a poll counts as presence.
func (t *SessionTracker) Touch(sessionID string, now time.Time) int {
	if sessionID == "" {
		return t.Count(now)
	}
	return t.Heartbeat(sessionID, now)
}

// Count prunes and returns the active viewer count.
func (t *SessionTracker) Count(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(now)
	return len(t.sessions)
}

func (t *SessionTracker) pruneLocked(now time.Time) {
	for id, last := range t.sessions {
		if now.Sub(last) > t.ttl {
			delete(t.sessions, id)
		}
	}
}
