// Package activity records when speech last started for each user.
//
// The tracker stores start times, not finish times, so idle detection treats
// narration that is still being delivered as activity from the moment it begins.
package activity

import (
	"sync"
	"time"
)

// Tracker maps user ID to the time of the most recent speech start.
type Tracker struct {
	mu   sync.RWMutex
	last map[string]time.Time
	now  func() time.Time
}

// NewTracker creates an empty tracker using the wall clock.
func NewTracker() *Tracker {
	return NewTrackerWithClock(time.Now)
}

// NewTrackerWithClock creates a tracker that reads time from now.
func NewTrackerWithClock(now func() time.Time) *Tracker {
	return &Tracker{
		last: make(map[string]time.Time),
		now:  now,
	}
}

// MarkAudioStarted records the current time as the user's last speech start.
// The record only moves forward; an earlier clock reading is ignored.
func (t *Tracker) MarkAudioStarted(userID string) {
	if userID == "" {
		return
	}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.last[userID]; ok && now.Before(prev) {
		return
	}
	t.last[userID] = now
}

// LastAudioStart returns the user's last speech start, if any.
func (t *Tracker) LastAudioStart(userID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ts, ok := t.last[userID]
	return ts, ok
}

// IdleFor returns how long the user has been without a speech start.
// The second result is false when no speech has ever started.
func (t *Tracker) IdleFor(userID string) (time.Duration, bool) {
	ts, ok := t.LastAudioStart(userID)
	if !ok {
		return 0, false
	}
	return t.now().Sub(ts), true
}

// Clear removes the user's record.
func (t *Tracker) Clear(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, userID)
}
