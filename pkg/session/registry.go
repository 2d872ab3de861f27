// Package session wires a connected pair of glasses to the narration
// pipeline: welcome sequence, idle narration, button-triggered photo
// analysis, and teardown on disconnect.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/teslashibe/go-glance/pkg/device"
)

// State is the lifecycle state of a session.
type State int

const (
	Starting State = iota
	Active
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Info describes a registered session.
type Info struct {
	UserID    string    `json:"userId"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"startedAt"`
}

// Registry maps user ids to their live device sessions so the HTTP layer can
// act on behalf of a user.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	sess      device.Session
	state     State
	startedAt time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*entry)}
}

// Register adds sess in the Starting state, replacing any previous session
// for the same user.
func (r *Registry) Register(sess device.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.UserID()] = &entry{sess: sess, state: Starting, startedAt: time.Now()}
}

// SetState updates the state of a registered session.
func (r *Registry) SetState(userID string, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[userID]; ok {
		e.state = s
	}
}

// Unregister removes the user's session if it is still sess. It reports
// whether anything was removed.
func (r *Registry) Unregister(userID string, sess device.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[userID]
	if !ok || (sess != nil && e.sess != sess) {
		return false
	}
	delete(r.sessions, userID)
	return true
}

// Get returns the user's session.
func (r *Registry) Get(userID string) (device.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[userID]
	if !ok {
		return nil, false
	}
	return e.sess, true
}

// State returns the user's session state, or Stopped when none is registered.
func (r *Registry) State(userID string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[userID]; ok {
		return e.state
	}
	return Stopped
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Infos lists registered sessions ordered by user id.
func (r *Registry) Infos() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.sessions))
	for id, e := range r.sessions {
		out = append(out, Info{UserID: id, State: e.state.String(), StartedAt: e.startedAt})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
