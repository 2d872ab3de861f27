package narration

import (
	"strings"
	"sync"
)

// DefaultResponseWindow is how many past narrations are kept per user.
const DefaultResponseWindow = 5

type userHistory struct {
	places    []string
	placeSet  map[string]bool
	responses []string
}

// History remembers what was already narrated to each user so the generator
// can be told not to repeat itself. Mentioned places accumulate without bound;
// full responses are kept in a sliding window.
type History struct {
	window int

	mu    sync.Mutex
	users map[string]*userHistory
}

// NewHistory creates a history keeping the last window responses per user.
func NewHistory(window int) *History {
	if window <= 0 {
		window = DefaultResponseWindow
	}
	return &History{window: window, users: make(map[string]*userHistory)}
}

// Record appends a narration and merges the place names extracted from it.
func (h *History) Record(userID, response string) {
	names := ExtractPlaceNames(response)

	h.mu.Lock()
	defer h.mu.Unlock()
	u := h.users[userID]
	if u == nil {
		u = &userHistory{placeSet: make(map[string]bool)}
		h.users[userID] = u
	}
	u.responses = append(u.responses, response)
	if over := len(u.responses) - h.window; over > 0 {
		u.responses = append([]string(nil), u.responses[over:]...)
	}
	for _, n := range names {
		key := strings.ToLower(n)
		if u.placeSet[key] {
			continue
		}
		u.placeSet[key] = true
		u.places = append(u.places, n)
	}
}

// Snapshot returns copies of the user's mentioned places and recent responses.
func (h *History) Snapshot(userID string) (places, responses []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	u := h.users[userID]
	if u == nil {
		return nil, nil
	}
	return append([]string(nil), u.places...), append([]string(nil), u.responses...)
}

// Clear forgets everything about userID.
func (h *History) Clear(userID string) {
	h.mu.Lock()
	delete(h.users, userID)
	h.mu.Unlock()
}
