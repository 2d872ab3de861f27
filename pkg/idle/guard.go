package idle

import "sync"

// Guards holds one "nearby query already triggered" flag per user.
type Guards struct {
	mu  sync.Mutex
	set map[string]bool
}

// NewGuards creates an empty flag set.
func NewGuards() *Guards {
	return &Guards{set: make(map[string]bool)}
}

// TrySet sets the user's flag and reports whether it was previously clear.
func (g *Guards) TrySet(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.set[userID] {
		return false
	}
	g.set[userID] = true
	return true
}

// Clear resets the user's flag.
func (g *Guards) Clear(userID string) {
	g.mu.Lock()
	delete(g.set, userID)
	g.mu.Unlock()
}

// IsSet reports the user's flag.
func (g *Guards) IsSet(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.set[userID]
}
