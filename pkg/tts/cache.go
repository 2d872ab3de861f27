package tts

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultClipCapacity bounds ClipCache when no size is given.
const DefaultClipCapacity = 64

// ClipCache holds recently synthesized clips so the device can fetch them by
// URL. The oldest clip is evicted once capacity is reached.
type ClipCache struct {
	capacity int
	now      func() time.Time

	mu    sync.Mutex
	clips map[string]Clip
	order []string
}

// NewClipCache creates a cache holding at most capacity clips.
func NewClipCache(capacity int) *ClipCache {
	if capacity <= 0 {
		capacity = DefaultClipCapacity
	}
	return &ClipCache{
		capacity: capacity,
		now:      time.Now,
		clips:    make(map[string]Clip),
	}
}

// Put stores a synthesized result and returns its clip id.
func (c *ClipCache) Put(r *AudioResult) string {
	id := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.order) >= c.capacity {
		delete(c.clips, c.order[0])
		c.order = c.order[1:]
	}
	c.clips[id] = Clip{ID: id, Audio: r.Audio, ContentType: r.ContentType, Created: c.now()}
	c.order = append(c.order, id)
	return id
}

// Get returns the clip with the given id.
func (c *ClipCache) Get(id string) (Clip, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clip, ok := c.clips[id]
	return clip, ok
}

// Len returns the number of cached clips.
func (c *ClipCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clips)
}
