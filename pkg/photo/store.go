// Package photo captures pictures from the glasses, tags them with GPS EXIF
// data and sends them to the remote analysis service.
package photo

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"time"

	_ "golang.org/x/image/webp"
)

// Store errors.
var (
	ErrNotFound         = errors.New("photo: not found")
	ErrAlreadyAnnotated = errors.New("photo: already annotated")
)

// Stored is a captured photo held in memory.
type Stored struct {
	RequestID string
	UserID    string
	Data      []byte
	Timestamp time.Time
	MimeType  string
	Filename  string
	Size      int
	Width     int
	Height    int

	annotated bool
}

// Store keeps every captured photo for the life of the process, keyed by
// request id. Photos are never evicted.
type Store struct {
	mu     sync.RWMutex
	photos map[string]*Stored
	latest map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		photos: make(map[string]*Stored),
		latest: make(map[string]string),
	}
}

// Put stores p and makes it the user's latest photo.
// Dimensions are filled in when the image header can be decoded.
func (s *Store) Put(p *Stored) {
	if p.Size == 0 {
		p.Size = len(p.Data)
	}
	if p.Width == 0 && p.Height == 0 {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(p.Data)); err == nil {
			p.Width, p.Height = cfg.Width, cfg.Height
		}
	}
	s.mu.Lock()
	s.photos[p.RequestID] = p
	s.latest[p.UserID] = p.RequestID
	s.mu.Unlock()
}

// Get returns a copy of the photo with the given request id.
func (s *Store) Get(requestID string) (Stored, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.photos[requestID]
	if !ok {
		return Stored{}, false
	}
	return *p, true
}

// Latest returns a copy of the user's most recent photo.
func (s *Store) Latest(userID string) (Stored, bool) {
	s.mu.RLock()
	id, ok := s.latest[userID]
	s.mu.RUnlock()
	if !ok {
		return Stored{}, false
	}
	return s.Get(id)
}

// ReplaceData swaps in EXIF-annotated bytes. A photo can be annotated once.
func (s *Store) ReplaceData(requestID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[requestID]
	if !ok {
		return ErrNotFound
	}
	if p.annotated {
		return ErrAlreadyAnnotated
	}
	p.Data = data
	p.Size = len(data)
	p.annotated = true
	return nil
}

// Len returns the number of stored photos.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.photos)
}
