package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-glance/internal/log"
)

// subscriber receives messages for one user, optionally limited to some streams.
type subscriber struct {
	userID  string
	streams map[string]bool
	send    chan Message
}

func (s *subscriber) wants(m Message) bool {
	if s.userID != m.UserID {
		return false
	}
	return len(s.streams) == 0 || s.streams[m.Stream]
}

// Hub maintains the set of active subscribers and broadcasts messages to them.
type Hub struct {
	logger *slog.Logger

	subscribers map[*subscriber]bool

	broadcast  chan Message
	register   chan *subscriber
	unregister chan *subscriber
	done       chan struct{}

	// guards the subscriber count for readers outside Run
	mu sync.RWMutex
}

// New creates a hub. Call Run to start it.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = log.L()
	}
	return &Hub{
		logger:      logger.With("component", "hub.Hub"),
		subscribers: make(map[*subscriber]bool),
		broadcast:   make(chan Message, 256),
		register:    make(chan *subscriber),
		unregister:  make(chan *subscriber),
		done:        make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx is done, closing every
// subscriber channel.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for s := range h.subscribers {
			close(s.send)
			delete(h.subscribers, s)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.register:
			h.mu.Lock()
			h.subscribers[s] = true
			count := len(h.subscribers)
			h.mu.Unlock()
			h.logger.Debug("subscriber added", "user_id", s.userID, "total", count)

		case s := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[s]; ok {
				delete(h.subscribers, s)
				close(s.send)
			}
			count := len(h.subscribers)
			h.mu.Unlock()
			h.logger.Debug("subscriber removed", "user_id", s.userID, "remaining", count)

		case m := <-h.broadcast:
			h.mu.Lock()
			for s := range h.subscribers {
				if !s.wants(m) {
					continue
				}
				select {
				case s.send <- m:
				default:
					close(s.send)
					delete(h.subscribers, s)
					h.logger.Warn("dropped slow subscriber", "user_id", s.userID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Subscribe registers a listener for userID's events on the given streams
// (all streams when none are named). The channel closes when the returned
// cancel func is called or the hub stops.
func (h *Hub) Subscribe(userID string, streams ...string) (<-chan Message, func()) {
	s := h.newSubscriber(userID, streams)
	select {
	case h.register <- s:
	case <-h.done:
		close(s.send)
		return s.send, func() {}
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			select {
			case h.unregister <- s:
			case <-h.done:
			}
		})
	}
	return s.send, cancel
}

func (h *Hub) newSubscriber(userID string, streams []string) *subscriber {
	s := &subscriber{userID: userID, send: make(chan Message, 64)}
	if len(streams) > 0 {
		s.streams = make(map[string]bool, len(streams))
		for _, st := range streams {
			s.streams[st] = true
		}
	}
	return s
}

// Publish queues m for delivery. Messages are dropped when the queue is full
// or the hub has stopped.
func (h *Hub) Publish(m Message) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- m:
	default:
		h.logger.Warn("broadcast queue full, dropping message", "stream", m.Stream, "user_id", m.UserID)
	}
}

// PublishJSON encodes v and publishes it.
func (h *Hub) PublishJSON(stream, userID, event string, v any) error {
	m, err := NewJSONMessage(stream, userID, event, v)
	if err != nil {
		return err
	}
	h.Publish(m)
	return nil
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
