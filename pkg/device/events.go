package device

import "sync"

// EventKind identifies a device event stream.
type EventKind string

const (
	EventButtonPress   EventKind = "button_press"
	EventTouch         EventKind = "touch_event"
	EventTranscription EventKind = "transcription"
)

// Press types for button events.
const (
	PressShort = "short"
	PressLong  = "long"
)

// ButtonPress is a hardware button event.
type ButtonPress struct {
	ButtonID  string
	PressType string
}

// Touch is a touchpad gesture.
type Touch struct {
	Gesture string
}

// Transcription is speech recognized on the device.
type Transcription struct {
	Text     string
	IsFinal  bool
	Language string
}

// Event is delivered to subscribers. Exactly one payload field is set, matching Kind.
type Event struct {
	Kind          EventKind
	Button        *ButtonPress
	Touch         *Touch
	Transcription *Transcription
}

// Handler receives events.
type Handler func(Event)

// Subscription is returned by Subscribe and releases the handler.
type Subscription interface {
	Unsubscribe()
}

// Events lets consumers subscribe to device events.
// Handlers run on the device's read loop and must not block on device calls.
type Events interface {
	Subscribe(kind EventKind, h Handler) Subscription
}

// Dispatcher is a thread-safe Events implementation that fans events out to
// subscribers. Device implementations embed it and call Emit.
type Dispatcher struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[EventKind]map[int]Handler
}

// Subscribe registers h for events of the given kind.
func (d *Dispatcher) Subscribe(kind EventKind, h Handler) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = make(map[EventKind]map[int]Handler)
	}
	if d.handlers[kind] == nil {
		d.handlers[kind] = make(map[int]Handler)
	}
	d.nextID++
	id := d.nextID
	d.handlers[kind][id] = h
	return &subscription{d: d, kind: kind, id: id}
}

// Emit delivers ev to every handler subscribed to ev.Kind.
// Handlers run on the caller's goroutine.
func (d *Dispatcher) Emit(ev Event) {
	d.mu.RLock()
	hs := make([]Handler, 0, len(d.handlers[ev.Kind]))
	for _, h := range d.handlers[ev.Kind] {
		hs = append(hs, h)
	}
	d.mu.RUnlock()

	for _, h := range hs {
		h(ev)
	}
}

// SubscriberCount returns the number of handlers for kind.
func (d *Dispatcher) SubscriberCount(kind EventKind) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[kind])
}

type subscription struct {
	d    *Dispatcher
	kind EventKind
	id   int
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.d.mu.Lock()
		delete(s.d.handlers[s.kind], s.id)
		s.d.mu.Unlock()
	})
}
