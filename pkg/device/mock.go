package device

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Mock implements Session for testing.
// All capability methods can be customized via function fields.
type Mock struct {
	Dispatcher

	User string

	RequestPhotoFunc   func(ctx context.Context) (*Photo, error)
	LatestLocationFunc func(ctx context.Context, accuracy string) (map[string]any, error)
	SpeakFunc          func(ctx context.Context, text string) error
	PlayAudioFunc      func(ctx context.Context, audioURL string) error
	StopAudioFunc      func(ctx context.Context) error

	mu      sync.Mutex
	calls   []MockCall
	storage map[string]string
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Arg    string
	Time   time.Time
}

// NewMock creates a mock session for userID. Speak, PlayAudio and StopAudio
// succeed; camera and location fail until configured.
func NewMock(userID string) *Mock {
	return &Mock{
		User:    userID,
		storage: make(map[string]string),
	}
}

// UserID returns the mock user.
func (m *Mock) UserID() string { return m.User }

// RequestPhoto calls RequestPhotoFunc and records the call.
func (m *Mock) RequestPhoto(ctx context.Context) (*Photo, error) {
	m.record("RequestPhoto", "")
	if m.RequestPhotoFunc != nil {
		return m.RequestPhotoFunc(ctx)
	}
	return nil, errors.New("mock: camera unavailable")
}

// LatestLocation calls LatestLocationFunc and records the call.
func (m *Mock) LatestLocation(ctx context.Context, accuracy string) (map[string]any, error) {
	m.record("LatestLocation", accuracy)
	if m.LatestLocationFunc != nil {
		return m.LatestLocationFunc(ctx, accuracy)
	}
	return nil, errors.New("mock: location unavailable")
}

// Speak calls SpeakFunc and records the call.
func (m *Mock) Speak(ctx context.Context, text string) error {
	m.record("Speak", text)
	if m.SpeakFunc != nil {
		return m.SpeakFunc(ctx, text)
	}
	return nil
}

// PlayAudio calls PlayAudioFunc and records the call.
func (m *Mock) PlayAudio(ctx context.Context, audioURL string) error {
	m.record("PlayAudio", audioURL)
	if m.PlayAudioFunc != nil {
		return m.PlayAudioFunc(ctx, audioURL)
	}
	return nil
}

// StopAudio calls StopAudioFunc and records the call.
func (m *Mock) StopAudio(ctx context.Context) error {
	m.record("StopAudio", "")
	if m.StopAudioFunc != nil {
		return m.StopAudioFunc(ctx)
	}
	return nil
}

// Get reads from the in-memory storage.
func (m *Mock) Get(ctx context.Context, key string) (string, bool, error) {
	m.record("StorageGet", key)
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.storage[key]
	return v, ok, nil
}

// Set writes to the in-memory storage.
func (m *Mock) Set(ctx context.Context, key, value string) error {
	m.record("StorageSet", key)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storage[key] = value
	return nil
}

// PressButton emits a button event to subscribers.
func (m *Mock) PressButton(pressType string) {
	m.Emit(Event{Kind: EventButtonPress, Button: &ButtonPress{ButtonID: "main", PressType: pressType}})
}

func (m *Mock) record(method, arg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Arg: arg, Time: time.Now()})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Spoken returns every text passed to Speak, in order.
func (m *Mock) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if c.Method == "Speak" {
			out = append(out, c.Arg)
		}
	}
	return out
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Verify Mock implements Session at compile time.
var _ Session = (*Mock)(nil)
