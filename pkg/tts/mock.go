package tts

import (
	"context"
	"sync"
)

// Mock is a Provider for tests. Without SynthesizeFunc it returns a fake MP3
// whose bytes embed the input text.
type Mock struct {
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)

	mu     sync.Mutex
	texts  []string
	closed int
}

func NewMock() *Mock { return &Mock{} }

// WithError returns a mock whose Synthesize always fails with err.
func WithError(err error) *Mock {
	return &Mock{SynthesizeFunc: func(context.Context, string) (*AudioResult, error) { return nil, err }}
}

func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	return &AudioResult{Audio: []byte("ID3mock:" + text), ContentType: ContentTypeMP3, CharCount: len(text)}, nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
	return nil
}

// Texts returns every input passed to Synthesize, oldest first.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// CallCount reports how often "Synthesize" or "Close" ran.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch method {
	case "Synthesize":
		return len(m.texts)
	case "Close":
		return m.closed
	}
	return 0
}

var _ Provider = (*Mock)(nil)
