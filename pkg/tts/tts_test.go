package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-glance/internal/log"
)

func TestNewOpenAIRequiresKey(t *testing.T) {
	if _, err := NewOpenAI(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestOpenAISynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["voice"] != VoiceNova || body["input"] != "hello" || body["response_format"] != FormatMP3 {
			t.Errorf("body = %v", body)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	p, err := NewOpenAI(WithAPIKey("k"), WithBaseURL(srv.URL), WithVoice(VoiceNova), WithLogger(log.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(res.Audio) != "ID3audio" || res.ContentType != ContentTypeMP3 || res.CharCount != 5 {
		t.Errorf("got %+v", res)
	}
}

func TestOpenAIEmptyText(t *testing.T) {
	p, _ := NewOpenAI(WithAPIKey("k"), WithLogger(log.Discard()))
	if _, err := p.Synthesize(context.Background(), "  "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("err = %v", err)
	}
}

func TestOpenAIRetriesRateLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"slow down","code":"rate_limit"}}`))
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	p, _ := NewOpenAI(WithAPIKey("k"), WithBaseURL(srv.URL), WithRetry(2, time.Millisecond), WithLogger(log.Discard()))
	if _, err := p.Synthesize(context.Background(), "hi"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestOpenAIClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad voice"}}`))
	}))
	defer srv.Close()

	p, _ := NewOpenAI(WithAPIKey("k"), WithBaseURL(srv.URL), WithLogger(log.Discard()))
	_, err := p.Synthesize(context.Background(), "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "bad voice" || apiErr.IsRetryable() {
		t.Errorf("err = %v", err)
	}
}

func TestClipCache(t *testing.T) {
	c := NewClipCache(2)
	a := c.Put(&AudioResult{Audio: []byte("a"), ContentType: ContentTypeMP3})
	b := c.Put(&AudioResult{Audio: []byte("b"), ContentType: ContentTypeMP3})

	clip, ok := c.Get(a)
	if !ok || string(clip.Audio) != "a" || clip.ID != a {
		t.Errorf("got %+v, %v", clip, ok)
	}

	c.Put(&AudioResult{Audio: []byte("c")})
	if _, ok := c.Get(a); ok {
		t.Error("oldest clip should be evicted")
	}
	if _, ok := c.Get(b); !ok {
		t.Error("newer clip should remain")
	}
	if c.Len() != 2 {
		t.Errorf("len = %d", c.Len())
	}
}

func TestMock(t *testing.T) {
	m := NewMock()
	res, err := m.Synthesize(context.Background(), "hey")
	if err != nil || res.CharCount != 3 {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
	if m.CallCount("Synthesize") != 1 {
		t.Errorf("calls = %d", m.CallCount("Synthesize"))
	}
	if _, err := WithError(ErrProviderUnavailable).Synthesize(context.Background(), "x"); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("err = %v", err)
	}
}
