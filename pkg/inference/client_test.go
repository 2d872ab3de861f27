package inference

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

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body["max_tokens"] != float64(300) {
			t.Errorf("max_tokens = %v", body["max_tokens"])
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 4, "total_tokens": 7},
		})
	}))
}

func TestClientChat(t *testing.T) {
	srv := completionServer(t, "Paris is lovely.")
	defer srv.Close()

	c, _ := NewClient(WithBaseURL(srv.URL), WithAPIKey("test-key"), WithLogger(log.Discard()))
	resp, err := c.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewUserMessage("Tell me about Paris")},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "Paris is lovely." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.Usage.TotalTokens != 7 {
		t.Errorf("total tokens = %d", resp.Usage.TotalTokens)
	}
}

func TestClientNoAPIKey(t *testing.T) {
	c, _ := NewClient(WithBaseURL("http://127.0.0.1:1"))
	if c.Configured() {
		t.Error("expected unconfigured client")
	}
	if _, err := c.Chat(context.Background(), &ChatRequest{}); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":{"message":"upstream down","code":"bad_gateway"}}`))
	}))
	defer srv.Close()

	c, _ := NewClient(
		WithBaseURL(srv.URL),
		WithAPIKey("k"),
		WithRetry(2, time.Millisecond),
		WithLogger(log.Discard()),
	)
	_, err := c.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("hi")}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "upstream down" {
		t.Errorf("got %+v", apiErr)
	}
	if !apiErr.IsRetryable() {
		t.Error("502 should be retryable")
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`bad key`))
	}))
	defer srv.Close()

	c, _ := NewClient(WithBaseURL(srv.URL), WithAPIKey("k"), WithLogger(log.Discard()))
	_, err := c.Chat(context.Background(), &ChatRequest{})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsUnauthorized() {
		t.Fatalf("err = %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestSDKClientChat(t *testing.T) {
	srv := completionServer(t, "Hello from the SDK.")
	defer srv.Close()

	c, _ := NewSDKClient(
		WithBaseURL(srv.URL),
		WithAPIKey("test-key"),
		WithRetry(0, 0),
		WithLogger(log.Discard()),
	)
	defer c.Close()

	resp, err := c.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewSystemMessage("be brief"), NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "Hello from the SDK." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("finish reason = %q", resp.FinishReason)
	}
}

func TestSDKClientNoAPIKey(t *testing.T) {
	c, _ := NewSDKClient()
	if _, err := c.Chat(context.Background(), &ChatRequest{}); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestMock(t *testing.T) {
	m := WithReply("canned")
	resp, err := m.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("prompt")}})
	if err != nil || resp.Message.Content != "canned" {
		t.Fatalf("resp = %+v, err = %v", resp, err)
	}
	if m.LastPrompt() != "prompt" {
		t.Errorf("last prompt = %q", m.LastPrompt())
	}
	if m.CallCount("Chat") != 1 {
		t.Errorf("calls = %d", m.CallCount("Chat"))
	}
	m.Reset()
	if m.LastCall() != nil {
		t.Error("expected no calls after reset")
	}

	failing := WithError(errors.New("nope"))
	if _, err := failing.Chat(context.Background(), &ChatRequest{}); err == nil {
		t.Error("expected error")
	}
}
