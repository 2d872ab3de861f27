// Package inference turns narration prompts (city descriptions, nearby
// places) into short spoken text using an OpenAI-compatible chat endpoint.
//
// Client posts to /chat/completions directly; SDKClient goes through
// openai-go. Both fail with ErrNoAPIKey when no key is configured, which
// narration treats as "skip this line" rather than an error.
//
//	llm, _ := inference.NewClient(inference.WithAPIKey(key))
//	resp, err := llm.Chat(ctx, &inference.ChatRequest{
//	    Messages: []inference.Message{inference.NewUserMessage(prompt)},
//	})
package inference

import "context"

// Provider answers narration prompts.
type Provider interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Configured is false when no API key was given. Callers check it to
	// skip narration quietly.
	Configured() bool

	// Health is used by `glance check --online`.
	Health(ctx context.Context) error

	Close() error
}

// ChatRequest is one prompt. Zero fields fall back to the provider Config.
type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int // spoken lines stay short; narration sends 300
	Temperature float64
}

// ChatResponse carries the text to speak plus call metadata for logs.
type ChatResponse struct {
	Message      Message
	FinishReason string // "length" means the line was cut off
	Usage        Usage
	Model        string
	LatencyMs    int64
}

// Usage is the token count reported by the endpoint.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
