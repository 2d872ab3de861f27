// Package hub fans out per-user UI events (photos, transcriptions, log lines)
// to SSE streams and websocket clients using a channel-based broadcast loop.
package hub

import (
	"encoding/json"
	"time"
)

// Streams carried by the hub.
const (
	StreamPhotos         = "photos"
	StreamTranscriptions = "transcriptions"
)

// Event names within a stream.
const (
	EventPhoto         = "photo"
	EventTranscription = "transcription"
	EventLog           = "log"
)

// Message is one event for one user.
type Message struct {
	Stream string
	UserID string
	Event  string
	Data   []byte
}

// NewJSONMessage encodes v as the message payload.
func NewJSONMessage(stream, userID, event string, v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Stream: stream, UserID: userID, Event: event, Data: data}, nil
}

// Envelope is the websocket framing of a Message.
type Envelope struct {
	Stream string          `json:"stream"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// PhotoEvent announces a newly captured photo.
type PhotoEvent struct {
	RequestID string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
	MimeType  string    `json:"mimeType"`
	Filename  string    `json:"filename"`
	Size      int       `json:"size"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	UserID    string    `json:"userId"`
	DataURL   string    `json:"dataUrl,omitempty"`
}

// TranscriptionEvent carries speech recognized on the glasses.
type TranscriptionEvent struct {
	Text      string    `json:"text"`
	IsFinal   bool      `json:"isFinal"`
	Language  string    `json:"language,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
}

// LogEvent is a human-readable status line for the UI.
type LogEvent struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
}
