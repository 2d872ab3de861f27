// Package protocol defines the WebSocket message types exchanged between the
// glasses (device) and the glance server.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Device → Server
	TypeHello            MessageType = "hello"
	TypePhotoResponse    MessageType = "photo_response"
	TypeLocationResponse MessageType = "location_response"
	TypeAck              MessageType = "ack"
	TypeError            MessageType = "error"
	TypeStorageValue     MessageType = "storage_value"
	TypeButtonPress      MessageType = "button_press"
	TypeTouchEvent       MessageType = "touch_event"
	TypeTranscription    MessageType = "transcription"

	// Server → Device
	TypePhotoRequest    MessageType = "photo_request"
	TypeLocationRequest MessageType = "location_request"
	TypeSpeak           MessageType = "speak"
	TypePlayAudio       MessageType = "play_audio"
	TypeStopAudio       MessageType = "stop_audio"
	TypeStorageGet      MessageType = "storage_get"
	TypeStorageSet      MessageType = "storage_set"

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the base wrapper for all WebSocket messages.
// ID correlates a response with the request that produced it.
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// NewRequest creates a message with a fresh correlation ID.
func NewRequest(msgType MessageType, data interface{}) (*Message, error) {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		return nil, err
	}
	msg.ID = uuid.NewString()
	return msg, nil
}

// NewResponse creates a reply to the request with the given ID.
func NewResponse(requestID string, msgType MessageType, data interface{}) (*Message, error) {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		return nil, err
	}
	msg.ID = requestID
	return msg, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Device → Server
// =============================================================================

// HelloData identifies the user wearing the device.
type HelloData struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id,omitempty"`
}

// PhotoData is a captured photo.
type PhotoData struct {
	RequestID string `json:"request_id"`
	MimeType  string `json:"mime_type"`
	Filename  string `json:"filename"`
	Timestamp int64  `json:"ts"`
	Data      string `json:"data"` // base64 encoded
}

// Bytes decodes the photo payload.
func (p *PhotoData) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Data)
}

// ErrorData reports a failed request.
type ErrorData struct {
	Message string `json:"message"`
}

// StorageValueData answers a storage_get request.
type StorageValueData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Found bool   `json:"found"`
}

// ButtonPressData is a hardware button event.
type ButtonPressData struct {
	ButtonID  string `json:"button_id"`
	PressType string `json:"press_type"` // "short", "long"
}

// TouchEventData is a touchpad gesture.
type TouchEventData struct {
	Gesture string `json:"gesture"`
}

// TranscriptionData is speech recognized on the device.
type TranscriptionData struct {
	Text     string `json:"text"`
	IsFinal  bool   `json:"is_final"`
	Language string `json:"language,omitempty"`
}

// =============================================================================
// Server → Device
// =============================================================================

// LocationRequestData asks for a one-shot fix.
type LocationRequestData struct {
	Accuracy string `json:"accuracy"` // "high", "standard"
}

// SpeakData asks the device to speak text.
type SpeakData struct {
	Text string `json:"text"`
}

// PlayAudioData asks the device to play audio from a URL.
type PlayAudioData struct {
	AudioURL string `json:"audio_url"`
}

// StorageGetData reads a key from device storage.
type StorageGetData struct {
	Key string `json:"key"`
}

// StorageSetData writes a key to device storage.
type StorageSetData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
