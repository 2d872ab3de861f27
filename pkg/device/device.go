// Package device describes the capability surface of a connected pair of smart
// glasses (camera, audio, location, events, storage) and provides a websocket
// Hub that implements it for real devices.
//
// Consumers should depend only on the small interfaces they use; Session
// composes all of them for the orchestrator.
package device

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for device calls.
var (
	// ErrDisconnected is returned when the device went away mid-request.
	ErrDisconnected = errors.New("device: disconnected")

	// ErrNotConnected is returned when no device is connected for a user.
	ErrNotConnected = errors.New("device: not connected")
)

// Location accuracy levels.
const (
	AccuracyHigh     = "high"
	AccuracyStandard = "standard"
)

// Photo is a picture taken by the device camera.
type Photo struct {
	RequestID string
	Data      []byte
	Timestamp time.Time
	MimeType  string
	Filename  string
	Size      int
}

// Camera takes photos.
type Camera interface {
	RequestPhoto(ctx context.Context) (*Photo, error)
}

// Locator returns the latest GPS fix. The payload shape varies between
// firmware versions, so it is returned raw for the caller to probe.
type Locator interface {
	LatestLocation(ctx context.Context, accuracy string) (map[string]any, error)
}

// Audio plays speech and audio clips on the device.
type Audio interface {
	// Speak synthesizes text on the device and returns when playback ends.
	Speak(ctx context.Context, text string) error

	// PlayAudio plays audio from a URL and returns when playback ends.
	PlayAudio(ctx context.Context, audioURL string) error

	// StopAudio interrupts playback. It fails harmlessly when nothing is playing.
	StopAudio(ctx context.Context) error
}

// Storage is per-user key-value persistence on the device side.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Session is the full capability surface of one connected user's device.
type Session interface {
	UserID() string
	Camera
	Locator
	Audio
	Events
	Storage
}
