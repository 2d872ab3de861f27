package hub

import (
	"encoding/base64"
	"time"

	"github.com/teslashibe/go-glance/pkg/device"
	"github.com/teslashibe/go-glance/pkg/photo"
)

// Events turns domain events into hub messages. It implements
// photo.Publisher and the session notifier.
type Events struct {
	hub *Hub
	now func() time.Time

	// InlinePhotos embeds the image as a data URL in photo events.
	InlinePhotos bool
}

// NewEvents creates a publisher over h.
func NewEvents(h *Hub) *Events {
	return &Events{hub: h, now: time.Now, InlinePhotos: true}
}

// PublishPhoto announces p on the photo stream.
func (e *Events) PublishPhoto(p photo.Stored) {
	ev := PhotoEvent{
		RequestID: p.RequestID,
		Timestamp: p.Timestamp,
		MimeType:  p.MimeType,
		Filename:  p.Filename,
		Size:      p.Size,
		Width:     p.Width,
		Height:    p.Height,
		UserID:    p.UserID,
	}
	if e.InlinePhotos {
		ev.DataURL = DataURL(p.MimeType, p.Data)
	}
	e.publish(StreamPhotos, p.UserID, EventPhoto, ev)
}

// Transcription forwards recognized speech to the transcription stream.
func (e *Events) Transcription(userID string, t device.Transcription) {
	e.publish(StreamTranscriptions, userID, EventTranscription, TranscriptionEvent{
		Text:      t.Text,
		IsFinal:   t.IsFinal,
		Language:  t.Language,
		Timestamp: e.now(),
		UserID:    userID,
	})
}

// Log sends a status line to the user's transcription stream.
func (e *Events) Log(userID, level, message string) {
	e.publish(StreamTranscriptions, userID, EventLog, LogEvent{
		Level:     level,
		Message:   message,
		Timestamp: e.now(),
		UserID:    userID,
	})
}

func (e *Events) publish(stream, userID, event string, v any) {
	if err := e.hub.PublishJSON(stream, userID, event, v); err != nil {
		e.hub.logger.Error("encode event", "stream", stream, "event", event, "error", err)
	}
}

// DataURL encodes data as a data: URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

var _ photo.Publisher = (*Events)(nil)
