package photo

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-glance/internal/log"
	"github.com/teslashibe/go-glance/pkg/device"
)

// Publisher receives newly captured photos, e.g. to stream them to the UI.
type Publisher interface {
	PublishPhoto(p Stored)
}

// Capturer takes photos and files them in a Store.
type Capturer struct {
	store     *Store
	publisher Publisher
	logger    *slog.Logger
}

// NewCapturer creates a capturer. publisher may be nil.
func NewCapturer(store *Store, publisher Publisher, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = log.L()
	}
	return &Capturer{
		store:     store,
		publisher: publisher,
		logger:    logger.With("component", "photo.Capturer"),
	}
}

// Capture requests a photo, stores it and publishes it. It returns false when
// the camera fails, which aborts any follow-up processing.
func (c *Capturer) Capture(ctx context.Context, cam device.Camera, userID string) (Stored, bool) {
	shot, err := cam.RequestPhoto(ctx)
	if err != nil {
		c.logger.Warn("photo capture failed", "user_id", userID, "error", err)
		return Stored{}, false
	}
	if len(shot.Data) == 0 {
		c.logger.Warn("photo capture returned no data", "user_id", userID)
		return Stored{}, false
	}

	p := &Stored{
		RequestID: shot.RequestID,
		UserID:    userID,
		Data:      shot.Data,
		Timestamp: shot.Timestamp,
		MimeType:  shot.MimeType,
		Filename:  shot.Filename,
		Size:      shot.Size,
	}
	if p.RequestID == "" {
		p.RequestID = uuid.NewString()
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}
	if p.MimeType == "" {
		p.MimeType = "image/jpeg"
	}
	if p.Filename == "" {
		p.Filename = p.RequestID + extension(p.MimeType)
	}

	c.store.Put(p)
	c.logger.Info("photo captured",
		"user_id", userID,
		"request_id", p.RequestID,
		"mime_type", p.MimeType,
		"size", p.Size,
	)

	stored, _ := c.store.Get(p.RequestID)
	if c.publisher != nil {
		c.publisher.PublishPhoto(stored)
	}
	return stored, true
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
