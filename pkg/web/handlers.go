package web

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-glance/pkg/device"
	"github.com/teslashibe/go-glance/pkg/hub"
	"github.com/teslashibe/go-glance/pkg/photo"
	"github.com/teslashibe/go-glance/pkg/prefs"
)

// PlayAudioRequest is the body of POST /api/play-audio.
type PlayAudioRequest struct {
	UserID   string `json:"userId"`
	AudioURL string `json:"audioUrl"`
}

// SpeakRequest is the body of POST /api/speak.
type SpeakRequest struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

// ThemeRequest is the body of POST /api/theme-preference.
type ThemeRequest struct {
	UserID string `json:"userId"`
	Theme  string `json:"theme"`
}

// PhotoData is the base64 photo envelope.
type PhotoData struct {
	RequestID string `json:"requestId"`
	Timestamp int64  `json:"timestamp"`
	MimeType  string `json:"mimeType"`
	Filename  string `json:"filename"`
	Size      int    `json:"size"`
	UserID    string `json:"userId"`
	Data      string `json:"data"`
	DataURL   string `json:"dataUrl"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "ok",
		"sessions":    s.deps.Registry.Count(),
		"subscribers": s.deps.Events.SubscriberCount(),
		"photos":      s.deps.Photos.Len(),
	})
}

func (s *Server) handleSessions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"sessions": s.deps.Registry.Infos()})
}

func (s *Server) handleLatestPhoto(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "userId is required")
	}
	p, ok := s.deps.Photos.Latest(userID)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no photo available")
	}
	return c.JSON(hub.PhotoEvent{
		RequestID: p.RequestID,
		Timestamp: p.Timestamp,
		MimeType:  p.MimeType,
		Filename:  p.Filename,
		Size:      p.Size,
		Width:     p.Width,
		Height:    p.Height,
		UserID:    p.UserID,
	})
}

// ownedPhoto loads the photo named in the path and checks it belongs to the
// requesting user.
func (s *Server) ownedPhoto(c *fiber.Ctx) (photo.Stored, error) {
	userID := c.Query("userId")
	if userID == "" {
		return photo.Stored{}, fiber.NewError(fiber.StatusBadRequest, "userId is required")
	}
	p, ok := s.deps.Photos.Get(c.Params("requestId"))
	if !ok {
		return photo.Stored{}, fiber.NewError(fiber.StatusNotFound, "photo not found")
	}
	if p.UserID != userID {
		s.logger.Warn("cross-user photo access denied", "user_id", userID, "request_id", p.RequestID)
		return photo.Stored{}, fiber.NewError(fiber.StatusForbidden, "access denied")
	}
	return p, nil
}

func (s *Server) handlePhoto(c *fiber.Ctx) error {
	p, err := s.ownedPhoto(c)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, p.MimeType)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	return c.Send(p.Data)
}

func (s *Server) handlePhotoBase64(c *fiber.Ctx) error {
	p, err := s.ownedPhoto(c)
	if err != nil {
		return err
	}
	data := base64.StdEncoding.EncodeToString(p.Data)
	return c.JSON(PhotoData{
		RequestID: p.RequestID,
		Timestamp: p.Timestamp.UnixMilli(),
		MimeType:  p.MimeType,
		Filename:  p.Filename,
		Size:      p.Size,
		UserID:    p.UserID,
		Data:      data,
		DataURL:   "data:" + p.MimeType + ";base64," + data,
	})
}

func (s *Server) handlePlayAudio(c *fiber.Ctx) error {
	var req PlayAudioRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" || strings.TrimSpace(req.AudioURL) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "userId and audioUrl are required")
	}
	if err := s.deps.Speaker.PlayAudio(c.UserContext(), req.UserID, req.AudioURL); err != nil {
		return s.playbackError(err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handleSpeak(c *fiber.Ctx) error {
	var req SpeakRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" || strings.TrimSpace(req.Text) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "userId and text are required")
	}
	if err := s.deps.Speaker.Speak(c.UserContext(), req.UserID, req.Text); err != nil {
		return s.playbackError(err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) playbackError(err error) error {
	if errors.Is(err, device.ErrNotConnected) {
		return fiber.NewError(fiber.StatusNotFound, "no active session for user")
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

func (s *Server) handleGetTheme(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "userId is required")
	}
	return c.JSON(fiber.Map{"theme": s.deps.Prefs.Theme(c.UserContext(), userID)})
}

func (s *Server) handleSetTheme(c *fiber.Ctx) error {
	var req ThemeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "userId is required")
	}
	if err := s.deps.Prefs.SetTheme(c.UserContext(), req.UserID, req.Theme); err != nil {
		if errors.Is(err, prefs.ErrInvalidTheme) {
			return fiber.NewError(fiber.StatusBadRequest, "theme must be 'dark' or 'light'")
		}
		return err
	}

	// mirror to the glasses' own storage when connected
	if sess, ok := s.deps.Registry.Get(req.UserID); ok {
		if err := sess.Set(c.UserContext(), prefs.KeyTheme, req.Theme); err != nil {
			s.logger.Debug("device storage write failed", "user_id", req.UserID, "error", err)
		}
	}
	return c.JSON(fiber.Map{"success": true, "theme": req.Theme})
}

func (s *Server) handleAudioClip(c *fiber.Ctx) error {
	if s.deps.Clips == nil {
		return fiber.NewError(fiber.StatusNotFound, "server speech disabled")
	}
	clip, ok := s.deps.Clips.Get(c.Params("clipId"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "clip not found")
	}
	c.Set(fiber.HeaderContentType, clip.ContentType)
	return c.Send(clip.Audio)
}
