package web

import (
	"bufio"
	"bytes"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-glance/pkg/hub"
)

func (s *Server) handlePhotoStream(c *fiber.Ctx) error {
	return s.stream(c, hub.StreamPhotos)
}

func (s *Server) handleTranscriptionStream(c *fiber.Ctx) error {
	return s.stream(c, hub.StreamTranscriptions)
}

// stream serves userId's events on the given hub stream as server-sent events.
func (s *Server) stream(c *fiber.Ctx, stream string) error {
	userID := c.Query("userId")
	if userID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "userId is required")
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	msgs, cancel := s.deps.Events.Subscribe(userID, stream)
	keepAlive := s.cfg.KeepAlive
	logger := s.logger.With("user_id", userID, "stream", stream)
	logger.Debug("sse client connected")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cancel()
			logger.Debug("sse client disconnected")
		}()

		w.WriteString(": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()
		for {
			select {
			case m, ok := <-msgs:
				if !ok {
					return
				}
				WriteEvent(w, m)
			case <-ticker.C:
				w.WriteString(": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}

// WriteEvent writes m as one SSE frame. Multi-line payloads are split across
// data fields.
func WriteEvent(w *bufio.Writer, m hub.Message) {
	if m.Event != "" {
		w.WriteString("event: " + m.Event + "\n")
	}
	for _, line := range bytes.Split(m.Data, []byte("\n")) {
		w.WriteString("data: ")
		w.Write(line)
		w.WriteByte('\n')
	}
	w.WriteByte('\n')
}

// handleEventsWS mirrors both streams onto a websocket.
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	userID := conn.Query("userId")
	if userID == "" {
		conn.WriteJSON(map[string]string{"error": "userId is required"})
		conn.Close()
		return
	}
	hub.NewClient(s.deps.Events, conn, userID).Run()
}
