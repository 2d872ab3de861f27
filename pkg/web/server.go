// Package web serves the companion UI: live photo and transcription streams,
// photo retrieval, playback triggers and the theme preference.
package web

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-glance/internal/log"
	"github.com/teslashibe/go-glance/pkg/device"
	"github.com/teslashibe/go-glance/pkg/hub"
	"github.com/teslashibe/go-glance/pkg/photo"
	"github.com/teslashibe/go-glance/pkg/prefs"
	"github.com/teslashibe/go-glance/pkg/session"
	"github.com/teslashibe/go-glance/pkg/tts"
)

// DefaultKeepAlive is the SSE comment interval that keeps proxies from
// closing idle streams.
const DefaultKeepAlive = 15 * time.Second

// Config configures the server.
type Config struct {
	Port      string
	StaticDir string
	KeepAlive time.Duration

	// Debug enables per-request access logging.
	Debug bool
}

// Deps are the components the routes act on. Clips and Devices may be nil.
type Deps struct {
	Events   *hub.Hub
	Registry *session.Registry
	Speaker  *session.Speaker
	Photos   *photo.Store
	Prefs    *prefs.Store
	Clips    *tts.ClipCache
	Devices  *device.Hub
	Logger   *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	app    *fiber.App
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

// NewServer creates the server and registers every route.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	l := deps.Logger
	if l == nil {
		l = log.L()
	}
	s := &Server{cfg: cfg, deps: deps, logger: l.With("component", "web.Server")}

	app := fiber.New(fiber.Config{
		AppName:               "Glance",
		DisableStartupMessage: true,
		BodyLimit:             1 << 20,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New())
	if cfg.Debug {
		app.Use(logger.New())
	}

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/sessions", s.handleSessions)
	api.Get("/photo-stream", s.handlePhotoStream)
	api.Get("/transcription-stream", s.handleTranscriptionStream)
	api.Get("/latest-photo", s.handleLatestPhoto)
	api.Get("/photo/:requestId", s.handlePhoto)
	api.Get("/photo-base64/:requestId", s.handlePhotoBase64)
	api.Post("/play-audio", s.handlePlayAudio)
	api.Post("/speak", s.handleSpeak)
	api.Get("/theme-preference", s.handleGetTheme)
	api.Post("/theme-preference", s.handleSetTheme)
	api.Get("/audio/:clipId", s.handleAudioClip)

	if deps.Devices != nil {
		deps.Devices.RegisterRoutes(app)
		deps.Devices.RegisterAPIRoutes(api)
	}

	app.Use("/ws/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s
}

// App exposes the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured port and blocks.
func (s *Server) Start() error {
	s.logger.Info("web server listening", "port", s.cfg.Port)
	return s.app.Listen(":" + s.cfg.Port)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
