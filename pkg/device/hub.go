package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-glance/pkg/protocol"
)

// Default request timeouts.
const (
	DefaultRequestTimeout  = 15 * time.Second
	DefaultPlaybackTimeout = 2 * time.Minute
)

// Hub accepts WebSocket connections from glasses and exposes each one as a Session.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn

	logger          *slog.Logger
	requestTimeout  time.Duration
	playbackTimeout time.Duration

	// Callbacks
	onConnect    func(Session)
	onDisconnect func(userID string)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	eventsReceived   atomic.Uint64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// WithRequestTimeout bounds photo, location and storage requests.
func WithRequestTimeout(d time.Duration) HubOption {
	return func(h *Hub) { h.requestTimeout = d }
}

// WithPlaybackTimeout bounds speak and play requests, which resolve when playback ends.
func WithPlaybackTimeout(d time.Duration) HubOption {
	return func(h *Hub) { h.playbackTimeout = d }
}

// NewHub creates a new device hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		conns:           make(map[string]*Conn),
		logger:          slog.Default(),
		requestTimeout:  DefaultRequestTimeout,
		playbackTimeout: DefaultPlaybackTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "device.hub")
	return h
}

// OnConnect sets the callback run when a device connects. It must not block.
func (h *Hub) OnConnect(callback func(Session)) {
	h.mu.Lock()
	h.onConnect = callback
	h.mu.Unlock()
}

// OnDisconnect sets the callback run when a device disconnects.
func (h *Hub) OnDisconnect(callback func(userID string)) {
	h.mu.Lock()
	h.onDisconnect = callback
	h.mu.Unlock()
}

// RegisterRoutes registers the device WebSocket endpoint on a Fiber app.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/device", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/device", websocket.New(h.handleDevice))
	app.Get("/ws/device/:userId", websocket.New(h.handleDevice))
}

// handleDevice runs for the lifetime of one device connection.
func (h *Hub) handleDevice(ws *websocket.Conn) {
	userID := ws.Params("userId")
	if userID == "" {
		userID = ws.Query("userId")
	}
	if userID == "" {
		id, err := h.awaitHello(ws)
		if err != nil {
			h.logger.Warn("device rejected", "error", err)
			ws.Close()
			return
		}
		userID = id
	}

	conn := newConn(h, userID, ws)

	h.mu.Lock()
	old := h.conns[userID]
	h.conns[userID] = conn
	count := len(h.conns)
	onConnect := h.onConnect
	h.mu.Unlock()

	if old != nil {
		h.logger.Info("device replaced existing connection", "user_id", userID)
		old.close()
	}
	h.logger.Info("device connected", "user_id", userID, "total", count)

	if onConnect != nil {
		onConnect(conn)
	}

	defer func() {
		conn.close()

		h.mu.Lock()
		current := h.conns[userID] == conn
		if current {
			delete(h.conns, userID)
		}
		count := len(h.conns)
		onDisconnect := h.onDisconnect
		h.mu.Unlock()

		h.logger.Info("device disconnected", "user_id", userID, "total", count)
		if current && onDisconnect != nil {
			onDisconnect(userID)
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			h.logger.Debug("device read ended", "user_id", userID, "error", err)
			return
		}
		conn.lastSeen.Store(time.Now().UnixMilli())
		h.messagesReceived.Add(1)
		conn.handleMessage(data)
	}
}

// awaitHello reads the first message and expects it to identify the user.
func (h *Hub) awaitHello(ws *websocket.Conn) (string, error) {
	ws.SetReadDeadline(time.Now().Add(h.requestTimeout))
	defer ws.SetReadDeadline(time.Time{})

	_, data, err := ws.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read hello: %w", err)
	}
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return "", err
	}
	if msg.Type != protocol.TypeHello {
		return "", fmt.Errorf("expected hello, got %s", msg.Type)
	}
	var hello protocol.HelloData
	if err := msg.ParseData(&hello); err != nil {
		return "", fmt.Errorf("parse hello: %w", err)
	}
	if hello.UserID == "" {
		return "", errors.New("hello without user_id")
	}
	return hello.UserID, nil
}

// Get returns the connection for a user, or nil.
func (h *Hub) Get(userID string) *Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[userID]
}

// Count returns the number of connected devices.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Stats contains hub statistics
type Stats struct {
	DeviceCount      int    `json:"device_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	EventsReceived   uint64 `json:"events_received"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		DeviceCount:      h.Count(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		EventsReceived:   h.eventsReceived.Load(),
	}
}

// Info describes a connected device.
type Info struct {
	UserID    string    `json:"user_id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// Infos returns info about all connected devices.
func (h *Hub) Infos() []Info {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]Info, 0, len(h.conns))
	for _, c := range h.conns {
		infos = append(infos, Info{
			UserID:    c.userID,
			Connected: c.connected,
			LastSeen:  time.UnixMilli(c.lastSeen.Load()),
		})
	}
	return infos
}

// RegisterAPIRoutes registers read-only device management routes.
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	devices := api.Group("/devices")

	devices.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"devices": h.Infos(),
			"count":   h.Count(),
		})
	})

	devices.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}

// Conn is one connected device. It implements Session.
type Conn struct {
	Dispatcher

	hub       *Hub
	userID    string
	ws        *websocket.Conn
	connected time.Time
	lastSeen  atomic.Int64

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan *protocol.Message

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(h *Hub, userID string, ws *websocket.Conn) *Conn {
	now := time.Now()
	c := &Conn{
		hub:       h,
		userID:    userID,
		ws:        ws,
		connected: now,
		pending:   make(map[string]chan *protocol.Message),
		done:      make(chan struct{}),
	}
	c.lastSeen.Store(now.UnixMilli())
	return c
}

// UserID returns the user wearing this device.
func (c *Conn) UserID() string { return c.userID }

// send writes a message to the device.
func (c *Conn) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrDisconnected
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("device write: %w", err)
	}
	c.hub.messagesSent.Add(1)
	return nil
}

// request sends msgType and waits for the correlated reply.
func (c *Conn) request(ctx context.Context, timeout time.Duration, msgType protocol.MessageType, data interface{}) (*protocol.Message, error) {
	msg, err := protocol.NewRequest(msgType, data)
	if err != nil {
		return nil, err
	}

	ch := make(chan *protocol.Message, 1)
	c.pendingMu.Lock()
	c.pending[msg.ID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, msg.ID)
		c.pendingMu.Unlock()
	}()

	if err := c.send(msg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case resp := <-ch:
		if resp.Type == protocol.TypeError {
			var e protocol.ErrorData
			resp.ParseData(&e)
			return nil, fmt.Errorf("device %s failed: %s", msgType, e.Message)
		}
		return resp, nil
	case <-c.done:
		return nil, ErrDisconnected
	case <-ctx.Done():
		return nil, fmt.Errorf("device %s: %w", msgType, ctx.Err())
	}
}

// handleMessage routes a message to a pending request or to event subscribers.
func (c *Conn) handleMessage(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		c.hub.logger.Warn("device sent invalid message", "user_id", c.userID, "error", err)
		return
	}

	if msg.ID != "" {
		// The first reply claims the request; repeats are dropped.
		c.pendingMu.Lock()
		ch, ok := c.pending[msg.ID]
		delete(c.pending, msg.ID)
		c.pendingMu.Unlock()
		if ok {
			select {
			case ch <- msg:
			default:
			}
			return
		}
	}

	switch msg.Type {
	case protocol.TypeButtonPress:
		var d protocol.ButtonPressData
		if err := msg.ParseData(&d); err == nil {
			c.hub.eventsReceived.Add(1)
			c.Emit(Event{Kind: EventButtonPress, Button: &ButtonPress{ButtonID: d.ButtonID, PressType: d.PressType}})
		}

	case protocol.TypeTouchEvent:
		var d protocol.TouchEventData
		if err := msg.ParseData(&d); err == nil {
			c.hub.eventsReceived.Add(1)
			c.Emit(Event{Kind: EventTouch, Touch: &Touch{Gesture: d.Gesture}})
		}

	case protocol.TypeTranscription:
		var d protocol.TranscriptionData
		if err := msg.ParseData(&d); err == nil {
			c.hub.eventsReceived.Add(1)
			c.Emit(Event{Kind: EventTranscription, Transcription: &Transcription{Text: d.Text, IsFinal: d.IsFinal, Language: d.Language}})
		}

	case protocol.TypePing:
		pong, err := protocol.NewResponse(msg.ID, protocol.TypePong, nil)
		if err == nil {
			c.send(pong)
		}

	case protocol.TypeHello:

	default:
		c.hub.logger.Debug("unhandled device message", "user_id", c.userID, "type", msg.Type)
	}
}

// close fails pending requests and closes the socket. Safe to call twice.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.ws.Close()
		c.writeMu.Unlock()
	})
}

// RequestPhoto asks the device camera for a photo.
func (c *Conn) RequestPhoto(ctx context.Context) (*Photo, error) {
	resp, err := c.request(ctx, c.hub.requestTimeout, protocol.TypePhotoRequest, nil)
	if err != nil {
		return nil, err
	}
	var d protocol.PhotoData
	if err := resp.ParseData(&d); err != nil {
		return nil, fmt.Errorf("parse photo: %w", err)
	}
	data, err := d.Bytes()
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	ts := time.Now()
	if d.Timestamp > 0 {
		ts = time.UnixMilli(d.Timestamp)
	}
	return &Photo{
		RequestID: d.RequestID,
		Data:      data,
		Timestamp: ts,
		MimeType:  d.MimeType,
		Filename:  d.Filename,
		Size:      len(data),
	}, nil
}

// LatestLocation asks the device for a one-shot location fix.
func (c *Conn) LatestLocation(ctx context.Context, accuracy string) (map[string]any, error) {
	resp, err := c.request(ctx, c.hub.requestTimeout, protocol.TypeLocationRequest, protocol.LocationRequestData{Accuracy: accuracy})
	if err != nil {
		return nil, err
	}
	var loc map[string]any
	if err := resp.ParseData(&loc); err != nil {
		return nil, fmt.Errorf("parse location: %w", err)
	}
	return loc, nil
}

// Speak asks the device to speak text.
func (c *Conn) Speak(ctx context.Context, text string) error {
	_, err := c.request(ctx, c.hub.playbackTimeout, protocol.TypeSpeak, protocol.SpeakData{Text: text})
	return err
}

// PlayAudio asks the device to play the audio at audioURL.
func (c *Conn) PlayAudio(ctx context.Context, audioURL string) error {
	_, err := c.request(ctx, c.hub.playbackTimeout, protocol.TypePlayAudio, protocol.PlayAudioData{AudioURL: audioURL})
	return err
}

// StopAudio interrupts playback on the device.
func (c *Conn) StopAudio(ctx context.Context) error {
	_, err := c.request(ctx, c.hub.requestTimeout, protocol.TypeStopAudio, nil)
	return err
}

// Get reads a key from device storage.
func (c *Conn) Get(ctx context.Context, key string) (string, bool, error) {
	resp, err := c.request(ctx, c.hub.requestTimeout, protocol.TypeStorageGet, protocol.StorageGetData{Key: key})
	if err != nil {
		return "", false, err
	}
	var d protocol.StorageValueData
	if err := resp.ParseData(&d); err != nil {
		return "", false, fmt.Errorf("parse storage value: %w", err)
	}
	return d.Value, d.Found, nil
}

// Set writes a key to device storage.
func (c *Conn) Set(ctx context.Context, key, value string) error {
	_, err := c.request(ctx, c.hub.requestTimeout, protocol.TypeStorageSet, protocol.StorageSetData{Key: key, Value: value})
	return err
}

// Verify Conn implements Session at compile time.
var _ Session = (*Conn)(nil)
