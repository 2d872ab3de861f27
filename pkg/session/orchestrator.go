package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-glance/internal/log"
	"github.com/teslashibe/go-glance/pkg/activity"
	"github.com/teslashibe/go-glance/pkg/device"
	"github.com/teslashibe/go-glance/pkg/idle"
	"github.com/teslashibe/go-glance/pkg/location"
	"github.com/teslashibe/go-glance/pkg/narration"
	"github.com/teslashibe/go-glance/pkg/photo"
	"github.com/teslashibe/go-glance/pkg/sched"
)

// Default welcome timing.
const (
	DefaultWelcomeDelay = 1 * time.Second
	DefaultCityDelay    = 3 * time.Second
)

// Fallback welcome when the location is unknown.
const genericWelcome = "Welcome! I'm ready to explore with you. Press the button to learn about what you see."

// Resolver finds the user's location.
type Resolver interface {
	idle.Resolver
	Resolve(ctx context.Context, loc device.Locator, userID string, useCache bool) (*location.Snapshot, bool)
	Forget(userID string)
}

// Narrator produces city and nearby-places narration.
type Narrator interface {
	idle.Narrator
	CityDescription(ctx context.Context, city string) (string, bool)
}

// Analyzer explains a photo.
type Analyzer interface {
	Analyze(ctx context.Context, img []byte, userID string) (string, bool)
}

// Notifier receives UI-facing events. Implementations must not block.
type Notifier interface {
	Transcription(userID string, t device.Transcription)
	Log(userID, level, message string)
}

// Config holds orchestrator timing and policy.
type Config struct {
	IdleTick      time.Duration
	IdleThreshold time.Duration
	WelcomeDelay  time.Duration
	CityDelay     time.Duration

	// ClearHistoryOnStop forgets narration history when a session ends.
	ClearHistoryOnStop bool
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		IdleTick:      idle.DefaultTick,
		IdleThreshold: idle.DefaultThreshold,
		WelcomeDelay:  DefaultWelcomeDelay,
		CityDelay:     DefaultCityDelay,
	}
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Registry *Registry
	Tracker  *activity.Tracker
	Guards   *idle.Guards
	History  *narration.History
	Resolver Resolver
	Narrator Narrator
	Capturer *photo.Capturer
	Photos   *photo.Store
	Analyzer Analyzer
	Speaker  *Speaker
	Notifier Notifier
	Logger   *slog.Logger
}

// Orchestrator runs the per-user session lifecycle.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running map[string]*running
}

// running is the live state of one started session.
type running struct {
	sess  device.Session
	group *sched.Group
	subs  []device.Subscription
}

// NewOrchestrator creates an orchestrator. Zero timings use the defaults.
func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.IdleTick <= 0 {
		cfg.IdleTick = def.IdleTick
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = def.IdleThreshold
	}
	if cfg.WelcomeDelay <= 0 {
		cfg.WelcomeDelay = def.WelcomeDelay
	}
	if cfg.CityDelay <= 0 {
		cfg.CityDelay = def.CityDelay
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.L()
	}
	return &Orchestrator{
		deps:    deps,
		cfg:     cfg,
		logger:  logger.With("component", "session.Orchestrator"),
		running: make(map[string]*running),
	}
}

// Start registers sess, subscribes to its events, starts the idle loop and
// fires the welcome sequence. It does not block. A previous session for the
// same user is stopped first.
func (o *Orchestrator) Start(ctx context.Context, sess device.Session) {
	userID := sess.UserID()
	o.Stop(userID)

	o.deps.Registry.Register(sess)
	r := &running{sess: sess, group: sched.NewGroup(ctx)}

	r.subs = append(r.subs,
		sess.Subscribe(device.EventButtonPress, func(ev device.Event) {
			if ev.Button == nil {
				return
			}
			press := *ev.Button
			if !r.group.Go(func(ctx context.Context) {
				o.guard(userID, "button", func() { o.HandleButton(ctx, userID, press) })
			}) {
				o.logger.Debug("button press after session stop", "user_id", userID)
			}
		}),
		sess.Subscribe(device.EventTouch, func(ev device.Event) {
			if ev.Touch != nil {
				o.logger.Info("touch event", "user_id", userID, "gesture", ev.Touch.Gesture)
			}
		}),
		sess.Subscribe(device.EventTranscription, func(ev device.Event) {
			if ev.Transcription != nil && o.deps.Notifier != nil {
				o.deps.Notifier.Transcription(userID, *ev.Transcription)
			}
		}),
	)

	loop := idle.NewLoop(userID, sess, idle.Deps{
		Tracker:  o.deps.Tracker,
		Guards:   o.deps.Guards,
		Resolver: o.deps.Resolver,
		Narrator: o.deps.Narrator,
		History:  o.deps.History,
		Speaker:  o.deps.Speaker,
		Logger:   o.logger,
	}, o.cfg.IdleTick, o.cfg.IdleThreshold)
	r.group.Go(loop.Run)

	r.group.Go(func(ctx context.Context) {
		o.guard(userID, "welcome", func() {
			if err := o.welcome(sess).Run(ctx); err != nil && ctx.Err() == nil {
				o.logger.Warn("welcome sequence failed", "user_id", userID, "error", err)
			}
		})
	})

	o.mu.Lock()
	o.running[userID] = r
	o.mu.Unlock()

	o.deps.Registry.SetState(userID, Active)
	o.notify(userID, "info", "Session started")
	o.logger.Info("session started", "user_id", userID)
}

// welcome builds the greeting sequence: locate, greet, then describe the city.
func (o *Orchestrator) welcome(sess device.Session) sched.Sequence {
	userID := sess.UserID()
	var place location.Place

	return sched.Sequence{
		{
			Name: "locate",
			Run: func(ctx context.Context) error {
				if res, ok := o.deps.Resolver.ResolveAndGeocode(ctx, sess, userID); ok {
					place = res.Place
				}
				return nil
			},
		},
		{
			Name:  "greet",
			Delay: o.cfg.WelcomeDelay,
			Run: func(ctx context.Context) error {
				if err := o.deps.Speaker.SpeakOn(ctx, sess, WelcomeText(place)); err != nil {
					o.logger.Warn("welcome speech failed", "user_id", userID, "error", err)
				}
				if place.City == "" {
					return sched.ErrHalt
				}
				return nil
			},
		},
		{
			Name:  "city",
			Delay: o.cfg.CityDelay,
			Run: func(ctx context.Context) error {
				text, ok := o.deps.Narrator.CityDescription(ctx, place.City)
				if !ok {
					return sched.ErrHalt
				}
				if err := o.deps.Speaker.SpeakOn(ctx, sess, text); err != nil {
					o.logger.Warn("city description speech failed", "user_id", userID, "error", err)
				}
				return nil
			},
		},
	}
}

// WelcomeText is the greeting for place.
func WelcomeText(place location.Place) string {
	if label := place.Label(); label != "" {
		return fmt.Sprintf("Welcome to %s! Press the button to learn about what you see.", label)
	}
	return genericWelcome
}

// ButtonResult says how far a button press got.
type ButtonResult int

const (
	// Ignored means the press was not acted on (no session, or long press).
	Ignored ButtonResult = iota
	// NoPhoto means the camera failed.
	NoPhoto
	// NoLocation means the photo was kept but no location was available.
	NoLocation
	// NoExplanation means analysis produced nothing to say.
	NoExplanation
	// Spoken means the explanation was played.
	Spoken
)

func (r ButtonResult) String() string {
	switch r {
	case Ignored:
		return "ignored"
	case NoPhoto:
		return "no_photo"
	case NoLocation:
		return "no_location"
	case NoExplanation:
		return "no_explanation"
	case Spoken:
		return "spoken"
	}
	return "unknown"
}

// HandleButton runs the capture chain for a short press: photo, location,
// EXIF tagging, analysis, then interrupt current audio and speak the result.
// Each failure ends the chain quietly.
func (o *Orchestrator) HandleButton(ctx context.Context, userID string, press device.ButtonPress) ButtonResult {
	sess, ok := o.deps.Registry.Get(userID)
	if !ok {
		return Ignored
	}
	if press.PressType == device.PressLong {
		o.logger.Info("long press ignored, streaming mode not available", "user_id", userID)
		return Ignored
	}

	shot, ok := o.deps.Capturer.Capture(ctx, sess, userID)
	if !ok {
		return NoPhoto
	}
	o.notify(userID, "info", "Photo captured")

	loc, ok := o.deps.Resolver.Resolve(ctx, sess, userID, true)
	if !ok {
		o.logger.Warn("no location, skipping analysis", "user_id", userID, "request_id", shot.RequestID)
		return NoLocation
	}

	data := shot.Data
	tagged, err := photo.AnnotateWithLocation(shot.Data, shot.MimeType, loc)
	if err != nil {
		o.logger.Warn("EXIF annotation failed, sending original", "user_id", userID, "error", err)
	} else {
		data = tagged
		if err := o.deps.Photos.ReplaceData(shot.RequestID, tagged); err != nil {
			o.logger.Warn("update stored photo", "request_id", shot.RequestID, "error", err)
		}
	}

	text, ok := o.deps.Analyzer.Analyze(ctx, data, userID)
	if !ok || text == "" {
		return NoExplanation
	}
	o.notify(userID, "info", "Analysis: "+text)

	if err := sess.StopAudio(ctx); err != nil {
		o.logger.Debug("stop audio", "user_id", userID, "error", err)
	}
	if err := o.deps.Speaker.SpeakOn(ctx, sess, text); err != nil {
		o.logger.Warn("explanation speech failed", "user_id", userID, "error", err)
	}
	return Spoken
}

// Stop ends the user's session: cancels its work, drops subscriptions and
// per-user state, and unregisters it. Narration history survives unless
// ClearHistoryOnStop is set.
func (o *Orchestrator) Stop(userID string) {
	o.mu.Lock()
	r, ok := o.running[userID]
	delete(o.running, userID)
	o.mu.Unlock()
	if !ok {
		return
	}

	for _, s := range r.subs {
		s.Unsubscribe()
	}
	r.group.Stop()

	o.deps.Tracker.Clear(userID)
	o.deps.Guards.Clear(userID)
	o.deps.Resolver.Forget(userID)
	if o.cfg.ClearHistoryOnStop {
		o.deps.History.Clear(userID)
	}
	o.deps.Registry.SetState(userID, Stopped)
	o.deps.Registry.Unregister(userID, r.sess)
	o.logger.Info("session stopped", "user_id", userID)
}

// StopAll stops every running session.
func (o *Orchestrator) StopAll() {
	o.mu.Lock()
	ids := make([]string, 0, len(o.running))
	for id := range o.running {
		ids = append(ids, id)
	}
	o.mu.Unlock()
	for _, id := range ids {
		o.Stop(id)
	}
}

// Running reports whether the user has a started session.
func (o *Orchestrator) Running(userID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[userID]
	return ok
}

func (o *Orchestrator) notify(userID, level, msg string) {
	if o.deps.Notifier != nil {
		o.deps.Notifier.Log(userID, level, msg)
	}
}

// guard runs fn, logging instead of propagating a panic.
func (o *Orchestrator) guard(userID, task string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("session task panicked", "user_id", userID, "task", task, "panic", r)
		}
	}()
	fn()
}
