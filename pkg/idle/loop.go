// Package idle narrates nearby places once a user has heard nothing for a
// while.
//
// A Loop polls the activity tracker on a fixed tick. When the time since the
// last speech start reaches the threshold it sets the user's guard flag and
// runs one nearby-places query. The flag keeps later ticks from starting a
// second query until speech starts again or the query finishes.
package idle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-glance/internal/log"
	"github.com/teslashibe/go-glance/pkg/activity"
	"github.com/teslashibe/go-glance/pkg/device"
	"github.com/teslashibe/go-glance/pkg/location"
	"github.com/teslashibe/go-glance/pkg/narration"
	"github.com/teslashibe/go-glance/pkg/sched"
)

// Defaults for the polling loop.
const (
	DefaultTick      = 10 * time.Second
	DefaultThreshold = 30 * time.Second
)

// Result describes what one tick did.
type Result int

const (
	// NoAudio means nothing has ever been spoken to the user.
	NoAudio Result = iota
	// Active means speech started within the threshold.
	Active
	// Waiting means the user is idle but a query already ran this idle period.
	Waiting
	// Queried means a nearby-places query was started.
	Queried
)

func (r Result) String() string {
	switch r {
	case NoAudio:
		return "no_audio"
	case Active:
		return "active"
	case Waiting:
		return "waiting"
	case Queried:
		return "queried"
	}
	return "unknown"
}

// Resolver finds and geocodes the user's location.
type Resolver interface {
	ResolveAndGeocode(ctx context.Context, loc device.Locator, userID string) (*location.Resolved, bool)
}

// Narrator produces nearby-places narration.
type Narrator interface {
	NearbyPlaces(ctx context.Context, req narration.NearbyRequest) (string, bool)
}

// Speaker plays narration. Implementations record the speech start before
// playing and clear the user's guard flag when playback ends.
type Speaker interface {
	Speak(ctx context.Context, userID, text string) error
}

// Deps are the collaborators shared by every Loop.
type Deps struct {
	Tracker  *activity.Tracker
	Guards   *Guards
	Resolver Resolver
	Narrator Narrator
	History  *narration.History
	Speaker  Speaker
	Logger   *slog.Logger
}

// Loop is the idle narration loop for one user.
type Loop struct {
	userID    string
	locator   device.Locator
	deps      Deps
	tick      time.Duration
	threshold time.Duration
	logger    *slog.Logger

	wg sync.WaitGroup
}

// NewLoop creates a loop for userID. Zero durations use the defaults.
func NewLoop(userID string, locator device.Locator, deps Deps, tick, threshold time.Duration) *Loop {
	if tick <= 0 {
		tick = DefaultTick
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.L()
	}
	return &Loop{
		userID:    userID,
		locator:   locator,
		deps:      deps,
		tick:      tick,
		threshold: threshold,
		logger:    logger.With("component", "idle.Loop", "user_id", userID),
	}
}

// Run ticks until ctx is done, then waits for any in-flight query.
func (l *Loop) Run(ctx context.Context) {
	sched.RunInterval(ctx, l.tick, false, func(ctx context.Context) {
		l.Tick(ctx)
	})
	l.wg.Wait()
}

// Tick evaluates idleness once. A triggered query runs in the background;
// use Wait to block until it finishes.
func (l *Loop) Tick(ctx context.Context) Result {
	elapsed, ok := l.deps.Tracker.IdleFor(l.userID)
	if !ok {
		return NoAudio
	}
	if elapsed < l.threshold {
		l.deps.Guards.Clear(l.userID)
		return Active
	}
	if !l.deps.Guards.TrySet(l.userID) {
		return Waiting
	}

	l.logger.Info("user idle, querying nearby places", "idle_for", elapsed.Round(time.Second))
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("nearby query panicked", "panic", r)
				l.deps.Guards.Clear(l.userID)
			}
		}()
		l.query(ctx)
	}()
	return Queried
}

// Wait blocks until in-flight queries finish.
func (l *Loop) Wait() {
	l.wg.Wait()
}

func (l *Loop) query(ctx context.Context) {
	defer l.deps.Guards.Clear(l.userID)

	res, ok := l.deps.Resolver.ResolveAndGeocode(ctx, l.locator, l.userID)
	if !ok {
		l.logger.Warn("no location for nearby query")
		return
	}
	place := res.Place
	if place.City == "" || place.Country == "" {
		l.logger.Warn("location has no city or country", "place", place.FormattedAddress)
		return
	}

	mentioned, previous := l.deps.History.Snapshot(l.userID)
	text, ok := l.deps.Narrator.NearbyPlaces(ctx, narration.NearbyRequest{
		Street:            place.Street,
		City:              place.City,
		Country:           place.Country,
		Mentioned:         mentioned,
		PreviousResponses: previous,
	})
	if !ok {
		return
	}

	l.deps.History.Record(l.userID, text)
	if err := l.deps.Speaker.Speak(ctx, l.userID, text); err != nil {
		l.logger.Warn("nearby narration playback failed", "error", err)
	}
}
