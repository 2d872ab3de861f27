package idle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-glance/internal/log"
	"github.com/teslashibe/go-glance/pkg/activity"
	"github.com/teslashibe/go-glance/pkg/device"
	"github.com/teslashibe/go-glance/pkg/location"
	"github.com/teslashibe/go-glance/pkg/narration"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type stubResolver struct {
	res *location.Resolved
	ok  bool
}

func (s *stubResolver) ResolveAndGeocode(ctx context.Context, loc device.Locator, userID string) (*location.Resolved, bool) {
	return s.res, s.ok
}

type stubNarrator struct {
	mu      sync.Mutex
	text    string
	ok      bool
	block   chan struct{}
	calls   int
	lastReq narration.NearbyRequest
}

func (s *stubNarrator) NearbyPlaces(ctx context.Context, req narration.NearbyRequest) (string, bool) {
	s.mu.Lock()
	s.calls++
	s.lastReq = req
	block := s.block
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	return s.text, s.ok
}

func (s *stubNarrator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// recordingSpeaker mirrors the session speaker: mark, speak, clear guard.
type recordingSpeaker struct {
	tracker *activity.Tracker
	guards  *Guards
	err     error

	mu                  sync.Mutex
	spoken              []string
	guardSetDuringSpeak bool
}

func (s *recordingSpeaker) Speak(ctx context.Context, userID, text string) error {
	s.tracker.MarkAudioStarted(userID)
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.guardSetDuringSpeak = s.guards.IsSet(userID)
	s.mu.Unlock()
	s.guards.Clear(userID)
	return s.err
}

func (s *recordingSpeaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

type fixture struct {
	clock    *fakeClock
	tracker  *activity.Tracker
	guards   *Guards
	resolver *stubResolver
	narrator *stubNarrator
	history  *narration.History
	speaker  *recordingSpeaker
	loop     *Loop
}

func newFixture() *fixture {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	tracker := activity.NewTrackerWithClock(clock.Now)
	guards := NewGuards()
	f := &fixture{
		clock:   clock,
		tracker: tracker,
		guards:  guards,
		resolver: &stubResolver{ok: true, res: &location.Resolved{
			Location: &location.Snapshot{Latitude: 10, Longitude: 20},
			Place:    location.Place{Street: "Main St", City: "Springfield", Country: "USA"},
		}},
		narrator: &stubNarrator{text: "Check out Evergreen Terrace.", ok: true},
		history:  narration.NewHistory(5),
		speaker:  &recordingSpeaker{tracker: tracker, guards: guards},
	}
	f.loop = NewLoop("u1", device.NewMock("u1"), Deps{
		Tracker:  tracker,
		Guards:   guards,
		Resolver: f.resolver,
		Narrator: f.narrator,
		History:  f.history,
		Speaker:  f.speaker,
		Logger:   log.Discard(),
	}, 0, 0)
	return f
}

func TestTickNoAudio(t *testing.T) {
	f := newFixture()
	if r := f.loop.Tick(context.Background()); r != NoAudio {
		t.Errorf("result = %v, want no_audio", r)
	}
	if f.narrator.Calls() != 0 {
		t.Error("no query expected")
	}
}

func TestIdleThreshold(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.tracker.MarkAudioStarted("u1")

	for _, step := range []time.Duration{10 * time.Second, 10 * time.Second} {
		f.clock.Advance(step)
		if r := f.loop.Tick(ctx); r != Active {
			t.Fatalf("result = %v before threshold", r)
		}
	}

	f.clock.Advance(10 * time.Second)
	if r := f.loop.Tick(ctx); r != Queried {
		t.Fatalf("result = %v at threshold, want queried", r)
	}
	f.loop.Wait()

	spoken := f.speaker.Spoken()
	if len(spoken) != 1 || spoken[0] != "Check out Evergreen Terrace." {
		t.Errorf("spoken = %q", spoken)
	}
	if !f.speaker.guardSetDuringSpeak {
		t.Error("guard should stay set until playback completes")
	}
	if f.guards.IsSet("u1") {
		t.Error("guard should be clear after playback")
	}
	places, responses := f.history.Snapshot("u1")
	if len(responses) != 1 || len(places) != 1 || places[0] != "Evergreen Terrace" {
		t.Errorf("history = %q / %q", places, responses)
	}
	if f.narrator.lastReq.Street != "Main St" || f.narrator.lastReq.City != "Springfield" {
		t.Errorf("request = %+v", f.narrator.lastReq)
	}

	// Speaking reset the idle baseline.
	f.clock.Advance(10 * time.Second)
	if r := f.loop.Tick(ctx); r != Active {
		t.Errorf("result = %v after narration, want active", r)
	}
}

func TestGuardPreventsConcurrentQueries(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.narrator.block = make(chan struct{})
	f.tracker.MarkAudioStarted("u1")
	f.clock.Advance(31 * time.Second)

	if r := f.loop.Tick(ctx); r != Queried {
		t.Fatalf("first tick = %v", r)
	}
	for i := 0; i < 5; i++ {
		f.clock.Advance(10 * time.Second)
		if r := f.loop.Tick(ctx); r != Waiting {
			t.Errorf("tick %d = %v, want waiting", i, r)
		}
	}
	close(f.narrator.block)
	f.loop.Wait()

	if f.narrator.Calls() != 1 {
		t.Errorf("queries = %d, want 1", f.narrator.Calls())
	}
}

func TestFailuresClearGuard(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{"no location", func(f *fixture) { f.resolver.ok = false }},
		{"no city", func(f *fixture) { f.resolver.res.Place.City = "" }},
		{"no country", func(f *fixture) { f.resolver.res.Place.Country = "" }},
		{"empty narration", func(f *fixture) { f.narrator.ok = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)
			f.tracker.MarkAudioStarted("u1")
			f.clock.Advance(40 * time.Second)

			if r := f.loop.Tick(context.Background()); r != Queried {
				t.Fatalf("result = %v", r)
			}
			f.loop.Wait()

			if f.guards.IsSet("u1") {
				t.Error("guard should be cleared after failure")
			}
			if len(f.speaker.Spoken()) != 0 {
				t.Error("nothing should be spoken")
			}
			// Next tick retries.
			f.clock.Advance(10 * time.Second)
			if r := f.loop.Tick(context.Background()); r != Queried {
				t.Errorf("retry tick = %v, want queried", r)
			}
			f.loop.Wait()
		})
	}
}

func TestPlaybackErrorClearsGuard(t *testing.T) {
	f := newFixture()
	f.speaker.err = errors.New("device gone")
	f.tracker.MarkAudioStarted("u1")
	f.clock.Advance(30 * time.Second)

	f.loop.Tick(context.Background())
	f.loop.Wait()
	if f.guards.IsSet("u1") {
		t.Error("guard should be cleared after playback error")
	}
}

func TestActiveTickClearsGuard(t *testing.T) {
	f := newFixture()
	f.tracker.MarkAudioStarted("u1")
	f.guards.TrySet("u1")

	if r := f.loop.Tick(context.Background()); r != Active {
		t.Fatalf("result = %v", r)
	}
	if f.guards.IsSet("u1") {
		t.Error("active tick should clear the guard")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture()
	loop := NewLoop("u1", device.NewMock("u1"), f.loop.deps, time.Millisecond, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestGuards(t *testing.T) {
	g := NewGuards()
	if !g.TrySet("a") {
		t.Error("first TrySet should succeed")
	}
	if g.TrySet("a") {
		t.Error("second TrySet should fail")
	}
	if !g.TrySet("b") {
		t.Error("flags are per user")
	}
	g.Clear("a")
	if g.IsSet("a") || !g.IsSet("b") {
		t.Error("Clear affected the wrong user")
	}
}
