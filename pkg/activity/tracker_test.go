package activity

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMarkAndGet(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	tr := NewTrackerWithClock(clock.Now)

	if _, ok := tr.LastAudioStart("u1"); ok {
		t.Fatal("expected no record before first mark")
	}

	tr.MarkAudioStarted("u1")
	ts, ok := tr.LastAudioStart("u1")
	if !ok || !ts.Equal(clock.t) {
		t.Fatalf("LastAudioStart = %v, %v", ts, ok)
	}

	clock.Advance(12 * time.Second)
	idle, ok := tr.IdleFor("u1")
	if !ok || idle != 12*time.Second {
		t.Errorf("IdleFor = %v, %v", idle, ok)
	}
}

func TestMonotonic(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	tr := NewTrackerWithClock(clock.Now)

	tr.MarkAudioStarted("u1")
	clock.Advance(-5 * time.Second)
	tr.MarkAudioStarted("u1")

	ts, _ := tr.LastAudioStart("u1")
	if !ts.Equal(time.Unix(1000, 0)) {
		t.Errorf("record moved backwards to %v", ts)
	}
}

func TestEmptyUserIgnored(t *testing.T) {
	tr := NewTracker()
	tr.MarkAudioStarted("")
	if _, ok := tr.LastAudioStart(""); ok {
		t.Error("empty user id should not be recorded")
	}
}

func TestClear(t *testing.T) {
	tr := NewTracker()
	tr.MarkAudioStarted("u1")
	tr.MarkAudioStarted("u2")
	tr.Clear("u1")

	if _, ok := tr.LastAudioStart("u1"); ok {
		t.Error("u1 should be cleared")
	}
	if _, ok := tr.LastAudioStart("u2"); !ok {
		t.Error("u2 should be untouched")
	}
}
