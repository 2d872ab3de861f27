package device

import (
	"context"
	"testing"
)

func TestDispatcherSubscribeAndEmit(t *testing.T) {
	var d Dispatcher
	var got []string

	sub := d.Subscribe(EventButtonPress, func(ev Event) {
		got = append(got, ev.Button.PressType)
	})
	d.Subscribe(EventTouch, func(ev Event) {
		t.Error("touch handler should not see button events")
	})

	d.Emit(Event{Kind: EventButtonPress, Button: &ButtonPress{PressType: PressShort}})
	if len(got) != 1 || got[0] != PressShort {
		t.Fatalf("got %v", got)
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	d.Emit(Event{Kind: EventButtonPress, Button: &ButtonPress{PressType: PressLong}})
	if len(got) != 1 {
		t.Errorf("handler ran after unsubscribe: %v", got)
	}
	if d.SubscriberCount(EventButtonPress) != 0 {
		t.Errorf("subscriber count = %d", d.SubscriberCount(EventButtonPress))
	}
}

func TestMockRecordsCalls(t *testing.T) {
	ctx := context.Background()
	m := NewMock("u1")
	m.Speak(ctx, "hello")
	m.StopAudio(ctx)
	m.Speak(ctx, "world")

	if m.CallCount("Speak") != 2 {
		t.Errorf("Speak count = %d", m.CallCount("Speak"))
	}
	spoken := m.Spoken()
	if len(spoken) != 2 || spoken[1] != "world" {
		t.Errorf("spoken = %v", spoken)
	}
	if _, err := m.RequestPhoto(ctx); err == nil {
		t.Error("unconfigured camera should fail")
	}
}
