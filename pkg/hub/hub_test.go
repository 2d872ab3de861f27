package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/teslashibe/go-glance/internal/log"
	"github.com/teslashibe/go-glance/pkg/device"
	"github.com/teslashibe/go-glance/pkg/photo"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := New(log.Discard())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case m, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func expectNothing(t *testing.T, ch <-chan Message) {
	t.Helper()
	select {
	case m := <-ch:
		t.Fatalf("unexpected message %+v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishFiltersByUser(t *testing.T) {
	h := startHub(t)
	alice, cancelA := h.Subscribe("alice")
	defer cancelA()
	bob, cancelB := h.Subscribe("bob")
	defer cancelB()

	if err := h.PublishJSON(StreamPhotos, "alice", EventPhoto, PhotoEvent{RequestID: "r1", UserID: "alice"}); err != nil {
		t.Fatal(err)
	}

	m := receive(t, alice)
	var ev PhotoEvent
	if err := json.Unmarshal(m.Data, &ev); err != nil {
		t.Fatal(err)
	}
	if m.Stream != StreamPhotos || m.Event != EventPhoto || ev.RequestID != "r1" {
		t.Errorf("got %+v / %+v", m, ev)
	}
	expectNothing(t, bob)
}

func TestSubscribeFiltersByStream(t *testing.T) {
	h := startHub(t)
	photos, cancel := h.Subscribe("u", StreamPhotos)
	defer cancel()

	h.PublishJSON(StreamTranscriptions, "u", EventTranscription, TranscriptionEvent{Text: "hi"})
	expectNothing(t, photos)

	h.PublishJSON(StreamPhotos, "u", EventPhoto, PhotoEvent{RequestID: "r"})
	if m := receive(t, photos); m.Stream != StreamPhotos {
		t.Errorf("stream = %q", m.Stream)
	}
}

func TestCancelClosesChannel(t *testing.T) {
	h := startHub(t)
	ch, cancel := h.Subscribe("u")
	cancel()
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	if n := h.SubscriberCount(); n != 0 {
		t.Errorf("count = %d", n)
	}
}

func TestStopClosesSubscribers(t *testing.T) {
	ctx, stop := context.WithCancel(context.Background())
	h := New(log.Discard())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	ch, _ := h.Subscribe("u")
	stop()
	<-done

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after stop")
	}

	late, cancel := h.Subscribe("u")
	cancel()
	if _, ok := <-late; ok {
		t.Error("subscribe after stop should return a closed channel")
	}
	h.Publish(Message{Stream: StreamPhotos, UserID: "u"})
}

func TestEventsPublishPhoto(t *testing.T) {
	h := startHub(t)
	ch, cancel := h.Subscribe("u", StreamPhotos)
	defer cancel()

	NewEvents(h).PublishPhoto(photo.Stored{
		RequestID: "r1",
		UserID:    "u",
		Data:      []byte{0xff, 0xd8},
		MimeType:  "image/jpeg",
		Size:      2,
	})

	m := receive(t, ch)
	var ev PhotoEvent
	if err := json.Unmarshal(m.Data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.RequestID != "r1" || ev.Size != 2 || ev.DataURL != "data:image/jpeg;base64,/9g=" {
		t.Errorf("event = %+v", ev)
	}
}

func TestEventsTranscriptionAndLog(t *testing.T) {
	h := startHub(t)
	ch, cancel := h.Subscribe("u", StreamTranscriptions)
	defer cancel()

	e := NewEvents(h)
	e.Transcription("u", device.Transcription{Text: "hello", IsFinal: true})
	e.Log("u", "info", "photo captured")

	first := receive(t, ch)
	second := receive(t, ch)
	if first.Event != EventTranscription || second.Event != EventLog {
		t.Errorf("events = %q, %q", first.Event, second.Event)
	}
	var tr TranscriptionEvent
	json.Unmarshal(first.Data, &tr)
	if tr.Text != "hello" || !tr.IsFinal || tr.UserID != "u" {
		t.Errorf("transcription = %+v", tr)
	}
}
