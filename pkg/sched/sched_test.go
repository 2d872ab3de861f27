package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSequenceRunsInOrder(t *testing.T) {
	var order []string
	seq := Sequence{
		{Name: "a", Delay: time.Millisecond, Run: func(ctx context.Context) error { order = append(order, "a"); return nil }},
		{Name: "b", Delay: 2 * time.Millisecond, Run: func(ctx context.Context) error { order = append(order, "b"); return nil }},
		{Name: "c", Run: func(ctx context.Context) error { order = append(order, "c"); return nil }},
	}
	if err := seq.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("order = %v", order)
	}
}

func TestSequenceHalt(t *testing.T) {
	ran := false
	seq := Sequence{
		{Run: func(ctx context.Context) error { return ErrHalt }},
		{Run: func(ctx context.Context) error { ran = true; return nil }},
	}
	if err := seq.Run(context.Background()); err != nil {
		t.Errorf("halt should not be an error, got %v", err)
	}
	if ran {
		t.Error("step after halt ran")
	}
}

func TestSequenceError(t *testing.T) {
	boom := errors.New("boom")
	seq := Sequence{{Run: func(ctx context.Context) error { return boom }}}
	if err := seq.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestSequenceCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	seq := Sequence{{Delay: time.Hour, Run: func(ctx context.Context) error { ran.Store(true); return nil }}}

	done := make(chan error, 1)
	go func() { done <- seq.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sequence did not stop")
	}
	if ran.Load() {
		t.Error("step ran after cancellation")
	}
}

func TestRunIntervalTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var n atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunInterval(ctx, 5*time.Millisecond, false, func(ctx context.Context) {
			if n.Add(1) >= 3 {
				cancel()
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for RunInterval to exit")
	}
	if n.Load() < 3 {
		t.Errorf("expected at least 3 ticks, got %d", n.Load())
	}
}

func TestGroupStop(t *testing.T) {
	g := NewGroup(context.Background())
	var exited atomic.Int32
	for i := 0; i < 3; i++ {
		g.Go(func(ctx context.Context) {
			<-ctx.Done()
			exited.Add(1)
		})
	}
	g.Stop()
	if exited.Load() != 3 {
		t.Errorf("exited = %d", exited.Load())
	}
}

func TestGroupGoAfterStop(t *testing.T) {
	g := NewGroup(context.Background())
	g.Stop()

	var ran atomic.Bool
	if g.Go(func(ctx context.Context) { ran.Store(true) }) {
		t.Error("Go started work on a stopped group")
	}
	g.Wait()
	if ran.Load() {
		t.Error("fn ran after Stop")
	}
}

func TestGroupGoRacingStop(t *testing.T) {
	for i := 0; i < 50; i++ {
		g := NewGroup(context.Background())
		var running atomic.Int32
		started := make(chan bool, 1)
		go func() {
			started <- g.Go(func(ctx context.Context) {
				running.Add(1)
				<-ctx.Done()
				running.Add(-1)
			})
		}()
		g.Stop()
		ok := <-started
		g.Wait()
		if ok && running.Load() != 0 {
			t.Fatalf("goroutine outlived Stop")
		}
	}
}
