// Package sched runs timed work bound to a context: delayed step sequences,
// fixed-interval loops, and goroutine groups that stop together.
package sched

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrHalt stops a Sequence without reporting a failure.
var ErrHalt = errors.New("sched: halt")

// Step waits Delay, then calls Run.
type Step struct {
	Name  string
	Delay time.Duration
	Run   func(ctx context.Context) error
}

// Sequence is an ordered list of delayed steps.
type Sequence []Step

// Run executes the steps in order. It returns ctx.Err() if the context ends
// while waiting, nil when a step returns ErrHalt, and any other step error as is.
func (s Sequence) Run(ctx context.Context) error {
	for _, step := range s {
		if err := sleep(ctx, step.Delay); err != nil {
			return err
		}
		if step.Run == nil {
			continue
		}
		if err := step.Run(ctx); err != nil {
			if errors.Is(err, ErrHalt) {
				return nil
			}
			return err
		}
	}
	return nil
}

// RunInterval calls fn every interval until ctx is done.
// With immediate set, fn also runs once before the first tick.
func RunInterval(ctx context.Context, interval time.Duration, immediate bool, fn func(ctx context.Context)) {
	if fn == nil {
		<-ctx.Done()
		return
	}
	if immediate {
		fn(ctx)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Group runs goroutines with shared cancellation. Stop cancels them and
// waits for all to exit. Once cancelled, the group starts nothing new.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewGroup creates a group whose context derives from parent.
func NewGroup(parent context.Context) *Group {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Group{ctx: ctx, cancel: cancel}
}

// Context returns the group's context.
func (g *Group) Context() context.Context { return g.ctx }

// Go runs fn in a new goroutine with the group's context. It reports false,
// without running fn, when the group is already cancelled.
func (g *Group) Go(fn func(ctx context.Context)) bool {
	g.mu.Lock()
	if g.closed || g.ctx.Err() != nil {
		g.mu.Unlock()
		return false
	}
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		fn(g.ctx)
	}()
	return true
}

// Wait blocks until every goroutine has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}

// Stop cancels the group and waits.
func (g *Group) Stop() {
	g.Cancel()
	g.wg.Wait()
}

// Cancel cancels the group without waiting.
func (g *Group) Cancel() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.cancel()
}
