package game

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// schedule arms a one-shot timer that runs fn on the channel's dispatch
// queue when it fires. The returned cancel is safe to call more than once;
// cancelling after the fire is a no-op.
func (c *Coordinator) schedule(d time.Duration, fn func()) (cancel func()) {
	t := c.clock.NewTimer(d)
	done := make(chan struct{})

	go func() {
		select {
		case <-t.Chan():
			// A cancel that raced the fire still wins.
			select {
			case <-done:
				return
			default:
			}
			c.ch.Post(fn)
		case <-done:
			stopAndDrainTimer(t)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

// startTickLoop runs fn on the dispatch queue every interval until the
// returned stop is called or ctx ends.
func (c *Coordinator) startTickLoop(ctx context.Context, interval time.Duration, fn func()) (stop func()) {
	ticker := c.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				select {
				case <-done:
					return
				case <-ctx.Done():
					return
				default:
				}
				c.ch.Post(fn)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

// stopAndDrainTimer stops a timer and drains its channel so an
// already-fired timer does not leak a pending tick.
func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
