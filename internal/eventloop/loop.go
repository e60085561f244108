package eventloop

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by Do once the loop has exited.
var ErrStopped = errors.New("event loop stopped")

// Loop runs submitted callbacks one at a time on a single goroutine, in
// arrival order. Every session mutation goes through it, so session state
// needs no locks.
type Loop struct {
	events chan func()
	stopCh chan struct{}
	once   sync.Once
	done   chan struct{}
}

func New(buffer int) *Loop {
	if buffer < 0 {
		buffer = 0
	}
	return &Loop{
		events: make(chan func(), buffer),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run drains callbacks until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case fn := <-l.events:
			if fn != nil {
				fn()
			}
		}
	}
}

// Post queues fn without waiting for it to run. Callbacks posted after the
// loop stopped are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case l.events <- fn:
	case <-l.stopCh:
	case <-l.done:
	}
}

// Do queues fn and blocks until it has run.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	wrapped := func() {
		defer close(ran)
		fn()
	}
	select {
	case l.events <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopCh:
		return ErrStopped
	case <-l.done:
		return ErrStopped
	}
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-ran:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Stop ends Run; it is safe to call more than once.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.stopCh) })
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }
