package session

import (
	"context"
	"errors"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// ErrLoopStopped is returned when posting to a loop that has exited.
var ErrLoopStopped = errors.New("event loop stopped")

// Loop runs posted events one at a time on a single goroutine. Transports
// post everything that touches a Server here, which keeps the server's state
// single-writer without any locking of its own.
type Loop struct {
	logger *logrus.Logger
	events chan func()
	done   chan struct{}
}

// NewLoop returns a loop that queues up to backlog events before Post blocks.
func NewLoop(logger *logrus.Logger, backlog int) *Loop {
	return &Loop{
		logger: logger,
		events: make(chan func(), backlog),
		done:   make(chan struct{}),
	}
}

// Post queues fn. It blocks while the backlog is full and returns
// ErrLoopStopped if the loop has exited.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}
	select {
	case l.events <- fn:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.events:
			l.run(fn)
		}
	}
}

// run executes one event. A panic is logged and only loses that event.
func (l *Loop) run(fn func()) {
	defer func() {
		if err := recover(); err != nil {
			l.logger.Errorf("error in event loop: %s\n%s\n", err, debug.Stack())
		}
	}()
	fn()
}
