package frame

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrLoopClosed is returned by Post after the loop stopped.
var ErrLoopClosed = errors.New("frame loop closed")

// DefaultInterval is roughly one 60Hz display frame.
const DefaultInterval = 16 * time.Millisecond

// Loop is a Source driven by a ticker on a single goroutine. Frame
// callbacks and posted functions all run on the goroutine that called
// Run, so code they call needs no locking of its own.
type Loop struct {
	queue    *Queue
	logger   *zap.Logger
	posted   chan func()
	done     chan struct{}
	interval time.Duration
	frames   atomic.Uint64
	once     sync.Once
}

var _ Source = (*Loop)(nil)

// NewLoop creates a loop ticking every interval. A zero interval uses
// DefaultInterval; a nil logger discards panic reports.
func NewLoop(interval time.Duration, logger *zap.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loop{
		queue:    NewQueue(),
		logger:   logger,
		posted:   make(chan func(), 64),
		done:     make(chan struct{}),
		interval: interval,
	}
	l.queue.exec = l.safeExecute
	return l
}

func (l *Loop) RequestFrame(fn func()) ID { return l.queue.RequestFrame(fn) }
func (l *Loop) CancelFrame(id ID)         { l.queue.CancelFrame(id) }

// Post runs fn on the loop goroutine ahead of the next frame.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
	}
	select {
	case l.posted <- fn:
		return nil
	case <-l.done:
		return ErrLoopClosed
	}
}

// Run processes posted functions and frames until ctx is done or Close is
// called. It closes the loop on return.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	defer l.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.posted:
			l.safeExecute(fn)
		case <-ticker.C:
			l.queue.Step()
			l.frames.Add(1)
		}
	}
}

// Frames returns how many frames ran.
func (l *Loop) Frames() uint64 {
	return l.frames.Load()
}

// Close stops the loop. Pending frame callbacks never run.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
}

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) safeExecute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("frame callback panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}
