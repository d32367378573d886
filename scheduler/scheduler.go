// Package scheduler coalesces scroll notifications into at most one
// recomputation per frame.
//
// Notify arms a latch and requests a frame. That first callback only
// requests a second frame; the second clears the latch and runs the
// recomputation. The work therefore lands one frame after the scroll,
// behind whatever paint the current frame was about to do. Notifications
// that arrive while the latch is set are dropped: only the latest scroll
// position matters when the recomputation finally reads it.
package scheduler

import (
	"sync"

	"github.com/wippyai/vrange/frame"
)

// Scheduler runs fn at most once per pair of frames, however often Notify
// is called in between.
type Scheduler struct {
	frames  frame.Source
	fn      func()
	id      frame.ID
	pending bool
	mu      sync.Mutex
}

// New creates a scheduler that runs fn on frames from src.
func New(src frame.Source, fn func()) *Scheduler {
	return &Scheduler{frames: src, fn: fn}
}

// Notify schedules fn unless a run is already pending.
func (s *Scheduler) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		return
	}
	s.pending = true
	s.id = s.frames.RequestFrame(s.defer1)
}

func (s *Scheduler) defer1() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return
	}
	s.id = s.frames.RequestFrame(s.run)
}

func (s *Scheduler) run() {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.id = 0
	s.mu.Unlock()

	s.fn()
}

// Cancel drops the pending run, if any, and clears the latch.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		s.frames.CancelFrame(s.id)
	}
	s.pending = false
	s.id = 0
}

// Pending reports whether a run is scheduled.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
