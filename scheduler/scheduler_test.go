package scheduler

import (
	"testing"

	"github.com/wippyai/vrange/frame"
)

func TestScheduler_RunsOnSecondFrame(t *testing.T) {
	q := frame.NewQueue()
	runs := 0
	s := New(q, func() { runs++ })

	s.Notify()
	if !s.Pending() {
		t.Fatal("Pending = false after Notify")
	}

	q.Step()
	if runs != 0 {
		t.Fatalf("ran after one frame")
	}
	if !s.Pending() {
		t.Error("latch cleared before the run")
	}

	q.Step()
	if runs != 1 {
		t.Fatalf("runs = %d after two frames, want 1", runs)
	}
	if s.Pending() {
		t.Error("latch still set after the run")
	}
}

func TestScheduler_Coalesces(t *testing.T) {
	q := frame.NewQueue()
	runs := 0
	s := New(q, func() { runs++ })

	for range 50 {
		s.Notify()
	}
	q.Step()
	s.Notify()
	q.Step()
	s.Notify()

	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}

	// The notification after the run starts a new cycle.
	q.Drain(10)
	if runs != 2 {
		t.Errorf("runs = %d, want 2", runs)
	}
}

func TestScheduler_Cancel(t *testing.T) {
	q := frame.NewQueue()
	runs := 0
	s := New(q, func() { runs++ })

	s.Notify()
	s.Cancel()
	q.Drain(10)
	if runs != 0 {
		t.Errorf("cancelled run executed")
	}

	// Cancel between the stages.
	s.Notify()
	q.Step()
	s.Cancel()
	if q.Pending() != 0 {
		t.Errorf("frame callbacks left = %d", q.Pending())
	}
	q.Drain(10)
	if runs != 0 {
		t.Errorf("cancelled run executed after stage one")
	}

	// The latch is clear, so Notify works again.
	s.Notify()
	q.Drain(10)
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
	s.Cancel()
}

func TestScheduler_NotifyFromRun(t *testing.T) {
	q := frame.NewQueue()
	runs := 0
	var s *Scheduler
	s = New(q, func() {
		runs++
		if runs < 3 {
			s.Notify()
		}
	})

	s.Notify()
	frames := q.Drain(100)
	if runs != 3 {
		t.Errorf("runs = %d, want 3", runs)
	}
	if frames != 6 {
		t.Errorf("frames = %d, want 6", frames)
	}
}
