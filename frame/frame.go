package frame

import "sync"

// ID identifies a requested frame callback. 0 is never issued.
type ID uint64

// Source schedules callbacks for the next display frame.
type Source interface {
	// RequestFrame runs fn once at the next frame. A callback requested
	// while a frame is running waits for the frame after it.
	RequestFrame(fn func()) ID

	// CancelFrame drops a callback that has not run yet. Unknown or
	// already-run IDs are ignored.
	CancelFrame(id ID)
}

type entry struct {
	fn func()
	id ID
}

// Queue is a Source whose frames are advanced by its owner calling Step.
// It is safe for concurrent use.
type Queue struct {
	live    map[ID]*entry
	exec    func(func())
	pending []*entry
	next    ID
	mu      sync.Mutex
}

var _ Source = (*Queue)(nil)

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{live: make(map[ID]*entry)}
}

func (q *Queue) RequestFrame(fn func()) ID {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	e := &entry{id: q.next, fn: fn}
	q.live[e.id] = e
	q.pending = append(q.pending, e)
	return e.id
}

func (q *Queue) CancelFrame(id ID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.live[id]; ok {
		e.fn = nil
		delete(q.live, id)
	}
}

// Step runs one frame: every callback requested before the call, in
// request order. It returns how many callbacks ran.
func (q *Queue) Step() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	ran := 0
	for _, e := range batch {
		q.mu.Lock()
		fn := e.fn
		e.fn = nil
		delete(q.live, e.id)
		q.mu.Unlock()

		if fn == nil {
			continue
		}
		if q.exec != nil {
			q.exec(fn)
		} else {
			fn()
		}
		ran++
	}
	return ran
}

// Pending returns the number of callbacks waiting for a frame.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.live)
}

// Drain steps until no callbacks remain or limit frames ran, and returns
// the number of frames stepped.
func (q *Queue) Drain(limit int) int {
	frames := 0
	for frames < limit && q.Pending() > 0 {
		q.Step()
		frames++
	}
	return frames
}
