package resource

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrClosed  = errors.New("resource table closed")
	ErrUnknown = errors.New("unknown or already released handle")
)

type entry struct {
	value Releaser
	kind  Kind
}

type subscription struct {
	obs Observer
	id  uint64
}

// Table tracks live engine handles and guarantees each is released once.
type Table struct {
	entries   map[Handle]entry
	observers []subscription
	next      Handle
	nextSub   uint64
	mu        sync.Mutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries: make(map[Handle]entry),
	}
}

// Insert registers a live resource and returns its handle.
func (t *Table) Insert(kind Kind, value Releaser) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}
	t.next++
	h := t.next
	t.entries[h] = entry{value: value, kind: kind}
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Kind: kind})
	return h, nil
}

// Release removes the handle and releases its resource. A second call for
// the same handle returns ErrUnknown without touching the resource.
func (t *Table) Release(ctx context.Context, h Handle) error {
	t.mu.Lock()
	e, ok := t.entries[h]
	if ok {
		delete(t.entries, h)
	}
	t.mu.Unlock()

	if !ok {
		return ErrUnknown
	}

	err := e.value.Release(ctx)
	t.notify(Event{Type: EventReleased, Handle: h, Kind: e.kind})
	return err
}

// Live reports whether h is still registered.
func (t *Table) Live(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[h]
	return ok
}

// Len returns the number of live resources.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Subscribe adds an observer for lifecycle events. The returned func
// removes it and may be called more than once.
func (t *Table) Subscribe(o Observer) (unsubscribe func()) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.nextSub++
	id := t.nextSub
	t.observers = append(t.observers, subscription{id: id, obs: o})

	return func() {
		t.obsMu.Lock()
		defer t.obsMu.Unlock()
		for i, sub := range t.observers {
			if sub.id == id {
				t.observers = append(t.observers[:i:i], t.observers[i+1:]...)
				return
			}
		}
	}
}

// Close stops accepting inserts and releases every resource still live.
// Those are reported as EventLeaked since their owner never released them.
func (t *Table) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	leaked := t.entries
	t.entries = make(map[Handle]entry)
	t.mu.Unlock()

	var errs []error
	for h, e := range leaked {
		if err := e.value.Release(ctx); err != nil {
			errs = append(errs, err)
		}
		t.notify(Event{Type: EventLeaked, Handle: h, Kind: e.kind})
	}
	return errors.Join(errs...)
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, sub := range t.observers {
		sub.obs.OnResourceEvent(e)
	}
}
