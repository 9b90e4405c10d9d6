package monitor

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

type traceSlot struct {
	ev  atomic.Pointer[Event]
	seq atomic.Uint64
}

// traceBuffer keeps the most recent observer events, overwriting the oldest
// once full.
type traceBuffer struct {
	slots []traceSlot
	pos   atomic.Uint64

	wmu      sync.Mutex // held only by watch to update the watcher list
	watchers atomic.Pointer[[]chan<- Event]
}

func (t *traceBuffer) init(size int) {
	t.slots = make([]traceSlot, size)
	t.watchers.Store(new([]chan<- Event))
}

func (t *traceBuffer) add(ev Event) {
	n := uint64(len(t.slots))
	i := t.pos.Add(1) - 1
	s := &t.slots[i%n]
	s.ev.Store(&ev)
	s.seq.Store(i + 1) // mark slot as written for position i

	if ws := t.watchers.Load(); len(*ws) != 0 {
		for _, ch := range *ws {
			select {
			case ch <- ev:
			default: // watcher is slow, drop
			}
		}
	}
}

// recent returns a copy of the buffered events, ordered from oldest to
// newest.
func (t *traceBuffer) recent() []Event {
	pos := t.pos.Load()
	n := uint64(len(t.slots))
	count := min(pos, n)
	out := make([]Event, 0, count)
	for i := pos - count; i < pos; i++ {
		s := &t.slots[i%n]
		if s.seq.Load() == i+1 {
			out = append(out, *s.ev.Load())
		}
	}
	return out
}

// watch calls cb with each event added to the buffer and blocks until the
// context is done.
func (t *traceBuffer) watch(ctx context.Context, cb func(Event)) {
	ch := make(chan Event, 64)

	t.wmu.Lock()
	next := append(*t.watchers.Load(), ch)
	t.watchers.Store(&next)
	t.wmu.Unlock()

	defer func() {
		t.wmu.Lock()
		defer t.wmu.Unlock()

		next := slices.DeleteFunc(
			slices.Clone(*t.watchers.Load()),
			func(w chan<- Event) bool { return w == ch },
		)
		t.watchers.Store(&next)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			cb(ev)
		}
	}
}
