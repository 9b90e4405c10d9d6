package handletable

import "sync"

type obsEvent struct {
	kind   string
	handle Handle
	probes int
}

type recordingObserver struct {
	mu  sync.Mutex
	evs []obsEvent
}

func (r *recordingObserver) record(ev obsEvent) {
	r.mu.Lock()
	r.evs = append(r.evs, ev)
	r.mu.Unlock()
}

func (r *recordingObserver) events() []obsEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]obsEvent(nil), r.evs...)
}

func (r *recordingObserver) Allocated(h Handle, probes int) {
	r.record(obsEvent{kind: "allocated", handle: h, probes: probes})
}

func (r *recordingObserver) Freed(h Handle) {
	r.record(obsEvent{kind: "freed", handle: h})
}

func (r *recordingObserver) Exhausted() {
	r.record(obsEvent{kind: "exhausted"})
}

// constHash pins every allocation's probe start to slot 0 so tests can
// predict slot assignment.
func constHash(uintptr) uint32 { return 0 }
