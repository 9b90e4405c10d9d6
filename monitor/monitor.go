// Package monitor provides diagnostics for a handle table: lifetime and
// windowed activity counters, a probe length distribution, a trace of recent
// events, and an HTTP debug surface.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/histdb/histdb/flathist"
	"github.com/zeebo/swaparoo"

	"storj.io/handletable"
)

const traceSize = 128

type Kind uint8

const (
	KindAllocated Kind = iota
	KindFreed
	KindExhausted
)

func (k Kind) String() string {
	switch k {
	case KindAllocated:
		return "allocated"
	case KindFreed:
		return "freed"
	case KindExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Event is one observer notification.
type Event struct {
	Kind   Kind
	Handle handletable.Handle
	Probes int
	Time   time.Time
}

// Totals is a set of activity counts, either lifetime or windowed.
type Totals struct {
	Allocated uint64 `json:"allocated"`
	Freed     uint64 `json:"freed"`
	Exhausted uint64 `json:"exhausted"`
}

type counters struct {
	allocated atomic.Uint64
	freed     atomic.Uint64
	exhausted atomic.Uint64
}

func (c *counters) totals() Totals {
	return Totals{
		Allocated: c.allocated.Load(),
		Freed:     c.freed.Load(),
		Exhausted: c.exhausted.Load(),
	}
}

func (c *counters) reset() {
	c.allocated.Store(0)
	c.freed.Store(0)
	c.exhausted.Store(0)
}

// Monitor implements handletable.Observer, keeping lifetime totals, windowed
// deltas, a probe length histogram, and a trace of recent events. Attach it
// to a table with Options.Observer.
type Monitor struct {
	life counters

	swap swaparoo.Tracker
	win  [2]counters

	mu     sync.Mutex // guards probes and serializes Window
	probes *flathist.Histogram

	trace traceBuffer
}

var _ handletable.Observer = (*Monitor)(nil)

func New() *Monitor {
	m := &Monitor{probes: flathist.NewHistogram()}
	m.trace.init(traceSize)
	return m
}

func (m *Monitor) Allocated(h handletable.Handle, probes int) {
	tok := m.swap.Acquire()
	m.win[tok.Gen()%2].allocated.Add(1)
	tok.Release()
	m.life.allocated.Add(1)

	m.mu.Lock()
	m.probes.Observe(float32(probes))
	m.mu.Unlock()

	m.trace.add(Event{Kind: KindAllocated, Handle: h, Probes: probes, Time: time.Now()})
}

func (m *Monitor) Freed(h handletable.Handle) {
	tok := m.swap.Acquire()
	m.win[tok.Gen()%2].freed.Add(1)
	tok.Release()
	m.life.freed.Add(1)

	m.trace.add(Event{Kind: KindFreed, Handle: h, Time: time.Now()})
}

func (m *Monitor) Exhausted() {
	tok := m.swap.Acquire()
	m.win[tok.Gen()%2].exhausted.Add(1)
	tok.Release()
	m.life.exhausted.Add(1)

	m.trace.add(Event{Kind: KindExhausted, Time: time.Now()})
}

// Totals returns lifetime counts since the monitor was created.
func (m *Monitor) Totals() Totals { return m.life.totals() }

// Window returns the counts accumulated since the previous call to Window,
// or since creation for the first call. The generation swap guarantees every
// concurrent observer callback lands in exactly one window.
func (m *Monitor) Window() Totals {
	m.mu.Lock()
	defer m.mu.Unlock()

	gen := m.swap.Increment().Wait()
	w := &m.win[gen%2]
	out := w.totals()
	w.reset()
	return out
}

// ProbeSummary reports the distribution of probe lengths seen by Allocate.
func (m *Monitor) ProbeSummary() (total uint64, sum, avg, vari float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes.Summary()
}

// ProbeQuantile returns the probe length at quantile q in [0, 1].
func (m *Monitor) ProbeQuantile(q float64) float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes.Quantile(q)
}

// Recent returns the buffered trace of recent events, oldest first.
func (m *Monitor) Recent() []Event { return m.trace.recent() }

// Watch calls cb with each new event and blocks until the context is done.
// Events are dropped rather than delivered to a slow watcher.
func (m *Monitor) Watch(ctx context.Context, cb func(Event)) {
	m.trace.watch(ctx, cb)
}
