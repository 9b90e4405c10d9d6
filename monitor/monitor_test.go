package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/zeebo/assert"
	"github.com/zeebo/pp"

	"storj.io/handletable"
)

func newMonitoredTable(t testing.TB, m *Monitor, capacity int) *handletable.Table[int] {
	tbl, err := handletable.New[int](handletable.Options{
		Capacity: capacity,
		Hash:     func(uintptr) uint32 { return 0 },
		Observer: m,
	})
	assert.NoError(t, err)
	return tbl
}

func TestMonitorTotals(t *testing.T) {
	m := New()
	tbl := newMonitoredTable(t, m, 2)

	objs := make([]int, 3)
	h1, err := tbl.Allocate(&objs[0])
	assert.NoError(t, err)
	h2, err := tbl.Allocate(&objs[1])
	assert.NoError(t, err)
	_, err = tbl.Allocate(&objs[2])
	assert.Error(t, err)

	tbl.Free(&h1)

	totals := m.Totals()
	pp.Println(totals)
	assert.Equal(t, totals, Totals{Allocated: 2, Freed: 1, Exhausted: 1})

	// the first window carries everything so far, the next one only the
	// activity in between
	assert.Equal(t, m.Window(), Totals{Allocated: 2, Freed: 1, Exhausted: 1})
	assert.Equal(t, m.Window(), Totals{})

	tbl.Free(&h2)
	assert.Equal(t, m.Window(), Totals{Freed: 1})
	assert.Equal(t, m.Totals(), Totals{Allocated: 2, Freed: 2, Exhausted: 1})
}

func TestMonitorProbes(t *testing.T) {
	m := New()
	tbl := newMonitoredTable(t, m, 8)

	// with a constant hash the k-th allocation probes k slots
	objs := make([]int, 3)
	for i := range objs {
		_, err := tbl.Allocate(&objs[i])
		assert.NoError(t, err)
	}

	// the histogram buckets observations, so bound the moments instead of
	// expecting them exactly
	total, sum, avg, _ := m.ProbeSummary()
	assert.Equal(t, total, uint64(3))
	assert.That(t, sum > 5 && sum < 7)
	assert.That(t, avg > 1.5 && avg < 2.5)
}

func TestMonitorRecent(t *testing.T) {
	m := New()
	tbl := newMonitoredTable(t, m, 2)

	obj := new(int)
	h, err := tbl.Allocate(obj)
	assert.NoError(t, err)
	tbl.Free(&h)

	evs := m.Recent()
	assert.Equal(t, len(evs), 2)
	assert.Equal(t, evs[0].Kind, KindAllocated)
	assert.Equal(t, evs[0].Probes, 1)
	assert.Equal(t, evs[1].Kind, KindFreed)
	assert.Equal(t, evs[0].Handle, evs[1].Handle)
}

func TestMonitorWatch(t *testing.T) {
	m := New()
	tbl := newMonitoredTable(t, m, 2)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	events := make(chan Event, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Watch(ctx, func(ev Event) { events <- ev })
	}()

	// the watcher registers asynchronously, so keep generating events until
	// one is delivered
	obj := new(int)
	for {
		h, err := tbl.Allocate(obj)
		assert.NoError(t, err)
		tbl.Free(&h)

		select {
		case ev := <-events:
			assert.That(t, ev.Kind == KindAllocated || ev.Kind == KindFreed)
			cancel()
			<-done
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}
