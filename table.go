package handletable

import (
	"encoding/binary"
	"iter"
	"sync/atomic"
	"unsafe"

	"github.com/zeebo/errs/v2"
	"github.com/zeebo/xxh3"
)

// DefaultCapacity is the table size used when Options.Capacity is zero.
const DefaultCapacity = 1 << 12

// ErrFull is returned by Allocate when a full sweep of the table finds no
// free slot.
var ErrFull = errs.Tag("handle table full")

// Observer receives notifications about table lifecycle events. Get is
// deliberately unobserved to keep the read path cheap.
type Observer interface {
	// Allocated is called after a successful Allocate with the issued handle
	// and the number of slots probed to find it.
	Allocated(h Handle, probes int)

	// Freed is called after Free releases a live slot. The handle is the
	// value the slot was freed with, which is no longer resolvable.
	Freed(h Handle)

	// Exhausted is called when Allocate fails with ErrFull.
	Exhausted()
}

type Options struct {
	// Capacity is the number of slots. It must be a power of two strictly
	// less than 1<<16. Zero means DefaultCapacity.
	Capacity int

	// Hash seeds the probe position for a pointee address. Nil means xxh3
	// over the address bits.
	Hash func(addr uintptr) uint32

	// Observer, if non-nil, is notified about allocations, frees, and
	// exhaustion.
	Observer Observer
}

// Table is a fixed-capacity registry that exchanges pointees for Handles.
// Any goroutine holding a copy of a Handle may resolve it with Get; the
// owner of the pointee releases the slot with Free when the pointee is
// destroyed. All operations are lock-free.
//
// The table never resizes and never frees pointees. It is a weak, non-owning
// index: see Get for the liveness caveat.
type Table[T any] struct {
	direct    []entry[T]
	indirect  []claim[T]
	hash      func(addr uintptr) uint32
	obs       Observer
	mask      uint32
	allocated atomic.Int32
}

func New[T any](opts Options) (*Table[T], error) {
	capacity := opts.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if capacity < 0 || capacity >= 1<<16 || capacity&(capacity-1) != 0 {
		return nil, errs.Errorf("capacity must be a power of two below %d: got %d", 1<<16, capacity)
	}

	hash := opts.Hash
	if hash == nil {
		hash = addrHash
	}

	return &Table[T]{
		direct:   make([]entry[T], capacity),
		indirect: make([]claim[T], capacity),
		hash:     hash,
		obs:      opts.Observer,
		mask:     uint32(capacity - 1),
	}, nil
}

func addrHash(addr uintptr) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(addr))
	return uint32(xxh3.Hash(buf[:]))
}

func (t *Table[T]) Capacity() int { return len(t.direct) }

// AllocatedCount returns the number of currently claimed slots. Diagnostic
// only: it is stale by the time it returns.
func (t *Table[T]) AllocatedCount() int { return int(t.allocated.Load()) }

// Allocate registers p and returns a handle for it. The caller retains
// ownership of p and must keep it alive for as long as the handle is
// resolvable. It returns ErrFull if a full sweep of the table finds no free
// slot; a concurrent Free may have opened one behind the sweep, so callers
// may retry.
func (t *Table[T]) Allocate(p *T) (Handle, error) {
	if p == nil {
		return Handle{}, errs.Errorf("allocate of nil pointee")
	}
	if int(t.allocated.Load()) >= len(t.direct) {
		if t.obs != nil {
			t.obs.Exhausted()
		}
		return Handle{}, ErrFull.Errorf("capacity %d exhausted", len(t.direct))
	}

	pos := t.hash(uintptr(unsafe.Pointer(p)))
	for probes := 1; probes <= len(t.direct); probes++ {
		i := pos & t.mask
		e := &t.direct[i]

		if t.indirect[i].acquire(e) {
			// The acquire synchronizes with the Free that released the slot,
			// so gen already holds the generation to issue.
			e.ptr.Store(p)
			t.allocated.Add(1)

			h := makeHandle(uint16(i), uint16(e.gen.Load()))
			if t.obs != nil {
				t.obs.Allocated(h, probes)
			}
			return h, nil
		}

		pos++
	}

	if t.obs != nil {
		t.obs.Exhausted()
	}
	return Handle{}, ErrFull.Errorf("capacity %d exhausted", len(t.direct))
}

// Get returns the pointee named by h, or nil if h is invalid or stale.
//
// Get never blocks, but it does not pin the pointee: the owner may destroy
// the object immediately after the snapshot is taken. Callers that need that
// guarantee must layer their own liveness protocol (single-owner discipline,
// reference counting) on top.
func (t *Table[T]) Get(h Handle) *T {
	i := uint32(h.Index())
	if i >= uint32(len(t.direct)) {
		return nil
	}
	e := &t.direct[i]

	// The pointer is loaded before the generation is checked: if the slot
	// was recycled between the two loads, the generation comparison fails
	// and the reused pointee is never returned.
	p := e.ptr.Load()
	if uint16(e.gen.Load()) != h.Generation() {
		return nil
	}
	return p
}

// Free releases the slot named by *h and resets *h to the invalid sentinel.
// Freeing an invalid or already-freed handle value is a no-op.
//
// The table assumes single-owner destruction: concurrent Free of the same
// live handle value from two goroutines is undefined.
func (t *Table[T]) Free(h *Handle) {
	v := *h
	h.Reset()

	i := uint32(v.Index())
	if i >= uint32(len(t.direct)) {
		return
	}
	e := &t.direct[i]

	// The slot must still be claimed with the handle's generation. Anything
	// else means the handle is stale (another copy was already freed and the
	// slot possibly recycled) and the slot is left alone.
	if t.indirect[i].load() != e || uint16(e.gen.Load()) != v.Generation() {
		return
	}

	e.ptr.Store(nil)
	e.gen.Store(uint32(v.Generation() + 1))
	t.indirect[i].release(e)
	t.allocated.Add(-1)

	if t.obs != nil {
		t.obs.Freed(v)
	}
}

// All iterates the live slots as a best-effort snapshot: slots claimed or
// released during iteration may or may not be observed. Diagnostic only.
func (t *Table[T]) All() iter.Seq2[Handle, *T] {
	return func(yield func(Handle, *T) bool) {
		for i := range t.direct {
			e := &t.direct[i]
			if t.indirect[i].load() != e {
				continue
			}
			p := e.ptr.Load()
			if p == nil {
				continue
			}
			if !yield(makeHandle(uint16(i), uint16(e.gen.Load())), p) {
				return
			}
		}
	}
}
