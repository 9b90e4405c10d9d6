package handletable

import (
	"fmt"
	"sync/atomic"
)

const invalidIndex = 1<<16 - 1

// Handle indirectly names an object registered in a Table without holding a
// reference to it. Handles are small comparable values that may be copied
// freely between goroutines. The zero Handle is invalid.
//
// The packed word is stored inverted so that the zero value decodes to the
// invalid sentinel (index and generation both 0xffff).
type Handle struct {
	bits uint32
}

func makeHandle(index, gen uint16) Handle {
	return Handle{bits: ^(uint32(gen)<<16 | uint32(index))}
}

// FromBits reconstructs a Handle previously flattened with Bits.
func FromBits(v uint32) Handle { return Handle{bits: v} }

// Bits flattens the handle into a plain integer for callers that need to
// pass it through an opaque word, like a user data field. FromBits round
// trips it.
func (h Handle) Bits() uint32 { return h.bits }

// Index returns the slot index the handle was issued against.
func (h Handle) Index() uint16 { return uint16(^h.bits) }

// Generation returns the generation the handle was issued against.
func (h Handle) Generation() uint16 { return uint16(^h.bits >> 16) }

// IsValid reports whether h could name a table slot. It consults no table: a
// valid handle may still be stale.
func (h Handle) IsValid() bool { return h.Index() != invalidIndex }

// Reset sets h to the invalid sentinel.
func (h *Handle) Reset() { *h = Handle{} }

func (h Handle) String() string {
	if !h.IsValid() {
		return "handle(invalid)"
	}
	return fmt.Sprintf("handle(%d@%d)", h.Index(), h.Generation())
}

// AtomicHandle is a Handle cell that can be read and updated atomically. It
// is for callers that lazily publish a handle exactly once while racing
// other goroutines attempting the same publish. The zero AtomicHandle holds
// the invalid Handle.
type AtomicHandle struct {
	bits atomic.Uint32
}

func (a *AtomicHandle) Load() Handle   { return Handle{bits: a.bits.Load()} }
func (a *AtomicHandle) Store(h Handle) { a.bits.Store(h.bits) }

func (a *AtomicHandle) CompareAndSwap(old, new Handle) bool {
	return a.bits.CompareAndSwap(old.bits, new.bits)
}

// Set attempts to replace the current value with h and reports whether this
// call's value won against any concurrent Set.
func (a *AtomicHandle) Set(h Handle) bool {
	return a.bits.CompareAndSwap(a.bits.Load(), h.bits)
}
