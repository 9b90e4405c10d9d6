package handletable

import "sync/atomic"

// entry is one row of the direct pool: the current pointee and the
// generation to issue on the next allocation into the slot. Only the
// goroutine that currently owns the slot (the claim winner, until Free)
// mutates the fields. gen keeps its low 16 bits significant.
type entry[T any] struct {
	ptr atomic.Pointer[T]
	gen atomic.Uint32
}

// claim is one cell of the indirect pool and the only synchronization point
// for slot ownership transfer: a slot is free iff its claim is nil.
type claim[T any] struct {
	e atomic.Pointer[entry[T]]
}

func (c *claim[T]) load() *entry[T] { return c.e.Load() }

func (c *claim[T]) acquire(e *entry[T]) bool { return c.e.CompareAndSwap(nil, e) }

func (c *claim[T]) release(e *entry[T]) bool { return c.e.CompareAndSwap(e, nil) }
