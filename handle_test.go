package handletable

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/zeebo/assert"
)

func TestHandleZeroValue(t *testing.T) {
	var h Handle
	assert.That(t, !h.IsValid())
	assert.Equal(t, h.Index(), uint16(invalidIndex))
	assert.Equal(t, h.Generation(), uint16(invalidIndex))
	assert.Equal(t, h.String(), "handle(invalid)")
}

func TestHandlePacking(t *testing.T) {
	h := makeHandle(17, 42)
	assert.That(t, h.IsValid())
	assert.Equal(t, h.Index(), uint16(17))
	assert.Equal(t, h.Generation(), uint16(42))
	assert.Equal(t, h.String(), "handle(17@42)")

	// handles survive a round trip through a plain integer
	assert.Equal(t, FromBits(h.Bits()), h)

	// handles are comparable values
	assert.That(t, h == makeHandle(17, 42))
	assert.That(t, h != makeHandle(17, 43))
	assert.That(t, h != makeHandle(18, 42))
}

func TestHandleReset(t *testing.T) {
	h := makeHandle(3, 9)
	h.Reset()
	assert.That(t, !h.IsValid())
	assert.Equal(t, h, Handle{})
}

func TestAtomicHandle(t *testing.T) {
	var cell AtomicHandle
	assert.That(t, !cell.Load().IsValid())

	h := makeHandle(1, 2)
	cell.Store(h)
	assert.Equal(t, cell.Load(), h)

	assert.That(t, cell.Set(makeHandle(3, 4)))
	assert.Equal(t, cell.Load(), makeHandle(3, 4))

	assert.That(t, !cell.CompareAndSwap(h, makeHandle(5, 6)))
	assert.That(t, cell.CompareAndSwap(makeHandle(3, 4), makeHandle(5, 6)))
	assert.Equal(t, cell.Load(), makeHandle(5, 6))
}

func TestAtomicHandlePublishOnce(t *testing.T) {
	var cell AtomicHandle
	var wins atomic.Int32

	var wg sync.WaitGroup
	for i := range 8 {
		h := makeHandle(uint16(i), 0)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cell.CompareAndSwap(Handle{}, h) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, wins.Load(), int32(1))
	assert.That(t, cell.Load().IsValid())
}
