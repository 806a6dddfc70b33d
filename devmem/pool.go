// Package devmem implements a per-device memory pool: a bounded set of
// pitched 2-D allocations of a fixed element type, handed out as owning
// handles that return themselves to the pool on release rather than
// freeing their backing storage.
//
// The design follows a slab-recycling idiom generalized from byte slabs
// to typed, pitched 2-D buffers, with one pool per (device, element
// type) pair.
package devmem

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
)

const pitchAlignBytes = 128

// Buffer is one pitched 2-D allocation: Pitch is the row stride in
// elements (>= Width, rounded up so each row starts at a cache-friendly
// alignment), Data holds Pitch*Height elements.
type Buffer[T any] struct {
	Data   []T
	Width  int
	Height int
	Pitch  int
}

// Handle is an owning reference to a pooled Buffer. Release must be called
// at least once (later calls are no-ops); a Handle whose owner forgets to call Release leaks the
// buffer out of circulation until the pool is destroyed.
type Handle[T any] struct {
	pool   *Pool[T]
	buf    *Buffer[T]
	released bool
}

// Buffer exposes the underlying pitched allocation.
func (h *Handle[T]) Buffer() *Buffer[T] { return h.buf }

// Release returns the buffer to its pool. Safe to call multiple times;
// only the first call has an effect.
func (h *Handle[T]) Release() {
	if h.released {
		return
	}
	h.released = true
	h.pool.release(h.buf)
}

// Pool hands out Buffer[T] allocations bound to one device and one
// element type, up to limit concurrently outstanding. Buffers are created
// lazily on first use; a compatible-sized free buffer is always reused in
// preference to allocating a new one.
type Pool[T any] struct {
	deviceID int
	limit    int

	mu       sync.Mutex
	cond     *sync.Cond
	free     []*Buffer[T]
	outCount int
	destroyed bool
}

// NewPool constructs a pool bound to deviceID, allowing up to limit
// concurrently outstanding buffers.
func NewPool[T any](deviceID, limit int) *Pool[T] {
	if limit <= 0 {
		limit = 1
	}
	p := &Pool[T]{deviceID: deviceID, limit: limit}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// AllocateSmart returns an owning Handle to a w x h buffer, reusing a
// free buffer of compatible size if one exists. If the pool is already at
// its limit and no buffer is free, the call blocks until one is released;
// this is the pool's backpressure contract, not an error.
func (p *Pool[T]) AllocateSmart(w, h int) (*Handle[T], error) {
	pitch := pitchElems[T](w)

	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.destroyed {
			return nil, errors.New("devmem: pool destroyed")
		}
		if buf := p.takeCompatibleLocked(w, pitch, h); buf != nil {
			p.outCount++
			return &Handle[T]{pool: p, buf: buf}, nil
		}
		if p.outCount < p.limit {
			buf := &Buffer[T]{
				Data:   make([]T, pitch*h),
				Width:  w,
				Height: h,
				Pitch:  pitch,
			}
			p.outCount++
			return &Handle[T]{pool: p, buf: buf}, nil
		}
		// at limit, nothing free: block for a release (no busy-waiting).
		p.cond.Wait()
	}
}

func (p *Pool[T]) takeCompatibleLocked(w, pitch, h int) *Buffer[T] {
	for i, b := range p.free {
		if b.Pitch >= pitch && cap(b.Data) >= b.Pitch*h {
			p.free = append(p.free[:i], p.free[i+1:]...)
			b.Data = b.Data[:b.Pitch*h]
			b.Width = w
			b.Height = h
			return b
		}
	}
	return nil
}

func (p *Pool[T]) release(buf *Buffer[T]) {
	p.mu.Lock()
	p.outCount--
	if !p.destroyed {
		p.free = append(p.free, buf)
	}
	p.cond.Signal()
	p.mu.Unlock()
}

// Destroy releases all pooled memory. Destruction requires device
// affinity and must not panic during stack unwinding;
// callers that destroy a pool while handling a fatal error should log
// Destroy's return value rather than propagate it further.
func (p *Pool[T]) Destroy(dev interface{ SetCurrent() error }) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("devmem: panic during pool destroy: %v", r)
		}
	}()
	if dev != nil {
		if serr := dev.SetCurrent(); serr != nil {
			return errors.Wrap(serr, "devmem: set device current for destroy")
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyed = true
	p.free = nil
	p.cond.Broadcast()
	return nil
}

// Outstanding reports the number of handles not yet released, useful in
// tests asserting that every allocation is returned before a stage is
// destroyed.
func (p *Pool[T]) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outCount
}

func pitchElems[T any](width int) int {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize == 0 {
		return width
	}
	alignElems := pitchAlignBytes / elemSize
	if alignElems <= 1 {
		return width
	}
	rem := width % alignElems
	if rem == 0 {
		return width
	}
	return width + (alignElems - rem)
}
