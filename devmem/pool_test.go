package devmem

import (
	"sync"
	"testing"
	"time"
)

func TestAllocateSmartReusesFreedBuffer(t *testing.T) {
	p := NewPool[float32](0, 2)

	h1, err := p.AllocateSmart(16, 8)
	if err != nil {
		t.Fatalf("alloc 1: %v", err)
	}
	buf1 := h1.Buffer()
	h1.Release()

	h2, err := p.AllocateSmart(16, 8)
	if err != nil {
		t.Fatalf("alloc 2: %v", err)
	}
	if h2.Buffer() != buf1 {
		t.Fatalf("expected reuse of released buffer, got a new allocation")
	}
	h2.Release()
}

func TestAllocateSmartBlocksAtLimit(t *testing.T) {
	p := NewPool[float32](0, 1)

	h1, err := p.AllocateSmart(4, 4)
	if err != nil {
		t.Fatalf("alloc 1: %v", err)
	}

	done := make(chan struct{})
	go func() {
		h2, err := p.AllocateSmart(4, 4)
		if err != nil {
			t.Errorf("alloc 2: %v", err)
			return
		}
		h2.Release()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("second allocation should have blocked while pool is at limit")
	case <-time.After(50 * time.Millisecond):
	}

	h1.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("second allocation never unblocked after release")
	}
}

func TestPoolOutstandingInvariant(t *testing.T) {
	p := NewPool[float32](0, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := p.AllocateSmart(8, 8)
			if err != nil {
				t.Errorf("alloc: %v", err)
				return
			}
			h.Release()
		}()
	}
	wg.Wait()
	if out := p.Outstanding(); out != 0 {
		t.Fatalf("expected 0 outstanding buffers after all released, got %d", out)
	}
}

func TestPitchAlignment(t *testing.T) {
	p := NewPool[float32](0, 1)
	h, err := p.AllocateSmart(3, 2)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	defer h.Release()
	buf := h.Buffer()
	if buf.Pitch < buf.Width {
		t.Fatalf("pitch %d smaller than width %d", buf.Pitch, buf.Width)
	}
	if len(buf.Data) != buf.Pitch*buf.Height {
		t.Fatalf("data length %d does not match pitch*height %d", len(buf.Data), buf.Pitch*buf.Height)
	}
}
