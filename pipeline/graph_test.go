package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPipelineTerminatesOnSentinel(t *testing.T) {
	ctx := context.Background()
	g, ctx := NewGroup(ctx)

	in := NewEdge[int](4)
	out := NewEdge[int](4)

	double := Stage[int, int]{
		Name:    "double",
		Workers: 3,
		Fn: func(_ context.Context, v int) (int, error) {
			return v * 2, nil
		},
	}
	RunStage(ctx, g, double, in, out)

	const n = 50
	go func() {
		for i := 0; i < n; i++ {
			in <- Data(i)
		}
		in <- Sentinel[int]()
	}()

	sum := 0
	count := 0
	for item := range drainUntilEnd(t, out) {
		sum += item
		count++
	}
	if count != n {
		t.Fatalf("expected %d results, got %d", n, count)
	}
	if err := Drive(g); err != nil {
		t.Fatalf("Drive: %v", err)
	}
}

func TestPipelinePropagatesStageError(t *testing.T) {
	ctx := context.Background()
	g, ctx := NewGroup(ctx)

	in := NewEdge[int](4)
	out := NewEdge[int](4)

	boom := errors.New("boom")
	failing := Stage[int, int]{
		Name:    "failing",
		Workers: 1,
		Fn: func(_ context.Context, v int) (int, error) {
			if v == 3 {
				return 0, boom
			}
			return v, nil
		},
	}
	RunStage(ctx, g, failing, in, out)

	go func() {
		for i := 0; i < 10; i++ {
			select {
			case in <- Data(i):
			case <-ctx.Done():
				return
			}
		}
		select {
		case in <- Sentinel[int]():
		case <-ctx.Done():
		}
	}()

	var sawPoison bool
	for item := range out {
		if item.End {
			sawPoison = item.Err != nil
			break
		}
	}
	if !sawPoison {
		t.Fatalf("expected a poisoned sentinel carrying the stage error")
	}
	if err := Drive(g); err == nil {
		t.Fatalf("expected Drive to report the stage error")
	}
}

func TestPipelineBlocksOnFullEdgeBackpressure(t *testing.T) {
	ctx := context.Background()
	g, ctx := NewGroup(ctx)

	in := NewEdge[int](1)
	out := NewEdge[int](1)

	var processed atomic.Int32
	slow := Stage[int, int]{
		Name:    "slow",
		Workers: 1,
		Fn: func(_ context.Context, v int) (int, error) {
			processed.Add(1)
			return v, nil
		},
	}
	RunStage(ctx, g, slow, in, out)

	// With no consumer on the downstream edge the stage absorbs five
	// items: one in the downstream edge, one held by the blocked worker,
	// one in the stage's internal work queue, one held by the blocked
	// reader, and one in the upstream edge. A sixth send must block
	// rather than buffer unboundedly.
	for i := 1; i <= 5; i++ {
		in <- Data(i)
	}

	sent := make(chan struct{})
	go func() {
		in <- Data(6)
		close(sent)
	}()

	select {
	case <-sent:
		t.Fatalf("send should have blocked under backpressure")
	case <-time.After(50 * time.Millisecond):
	}

	<-out // drain one result, freeing room downstream
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatalf("send never unblocked after downstream drained")
	}

	go func() { in <- Sentinel[int]() }() // the upstream edge is full again
	for item := range out {
		if item.End {
			break
		}
	}
	_ = Drive(g)
}

func drainUntilEnd(t *testing.T, ch chan Item[int]) <-chan int {
	t.Helper()
	results := make(chan int)
	go func() {
		defer close(results)
		for item := range ch {
			if item.End {
				return
			}
			results <- item.Payload
		}
	}()
	return results
}
