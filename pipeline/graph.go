package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lumenct/fdkrecon/cmn/nlog"
)

// NewEdge allocates a bounded channel connecting two stages. The bound
// is the backpressure knob: a fast stage blocks on send once a slow
// downstream stage's edge fills, rather than buffering unboundedly.
func NewEdge[T any](capacity int) chan Item[T] {
	return make(chan Item[T], capacity)
}

// RunStage registers one stage's workers plus its own end-of-stream
// bookkeeping goroutine on g, an errgroup.Group driving the whole
// pipeline: the driver cancels every stage's context as soon as any one
// of them returns a fatal error.
//
// Workers race over an internal, stage-owned work queue fed by a single
// reader goroutine that also recognizes the inbound End item, closes
// the work queue, waits for the workers to drain it, and forwards
// exactly one End item downstream — so a stage with N workers never
// emits more than one sentinel no matter how many workers it runs.
func RunStage[In, Out any](ctx context.Context, g *errgroup.Group, stage Stage[In, Out], in <-chan Item[In], out chan<- Item[Out]) {
	workers := stage.Workers
	if workers <= 0 {
		workers = 1
	}
	workCh := make(chan In, workers)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	recordErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for v := range workCh {
				result, err := stage.Fn(ctx, v)
				if err != nil {
					nlog.Errorf("%s: %v", stage.Name, err)
					recordErr(err)
					continue
				}
				select {
				case out <- Data(result):
				case <-ctx.Done():
					return nil
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		var upstreamErr error
	drain:
		for {
			select {
			case item, ok := <-in:
				if !ok {
					break drain
				}
				if item.End {
					upstreamErr = item.Err
					break drain
				}
				mu.Lock()
				aborting := firstErr != nil
				mu.Unlock()
				if aborting {
					continue // drain remaining input without more work; avoids deadlocking upstream senders
				}
				select {
				case workCh <- item.Payload:
				case <-ctx.Done():
					break drain
				}
			case <-ctx.Done():
				break drain
			}
		}
		close(workCh)
		wg.Wait()

		mu.Lock()
		err := firstErr
		mu.Unlock()
		if err == nil {
			err = upstreamErr
		}

		select {
		case out <- Item[Out]{End: true, Err: err}:
		case <-ctx.Done():
		}
		return err
	})
}

// Drive runs g to completion and returns the first error any stage
// reported, or nil if every stage reached its sentinel cleanly.
func Drive(g *errgroup.Group) error {
	return g.Wait()
}

// NewGroup returns an errgroup bound to ctx, mirroring the derived,
// cancel-on-first-error context every RunStage call shares.
func NewGroup(ctx context.Context) (*errgroup.Group, context.Context) {
	return errgroup.WithContext(ctx)
}
