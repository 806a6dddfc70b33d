package recon

import (
	"context"
	"fmt"
	"sync"

	"github.com/lumenct/fdkrecon/cmn/nlog"
	"github.com/lumenct/fdkrecon/device"
	"github.com/lumenct/fdkrecon/devmem"
	"github.com/lumenct/fdkrecon/geometry"
	"github.com/lumenct/fdkrecon/pipeline"
	"github.com/lumenct/fdkrecon/projio"
)

// TaskQueue is the shared, multi-consumer source of work every device
// pipeline drains, protected by a single mutex and drained to empty.
// Pop returns ok=false once every task has been claimed.
type TaskQueue struct {
	mu    sync.Mutex
	tasks []geometry.Task
	next  int
}

func NewTaskQueue(plan geometry.Plan) *TaskQueue {
	return &TaskQueue{tasks: plan.Tasks}
}

func (q *TaskQueue) Pop() (geometry.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.next >= len(q.tasks) {
		return geometry.Task{}, false
	}
	t := q.tasks[q.next]
	q.next++
	return t, true
}

// Engine wires one device's Source -> Preloader -> Weighting -> Filter
// -> Reconstruction chain and drains the shared task queue until it is
// empty, handing every finished Slab to the shared Sink.
type Engine struct {
	Accel     device.Accelerator
	Detector  geometry.Detector
	Vol       geometry.Volume
	DeltaPhi  float64
	Reader    projio.ProjectionReader
	ProjPool  *devmem.Pool[float32]
	SlabPool  *devmem.Pool[float32]
	Queue     *TaskQueue
	Sink      *Sink
	EdgeDepth int
}

// Run drains tasks from the queue until it is empty, running one
// per-task pipeline at a time on this device; the Reconstruction stage
// awaits the next task after finishing one.
func (e *Engine) Run(ctx context.Context) error {
	depth := e.EdgeDepth
	if depth <= 0 {
		depth = 2
	}
	source := NewSource(e.Reader, e.Detector, e.DeltaPhi)
	preloader := NewPreloader(e.ProjPool, e.Accel)
	weighting := NewWeighting(e.Detector)
	filter := NewFilter(e.Detector)
	backproject := NewReconstruct(e.SlabPool, e.Accel, e.Detector, e.Vol, e.DeltaPhi)

	for {
		task, ok := e.Queue.Pop()
		if !ok {
			return nil
		}
		if err := e.runTask(ctx, task, depth, source, preloader, weighting, filter, backproject); err != nil {
			return fmt.Errorf("recon: engine: device %d: task %d: %w", e.Accel.ID(), task.SubvolumeID, err)
		}
	}
}

func (e *Engine) runTask(
	ctx context.Context,
	task geometry.Task,
	depth int,
	source *Source,
	preloader *Preloader,
	weighting *Weighting,
	filter *Filter,
	backproject *Reconstruct,
) error {
	g, ctx := pipeline.NewGroup(ctx)

	raw := pipeline.NewEdge[*Projection](depth) // Source's own emission edge
	uploaded := pipeline.NewEdge[*Projection](depth)
	weighted := pipeline.NewEdge[*Projection](depth)
	filtered := pipeline.NewEdge[*Projection](depth)

	g.Go(func() error {
		source.Stream(ctx, task, raw)
		return nil
	})
	pipeline.RunStage(ctx, g, pipeline.Stage[*Projection, *Projection]{
		Name: "preloader", Workers: 1, Fn: preloader.Transform,
	}, raw, uploaded)
	pipeline.RunStage(ctx, g, pipeline.Stage[*Projection, *Projection]{
		Name: "weighting", Workers: 1, Fn: weighting.Transform,
	}, uploaded, weighted)
	pipeline.RunStage(ctx, g, pipeline.Stage[*Projection, *Projection]{
		Name: "filter", Workers: 1, Fn: filter.Transform,
	}, weighted, filtered)

	if err := backproject.AssignTask(task); err != nil {
		return err
	}

	var recErr error
drain:
	for {
		select {
		case item, ok := <-filtered:
			if !ok {
				break drain
			}
			if item.End {
				recErr = item.Err
				break drain
			}
			if _, err := backproject.Transform(ctx, item.Payload); err != nil {
				recErr = err
				break drain
			}
		case <-ctx.Done():
			break drain
		}
	}

	slab := backproject.Finish()
	if recErr != nil {
		if slab != nil {
			slab.Release()
		}
		_ = pipeline.Drive(g)
		return recErr
	}
	if err := pipeline.Drive(g); err != nil {
		if slab != nil {
			slab.Release()
		}
		return err
	}
	if slab != nil {
		if err := e.Sink.Submit(ctx, slab); err != nil {
			return fmt.Errorf("sink: %w", err)
		}
	}
	nlog.Infof("recon: device %d completed subvolume %d (z=[%d,%d))", e.Accel.ID(), task.SubvolumeID, task.ZStart, task.ZEnd)
	return nil
}
