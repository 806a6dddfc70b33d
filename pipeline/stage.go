package pipeline

import "context"

// Transform is the unit of work a stage applies to each item that flows
// through it. Returning an error poisons the pipeline: the stage's
// remaining workers stop taking new input and the graph propagates a
// Poison sentinel downstream instead of the normal end-of-stream marker.
type Transform[In, Out any] func(ctx context.Context, in In) (Out, error)

// Stage is one named pool of workers sitting between an inbound and an
// outbound edge: N workers of the same stage race over the same bounded
// work queue.
type Stage[In, Out any] struct {
	Name    string
	Workers int
	Fn      Transform[In, Out]
}
