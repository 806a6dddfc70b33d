// Package pipeline implements the streaming, bounded-channel multi-stage
// runtime that ties the reconstruction stages together: a fixed sequence
// of worker pools connected edge-to-edge, each edge a bounded channel,
// termination propagated by a sentinel rather than channel close so a
// stage can still report a fatal error after the last real item.
package pipeline

// Item is the sum type that flows along every edge of the graph: either
// a payload of type P or the end-of-stream sentinel. Using a struct
// instead of closing the channel lets a stage distinguish "no more
// work" from "the channel is gone", and lets End carry the error that
// caused an early shutdown.
type Item[P any] struct {
	Payload P
	End     bool
	Err     error
}

// Data wraps a payload as an in-flight item.
func Data[P any](p P) Item[P] { return Item[P]{Payload: p} }

// Sentinel is the normal (no error) end-of-stream marker.
func Sentinel[P any]() Item[P] { return Item[P]{End: true} }

// Poison is an end-of-stream marker carrying the error that triggered
// it, so downstream stages can distinguish a clean finish from an
// abort and propagate the same error onward without re-wrapping it.
func Poison[P any](err error) Item[P] { return Item[P]{End: true, Err: err} }
