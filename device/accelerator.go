// Package device abstracts the GPU-class accelerator boundary the rest of
// the engine programs against. Every item flowing through the pipeline
// (pipeline.Item wrapping a Projection or VolumeSlab) carries an opaque
// Stream so kernels launched on one stage can remain asynchronous and only
// synchronize at specific hand-offs: end of Preloader, end of
// Reconstruction per projection.
//
// This module ships one concrete Accelerator: a CPU-parallel reference
// backend (see cpu_backend.go). No GPU toolchain is available to a module
// built this way, so the numerical kernels in package recon are written
// against this interface rather than against any particular vendor API;
// swapping in a real CUDA/ROCm backend means implementing Accelerator and
// Stream, nothing else in the engine changes.
package device

import "context"

// Accelerator represents one GPU-class compute device.
type Accelerator interface {
	// ID is the device's position in the list of visible accelerators;
	// Task.DeviceID (geometry package) refers to devices by this index.
	ID() int
	// SetCurrent makes this device the current context for the calling
	// goroutine, mirroring cudaSetDevice. Required before pool
	// pool destruction.
	SetCurrent() error
	// MemoryBudget returns the number of bytes the task planner may use
	// when sizing subvolumes for this device.
	MemoryBudget() int64
	// NewStream creates a new non-default, concurrent execution stream.
	NewStream() Stream
}

// Stream is the opaque per-projection (or per-slab) execution context
// carried through the pipeline graph. Kernel launches enqueued on a
// Stream execute asynchronously; Synchronize blocks the calling goroutine
// until every enqueued operation has completed.
type Stream interface {
	// Launch enqueues fn for asynchronous execution on this stream.
	Launch(fn func(ctx context.Context) error)
	// Synchronize blocks until every Launch'd function on this stream has
	// returned, and reports the first error encountered, if any.
	Synchronize(ctx context.Context) error
	// Release returns the stream to its accelerator; a released stream
	// must not be used again.
	Release()
}
