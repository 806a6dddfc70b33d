// Package recon implements the FDK pipeline stages:
// Source, Preloader, Weighting, Filter, Reconstruction and Sink, wired
// together by the pipeline package into one chain per accelerator.
package recon

import (
	"github.com/lumenct/fdkrecon/device"
	"github.com/lumenct/fdkrecon/devmem"
	"github.com/lumenct/fdkrecon/geometry"
)

// Projection is one detector image in flight through the pipeline
// Data starts out host-resident (Source) and is given a
// device handle and stream by the Preloader; every stage after that
// operates on Data.Buffer() in place.
type Projection struct {
	Host   []float32 // valid only before Preloader runs
	Data   *devmem.Handle[float32]
	Width  int
	Height int
	Pitch  int
	Index  int
	Phi    float64
	Stream device.Stream
}

// Release returns the projection's device buffer, if any, to its pool.
func (p *Projection) Release() {
	if p.Data != nil {
		p.Data.Release()
	}
	if p.Stream != nil {
		p.Stream.Release()
	}
}

// Slab is a reconstructed z-range of the output volume, accumulated in
// device memory by the Reconstruction stage and later downloaded by the
// Sink.
type Slab struct {
	Data    *devmem.Handle[float32]
	Host    []float32 // not set by the Sink, which copies slices out of Data
	Task    geometry.Task
	Vol     geometry.Volume
	Stream  device.Stream
}

// Release returns the slab's device buffer, if any, to its pool.
func (s *Slab) Release() {
	if s.Data != nil {
		s.Data.Release()
	}
	if s.Stream != nil {
		s.Stream.Release()
	}
}

// NX and NY are the slab's fixed transaxial extents (the full volume's
// x/y counts); NZ is the slab's own z-thickness.
func (s *Slab) NX() int { return s.Vol.NX }
func (s *Slab) NY() int { return s.Vol.NY }
func (s *Slab) NZ() int { return s.Task.NumZ() }
