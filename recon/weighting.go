package recon

import (
	"context"
	"fmt"
	"math"

	"github.com/lumenct/fdkrecon/geometry"
)

// Weighting applies the FDK cosine/distance pre-weight in place
// Single precision throughout; no clamping, NaN
// inputs propagate unchanged.
type Weighting struct {
	Detector geometry.Detector
}

func NewWeighting(det geometry.Detector) *Weighting {
	return &Weighting{Detector: det}
}

func (w *Weighting) Transform(_ context.Context, proj *Projection) (*Projection, error) {
	if proj.Data == nil {
		return nil, fmt.Errorf("recon: weighting: projection %d has no device buffer", proj.Index)
	}
	buf := proj.Data.Buffer()
	dsd := w.Detector.DSD
	hmin, vmin := w.Detector.HMin, w.Detector.VMin
	ph, pv := w.Detector.PitchH, w.Detector.PitchV

	for v := 0; v < proj.Height; v++ {
		row := buf.Data[v*buf.Pitch : v*buf.Pitch+proj.Width]
		y := float64(v)*pv + vmin + pv/2
		for u := 0; u < proj.Width; u++ {
			x := float64(u)*ph + hmin + ph/2
			weight := dsd / math.Sqrt(dsd*dsd+x*x+y*y)
			row[u] *= float32(weight)
		}
	}
	return proj, nil
}
