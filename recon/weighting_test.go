package recon

import (
	"context"
	"math"
	"testing"

	"github.com/lumenct/fdkrecon/devmem"
	"github.com/lumenct/fdkrecon/geometry"
)

func testDetector(t *testing.T) geometry.Detector {
	t.Helper()
	det, err := geometry.NewDetector(8, 8, 1, 1, 100, 100)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return det
}

func newDeviceProjection(t *testing.T, det geometry.Detector, fill float32) *Projection {
	t.Helper()
	pool := devmem.NewPool[float32](0, 1)
	h, err := pool.AllocateSmart(det.NH, det.NV)
	if err != nil {
		t.Fatalf("AllocateSmart: %v", err)
	}
	buf := h.Buffer()
	for i := range buf.Data {
		buf.Data[i] = fill
	}
	return &Projection{Data: h, Width: det.NH, Height: det.NV, Pitch: buf.Pitch}
}

func TestWeightingSanity(t *testing.T) {
	det := testDetector(t)
	proj := newDeviceProjection(t, det, 1.0)

	w := NewWeighting(det)
	if _, err := w.Transform(context.Background(), proj); err != nil {
		t.Fatalf("Transform: %v", err)
	}

	buf := proj.Data.Buffer()
	var sum float64
	for v := 0; v < det.NV; v++ {
		for u := 0; u < det.NH; u++ {
			sum += float64(buf.Data[v*buf.Pitch+u])
		}
	}

	var want float64
	for v := 0; v < det.NV; v++ {
		y := float64(v)*det.PitchV + det.VMin + det.PitchV/2
		for u := 0; u < det.NH; u++ {
			x := float64(u)*det.PitchH + det.HMin + det.PitchH/2
			want += det.DSD / math.Sqrt(det.DSD*det.DSD+x*x+y*y)
		}
	}

	if rel := math.Abs(sum-want) / want; rel > 1e-4 {
		t.Fatalf("weighted sum %.6f deviates from analytic integral %.6f by relative %.6g", sum, want, rel)
	}
}
