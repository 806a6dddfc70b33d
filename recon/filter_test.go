package recon

import (
	"context"
	"math"
	"testing"

	"github.com/lumenct/fdkrecon/geometry"
)

// rampKernelSample reproduces the closed-form r(j) used to build the
// filter kernel, for comparison against the impulse response.
func rampKernelSample(j int, tau float64) float64 {
	switch {
	case j == 0:
		return 1 / (8 * tau * tau)
	case j%2 == 0:
		return 0
	default:
		return -1 / (2 * float64(j*j) * math.Pi * math.Pi * tau * tau)
	}
}

func TestFilterImpulseResponse(t *testing.T) {
	det, err := geometry.NewDetector(8, 8, 1, 1, 100, 100)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	proj := newDeviceProjection(t, det, 0)
	buf := proj.Data.Buffer()
	buf.Data[0] = 1 // unit impulse at column 0 of row 0

	f := NewFilter(det)
	if _, err := f.Transform(context.Background(), proj); err != nil {
		t.Fatalf("Transform: %v", err)
	}

	row := buf.Data[0:buf.Pitch]
	for i := 0; i < det.NH; i++ {
		want := rampKernelSample(i, det.PitchH)
		got := float64(row[i])
		if math.Abs(got-want) > 1e-4*math.Max(1, math.Abs(want)) {
			t.Fatalf("impulse response[%d] = %.6f, want %.6f", i, got, want)
		}
	}
}

func TestFilterLengthDerivedFromHorizontalAxis(t *testing.T) {
	// A detector with mismatched n_h/n_v would expose a filter built
	// from the wrong axis: filter_length must track n_h (the axis the
	// rows are padded and transformed along), not n_v.
	det, err := geometry.NewDetector(16, 4, 1, 1, 100, 100)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	f := NewFilter(det)
	wantLen := 2 * nextPow2(det.NH)
	if f.length != wantLen {
		t.Fatalf("filter length = %d, want %d (derived from n_h=%d)", f.length, wantLen, det.NH)
	}
}
