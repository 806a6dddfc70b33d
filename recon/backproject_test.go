package recon

import (
	"context"
	"math"
	"testing"

	"github.com/lumenct/fdkrecon/device"
	"github.com/lumenct/fdkrecon/devmem"
	"github.com/lumenct/fdkrecon/geometry"
)

// TestBackprojectSingleProjectionIsFiniteNonzero is scenario E1: an
// 8x8 detector, one all-ones projection at phi=0, d_so=d_sd=100,
// pitch=1, reconstructed into an 8x8x1 volume. The center voxel must
// come out finite and non-zero.
func TestBackprojectSingleProjectionIsFiniteNonzero(t *testing.T) {
	det, err := geometry.NewDetector(8, 8, 1, 1, 100, 100)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	vol := geometry.Volume{NX: 8, NY: 8, NZ: 1, Voxel: 1, XMin: -4, YMin: -4, ZMin: 0}
	task := geometry.Task{SubvolumeID: 0, ZStart: 0, ZEnd: 1, DeviceID: 0, ProjStart: 0, ProjEnd: 1}

	projPool := devmem.NewPool[float32](0, 2)
	slabPool := devmem.NewPool[float32](0, 1)
	accel := device.DiscoverAccelerators(1, 1<<30)[0]

	r := NewReconstruct(slabPool, accel, det, vol, 2*math.Pi)
	if err := r.AssignTask(task); err != nil {
		t.Fatalf("AssignTask: %v", err)
	}

	proj := newDeviceProjectionFrom(t, projPool, det, 1.0)
	proj.Phi = 0
	if _, err := r.Transform(context.Background(), proj); err != nil {
		t.Fatalf("Transform: %v", err)
	}

	slab := r.Finish()
	defer slab.Release()
	buf := slab.Data.Buffer()
	center := 4*vol.NX + 4
	v := buf.Data[center]
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		t.Fatalf("center voxel is not finite: %v", v)
	}
	if v == 0 {
		t.Fatalf("center voxel is zero, expected a non-zero contribution")
	}
}

func newDeviceProjectionFrom(t *testing.T, pool *devmem.Pool[float32], det geometry.Detector, fill float32) *Projection {
	t.Helper()
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
