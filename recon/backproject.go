package recon

import (
	"context"
	"fmt"
	"math"

	"github.com/lumenct/fdkrecon/cmn/nlog"
	"github.com/lumenct/fdkrecon/device"
	"github.com/lumenct/fdkrecon/devmem"
	"github.com/lumenct/fdkrecon/geometry"
)

// tThreshold guards the 1/(d_so - t) magnification term against
// division by a near-zero denominator; voxels that would divide by less
// than this are skipped.
const tThreshold = 1e-6

// Reconstruct performs differential back-projection of one filtered
// projection into the currently-owned subvolume. One Reconstruct is
// created per device and reused across tasks; AssignTask gives it a
// fresh subvolume device buffer for each task, and Finish hands the
// finished Slab on when the task's sentinel arrives.
type Reconstruct struct {
	Pool     *devmem.Pool[float32]
	Accel    device.Accelerator
	Detector geometry.Detector
	Vol      geometry.Volume
	DeltaPhi float64

	task geometry.Task
	slab *Slab
}

func NewReconstruct(pool *devmem.Pool[float32], accel device.Accelerator, det geometry.Detector, vol geometry.Volume, deltaPhi float64) *Reconstruct {
	return &Reconstruct{Pool: pool, Accel: accel, Detector: det, Vol: vol, DeltaPhi: deltaPhi}
}

// AssignTask configures the subvolume this Reconstruct accumulates
// into; it must be called before the first Transform call for a task,
// and is idempotent before the task runs.
func (r *Reconstruct) AssignTask(task geometry.Task) error {
	if r.slab != nil && r.task == task {
		return nil
	}
	handle, err := r.Pool.AllocateSmart(r.Vol.NX*r.Vol.NY, task.NumZ())
	if err != nil {
		return fmt.Errorf("recon: backproject: allocating subvolume for task %d: %w", task.SubvolumeID, err)
	}
	buf := handle.Buffer()
	for i := range buf.Data {
		buf.Data[i] = 0
	}
	r.task = task
	r.slab = &Slab{Data: handle, Task: task, Vol: r.Vol, Stream: r.Accel.NewStream()}
	return nil
}

// Transform accumulates one filtered projection into the subvolume.
// It always returns a nil *Projection (the projection is released
// here): the finished slab is only emitted from Finish, when the
// task's sentinel is observed.
func (r *Reconstruct) Transform(ctx context.Context, proj *Projection) (*Projection, error) {
	if r.slab == nil {
		return nil, fmt.Errorf("recon: backproject: no task assigned")
	}
	buf := proj.Data.Buffer()
	slabBuf := r.slab.Data.Buffer()

	dso, dsd := r.Detector.DSO, r.Detector.DSD
	hmin, vmin := r.Detector.HMin, r.Detector.VMin
	ph, pv := r.Detector.PitchH, r.Detector.PitchV
	nh, nv := r.Detector.NH, r.Detector.NV
	sinPhi, cosPhi := math.Sin(proj.Phi), math.Cos(proj.Phi)

	nx, ny := r.Vol.NX, r.Vol.NY
	zStart := r.task.ZStart

	for z := 0; z < r.task.NumZ(); z++ {
		_, _, Z := r.Vol.VoxelCenter(0, 0, zStart+z)
		slabRowBase := z * slabBuf.Pitch
		for y := 0; y < ny; y++ {
			_, Y, _ := r.Vol.VoxelCenter(0, y, 0)
			for x := 0; x < nx; x++ {
				X, _, _ := r.Vol.VoxelCenter(x, 0, 0)

				s := X*cosPhi + Y*sinPhi
				t := -X*sinPhi + Y*cosPhi

				denom := dso - t
				if math.Abs(denom) < tThreshold {
					continue
				}
				U := dso / denom
				u := U * s
				v := U * Z

				i := (u-hmin)/ph - 0.5
				j := (v-vmin)/pv - 0.5
				if i < 0 || j < 0 || i >= float64(nh-1) || j >= float64(nv-1) {
					continue
				}

				pStar := bilinear(buf.Data, buf.Pitch, i, j)
				voxelIdx := slabRowBase + y*nx + x
				slabBuf.Data[voxelIdx] += float32(U*U) * pStar * float32(r.DeltaPhi)
			}
		}
	}
	proj.Release()
	return nil, nil
}

func bilinear(data []float32, pitch int, i, j float64) float32 {
	i0, j0 := int(math.Floor(i)), int(math.Floor(j))
	di, dj := i-float64(i0), j-float64(j0)

	v00 := data[j0*pitch+i0]
	v10 := data[j0*pitch+i0+1]
	v01 := data[(j0+1)*pitch+i0]
	v11 := data[(j0+1)*pitch+i0+1]

	top := float64(v00)*(1-di) + float64(v10)*di
	bot := float64(v01)*(1-di) + float64(v11)*di
	return float32(top*(1-dj) + bot*dj)
}

// Finish is called when the task's sentinel is observed; it releases
// the pipeline's claim on the subvolume and returns it for the Sink.
func (r *Reconstruct) Finish() *Slab {
	if r.slab == nil {
		return nil
	}
	if err := r.slab.Stream.Synchronize(context.Background()); err != nil {
		nlog.Errorf("recon: backproject: synchronizing subvolume %d: %v", r.task.SubvolumeID, err)
	}
	slab := r.slab
	r.slab = nil
	return slab
}
