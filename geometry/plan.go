package geometry

import (
	"github.com/lumenct/fdkrecon/cmn"
)

// Task describes one unit of reconstruction work: a contiguous z-slab of
// the output volume, assigned to a single accelerator, along with the
// projection range it must integrate over.
type Task struct {
	SubvolumeID int
	ZStart      int
	ZEnd        int // exclusive
	DeviceID    int
	ProjStart   int
	ProjEnd     int // exclusive
}

// NumZ returns the number of z-slices this task is responsible for.
func (t Task) NumZ() int { return t.ZEnd - t.ZStart }

// Plan is the immutable work list produced once up front by the planner
// and drained by the pipeline's shared task queue.
type Plan struct {
	RunID   string
	Volume  Volume
	Tasks   []Task
}

// PlannerConfig carries the inputs the planner needs beyond the already
// derived Volume: how many devices are available, how many projections
// the scan produced, and an optional override for the slab thickness.
type PlannerConfig struct {
	NumDevices     int
	NumProjections int
	// SlabSize is the number of z-slices per subvolume. If zero, the
	// planner derives one from MemoryBudget and BytesPerProjection.
	SlabSize int
	// MemoryBudget is the number of bytes usable per device for this
	// run (already discounted by DeviceFraction); BytesPerProjection
	// and ParallelProjections bound the preloaded-projection working
	// set subtracted from it before slab sizing.
	MemoryBudget         int64
	BytesPerProjection   int64
	ParallelProjections  int
	FFTScratchBytes      int64
}

// BuildPlan decomposes a volume into z-slabs and assigns them round-robin
// across the available devices, one subvolume per task.
func BuildPlan(vol Volume, cfg PlannerConfig) (Plan, error) {
	if cfg.NumDevices <= 0 {
		return Plan{}, errConstruction("no accelerators present")
	}
	if cfg.NumProjections <= 0 {
		return Plan{}, errConstruction("scan has no projections")
	}

	slab := cfg.SlabSize
	if slab <= 0 {
		var err error
		slab, err = deriveSlabSize(vol, cfg)
		if err != nil {
			return Plan{}, err
		}
	}
	if slab <= 0 {
		return Plan{}, errConstruction("derived slab size is non-positive; device memory budget too small")
	}

	numSlabs := ceilDiv(vol.NZ, slab)
	tasks := make([]Task, 0, numSlabs)
	for i := 0; i < numSlabs; i++ {
		zStart := i * slab
		zEnd := zStart + slab
		if zEnd > vol.NZ {
			zEnd = vol.NZ // remainder slab
		}
		tasks = append(tasks, Task{
			SubvolumeID: i,
			ZStart:      zStart,
			ZEnd:        zEnd,
			DeviceID:    i % cfg.NumDevices, // round-robin device assignment
			ProjStart:   0,
			ProjEnd:     cfg.NumProjections,
		})
	}

	return Plan{RunID: cmn.NewRunID(), Volume: vol, Tasks: tasks}, nil
}

// deriveSlabSize solves for the largest slab thickness whose working set
// — preloaded projections plus one slab plus FFT scratch — fits within a
// conservative fraction of usable device memory.
func deriveSlabSize(vol Volume, cfg PlannerConfig) (int, error) {
	if cfg.MemoryBudget <= 0 {
		return 0, errConstruction("device memory budget must be positive")
	}
	parallel := cfg.ParallelProjections
	if parallel <= 0 {
		parallel = 1
	}
	projWorkingSet := cfg.BytesPerProjection * int64(parallel)
	remaining := cfg.MemoryBudget - projWorkingSet - cfg.FFTScratchBytes
	if remaining <= 0 {
		return 0, errConstruction("preloaded projections and FFT scratch alone exceed the device memory budget")
	}
	bytesPerSlice := int64(vol.NX*vol.NY) * 4 // float32 voxels
	if bytesPerSlice <= 0 {
		return 0, errConstruction("volume has zero cross-sectional area")
	}
	slab := int(remaining / bytesPerSlice)
	if slab > vol.NZ {
		slab = vol.NZ
	}
	return slab, nil
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
