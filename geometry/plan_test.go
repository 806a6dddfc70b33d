package geometry

import "testing"

func testVolume() Volume {
	return Volume{NX: 64, NY: 64, NZ: 100, Voxel: 1.0}
}

func TestBuildPlanCoversEveryZSliceExactlyOnce(t *testing.T) {
	vol := testVolume()
	plan, err := BuildPlan(vol, PlannerConfig{NumDevices: 2, NumProjections: 360, SlabSize: 30})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	covered := make([]bool, vol.NZ)
	for _, task := range plan.Tasks {
		for z := task.ZStart; z < task.ZEnd; z++ {
			if covered[z] {
				t.Fatalf("z-slice %d covered by more than one task", z)
			}
			covered[z] = true
		}
	}
	for z, ok := range covered {
		if !ok {
			t.Fatalf("z-slice %d not covered by any task", z)
		}
	}
}

func TestBuildPlanRemainderSlab(t *testing.T) {
	vol := testVolume() // NZ=100, slab=30 -> slabs of 30,30,30,10
	plan, err := BuildPlan(vol, PlannerConfig{NumDevices: 1, NumProjections: 1, SlabSize: 30})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if len(plan.Tasks) != 4 {
		t.Fatalf("expected 4 tasks, got %d", len(plan.Tasks))
	}
	last := plan.Tasks[len(plan.Tasks)-1]
	if last.NumZ() != 10 {
		t.Fatalf("expected remainder slab of 10 slices, got %d", last.NumZ())
	}
}

func TestBuildPlanRoundRobinsDevices(t *testing.T) {
	vol := testVolume()
	plan, err := BuildPlan(vol, PlannerConfig{NumDevices: 3, NumProjections: 1, SlabSize: 10})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	for i, task := range plan.Tasks {
		want := i % 3
		if task.DeviceID != want {
			t.Fatalf("task %d: expected device %d, got %d", i, want, task.DeviceID)
		}
	}
}

func TestBuildPlanRejectsNoDevices(t *testing.T) {
	if _, err := BuildPlan(testVolume(), PlannerConfig{NumDevices: 0, NumProjections: 1, SlabSize: 10}); err == nil {
		t.Fatalf("expected error with zero devices")
	} else if !IsConstructionError(err) {
		t.Fatalf("expected a ConstructionError, got %T", err)
	}
}

func TestDeriveSlabSizeFromMemoryBudget(t *testing.T) {
	vol := testVolume()
	plan, err := BuildPlan(vol, PlannerConfig{
		NumDevices:          1,
		NumProjections:      360,
		MemoryBudget:        64 * 64 * 4 * 20, // room for ~20 slices after subtracting below
		BytesPerProjection:  0,
		ParallelProjections: 1,
		FFTScratchBytes:     0,
	})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if len(plan.Tasks) == 0 {
		t.Fatalf("expected at least one task")
	}
	if plan.Tasks[0].NumZ() > 20 {
		t.Fatalf("derived slab larger than memory budget allows: %d", plan.Tasks[0].NumZ())
	}
}

func TestDeriveSlabSizeRejectsExhaustedBudget(t *testing.T) {
	vol := testVolume()
	_, err := BuildPlan(vol, PlannerConfig{
		NumDevices:          1,
		NumProjections:      360,
		MemoryBudget:        100,
		BytesPerProjection:  1000,
		ParallelProjections: 1,
	})
	if err == nil {
		t.Fatalf("expected error when working set exceeds memory budget")
	}
}
