package geometry

import (
	"path/filepath"
	"testing"
)

func TestPlanSidecarRoundTrip(t *testing.T) {
	vol := testVolume()
	plan, err := BuildPlan(vol, PlannerConfig{NumDevices: 2, NumProjections: 360, SlabSize: 30})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	path := filepath.Join(t.TempDir(), "plan.msgp")
	if err := WritePlanSidecar(path, plan); err != nil {
		t.Fatalf("WritePlanSidecar: %v", err)
	}

	got, err := ReadPlanSidecar(path)
	if err != nil {
		t.Fatalf("ReadPlanSidecar: %v", err)
	}
	if got.RunID != plan.RunID {
		t.Fatalf("run id = %q, want %q", got.RunID, plan.RunID)
	}
	if got.Volume != plan.Volume {
		t.Fatalf("volume = %+v, want %+v", got.Volume, plan.Volume)
	}
	if len(got.Tasks) != len(plan.Tasks) {
		t.Fatalf("tasks = %d, want %d", len(got.Tasks), len(plan.Tasks))
	}
	for i := range plan.Tasks {
		if got.Tasks[i] != plan.Tasks[i] {
			t.Fatalf("task %d = %+v, want %+v", i, got.Tasks[i], plan.Tasks[i])
		}
	}
}
