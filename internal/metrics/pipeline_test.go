package metrics

import "testing"

func TestPipelineCountersSnapshot(t *testing.T) {
	before := GetPipelineCounters()

	FrameCompleted()
	CycleDropped("normalize", "decode_failed")
	InferenceCompleted(0.014)

	after := GetPipelineCounters()
	if after.FramesCompleted != before.FramesCompleted+1 {
		t.Errorf("FramesCompleted = %d, want %d", after.FramesCompleted, before.FramesCompleted+1)
	}
	if after.CyclesDropped != before.CyclesDropped+1 {
		t.Errorf("CyclesDropped = %d, want %d", after.CyclesDropped, before.CyclesDropped+1)
	}
	if after.Inferences != before.Inferences+1 {
		t.Errorf("Inferences = %d, want %d", after.Inferences, before.Inferences+1)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	snap := GetPipelineCounters()
	snap.FramesCompleted += 100

	if got := GetPipelineCounters(); got.FramesCompleted == snap.FramesCompleted {
		t.Error("mutating a snapshot must not affect the cache")
	}
}
