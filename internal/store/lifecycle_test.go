package store

import "testing"

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func sampleActivities() []Activity {
	return []Activity{
		{ID: "a", Name: "Doors open", AllottedSeconds: 600, Status: StatusCompleted, SpentSeconds: intPtr(540), ExtraSeconds: intPtr(0), GainedSeconds: intPtr(60), Position: 0},
		{ID: "b", Name: "Welcome", AllottedSeconds: 300, Status: StatusRunning, Position: 1},
		{ID: "c", Name: "Keynote", AllottedSeconds: 1800, Status: StatusPending, Position: 2},
		{ID: "d", Name: "Q&A", AllottedSeconds: 900, Status: StatusPending, Position: 3},
	}
}

func TestCompleteActivityOverrun(t *testing.T) {
	act := Activity{ID: "b", AllottedSeconds: 300, Status: StatusRunning}
	completeActivity(&act, 420)

	if act.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", act.Status)
	}
	if *act.SpentSeconds != 420 || *act.ExtraSeconds != 120 || *act.GainedSeconds != 0 {
		t.Fatalf("spent/extra/gained = %d/%d/%d, want 420/120/0",
			*act.SpentSeconds, *act.ExtraSeconds, *act.GainedSeconds)
	}
}

func TestCompleteActivityUnderrun(t *testing.T) {
	act := Activity{ID: "b", AllottedSeconds: 300, Status: StatusRunning}
	completeActivity(&act, 180)

	if *act.ExtraSeconds != 0 || *act.GainedSeconds != 120 {
		t.Fatalf("extra/gained = %d/%d, want 0/120", *act.ExtraSeconds, *act.GainedSeconds)
	}
}

func TestApplyPatchSkipZeroesSpent(t *testing.T) {
	act := Activity{ID: "c", AllottedSeconds: 1800, Status: StatusPending}
	changed := applyPatch(&act, ActivityPatch{IsCompleted: boolPtr(true)})

	if !changed {
		t.Fatal("expected change")
	}
	if act.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", act.Status)
	}
	if *act.SpentSeconds != 0 || *act.ExtraSeconds != 0 || *act.GainedSeconds != 1800 {
		t.Fatalf("spent/extra/gained = %d/%d/%d, want 0/0/1800",
			*act.SpentSeconds, *act.ExtraSeconds, *act.GainedSeconds)
	}
}

func TestApplyPatchAllottedChangeRecomputesDerived(t *testing.T) {
	act := Activity{ID: "a", AllottedSeconds: 180, Status: StatusCompleted,
		SpentSeconds: intPtr(150), ExtraSeconds: intPtr(0), GainedSeconds: intPtr(30)}
	changed := applyPatch(&act, ActivityPatch{AllottedSeconds: intPtr(100)})

	if !changed {
		t.Fatal("expected change")
	}
	if *act.SpentSeconds != 150 || *act.ExtraSeconds != 50 || *act.GainedSeconds != 0 {
		t.Fatalf("spent/extra/gained = %d/%d/%d, want 150/50/0",
			*act.SpentSeconds, *act.ExtraSeconds, *act.GainedSeconds)
	}
	if got := act.AllottedSeconds + *act.ExtraSeconds - *act.GainedSeconds; got != *act.SpentSeconds {
		t.Fatalf("timing identity broken: allotted+extra-gained = %d, want %d", got, *act.SpentSeconds)
	}
}

func TestApplyPatchAllottedChangeLeavesPendingUntimed(t *testing.T) {
	act := Activity{ID: "c", AllottedSeconds: 1800, Status: StatusPending}
	if !applyPatch(&act, ActivityPatch{AllottedSeconds: intPtr(1200)}) {
		t.Fatal("expected change")
	}
	if act.SpentSeconds != nil || act.ExtraSeconds != nil || act.GainedSeconds != nil {
		t.Fatal("timing fields must stay unset before completion")
	}
}

func TestApplyPatchActivateClearsTiming(t *testing.T) {
	act := Activity{ID: "a", AllottedSeconds: 600, Status: StatusCompleted,
		SpentSeconds: intPtr(540), ExtraSeconds: intPtr(0), GainedSeconds: intPtr(60)}
	changed := applyPatch(&act, ActivityPatch{IsActive: boolPtr(true)})

	if !changed {
		t.Fatal("expected change")
	}
	if act.Status != StatusRunning {
		t.Fatalf("status = %s, want running", act.Status)
	}
	if act.SpentSeconds != nil || act.ExtraSeconds != nil || act.GainedSeconds != nil {
		t.Fatal("timing fields should be cleared on activation")
	}
}

func TestApplyPatchNoChange(t *testing.T) {
	act := Activity{ID: "c", Name: "Keynote", AllottedSeconds: 1800, Status: StatusPending}
	if applyPatch(&act, ActivityPatch{Name: strPtr("Keynote")}) {
		t.Fatal("identical name should not register as a change")
	}
}

func TestDemoteOtherRunning(t *testing.T) {
	acts := sampleActivities()
	demoted := demoteOtherRunning(acts, "c")

	if len(demoted) != 1 || demoted[0] != "b" {
		t.Fatalf("demoted = %v, want [b]", demoted)
	}
	if acts[1].Status != StatusPending {
		t.Fatalf("b status = %s, want pending", acts[1].Status)
	}
	if acts[0].Status != StatusCompleted {
		t.Fatal("completed activity must not be demoted")
	}
}

func TestDemoteOtherRunningLeavesTarget(t *testing.T) {
	acts := sampleActivities()
	demoted := demoteOtherRunning(acts, "b")

	if len(demoted) != 0 {
		t.Fatalf("demoted = %v, want none", demoted)
	}
	if acts[1].Status != StatusRunning {
		t.Fatal("target activity must keep running")
	}
}

func TestMoveActivity(t *testing.T) {
	cases := []struct {
		name   string
		target string
		newPos int
		want   []string
	}{
		{"forward", "b", 3, []string{"a", "c", "d", "b"}},
		{"backward", "d", 0, []string{"d", "a", "b", "c"}},
		{"same position", "c", 2, []string{"a", "b", "c", "d"}},
		{"clamp high", "a", 99, []string{"b", "c", "d", "a"}},
		{"clamp low", "c", -5, []string{"c", "a", "b", "d"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acts := sampleActivities()
			moveActivity(acts, tc.target, tc.newPos)

			for i, id := range tc.want {
				if acts[i].ID != id {
					t.Fatalf("position %d: got %s, want %s (order %v)", i, acts[i].ID, id, ids(acts))
				}
				if acts[i].Position != i {
					t.Fatalf("position %d not renumbered: got %d", i, acts[i].Position)
				}
			}
		})
	}
}

func strPtr(s string) *string { return &s }

func ids(acts []Activity) []string {
	out := make([]string, len(acts))
	for i := range acts {
		out[i] = acts[i].ID
	}
	return out
}
