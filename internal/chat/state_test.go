package chat

import "testing"

func TestCoverage_MonotonicMerge(t *testing.T) {
	c := NewCoverage()

	updates := []Coverage{
		{InformationInput: LevelLow},
		{InformationInput: LevelHigh, WorkOutput: LevelMedium},
		{InformationInput: LevelLow, WorkOutput: LevelLow},
		{MentalProcesses: LevelMedium},
	}

	prev := c
	for _, u := range updates {
		c.Merge(u)
		for i, lvl := range c.levels() {
			if lvl.Rank() < prev.levels()[i].Rank() {
				t.Fatalf("category %s decreased: %s -> %s", CategoryNames[i], prev.levels()[i], lvl)
			}
		}
		prev = c
	}

	if c.InformationInput != LevelHigh {
		t.Errorf("informationInput = %s, want high", c.InformationInput)
	}
	if c.WorkOutput != LevelMedium {
		t.Errorf("workOutput = %s, want medium", c.WorkOutput)
	}
	if c.InteractingWithOthers != LevelNone {
		t.Errorf("interactingWithOthers = %s, want none", c.InteractingWithOthers)
	}
}

func TestCoverage_RaiseNeverLowers(t *testing.T) {
	c := NewCoverage()
	c.Raise("work-output", LevelHigh)
	c.Raise("work-output", LevelLow)
	if c.WorkOutput != LevelHigh {
		t.Fatalf("workOutput = %s, want high", c.WorkOutput)
	}
	c.Raise("not-a-category", LevelHigh)
}

func TestCoverage_Lowest(t *testing.T) {
	c := Coverage{
		InformationInput:      LevelHigh,
		MentalProcesses:       LevelMedium,
		WorkOutput:            LevelLow,
		InteractingWithOthers: LevelMedium,
	}
	name, lvl := c.Lowest()
	if name != "work-output" || lvl != LevelLow {
		t.Fatalf("Lowest = %s/%s, want work-output/low", name, lvl)
	}
}

func TestCoverage_CountAtLeast(t *testing.T) {
	c := Coverage{
		InformationInput:      LevelHigh,
		MentalProcesses:       LevelMedium,
		WorkOutput:            LevelLow,
		InteractingWithOthers: LevelMedium,
	}
	if got := c.CountAtLeast(LevelMedium); got != 3 {
		t.Errorf("CountAtLeast(medium) = %d, want 3", got)
	}
	if got := c.CountAtLeast(LevelHigh); got != 1 {
		t.Errorf("CountAtLeast(high) = %d, want 1", got)
	}
}

func TestState_TaskCountNonDecreasing(t *testing.T) {
	st := NewState("Chef")
	deltas := []int{3, 0, -5, 2, -1}
	prev := 0
	for _, d := range deltas {
		st.RaiseTaskCount(d)
		if st.EstimatedTaskCount < prev {
			t.Fatalf("task count decreased: %d -> %d", prev, st.EstimatedTaskCount)
		}
		prev = st.EstimatedTaskCount
	}
	if st.EstimatedTaskCount != 5 {
		t.Errorf("task count = %d, want 5", st.EstimatedTaskCount)
	}
}

func TestState_CloneIsIndependent(t *testing.T) {
	st := NewState("Chef")
	st.MentionedActivities = append(st.MentionedActivities, "cook meals")
	st.Transcript = append(st.Transcript, Turn{Role: "user", Text: "hi"})

	next := st.Clone()
	next.MentionedActivities = append(next.MentionedActivities, "order supplies")
	next.Transcript[0].Text = "changed"
	next.EstimatedTaskCount = 9

	if len(st.MentionedActivities) != 1 {
		t.Error("clone mutation leaked into original activities")
	}
	if st.Transcript[0].Text != "hi" {
		t.Error("clone mutation leaked into original transcript")
	}
	if st.EstimatedTaskCount != 0 {
		t.Error("clone mutation leaked into original count")
	}
}

func TestState_UnacknowledgedSelections(t *testing.T) {
	st := NewState("Chef")
	st.SelectedSuggestionIDs = []string{"a", "b", "c"}
	st.AcknowledgedSelections = 1
	if got := st.UnacknowledgedSelections(); got != 2 {
		t.Errorf("unacknowledged = %d, want 2", got)
	}
	st.AcknowledgedSelections = 5
	if got := st.UnacknowledgedSelections(); got != 0 {
		t.Errorf("unacknowledged = %d, want 0", got)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("high") != LevelHigh {
		t.Error("high should parse")
	}
	if ParseLevel("bogus") != LevelNone {
		t.Error("unknown level should map to none")
	}
}
