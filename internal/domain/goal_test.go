package domain

import "testing"

func weeks(total, done int) []Week {
	out := make([]Week, total)
	for i := range out {
		out[i] = Week{ID: string(rune('a' + i)), Week: i + 1, Completed: i < done}
	}
	return out
}

func TestCompletionPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		total, done int
		want        int
	}{
		{"empty roadmap", 0, 0, 0},
		{"two of five", 5, 2, 40},
		{"all done", 4, 4, 100},
		{"one of three rounds down", 3, 1, 33},
		{"two of three rounds up", 3, 2, 67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CompletionPercent(weeks(tt.total, tt.done)); got != tt.want {
				t.Errorf("CompletionPercent(%d/%d) = %d, want %d", tt.done, tt.total, got, tt.want)
			}
		})
	}
}

func TestGoal_RecomputeProgress(t *testing.T) {
	g := &Goal{Progress: 99, Roadmap: weeks(5, 2)}
	g.RecomputeProgress()
	if g.Progress != 40 {
		t.Errorf("Expected progress 40, got %d", g.Progress)
	}
}

func TestGoal_CurrentWeek(t *testing.T) {
	g := &Goal{Roadmap: weeks(3, 1)}
	w := g.CurrentWeek()
	if w == nil || w.Week != 2 {
		t.Fatalf("Expected week 2 to be current, got %+v", w)
	}

	g.Roadmap = weeks(2, 2)
	if g.CurrentWeek() != nil {
		t.Error("Expected no current week once every week is completed")
	}
}

func TestGoal_FindWeek(t *testing.T) {
	g := &Goal{Roadmap: weeks(3, 0)}
	if idx := g.FindWeek("b"); idx != 1 {
		t.Errorf("Expected index 1, got %d", idx)
	}
	if idx := g.FindWeek("missing"); idx != -1 {
		t.Errorf("Expected -1 for missing week, got %d", idx)
	}
}
