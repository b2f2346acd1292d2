package domain

import (
	"math"
	"time"
)

// Complexity labels how demanding a goal is. Free-form, kept for display.
type Complexity string

const (
	ComplexityBeginner     Complexity = "beginner"
	ComplexityIntermediate Complexity = "intermediate"
	ComplexityAdvanced     Complexity = "advanced"
)

// Week is one step of a roadmap.
type Week struct {
	ID          string `json:"_id"`
	Week        int    `json:"week"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// Goal is a learning goal with its generated weekly roadmap.
type Goal struct {
	ID         string     `json:"_id"`
	UserID     string     `json:"userId"`
	Title      string     `json:"title"`
	Duration   string     `json:"duration,omitempty"`
	Complexity Complexity `json:"complexity,omitempty"`
	Progress   int        `json:"progress"`
	Roadmap    []Week     `json:"roadmap"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// CompletionPercent returns round(100 * completed / total), or 0 for an
// empty roadmap.
func CompletionPercent(weeks []Week) int {
	if len(weeks) == 0 {
		return 0
	}
	done := 0
	for _, w := range weeks {
		if w.Completed {
			done++
		}
	}
	return int(math.Round(float64(done) * 100 / float64(len(weeks))))
}

// RecomputeProgress sets Progress from the roadmap.
func (g *Goal) RecomputeProgress() {
	g.Progress = CompletionPercent(g.Roadmap)
}

// FindWeek returns the index of the week with the given id, or -1.
func (g *Goal) FindWeek(weekID string) int {
	for i := range g.Roadmap {
		if g.Roadmap[i].ID == weekID {
			return i
		}
	}
	return -1
}

// CurrentWeek returns the first incomplete week, or nil when all are done.
func (g *Goal) CurrentWeek() *Week {
	for i := range g.Roadmap {
		if !g.Roadmap[i].Completed {
			return &g.Roadmap[i]
		}
	}
	return nil
}
