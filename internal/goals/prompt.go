// Package goals generates weekly learning roadmaps for user goals.
package goals

import (
	"fmt"
	"strings"
)

// RoadmapPrompt asks the model for a roadmap JSON document for goal.
// An empty duration lets the model pick one.
func RoadmapPrompt(goal, duration string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a comprehensive learning roadmap for the goal: %q.\n\n", goal)
	if duration != "" {
		fmt.Fprintf(&b, "The duration should be approximately %s.\n\n", duration)
	} else {
		b.WriteString("Determine an appropriate duration based on the complexity of the goal.\n\n")
	}
	b.WriteString(`Respond ONLY with valid JSON in this exact structure:
{
  "title": "Learning Roadmap for [suitable goal title]",
  "duration": "` + duration + `",
  "roadmap": [
    {"week": 1, "title": "Week 1: [Topic Name]", "description": "What will be covered this week", "completed": false}
  ]
}

Make sure to:
- Create a realistic timeline for the duration
- Break the goal into weekly milestones
- Give clear, actionable descriptions for each week
- Progress logically from basics to advanced topics
- Return ONLY the JSON, no additional text or markdown formatting`)
	return b.String()
}
