package tutor

import (
	"fmt"
	"strings"
)

// DefaultTopic is used when the learner has not told us which week they are on.
const DefaultTopic = "current learning topic"

const persona = "You are an AI tutor guiding a student through a personal learning roadmap. " +
	"Keep answers accurate, encouraging and pitched at the student's level."

const jsonOnly = "Return ONLY the JSON object described above. " +
	"Do not add any prose before or after it and do not wrap it in markdown code fences."

// Shapes the adapter decodes. Keep in sync with TheoryData, PracticeData and ExampleData.
var shapes = map[Intent]string{
	IntentTheory: `{
  "text": "one or two sentence introduction",
  "type": "theory",
  "data": {
    "explanation": "detailed explanation",
    "keyPoints": ["key point", "key point"],
    "examples": ["short example", "short example"]
  }
}`,
	IntentPractice: `{
  "text": "one sentence introducing the problem",
  "type": "practice",
  "data": {
    "problem": "problem statement",
    "difficulty": "beginner | intermediate | advanced",
    "hints": ["hint", "hint"],
    "solution": "worked solution"
  }
}`,
	IntentExample: `{
  "text": "one sentence introducing the example",
  "type": "example",
  "data": {
    "example": "real-world scenario",
    "code": "code sample, or a one-line note when no code applies",
    "explanation": "step-by-step walkthrough"
  }
}`,
	IntentQuestion: `{
  "text": "your answer",
  "type": "text",
  "data": null
}`,
}

func chatInstructions(intent Intent, topic string) string {
	switch intent {
	case IntentTheory:
		return fmt.Sprintf("Explain the theory behind %q: the key concepts and definitions, "+
			"the principles that matter, and where they are applied in practice.", topic)
	case IntentPractice:
		return fmt.Sprintf("Write one practice problem about %q with a clear statement, "+
			"a difficulty level, hints that do not give the answer away, and a solution.", topic)
	case IntentExample:
		return fmt.Sprintf("Give a practical example for %q: a realistic scenario, "+
			"code where it helps, and a step-by-step explanation.", topic)
	default:
		return "Answer the question helpfully and point the student at what to study next."
	}
}

// BuildPrompt builds the provider prompt for a chat message.
func BuildPrompt(intent Intent, topic, userText string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}

	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "The student is currently working on: %q\n", topic)
	if text := strings.TrimSpace(userText); text != "" {
		fmt.Fprintf(&b, "Student's message: %q\n", text)
	}
	b.WriteString("\n")
	b.WriteString(chatInstructions(intent, topic))
	b.WriteString("\n\nRespond with a JSON object of exactly this shape:\n")
	b.WriteString(shapes[intentOrQuestion(intent)])
	b.WriteString("\n\n")
	b.WriteString(jsonOnly)
	return b.String()
}

// BuildHelpPrompt builds the provider prompt for an explicit help request.
// The intent comes from the request, not from classification.
func BuildHelpPrompt(intent Intent, topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}

	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "The student asked for %s help on the topic %q.\n\n", intentOrQuestion(intent), topic)
	b.WriteString(chatInstructions(intent, topic))
	b.WriteString("\n\nRespond with a JSON object of exactly this shape:\n")
	b.WriteString(shapes[intentOrQuestion(intent)])
	b.WriteString("\n\n")
	b.WriteString(jsonOnly)
	return b.String()
}

func intentOrQuestion(i Intent) Intent {
	if _, ok := shapes[i]; ok {
		return i
	}
	return IntentQuestion
}
