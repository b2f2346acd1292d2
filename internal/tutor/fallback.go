package tutor

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultFallbackTopic names the topic in fallback text when none is known.
const DefaultFallbackTopic = "current topic"

// Topics with hand-written fallback content.
const (
	TopicPythonFundamentals = "Python Fundamentals"
	TopicBackendBasics      = "Backend Basics"
)

const pendingSolution = "The solution will be provided after you attempt the problem."

var theoryBank = map[string]TheoryData{
	TopicPythonFundamentals: {
		Explanation: "Python is a high-level, interpreted programming language known for its simplicity and readability.",
		KeyPoints: []string{
			"Variables and data types (int, float, string, boolean)",
			"Control flow (if/else, loops)",
			"Functions and scope",
			"Object-oriented programming concepts",
			"Error handling with try/except",
		},
		Examples: []string{
			"Creating a simple calculator",
			"Building a to-do list application",
			"Implementing a basic game",
		},
	},
	TopicBackendBasics: {
		Explanation: "Backend development involves server-side programming that handles data processing and business logic.",
		KeyPoints: []string{
			"RESTful API design principles",
			"HTTP methods (GET, POST, PUT, DELETE)",
			"Database design and relationships",
			"Authentication and authorization",
		},
		Examples: []string{
			"Creating a user registration API",
			"Building a blog post system",
			"Implementing authentication middleware",
		},
	},
}

var genericTheory = TheoryData{
	Explanation: "This topic covers important concepts that will help you build a strong foundation.",
	KeyPoints:   []string{"Key concepts will be covered in this module"},
	Examples:    []string{"Practical examples will be provided"},
}

var practiceBank = map[string]PracticeData{
	TopicPythonFundamentals: {
		Problem:    "Create a Python function that takes a list of numbers and returns the sum of all even numbers. Include error handling for invalid inputs.",
		Difficulty: "beginner",
		Hints: []string{
			"Use list comprehension to filter even numbers",
			"Implement try-except for error handling",
			"Test with different input types",
		},
		Solution: pendingSolution,
	},
	TopicBackendBasics: {
		Problem:    "Design a REST API endpoint that allows users to create, read, update, and delete blog posts.",
		Difficulty: "intermediate",
		Hints: []string{
			"Use proper HTTP methods for each operation",
			"Implement data validation",
			"Include proper error responses",
		},
		Solution: pendingSolution,
	},
}

var genericPractice = PracticeData{
	Problem:    "Practice problems will be generated based on your current learning module.",
	Difficulty: "beginner",
	Hints:      []string{"Start by understanding the requirements", "Break down the problem into smaller steps"},
	Solution:   pendingSolution,
}

var exampleBank = map[string]ExampleData{
	TopicPythonFundamentals: {
		Example: "This example demonstrates Python fundamentals in a real-world scenario.",
		Code: `# Example: Simple function with error handling
def sum_even_numbers(numbers):
    try:
        return sum(num for num in numbers if num % 2 == 0)
    except TypeError:
        return "Invalid input: Please provide a list of numbers"`,
		Explanation: "This example shows how to handle errors gracefully in Python.",
	},
	TopicBackendBasics: {
		Example: "This example shows how to create a basic API endpoint.",
		Code: `# Example: Flask API endpoint
from flask import Flask, request, jsonify

app = Flask(__name__)

@app.route('/api/posts', methods=['POST'])
def create_post():
    data = request.get_json()
    # Validate and save post
    return jsonify({"message": "Post created successfully"})`,
		Explanation: "This example demonstrates basic API endpoint creation.",
	},
}

var genericExample = ExampleData{
	Example:     "This example is tailored to your specific learning goal.",
	Code:        "Code examples will be provided based on your current module.",
	Explanation: "This example demonstrates key concepts from your current topic.",
}

// FallbackData returns the canned payload for (topic, intent). Unknown topics
// get the generic entry; IntentQuestion yields nil. Every call returns a
// fresh value so callers may not alter the bank.
func FallbackData(topic string, intent Intent) any {
	switch intent {
	case IntentTheory:
		d, ok := theoryBank[topic]
		if !ok {
			d = genericTheory
		}
		d.KeyPoints = slices.Clone(d.KeyPoints)
		d.Examples = slices.Clone(d.Examples)
		return &d
	case IntentPractice:
		d, ok := practiceBank[topic]
		if !ok {
			d = genericPractice
		}
		d.Hints = slices.Clone(d.Hints)
		return &d
	case IntentExample:
		d, ok := exampleBank[topic]
		if !ok {
			d = genericExample
		}
		return &d
	default:
		return nil
	}
}

// Lookup returns the fallback content for a help request on topic.
func Lookup(topic string, intent Intent) Content {
	name := topicOrDefault(topic)
	var text string
	switch intent {
	case IntentTheory:
		text = fmt.Sprintf("Let me explain the theory behind %s:", name)
	case IntentPractice:
		text = fmt.Sprintf("Here's a practice problem for %s:", name)
	case IntentExample:
		text = fmt.Sprintf("Here's an example related to %s:", name)
	default:
		text = fmt.Sprintf("I can help you with %s through theory explanations, practice problems, or examples. What would you like to focus on?", name)
	}
	return Content{Text: text, Kind: intent.Kind(), Data: FallbackData(topic, intent)}
}

// ChatFallback returns the fallback content for a chat message that was
// classified as intent while the learner was on topic.
func ChatFallback(topic string, intent Intent, userText string) Content {
	name := topicOrDefault(topic)
	var text string
	switch intent {
	case IntentTheory:
		text = fmt.Sprintf("I understand you're asking about %q. Let me explain the theory behind %s.", userText, name)
	case IntentPractice:
		text = fmt.Sprintf("Great question! Here's a practice problem tailored to %s that will help you understand the concepts better.", name)
	case IntentExample:
		text = fmt.Sprintf("Perfect! Let me show you a practical example related to %s that demonstrates these concepts in action.", name)
	default:
		text = fmt.Sprintf("I understand you're asking about %q. Based on your current progress in %q, "+
			"I can help you with theory explanations, practice problems, or personalized examples. What would you like to focus on?", userText, name)
	}
	return Content{Text: text, Kind: intent.Kind(), Data: FallbackData(topicOrDefault(topic), intent)}
}

// Apology is sent when handling an event failed for a reason unrelated to the provider.
func Apology() Content {
	return Content{
		Text: "I'm sorry, I encountered an error processing your message. Please try again.",
		Kind: KindText,
	}
}

func topicOrDefault(topic string) string {
	if t := strings.TrimSpace(topic); t != "" {
		return t
	}
	return DefaultFallbackTopic
}
