package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ashureev/goalpath/internal/client"
	"github.com/ashureev/goalpath/internal/tutor"
)

var (
	colorPrimary  = lipgloss.Color("#7C3AED") // Violet
	colorTheory   = lipgloss.Color("#3B82F6") // Blue
	colorPractice = lipgloss.Color("#10B981") // Emerald
	colorExample  = lipgloss.Color("#F59E0B") // Amber
	colorError    = lipgloss.Color("#EF4444") // Red
	colorMuted    = lipgloss.Color("#6B7280") // Gray
	colorNeon     = lipgloss.Color("#22D3EE") // Bright Cyan
)

var (
	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	styleLabel  = lipgloss.NewStyle().Bold(true).Foreground(colorNeon)
	styleMuted  = lipgloss.NewStyle().Foreground(colorMuted)
	styleError  = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	stylePrompt = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	styleCode   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorMuted).Padding(0, 1)

	badgeBase = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFF")).Padding(0, 1)
)

func kindBadge(k tutor.Kind) string {
	switch k {
	case tutor.KindTheory:
		return badgeBase.Background(colorTheory).Render("THEORY")
	case tutor.KindPractice:
		return badgeBase.Background(colorPractice).Render("PRACTICE")
	case tutor.KindExample:
		return badgeBase.Background(colorExample).Render("EXAMPLE")
	default:
		return badgeBase.Background(colorPrimary).Render("TUTOR")
	}
}

func statusLine(s client.Status) string {
	switch s {
	case client.StatusConnected:
		return styleLabel.Render("● connected")
	case client.StatusConnecting:
		return styleMuted.Render("○ connecting...")
	default:
		return styleError.Render("○ disconnected")
	}
}

// renderResponse formats a tutor response for the terminal.
func renderResponse(r tutor.Response) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", kindBadge(r.Kind), r.Text)

	switch d := r.Data.(type) {
	case *tutor.TheoryData:
		b.WriteString(d.Explanation + "\n")
		section(&b, "Key points", d.KeyPoints)
		section(&b, "Examples", d.Examples)
	case *tutor.PracticeData:
		fmt.Fprintf(&b, "%s %s\n", styleLabel.Render("Difficulty:"), d.Difficulty)
		b.WriteString(d.Problem + "\n")
		section(&b, "Hints", d.Hints)
		fmt.Fprintf(&b, "%s %s\n", styleLabel.Render("Solution:"), styleMuted.Render(d.Solution))
	case *tutor.ExampleData:
		b.WriteString(d.Example + "\n")
		if d.Code != "" {
			b.WriteString(styleCode.Render(d.Code) + "\n")
		}
		b.WriteString(d.Explanation + "\n")
	}
	return b.String()
}

func section(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(styleLabel.Render(title) + "\n")
	for _, it := range items {
		fmt.Fprintf(b, "  • %s\n", it)
	}
}
