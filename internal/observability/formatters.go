// Package observability provides Prometheus metrics for the engine and
// formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/speaking-coach/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		// Truncate long lines
		if r := []rune(line); len(r) > boxWidth-4 {
			line = string(r[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// writeList appends a titled bullet list, showing at most maxItemsToShow items.
func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(title + ":\n")
	count := min(len(items), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", items[i]))
	}
	if len(items) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-maxItemsToShow))
	}
	sb.WriteString("\n")
}

// PrintJudgment outputs a human-readable summary of an evaluation result.
func (p *Printer) PrintJudgment(result *types.EvaluationResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Score:   %d/100\n", result.Score))
	if result.Source != "" {
		sb.WriteString(fmt.Sprintf("Source:  %s\n", result.Source))
	}
	sb.WriteString("\n")

	writeList(&sb, "Strengths", result.Strengths)
	writeList(&sb, "Improvements", result.Improvements)
	writeList(&sb, "Suggestions", result.Suggestions)

	if result.OverallFeedback != "" {
		sb.WriteString("Feedback:\n")
		sb.WriteString(strings.TrimSpace(result.OverallFeedback))
	}

	p.printBox("EVALUATION", strings.TrimRight(sb.String(), "\n"))
}

// PrintProfile outputs a human-readable summary of a speaking profile.
func (p *Printer) PrintProfile(profile *types.SpeakingProfile) {
	if profile == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("User:       %s\n", profile.UserID))
	sb.WriteString(fmt.Sprintf("Practices:  %d (interview %d, slideshow %d, self-intro %d)\n",
		profile.TotalPractices, profile.InterviewCount, profile.SlideshowCount, profile.SelfIntroCount))
	sb.WriteString(fmt.Sprintf("Average:    %.1f\n", profile.AverageScore))
	pace := profile.SpeakingPace
	if pace == "" {
		pace = "unknown"
	}
	sb.WriteString(fmt.Sprintf("Pace:       %s\n\n", pace))

	writeList(&sb, "Common strengths", profile.CommonStrengths)
	writeList(&sb, "Common weaknesses", profile.CommonWeaknesses)
	writeList(&sb, "Improvement areas", profile.ImprovementAreas)

	if len(profile.ScoreTrend) > 0 {
		scores := make([]string, len(profile.ScoreTrend))
		for i, s := range profile.ScoreTrend {
			scores[i] = fmt.Sprintf("%d", s)
		}
		sb.WriteString("Trend: " + strings.Join(scores, " → "))
	}

	p.printBox("SPEAKING PROFILE", strings.TrimRight(sb.String(), "\n"))
}
