package evaluation

import (
	"fmt"
	"strings"

	"github.com/jonathan/speaking-coach/internal/types"
)

const (
	fallbackBase     = 50
	fallbackCeiling  = 95
	feedbackRawLimit = 500
)

// Fallback builds a judgment from signals alone. It is used when no
// strategy can read the model output.
func Fallback(raw string, sig Signals) types.EvaluationResult {
	score := fallbackBase + wordBonus(sig.WordsPerUnit) + coverageBonus(sig.CoverageRatio)
	if score > fallbackCeiling {
		score = fallbackCeiling
	}

	var feedback strings.Builder
	if excerpt := truncateRunes(strings.TrimSpace(raw), feedbackRawLimit); excerpt != "" {
		feedback.WriteString(excerpt)
		feedback.WriteString("\n\n")
	}
	fmt.Fprintf(&feedback, "Measured: %d words, %.0f words per unit, %.0f%% of key points covered.",
		sig.WordCount, sig.WordsPerUnit, sig.CoverageRatio*100)

	result := types.EvaluationResult{
		Score: score,
		Strengths: []string{
			"Completed the practice from start to finish",
			"Spoke about the intended topic",
		},
		Improvements: []string{
			"Organize the answer around a clear opening, body and close",
			"Cover the key points of the material more completely",
		},
		OverallFeedback: feedback.String(),
		Suggestions:     ExtractSuggestions(raw),
		Source:          types.SourceFallback,
	}
	result.Normalize()
	return result
}

func wordBonus(wordsPerUnit float64) int {
	switch {
	case wordsPerUnit >= 150:
		return 25
	case wordsPerUnit >= 80:
		return 15
	case wordsPerUnit >= 50:
		return 5
	default:
		return 0
	}
}

func coverageBonus(ratio float64) int {
	switch {
	case ratio >= 0.80:
		return 15
	case ratio >= 0.60:
		return 10
	case ratio >= 0.40:
		return 5
	default:
		return 0
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
