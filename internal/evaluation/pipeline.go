package evaluation

import (
	"strings"
	"unicode"

	"github.com/jonathan/speaking-coach/internal/types"
)

const maxSuggestions = 5

// minSpeechRunes is the shortest transcript treated as actual speech.
const minSpeechRunes = 10

var defaultSuggestions = []string{
	"Slow down slightly so listeners can follow each point",
	"Support your claims with a concrete example or number",
	"Use short transitions so each part connects to the next",
}

// Evaluate converts raw model text into a judgment. It never fails: when
// every strategy misses, the judgment is derived from sig.
func Evaluate(raw string, sig Signals) types.EvaluationResult {
	for _, strategy := range Strategies {
		result, ok := strategy(raw)
		if !ok {
			continue
		}
		if len(result.Suggestions) == 0 {
			result.Suggestions = ExtractSuggestions(result.OverallFeedback)
		}
		result.Normalize()
		return *result
	}
	return Fallback(raw, sig)
}

// NoSpeech is the judgment for a transcript with nothing to assess.
func NoSpeech() types.EvaluationResult {
	return types.EvaluationResult{
		Score:           0,
		Strengths:       []string{},
		Improvements:    []string{"No speech was detected in the recording"},
		OverallFeedback: "No speech was detected. Check the microphone and try again.",
		Suggestions:     []string{"Make sure the microphone is on and speak clearly"},
		Source:          types.SourceNoSpeech,
	}
}

// IsSpeech reports whether a transcript is long enough to assess.
func IsSpeech(transcript string) bool {
	return len([]rune(strings.TrimSpace(transcript))) >= minSpeechRunes
}

// ExtractSuggestions collects numbered or bulleted lines from feedback,
// at most five. Lines of ten runes or fewer are ignored. When nothing
// qualifies a fixed set of general suggestions is returned.
func ExtractSuggestions(feedback string) []string {
	var out []string
	for _, line := range strings.Split(feedback, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		first := []rune(line)[0]
		if !unicode.IsDigit(first) && !strings.ContainsRune("•-*", first) {
			continue
		}
		clean := strings.TrimSpace(strings.TrimLeft(line, "0123456789.)•-* "))
		if len([]rune(clean)) > 10 {
			out = append(out, clean)
		}
		if len(out) == maxSuggestions {
			break
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultSuggestions...)
	}
	return out
}
