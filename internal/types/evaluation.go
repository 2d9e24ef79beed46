package types

// Judgment sources, in extraction precedence order.
const (
	SourceFencedLabeled   = "fenced_labeled"
	SourceFencedUnlabeled = "fenced_unlabeled"
	SourceBareObject      = "bare_object"
	SourceWholeText       = "whole_text"
	SourceFallback        = "fallback"
	SourceNoSpeech        = "no_speech"
)

// Score bounds for every judgment.
const (
	MinScore     = 0
	MaxScore     = 100
	NeutralScore = 70
)

// EvaluationResult is the structured judgment extracted from model output.
// Lists are never nil once the result has passed through Normalize.
type EvaluationResult struct {
	Score           int      `json:"score"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	OverallFeedback string   `json:"overall_feedback"`
	Suggestions     []string `json:"suggestions"`
	Source          string   `json:"source,omitempty"`
}

// Normalize clamps the score and replaces nil lists with empty slices.
func (r *EvaluationResult) Normalize() {
	r.Score = ClampScore(r.Score)
	if r.Strengths == nil {
		r.Strengths = []string{}
	}
	if r.Improvements == nil {
		r.Improvements = []string{}
	}
	if r.Suggestions == nil {
		r.Suggestions = []string{}
	}
}

// ClampScore bounds a score to [MinScore, MaxScore].
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
