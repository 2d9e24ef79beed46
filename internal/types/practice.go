package types

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PracticeType is the kind of practice a record came from.
type PracticeType string

// PracticeType constants
const (
	PracticeInterview PracticeType = "interview"
	PracticeSlideshow PracticeType = "slideshow"
	PracticeSelfIntro PracticeType = "self_intro"
)

// ParsePracticeType accepts the canonical names plus the legacy "ppt" and "self-intro" spellings.
func ParsePracticeType(s string) (PracticeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "interview":
		return PracticeInterview, nil
	case "slideshow", "ppt", "slides", "presentation":
		return PracticeSlideshow, nil
	case "self_intro", "self-intro", "selfintro":
		return PracticeSelfIntro, nil
	default:
		return "", &InvalidInputError{Field: "practice_type", Message: fmt.Sprintf("unknown practice type %q", s)}
	}
}

// PracticeRecord is the durable outcome of one completed practice attempt.
// Records are never mutated after NewPracticeRecord returns.
type PracticeRecord struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	PracticeType PracticeType `json:"practice_type"`
	Timestamp    time.Time    `json:"timestamp"`
	Transcript   string       `json:"transcript"`
	Duration     *float64     `json:"duration,omitempty"` // seconds
	WordCount    int          `json:"word_count"`
	OverallScore int          `json:"overall_score"`

	ContentScore *int `json:"content_score,omitempty"`
	FluencyScore *int `json:"fluency_score,omitempty"`
	ClarityScore *int `json:"clarity_score,omitempty"`

	Strengths       []string       `json:"strengths"`
	Improvements    []string       `json:"improvements"`
	OverallFeedback string         `json:"overall_feedback"`
	Suggestions     []string       `json:"suggestions"`
	Metadata        map[string]any `json:"metadata"`
}

// RecordInput carries what a caller knows about a finished attempt.
type RecordInput struct {
	UserID       string
	PracticeType PracticeType
	Transcript   string
	Duration     *float64
	WordCount    int
	Metadata     map[string]any
	Timestamp    time.Time
}

// NewPracticeRecord flattens a judgment into a new record. Slices and the
// metadata map are copied so later changes by the caller cannot leak in.
func NewPracticeRecord(in RecordInput, result EvaluationResult) PracticeRecord {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	result.Normalize()

	var duration *float64
	if in.Duration != nil {
		d := *in.Duration
		duration = &d
	}

	metadata := make(map[string]any, len(in.Metadata))
	maps.Copy(metadata, in.Metadata)

	return PracticeRecord{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		PracticeType:    in.PracticeType,
		Timestamp:       ts,
		Transcript:      in.Transcript,
		Duration:        duration,
		WordCount:       in.WordCount,
		OverallScore:    result.Score,
		Strengths:       slices.Clone(result.Strengths),
		Improvements:    slices.Clone(result.Improvements),
		OverallFeedback: result.OverallFeedback,
		Suggestions:     slices.Clone(result.Suggestions),
		Metadata:        metadata,
	}
}

// WordsPerMinute returns the speaking rate, or false when the duration is unknown.
func (r PracticeRecord) WordsPerMinute() (float64, bool) {
	if r.Duration == nil || *r.Duration <= 0 {
		return 0, false
	}
	return float64(r.WordCount) / *r.Duration * 60, true
}
