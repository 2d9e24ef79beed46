package server

import (
	"net/http"
	"strings"

	"github.com/jonathan/speaking-coach/internal/evaluation"
	"github.com/jonathan/speaking-coach/internal/types"
)

// EvaluateResponse is the judgment for one practice and the profile it was folded into.
type EvaluateResponse struct {
	RecordID   string                 `json:"record_id"`
	Evaluation types.EvaluationResult `json:"evaluation"`
	Signals    evaluation.Signals     `json:"signals"`
	Profile    types.ProfileSummary   `json:"profile"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	practiceType, err := types.ParsePracticeType(req.PracticeType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	userID := strings.TrimSpace(req.UserID)

	assessment, err := s.analyzer.Analyze(r.Context(), evaluation.Request{
		PracticeType: practiceType,
		Transcript:   req.Transcript,
		SourceText:   req.SourceText,
		Units:        req.Units,
		UserID:       userID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	record := types.NewPracticeRecord(types.RecordInput{
		UserID:       userID,
		PracticeType: practiceType,
		Transcript:   req.Transcript,
		Duration:     req.Duration,
		WordCount:    assessment.Signals.WordCount,
		Metadata:     req.Metadata,
	}, assessment.Result)

	p, err := s.profiles.Fold(r.Context(), userID, record)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, EvaluateResponse{
		RecordID:   record.ID,
		Evaluation: assessment.Result,
		Signals:    assessment.Signals,
		Profile:    p.Summary(),
	})
}

func (s *Server) handleSlides(w http.ResponseWriter, r *http.Request) {
	var req SlidesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	results, err := s.analyzer.AnalyzeSlides(r.Context(), req.Slides)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"slides": results})
}
