package server

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/speaking-coach/internal/evaluation"
	"github.com/jonathan/speaking-coach/internal/interview"
	"github.com/jonathan/speaking-coach/internal/types"
)

// recordTimeout bounds the post-interview evaluation and profile fold.
const recordTimeout = 3 * time.Minute

// ---------------------------------------------------------------------
// Interview Handlers
// ---------------------------------------------------------------------

func (s *Server) handleStartInterview(w http.ResponseWriter, r *http.Request) {
	var req StartInterviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.interviews.Start(r.Context(), req.Position, strings.TrimSpace(req.UserID))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	answer := interview.Answer{Text: req.TextAnswer, AudioName: req.AudioName}
	if req.AudioData != "" {
		audio, err := base64.StdEncoding.DecodeString(req.AudioData)
		if err != nil {
			s.writeError(w, &types.InvalidInputError{Field: "audio_data", Message: "must be base64 encoded"})
			return
		}
		answer.Audio = audio
	}

	reply, err := s.interviews.SubmitAnswer(r.Context(), req.SessionID, answer)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.recordFinished(r.Context(), reply)
	s.jsonResponse(w, http.StatusOK, reply)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	reply, err := s.interviews.Advance(r.Context(), r.PathValue("session_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.recordFinished(r.Context(), reply)
	s.jsonResponse(w, http.StatusOK, reply)
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.interviews.Info(r.PathValue("session_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, info)
}

// recordFinished evaluates a finished interview and folds it into the
// user's profile in the background. The reply is sent without waiting;
// shutdown drains pending recordings.
func (s *Server) recordFinished(ctx context.Context, reply *interview.Reply) {
	if !reply.IsFinished || reply.UserID == "" {
		return
	}

	ctx = context.WithoutCancel(ctx)
	s.recordings.Add(1)
	go func() {
		defer s.recordings.Done()
		ctx, cancel := context.WithTimeout(ctx, recordTimeout)
		defer cancel()
		s.recordInterview(ctx, reply)
	}()
}

// recordInterview runs the closing evaluation and profile fold. Failures are
// logged only.
func (s *Server) recordInterview(ctx context.Context, reply *interview.Reply) {
	transcript := strings.Join(reply.Answers, "\n\n")
	assessment, err := s.analyzer.Analyze(ctx, evaluation.Request{
		PracticeType:    types.PracticeInterview,
		Transcript:      transcript,
		UserID:          reply.UserID,
		Position:        reply.Position,
		ClosingFeedback: reply.FinalFeedback,
	})
	if err != nil {
		s.logger.Warn("failed to evaluate finished interview",
			"session_id", reply.SessionID, "user_id", reply.UserID, "error", err)
		return
	}

	record := types.NewPracticeRecord(types.RecordInput{
		UserID:       reply.UserID,
		PracticeType: types.PracticeInterview,
		Transcript:   transcript,
		WordCount:    assessment.Signals.WordCount,
		Metadata: map[string]any{
			"position":   reply.Position,
			"session_id": reply.SessionID,
			"questions":  reply.QuestionNumber,
		},
	}, assessment.Result)

	if _, err := s.profiles.Fold(ctx, reply.UserID, record); err != nil {
		s.logger.Warn("failed to record finished interview",
			"session_id", reply.SessionID, "user_id", reply.UserID, "error", err)
	}
}
