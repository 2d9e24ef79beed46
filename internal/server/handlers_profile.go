package server

import (
	"net/http"
	"strconv"

	"github.com/jonathan/speaking-coach/internal/profile"
	"github.com/jonathan/speaking-coach/internal/types"
)

// ---------------------------------------------------------------------
// Profile Handlers
// ---------------------------------------------------------------------

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Profile(r.Context(), r.PathValue("user_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

func (s *Server) handleProfileHistory(w http.ResponseWriter, r *http.Request) {
	limit := profile.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, &types.InvalidInputError{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := s.profiles.History(r.Context(), r.PathValue("user_id"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, records)
}

func (s *Server) handleProfileSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.profiles.Summary(r.Context(), r.PathValue("user_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, summary)
}

func (s *Server) handleProfileContext(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	text, err := s.profiles.PersonalizedContext(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"user_id":    userID,
		"context":    text,
		"first_time": profile.IsFirstTime(text),
	})
}
