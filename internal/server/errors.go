package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/speaking-coach/internal/types"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrGenerationFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto a status and writes it. Internal errors are
// logged and answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	body := ErrorBody{Error: err.Error(), Retryable: types.IsRetryable(err)}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		body.Error = "internal server error"
	}
	s.jsonResponse(w, status, body)
}
