package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/speaking-coach/internal/evaluation"
	"github.com/jonathan/speaking-coach/internal/types"
)

// maxBodyBytes bounds request bodies; base64 audio answers dominate.
const maxBodyBytes = 16 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type StartInterviewRequest struct {
	Position string `json:"position" validate:"required,max=200"`
	UserID   string `json:"user_id" validate:"omitempty,max=128"`
}

type AnswerRequest struct {
	SessionID  string `json:"session_id" validate:"required"`
	TextAnswer string `json:"text_answer" validate:"max=20000"`
	AudioData  string `json:"audio_data" validate:"omitempty,base64"`
	AudioName  string `json:"audio_name" validate:"max=255"`
}

type EvaluateRequest struct {
	UserID       string         `json:"user_id" validate:"required,max=128"`
	PracticeType string         `json:"practice_type" validate:"required"`
	Transcript   string         `json:"transcript" validate:"max=100000"`
	SourceText   string         `json:"source_text" validate:"max=100000"`
	Units        int            `json:"units" validate:"gte=0,lte=500"`
	Duration     *float64       `json:"duration" validate:"omitempty,gt=0"`
	Metadata     map[string]any `json:"metadata"`
}

type SlidesRequest struct {
	Slides []evaluation.Slide `json:"slides" validate:"required,min=1,max=100"`
}

// decodeJSON reads a JSON body into dst and runs struct validation.
// Failures come back as *types.InvalidInputError.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		msg := "invalid request body"
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			msg = fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)
		case errors.Is(err, io.EOF):
			msg = "request body is empty"
		}
		return &types.InvalidInputError{Field: "body", Message: msg}
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &types.InvalidInputError{Field: fe.Field(), Message: describeFieldError(fe)}
	}
	return &types.InvalidInputError{Field: "body", Message: err.Error()}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must have at least " + fe.Param()
	case "base64":
		return "must be base64 encoded"
	case "gt", "gte", "lte":
		return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
	default:
		return "failed " + fe.Tag() + " check"
	}
}
