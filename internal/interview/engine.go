// Package interview drives a mock interview from the opening question to
// the closing evaluation.
//
// A session moves AwaitingFirstQuestion -> AwaitingAnswer(n) -> Finished.
// After MaxQuestions answers the interviewer prompt is swapped for the
// closing-evaluation instruction and the final model turn is returned as
// feedback. Generation is never retried automatically: a failed step leaves
// the user turn in place, marks the session pending and returns a retryable
// error.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonathan/speaking-coach/internal/llm"
	"github.com/jonathan/speaking-coach/internal/observability"
	"github.com/jonathan/speaking-coach/internal/profile"
	"github.com/jonathan/speaking-coach/internal/prompts"
	"github.com/jonathan/speaking-coach/internal/session"
	"github.com/jonathan/speaking-coach/internal/types"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultMaxQuestions      = 4
	DefaultGenerationTimeout = 120 * time.Second
)

const noHistoryContext = "No earlier practice is on record for this candidate."

// ContextProvider supplies a personalized summary of a user's history.
type ContextProvider interface {
	PersonalizedContext(ctx context.Context, userID string) (string, error)
}

// Options configures an Engine.
type Options struct {
	MaxQuestions      int
	GenerationTimeout time.Duration
	// Transcriber turns audio answers into text. Audio answers are rejected when nil.
	Transcriber llm.Transcriber
	// Contexts personalizes the interviewer prompt for known users. Optional.
	Contexts ContextProvider
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// Engine runs interviews over a session store and a text generator.
type Engine struct {
	store        *session.Store
	gen          llm.Generator
	transcriber  llm.Transcriber
	contexts     ContextProvider
	maxQuestions int
	timeout      time.Duration
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(store *session.Store, gen llm.Generator, opts Options) *Engine {
	if opts.MaxQuestions <= 0 {
		opts.MaxQuestions = DefaultMaxQuestions
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = DefaultGenerationTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		store:        store,
		gen:          gen,
		transcriber:  opts.Transcriber,
		contexts:     opts.Contexts,
		maxQuestions: opts.MaxQuestions,
		timeout:      opts.GenerationTimeout,
		metrics:      opts.Metrics,
		logger:       opts.Logger.With("component", "interview"),
	}
}

// Answer is one candidate reply. Audio is used only when Text is blank.
type Answer struct {
	Text      string
	Audio     []byte
	AudioName string
}

// StartResult is returned by Start.
type StartResult struct {
	SessionID     string `json:"session_id"`
	FirstQuestion string `json:"first_question"`
}

// Reply is the outcome of one answered step.
type Reply struct {
	SessionID      string `json:"session_id"`
	NextQuestion   string `json:"next_question,omitempty"`
	IsFinished     bool   `json:"is_finished"`
	FinalFeedback  string `json:"final_feedback,omitempty"`
	QuestionNumber int    `json:"question_number"`

	// Set only on the finishing reply.
	Position   string       `json:"-"`
	UserID     string       `json:"-"`
	Answers    []string     `json:"-"`
	Transcript []types.Turn `json:"-"`
}

// SessionInfo is a read-only view of a session.
type SessionInfo struct {
	ID             string        `json:"session_id"`
	Position       string        `json:"position"`
	UserID         string        `json:"user_id,omitempty"`
	QuestionsAsked int           `json:"questions_asked"`
	MaxQuestions   int           `json:"max_questions"`
	TurnCount      int           `json:"turn_count"`
	State          session.State `json:"state"`
	Pending        bool          `json:"pending"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Start opens a session for position and asks the first question. When
// userID is set, the interviewer prompt carries that user's history.
// A failed first question discards the session.
func (e *Engine) Start(ctx context.Context, position, userID string) (*StartResult, error) {
	position = strings.TrimSpace(position)
	if position == "" {
		return nil, &types.InvalidInputError{Field: "position", Message: "position is required"}
	}

	system := prompts.MustRender(prompts.InterviewFile, "interviewer-system", map[string]string{
		"Position":            position,
		"PersonalizedContext": e.personalizedContext(ctx, userID),
	})
	opening := prompts.MustRender(prompts.InterviewFile, "interview-opening", map[string]string{
		"Position": position,
	})

	s := e.store.Create(position, userID)
	s.Lock()
	defer s.Unlock()

	s.Append(types.RoleSystem, system)
	s.Append(types.RoleUser, opening)

	question, err := e.generate(ctx, s)
	if err != nil {
		e.store.Delete(s.ID)
		return nil, fmt.Errorf("failed to start interview: %w", err)
	}

	s.Append(types.RoleAssistant, question)
	s.QuestionsAsked = 1
	s.State = session.StateAwaitingAnswer
	e.metrics.SessionStarted()
	e.logger.Info("interview started", "session_id", s.ID, "position", position, "personalized", userID != "")

	return &StartResult{SessionID: s.ID, FirstQuestion: question}, nil
}

// SubmitAnswer records an answer and produces the next question, or the
// final feedback once MaxQuestions answers have been given.
//
// On a pending session a blank answer retries the pending step and a new
// answer replaces the pending one before retrying.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID string, answer Answer) (*Reply, error) {
	s, err := e.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	if s.State == session.StateFinished {
		return nil, &types.SessionNotFoundError{ID: sessionID}
	}

	text, err := e.answerText(ctx, s, answer)
	if err != nil {
		return nil, err
	}

	switch {
	case text == "" && s.Pending:
		// retry with the stored answer
	case text == "":
		return nil, &types.InvalidInputError{Field: "answer", Message: "text or audio answer is required"}
	case s.Pending:
		s.Turns[len(s.Turns)-1].Text = text
	default:
		s.Append(types.RoleUser, text)
	}

	return e.advance(ctx, s)
}

// Advance retries the pending step of a session without new input.
func (e *Engine) Advance(ctx context.Context, sessionID string) (*Reply, error) {
	s, err := e.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	if s.State == session.StateFinished {
		return nil, &types.SessionNotFoundError{ID: sessionID}
	}
	if !s.Pending {
		return nil, &types.InvalidInputError{Field: "session_id", Message: "session has no pending step"}
	}
	return e.advance(ctx, s)
}

// Info returns a snapshot of the session.
func (e *Engine) Info(sessionID string) (*SessionInfo, error) {
	s, err := e.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	return &SessionInfo{
		ID:             s.ID,
		Position:       s.Role,
		UserID:         s.UserID,
		QuestionsAsked: s.QuestionsAsked,
		MaxQuestions:   e.maxQuestions,
		TurnCount:      len(s.Turns),
		State:          s.State,
		Pending:        s.Pending,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}, nil
}

// advance runs the next model step for a session whose last turn is a user
// answer. The session lock must be held.
func (e *Engine) advance(ctx context.Context, s *session.Session) (*Reply, error) {
	s.Pending = true

	if s.QuestionsAsked < e.maxQuestions {
		question, err := e.generate(ctx, s)
		if err != nil {
			return nil, err
		}
		s.Append(types.RoleAssistant, question)
		s.QuestionsAsked++
		s.Pending = false
		e.store.Touch(s)

		return &Reply{
			SessionID:      s.ID,
			NextQuestion:   question,
			QuestionNumber: s.QuestionsAsked,
		}, nil
	}

	s.ReplaceSystem(prompts.MustGet(prompts.InterviewFile, "closing-evaluation"))
	feedback, err := e.generate(ctx, s)
	if err != nil {
		return nil, err
	}
	s.Append(types.RoleAssistant, feedback)
	s.Pending = false
	s.State = session.StateFinished

	reply := &Reply{
		SessionID:      s.ID,
		IsFinished:     true,
		FinalFeedback:  feedback,
		QuestionNumber: s.QuestionsAsked,
		Position:       s.Role,
		UserID:         s.UserID,
		Answers:        s.UserAnswers(),
		Transcript:     types.CloneTurns(s.Turns),
	}

	e.store.Delete(s.ID)
	e.metrics.SessionFinished()
	e.logger.Info("interview finished", "session_id", s.ID, "answers", len(reply.Answers))

	return reply, nil
}

// generate asks the collaborator for the next assistant turn within the
// configured timeout.
func (e *Engine) generate(ctx context.Context, s *session.Session) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, err := e.gen.Generate(ctx, types.CloneTurns(s.Turns))
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty reply")
	}
	if err != nil {
		e.metrics.GenerationFailed("generate")
		e.logger.Warn("generation failed", "session_id", s.ID, "questions_asked", s.QuestionsAsked, "error", err)
		return "", asGenerationError("generate", err)
	}
	return strings.TrimSpace(text), nil
}

// answerText resolves the answer text, transcribing audio when no text was sent.
func (e *Engine) answerText(ctx context.Context, s *session.Session, answer Answer) (string, error) {
	text := strings.TrimSpace(answer.Text)
	if text != "" || len(answer.Audio) == 0 {
		return text, nil
	}
	if e.transcriber == nil {
		return "", &types.InvalidInputError{Field: "audio_data", Message: "audio answers are not supported"}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, err := e.transcriber.Transcribe(ctx, answer.Audio, answer.AudioName)
	if err != nil {
		if errors.Is(err, types.ErrInvalidInput) {
			return "", err
		}
		e.metrics.GenerationFailed("transcribe")
		e.logger.Warn("transcription failed", "session_id", s.ID, "error", err)
		return "", asGenerationError("transcribe", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &types.InvalidInputError{Field: "audio_data", Message: "no speech recognized"}
	}
	e.logger.Debug("answer transcribed", "session_id", s.ID, "preview", llm.Preview(text, 50))
	return text, nil
}

func (e *Engine) personalizedContext(ctx context.Context, userID string) string {
	if userID == "" || e.contexts == nil {
		return noHistoryContext
	}
	text, err := e.contexts.PersonalizedContext(ctx, userID)
	if err != nil {
		e.logger.Warn("personalized context unavailable", "user_id", userID, "error", err)
		return noHistoryContext
	}
	if profile.IsFirstTime(text) {
		return prompts.MustGet(prompts.InterviewFile, "first-time-candidate")
	}
	return text
}

func asGenerationError(op string, err error) error {
	if errors.Is(err, types.ErrGenerationFailed) {
		return err
	}
	return &types.GenerationError{Op: op, Err: err}
}
