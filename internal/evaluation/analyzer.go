package evaluation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/speaking-coach/internal/llm"
	"github.com/jonathan/speaking-coach/internal/observability"
	"github.com/jonathan/speaking-coach/internal/profile"
	"github.com/jonathan/speaking-coach/internal/prompts"
	"github.com/jonathan/speaking-coach/internal/types"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 4
	defaultTimeout     = 120 * time.Second
	sourceSummaryLimit = 2000
)

// ContextProvider supplies a personalized summary of a user's history.
type ContextProvider interface {
	PersonalizedContext(ctx context.Context, userID string) (string, error)
}

// AnalyzerOptions configures an Analyzer.
type AnalyzerOptions struct {
	// Concurrency bounds parallel slide analyses.
	Concurrency int
	Timeout     time.Duration
	Contexts    ContextProvider
	Metrics     *observability.Metrics
	Logger      *slog.Logger
}

// Analyzer asks the generation collaborator to assess a practice and runs
// the reply through Evaluate.
type Analyzer struct {
	gen         llm.Generator
	contexts    ContextProvider
	concurrency int
	timeout     time.Duration
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(gen llm.Generator, opts AnalyzerOptions) *Analyzer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Analyzer{
		gen:         gen,
		contexts:    opts.Contexts,
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
		metrics:     opts.Metrics,
		logger:      opts.Logger.With("component", "evaluation"),
	}
}

// Request describes one practice to assess.
type Request struct {
	PracticeType types.PracticeType
	Transcript   string
	// SourceText is the material the speaker was meant to cover, if any.
	SourceText string
	// Units is the number of content units (slides) in SourceText.
	Units  int
	UserID string

	// Interview only.
	Position        string
	ClosingFeedback string
}

// Assessment is a judgment plus the signals it was computed with.
type Assessment struct {
	Result  types.EvaluationResult `json:"result"`
	Signals Signals                `json:"signals"`
}

// Analyze assesses one practice. Only a failed generation call returns an error.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Assessment, error) {
	sig := ComputeSignals(req.Transcript, req.SourceText, req.Units)
	if !IsSpeech(req.Transcript) {
		a.metrics.JudgmentProduced(types.SourceNoSpeech)
		return &Assessment{Result: NoSpeech(), Signals: sig}, nil
	}

	prompt, err := a.buildPrompt(ctx, req)
	if err != nil {
		return nil, err
	}

	raw, err := a.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result := Evaluate(raw, sig)
	a.metrics.JudgmentProduced(result.Source)
	a.logger.Info("practice evaluated",
		"practice_type", req.PracticeType,
		"user_id", req.UserID,
		"score", result.Score,
		"source", result.Source,
		"words", sig.WordCount,
	)
	return &Assessment{Result: result, Signals: sig}, nil
}

// Slide is one slide and what the speaker said about it.
type Slide struct {
	Number     int    `json:"number"`
	Text       string `json:"text"`
	Transcript string `json:"transcript"`
}

// SlideAssessment is the judgment for one slide.
type SlideAssessment struct {
	Number int `json:"number"`
	Assessment
}

// AnalyzeSlides assesses slides in parallel. A slide whose generation
// fails gets its fallback judgment; only cancellation of ctx is an error.
func (a *Analyzer) AnalyzeSlides(ctx context.Context, slides []Slide) ([]SlideAssessment, error) {
	results := make([]SlideAssessment, len(slides))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, slide := range slides {
		g.Go(func() error {
			results[i] = a.analyzeSlide(gctx, slide)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *Analyzer) analyzeSlide(ctx context.Context, slide Slide) SlideAssessment {
	sig := ComputeSignals(slide.Transcript, slide.Text, 1)
	out := SlideAssessment{Number: slide.Number, Assessment: Assessment{Signals: sig}}

	if !IsSpeech(slide.Transcript) {
		out.Result = NoSpeech()
		a.metrics.JudgmentProduced(out.Result.Source)
		return out
	}

	prompt := prompts.MustRender(prompts.EvaluationFile, "slide-analysis", map[string]string{
		"SlideNumber": strconv.Itoa(slide.Number),
		"SlideText":   orPlaceholder(slide.Text, "(no text on this slide)"),
		"Transcript":  slide.Transcript,
	})

	raw, err := a.generate(ctx, prompt)
	if err != nil {
		a.logger.Warn("slide analysis degraded to fallback", "slide", slide.Number, "error", err)
		out.Result = Fallback("", sig)
	} else {
		out.Result = Evaluate(raw, sig)
	}
	a.metrics.JudgmentProduced(out.Result.Source)
	return out
}

func (a *Analyzer) buildPrompt(ctx context.Context, req Request) (string, error) {
	personal := a.personalizedContext(ctx, req.UserID)

	if req.PracticeType == types.PracticeInterview {
		return prompts.Render(prompts.EvaluationFile, "interview-analysis", map[string]string{
			"Position":            orPlaceholder(req.Position, "an unspecified role"),
			"Transcript":          req.Transcript,
			"ClosingFeedback":     orPlaceholder(req.ClosingFeedback, "(none)"),
			"PersonalizedContext": personal,
		})
	}

	return prompts.Render(prompts.EvaluationFile, "practice-analysis", map[string]string{
		"PracticeLabel":       practiceLabel(req.PracticeType),
		"SourceSummary":       orPlaceholder(truncateRunes(strings.TrimSpace(req.SourceText), sourceSummaryLimit), "No source material was provided."),
		"Transcript":          req.Transcript,
		"PersonalizedContext": personal,
	})
}

func (a *Analyzer) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.gen.Generate(ctx, []types.Turn{{Role: types.RoleUser, Text: prompt}})
	if err != nil {
		a.metrics.GenerationFailed("analyze")
		if errors.Is(err, types.ErrGenerationFailed) {
			return "", err
		}
		return "", &types.GenerationError{Op: "analyze", Err: err}
	}
	return raw, nil
}

func (a *Analyzer) personalizedContext(ctx context.Context, userID string) string {
	if userID == "" || a.contexts == nil {
		return "No earlier practice is on record."
	}
	text, err := a.contexts.PersonalizedContext(ctx, userID)
	if err != nil {
		a.logger.Warn("personalized context unavailable", "user_id", userID, "error", err)
		return "No earlier practice is on record."
	}
	if profile.IsFirstTime(text) {
		return prompts.MustGet(prompts.EvaluationFile, "first-time-practice")
	}
	return text
}

func practiceLabel(t types.PracticeType) string {
	switch t {
	case types.PracticeSlideshow:
		return "slide presentation"
	case types.PracticeSelfIntro:
		return "self-introduction"
	case types.PracticeInterview:
		return "interview"
	default:
		return string(t)
	}
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
