package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/speaking-coach/internal/llm"
	"github.com/jonathan/speaking-coach/internal/profile"
	"github.com/jonathan/speaking-coach/internal/prompts"
	"github.com/jonathan/speaking-coach/internal/session"
	"github.com/jonathan/speaking-coach/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator answers with numbered questions, or feedback once the
// system turn is the closing instruction.
type fakeGenerator struct {
	mu    sync.Mutex
	calls [][]types.Turn
	fail  int // number of upcoming calls to fail
}

func (f *fakeGenerator) Generate(_ context.Context, turns []types.Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, turns)
	if f.fail > 0 {
		f.fail--
		return "", errors.New("upstream unavailable")
	}
	if strings.Contains(turns[0].Text, "The interview is over") {
		return "Overall you did well.", nil
	}
	assistant := 0
	for _, t := range turns {
		if t.Role == types.RoleAssistant {
			assistant++
		}
	}
	return fmt.Sprintf("Question %d?", assistant+1), nil
}

func (f *fakeGenerator) failNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = n
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeContexts struct {
	text string
}

func (f fakeContexts) PersonalizedContext(context.Context, string) (string, error) {
	return f.text, nil
}

func newTestEngine(t *testing.T, gen *fakeGenerator, opts Options) (*Engine, *session.Store) {
	t.Helper()
	store := session.NewStore(100, time.Minute, nil)
	return NewEngine(store, gen, opts), store
}

func assertAlternating(t *testing.T, turns []types.Turn) {
	t.Helper()
	require.NotEmpty(t, turns)
	assert.Equal(t, types.RoleSystem, turns[0].Role)
	for i, turn := range turns[1:] {
		expected := types.RoleUser
		if i%2 == 1 {
			expected = types.RoleAssistant
		}
		assert.Equal(t, expected, turn.Role, "turn %d", i+1)
	}
}

func TestEngine_FullInterview(t *testing.T) {
	gen := &fakeGenerator{}
	engine, store := newTestEngine(t, gen, Options{})
	ctx := context.Background()

	start, err := engine.Start(ctx, "backend engineer", "")
	require.NoError(t, err)
	assert.Equal(t, "Question 1?", start.FirstQuestion)

	var finals int
	var last *Reply
	for i := 1; i <= 4; i++ {
		reply, err := engine.SubmitAnswer(ctx, start.SessionID, Answer{Text: fmt.Sprintf("answer %d", i)})
		require.NoError(t, err)
		if reply.IsFinished {
			finals++
			last = reply
			continue
		}
		assert.Equal(t, fmt.Sprintf("Question %d?", i+1), reply.NextQuestion)
		assert.Equal(t, i+1, reply.QuestionNumber)
	}

	require.Equal(t, 1, finals)
	require.NotNil(t, last)
	assert.Equal(t, "Overall you did well.", last.FinalFeedback)
	assert.Equal(t, []string{"answer 1", "answer 2", "answer 3", "answer 4"}, last.Answers)
	assert.Equal(t, "backend engineer", last.Position)
	assertAlternating(t, last.Transcript)

	// closing replaced the system turn instead of adding one
	systems := 0
	for _, turn := range last.Transcript {
		if turn.Role == types.RoleSystem {
			systems++
		}
	}
	assert.Equal(t, 1, systems)
	assert.Contains(t, last.Transcript[0].Text, "do not ask")

	// finished sessions are removed
	_, err = engine.SubmitAnswer(ctx, start.SessionID, Answer{Text: "more"})
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestEngine_CustomMaxQuestions(t *testing.T) {
	gen := &fakeGenerator{}
	engine, _ := newTestEngine(t, gen, Options{MaxQuestions: 2})
	ctx := context.Background()

	start, err := engine.Start(ctx, "pm", "")
	require.NoError(t, err)

	reply, err := engine.SubmitAnswer(ctx, start.SessionID, Answer{Text: "one"})
	require.NoError(t, err)
	assert.False(t, reply.IsFinished)

	reply, err = engine.SubmitAnswer(ctx, start.SessionID, Answer{Text: "two"})
	require.NoError(t, err)
	assert.True(t, reply.IsFinished)
}

func TestEngine_UnknownSession(t *testing.T) {
	gen := &fakeGenerator{}
	engine, store := newTestEngine(t, gen, Options{})

	_, err := engine.SubmitAnswer(context.Background(), "nope", Answer{Text: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, 0, gen.callCount())
	assert.Equal(t, 0, store.Len())
}

func TestEngine_StartValidation(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeGenerator{}, Options{})

	_, err := engine.Start(context.Background(), "   ", "")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestEngine_StartFailureDiscardsSession(t *testing.T) {
	gen := &fakeGenerator{}
	gen.failNext(1)
	engine, store := newTestEngine(t, gen, Options{})

	_, err := engine.Start(context.Background(), "designer", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrGenerationFailed)
	assert.True(t, types.IsRetryable(err))
	assert.Equal(t, 0, store.Len())
}

func TestEngine_FailureKeepsTurnAndRetries(t *testing.T) {
	gen := &fakeGenerator{}
	engine, _ := newTestEngine(t, gen, Options{})
	ctx := context.Background()

	start, err := engine.Start(ctx, "analyst", "")
	require.NoError(t, err)

	gen.failNext(1)
	_, err = engine.SubmitAnswer(ctx, start.SessionID, Answer{Text: "my answer"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrGenerationFailed)

	info, err := engine.Info(start.SessionID)
	require.NoError(t, err)
	assert.True(t, info.Pending)
	assert.Equal(t, 1, info.QuestionsAsked)
	assert.Equal(t, 4, info.TurnCount) // system, seed, question, pending answer

	reply, err := engine.SubmitAnswer(ctx, start.SessionID, Answer{})
	require.NoError(t, err)
	assert.Equal(t, "Question 2?", reply.NextQuestion)
	assert.Equal(t, 2, reply.QuestionNumber)

	info, err = engine.Info(start.SessionID)
	require.NoError(t, err)
	assert.False(t, info.Pending)
	assert.Equal(t, 5, info.TurnCount)
}

func TestEngine_NewAnswerReplacesPending(t *testing.T) {
	gen := &fakeGenerator{}
	engine, _ := newTestEngine(t, gen, Options{})
	ctx := context.Background()

	start, err := engine.Start(ctx, "analyst", "")
	require.NoError(t, err)

	gen.failNext(1)
	_, err = engine.SubmitAnswer(ctx, start.SessionID, Answer{Text: "first try"})
	require.Error(t, err)

	_, err = engine.SubmitAnswer(ctx, start.SessionID, Answer{Text: "second try"})
	require.NoError(t, err)

	last := gen.calls[len(gen.calls)-1]
	assert.Equal(t, "second try", last[len(last)-1].Text)
	assertAlternating(t, last)
}

func TestEngine_Advance(t *testing.T) {
	gen := &fakeGenerator{}
	engine, _ := newTestEngine(t, gen, Options{MaxQuestions: 1})
	ctx := context.Background()

	start, err := engine.Start(ctx, "analyst", "")
	require.NoError(t, err)

	_, err = engine.Advance(ctx, start.SessionID)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	gen.failNext(1)
	_, err = engine.SubmitAnswer(ctx, start.SessionID, Answer{Text: "only answer"})
	require.Error(t, err)

	reply, err := engine.Advance(ctx, start.SessionID)
	require.NoError(t, err)
	assert.True(t, reply.IsFinished)
	assert.Equal(t, []string{"only answer"}, reply.Answers)
}

func TestEngine_EmptyAnswerRejected(t *testing.T) {
	gen := &fakeGenerator{}
	engine, _ := newTestEngine(t, gen, Options{})
	ctx := context.Background()

	start, err := engine.Start(ctx, "analyst", "")
	require.NoError(t, err)
	calls := gen.callCount()

	_, err = engine.SubmitAnswer(ctx, start.SessionID, Answer{Text: "  "})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Equal(t, calls, gen.callCount())
}

func TestEngine_AudioAnswer(t *testing.T) {
	gen := &fakeGenerator{}
	engine, _ := newTestEngine(t, gen, Options{Transcriber: &fakeTranscriber{text: " spoken answer "}})
	ctx := context.Background()

	start, err := engine.Start(ctx, "analyst", "")
	require.NoError(t, err)

	_, err = engine.SubmitAnswer(ctx, start.SessionID, Answer{Audio: []byte{1, 2, 3}, AudioName: "a.webm"})
	require.NoError(t, err)

	last := gen.calls[len(gen.calls)-1]
	assert.Equal(t, "spoken answer", last[len(last)-1].Text)
}

func TestEngine_AudioErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("no transcriber", func(t *testing.T) {
		engine, _ := newTestEngine(t, &fakeGenerator{}, Options{})
		start, err := engine.Start(ctx, "analyst", "")
		require.NoError(t, err)

		_, err = engine.SubmitAnswer(ctx, start.SessionID, Answer{Audio: []byte{1}})
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})

	t.Run("transcription failure", func(t *testing.T) {
		engine, _ := newTestEngine(t, &fakeGenerator{}, Options{Transcriber: &fakeTranscriber{err: errors.New("boom")}})
		start, err := engine.Start(ctx, "analyst", "")
		require.NoError(t, err)

		_, err = engine.SubmitAnswer(ctx, start.SessionID, Answer{Audio: []byte{1}})
		assert.ErrorIs(t, err, types.ErrGenerationFailed)
	})

	t.Run("silence", func(t *testing.T) {
		engine, _ := newTestEngine(t, &fakeGenerator{}, Options{Transcriber: &fakeTranscriber{text: ""}})
		start, err := engine.Start(ctx, "analyst", "")
		require.NoError(t, err)

		_, err = engine.SubmitAnswer(ctx, start.SessionID, Answer{Audio: []byte{1}})
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})
}

func TestEngine_PersonalizedPrompt(t *testing.T) {
	gen := &fakeGenerator{}
	engine, _ := newTestEngine(t, gen, Options{Contexts: fakeContexts{text: "Tends to ramble."}})

	_, err := engine.Start(context.Background(), "analyst", "user-1")
	require.NoError(t, err)
	assert.Contains(t, gen.calls[0][0].Text, "Tends to ramble.")

	_, err = engine.Start(context.Background(), "analyst", "")
	require.NoError(t, err)
	assert.Contains(t, gen.calls[1][0].Text, noHistoryContext)
}

func TestEngine_FirstTimeCandidatePrompt(t *testing.T) {
	gen := &fakeGenerator{}
	engine, _ := newTestEngine(t, gen, Options{Contexts: fakeContexts{text: profile.FirstTimeContext}})

	_, err := engine.Start(context.Background(), "analyst", "user-new")
	require.NoError(t, err)

	system := gen.calls[0][0].Text
	assert.NotContains(t, system, profile.FirstTimeContext)
	assert.Contains(t, system, prompts.MustGet(prompts.InterviewFile, "first-time-candidate"))
}

func TestEngine_GenerationTimeout(t *testing.T) {
	slow := func(ctx context.Context, _ []types.Turn) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	store := session.NewStore(10, time.Minute, nil)
	engine := NewEngine(store, llm.GeneratorFunc(slow), Options{GenerationTimeout: 20 * time.Millisecond})

	_, err := engine.Start(context.Background(), "analyst", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrGenerationFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngine_ConcurrentAnswersApplyInOrder(t *testing.T) {
	gen := &fakeGenerator{}
	engine, _ := newTestEngine(t, gen, Options{MaxQuestions: 10})
	ctx := context.Background()

	start, err := engine.Start(ctx, "analyst", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.SubmitAnswer(ctx, start.SessionID, Answer{Text: fmt.Sprintf("a%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	info, err := engine.Info(start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 6, info.QuestionsAsked)
	assert.Equal(t, 13, info.TurnCount)
	assertAlternating(t, gen.calls[len(gen.calls)-1])
}
