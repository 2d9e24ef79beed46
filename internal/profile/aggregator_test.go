package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/speaking-coach/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(score int, opts ...func(*types.RecordInput, *types.EvaluationResult)) types.PracticeRecord {
	in := types.RecordInput{UserID: "u1", PracticeType: types.PracticeSelfIntro, WordCount: 100}
	res := types.EvaluationResult{Score: score}
	for _, o := range opts {
		o(&in, &res)
	}
	return types.NewPracticeRecord(in, res)
}

func withType(t types.PracticeType) func(*types.RecordInput, *types.EvaluationResult) {
	return func(in *types.RecordInput, _ *types.EvaluationResult) { in.PracticeType = t }
}

func withDuration(seconds float64, words int) func(*types.RecordInput, *types.EvaluationResult) {
	return func(in *types.RecordInput, _ *types.EvaluationResult) {
		in.Duration = &seconds
		in.WordCount = words
	}
}

func withJudgment(strengths, improvements []string) func(*types.RecordInput, *types.EvaluationResult) {
	return func(_ *types.RecordInput, res *types.EvaluationResult) {
		res.Strengths = strengths
		res.Improvements = improvements
	}
}

func TestFold_FirstRecordCreatesProfile(t *testing.T) {
	store := NewMemoryStore()
	agg := NewAggregator(store, Options{})

	p, err := agg.Fold(context.Background(), "u1", newRecord(80, withType(types.PracticeInterview)))
	require.NoError(t, err)

	assert.Equal(t, 1, p.TotalPractices)
	assert.Equal(t, 100, p.TotalWords)
	assert.Equal(t, 1, p.InterviewCount)
	assert.Equal(t, 80.0, p.AverageScore)
	assert.Equal(t, []int{80}, p.ScoreTrend)
	assert.Len(t, p.RecentRecords, 1)

	stored, err := store.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, p.TotalPractices, stored.TotalPractices)

	history, err := agg.History(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestFold_CapsAndMean(t *testing.T) {
	agg := NewAggregator(NewMemoryStore(), Options{})
	ctx := context.Background()

	var p *types.SpeakingProfile
	var err error
	for i := 1; i <= 25; i++ {
		p, err = agg.Fold(ctx, "u1", newRecord(i*4))
		require.NoError(t, err)
	}

	assert.Equal(t, 25, p.TotalPractices)
	assert.Equal(t, 25, p.SelfIntroCount)
	require.Len(t, p.RecentRecords, 10)
	assert.Equal(t, 100, p.RecentRecords[0].OverallScore, "newest first")
	require.Len(t, p.ScoreTrend, 20)
	assert.Equal(t, 24, p.ScoreTrend[0], "oldest retained score")
	assert.Equal(t, 100, p.ScoreTrend[19])

	// mean of 6*4 .. 25*4
	assert.InDelta(t, 62.0, p.AverageScore, 0.0001)
}

func TestFold_StructuralIdempotence(t *testing.T) {
	agg := NewAggregator(NewMemoryStore(), Options{})
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		p, err := agg.Fold(ctx, "u1", newRecord(70))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(p.RecentRecords), 10)
		assert.LessOrEqual(t, len(p.ScoreTrend), 20)
		assert.Equal(t, 70.0, p.AverageScore)
	}
}

func TestFold_Patterns(t *testing.T) {
	agg := NewAggregator(NewMemoryStore(), Options{})
	ctx := context.Background()

	judgments := []struct {
		strengths    []string
		improvements []string
	}{
		{[]string{"clear", "confident"}, []string{"pace", "filler words"}},
		{[]string{"confident"}, []string{"pace", "eye contact"}},
		{[]string{"structured"}, []string{"filler words", "pace"}},
	}

	var p *types.SpeakingProfile
	var err error
	for _, j := range judgments {
		p, err = agg.Fold(ctx, "u1", newRecord(70, withJudgment(j.strengths, j.improvements)))
		require.NoError(t, err)
	}

	// Recent records are newest first, so ties resolve to the newest record's order.
	assert.Equal(t, []string{"confident", "structured", "clear"}, p.CommonStrengths)
	assert.Equal(t, []string{"pace", "filler words", "eye contact"}, p.CommonWeaknesses)
	assert.Equal(t, []string{"pace"}, p.ImprovementAreas)
}

func TestFold_TopNLimit(t *testing.T) {
	agg := NewAggregator(NewMemoryStore(), Options{TopN: 2})

	p, err := agg.Fold(context.Background(), "u1", newRecord(70, withJudgment([]string{"a", "b", "c"}, nil)))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, p.CommonStrengths)
	assert.Equal(t, []string{}, p.CommonWeaknesses)
}

func TestFold_Pace(t *testing.T) {
	agg := NewAggregator(NewMemoryStore(), Options{})
	ctx := context.Background()

	// two timed records are not enough
	p, err := agg.Fold(ctx, "u1", newRecord(70, withDuration(60, 250)))
	require.NoError(t, err)
	_, err = agg.Fold(ctx, "u1", newRecord(70, withDuration(60, 250)))
	require.NoError(t, err)
	p, err = agg.Fold(ctx, "u1", newRecord(70))
	require.NoError(t, err)
	assert.Empty(t, p.SpeakingPace)

	p, err = agg.Fold(ctx, "u1", newRecord(70, withDuration(60, 250)))
	require.NoError(t, err)
	assert.Equal(t, types.PaceFast, p.SpeakingPace)

	// untimed records keep the prior pace
	for i := 0; i < 10; i++ {
		p, err = agg.Fold(ctx, "u1", newRecord(70))
		require.NoError(t, err)
	}
	assert.Equal(t, types.PaceFast, p.SpeakingPace)
}

func TestPaceBuckets(t *testing.T) {
	tests := []struct {
		words    int
		expected string
	}{
		{100, types.PaceSlow},
		{150, types.PaceNormal},
		{199, types.PaceNormal},
		{200, types.PaceFast},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d wpm", tt.words), func(t *testing.T) {
			agg := NewAggregator(NewMemoryStore(), Options{})
			var p *types.SpeakingProfile
			var err error
			for i := 0; i < 3; i++ {
				p, err = agg.Fold(context.Background(), "u1", newRecord(70, withDuration(60, tt.words)))
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, p.SpeakingPace)
		})
	}
}

func TestFold_ConcurrentSameUser(t *testing.T) {
	agg := NewAggregator(NewMemoryStore(), Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := agg.Fold(ctx, "u1", newRecord(60))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := agg.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, p.TotalPractices)
	assert.Equal(t, 2000, p.TotalWords)
	assert.Equal(t, 0, agg.locks.size())
}

// sharedStore is one MemoryStore used by several aggregators, the way
// replicas share a database. Reads are slowed to widen the window between
// load and save.
type sharedStore struct {
	*MemoryStore
	mu    sync.Mutex
	locks int
}

func (s *sharedStore) GetProfile(ctx context.Context, userID string) (*types.SpeakingProfile, error) {
	p, err := s.MemoryStore.GetProfile(ctx, userID)
	time.Sleep(time.Millisecond)
	return p, err
}

func (s *sharedStore) LockUser(ctx context.Context, _ string, fn func(context.Context, Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks++
	return fn(ctx, s)
}

func TestFold_UserLockSpansAggregators(t *testing.T) {
	store := &sharedStore{MemoryStore: NewMemoryStore()}
	aggs := []*Aggregator{NewAggregator(store, Options{}), NewAggregator(store, Options{})}
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, agg := range aggs {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := agg.Fold(ctx, "u1", newRecord(60))
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	p, err := store.MemoryStore.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 20, p.TotalPractices)
	assert.Equal(t, 20, store.locks)
}

func TestFold_Validation(t *testing.T) {
	agg := NewAggregator(NewMemoryStore(), Options{})

	_, err := agg.Fold(context.Background(), "", newRecord(50))
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = agg.Fold(context.Background(), "someone-else", newRecord(50))
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

type failingStore struct {
	*MemoryStore
	saveErr error
}

func (f *failingStore) SaveProfile(context.Context, *types.SpeakingProfile) error {
	return f.saveErr
}

func TestFold_StoreError(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), saveErr: errors.New("disk full")}
	agg := NewAggregator(store, Options{})

	_, err := agg.Fold(context.Background(), "u1", newRecord(50))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save profile")

	history, err := agg.History(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPersonalizedContext_FirstTime(t *testing.T) {
	agg := NewAggregator(NewMemoryStore(), Options{})

	text, err := agg.PersonalizedContext(context.Background(), "nobody")
	require.NoError(t, err)
	assert.True(t, IsFirstTime(text))
}

func TestPersonalizedContext_Content(t *testing.T) {
	agg := NewAggregator(NewMemoryStore(), Options{})
	ctx := context.Background()

	for _, score := range []int{60, 60, 60, 75, 80, 85} {
		_, err := agg.Fold(ctx, "u1", newRecord(score,
			withDuration(60, 150),
			withJudgment([]string{"clear"}, []string{"pace", "filler words"})))
		require.NoError(t, err)
	}

	text, err := agg.PersonalizedContext(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, IsFirstTime(text))
	assert.Contains(t, text, "6 practices completed, average score 70.0")
	assert.Contains(t, text, "Common strengths: clear.")
	assert.Contains(t, text, "Common weaknesses: pace, filler words.")
	assert.Contains(t, text, "Focus areas: pace, filler words.")
	assert.Contains(t, text, "Speaking pace: normal.")
	assert.Contains(t, text, "improving")
}

func TestTrendRemark(t *testing.T) {
	tests := []struct {
		name     string
		trend    []int
		contains string
	}{
		{"too short", []int{10, 10, 10, 90, 90}, ""},
		{"improving", []int{60, 60, 60, 66, 66, 67}, "improving"},
		{"declining", []int{80, 80, 80, 70, 70, 70}, "dropped"},
		{"flat", []int{70, 70, 70, 74, 74, 74}, ""},
		{"uses last six", []int{0, 0, 0, 70, 70, 70, 70, 70, 70}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remark := trendRemark(tt.trend)
			if tt.contains == "" {
				assert.Empty(t, remark)
				return
			}
			assert.True(t, strings.Contains(remark, tt.contains), remark)
		})
	}
}

func TestHistory_LimitAndOrder(t *testing.T) {
	agg := NewAggregator(NewMemoryStore(), Options{})
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		_, err := agg.Fold(ctx, "u1", newRecord(i))
		require.NoError(t, err)
	}

	history, err := agg.History(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Equal(t, 29, history[0].OverallScore)
	assert.Equal(t, 25, history[4].OverallScore)

	history, err = agg.History(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, history, DefaultHistoryLimit)

	history, err = agg.History(ctx, "nobody", 5)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestProfileAndSummary_Empty(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	agg := NewAggregator(NewMemoryStore(), Options{Now: func() time.Time { return now }})

	p, err := agg.Profile(context.Background(), "new-user")
	require.NoError(t, err)
	assert.Equal(t, "new-user", p.UserID)
	assert.Equal(t, now, p.CreatedAt)
	assert.Equal(t, 0, p.TotalPractices)

	s, err := agg.Summary(context.Background(), "new-user")
	require.NoError(t, err)
	assert.Equal(t, 0, s.TotalPractices)

	_, err = agg.Profile(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestMemoryStore_CopiesProfiles(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p := types.NewSpeakingProfile("u1", time.Now())
	p.ScoreTrend = []int{50}
	require.NoError(t, store.SaveProfile(ctx, p))

	p.ScoreTrend[0] = 99
	got, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []int{50}, got.ScoreTrend)

	missing, err := store.GetProfile(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
