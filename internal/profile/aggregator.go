// Package profile folds finished practice records into per-user speaking
// profiles and renders those profiles as personalized prompt context.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonathan/speaking-coach/internal/observability"
	"github.com/jonathan/speaking-coach/internal/types"
)

// FirstTimeContext is the personalized context for a user with no practices.
const FirstTimeContext = "This is the user's first practice session."

// IsFirstTime reports whether text is the first-time context.
func IsFirstTime(text string) bool {
	return text == FirstTimeContext
}

// Defaults used when Options leaves a field zero.
const (
	DefaultRecentCap           = 10
	DefaultTrendCap            = 20
	DefaultTopN                = 5
	DefaultImprovementMinCount = 3
	DefaultPaceMinRecords      = 3
	DefaultHistoryLimit        = 20
	MaxHistoryLimit            = 100
)

// Words per minute below which pace is slow, and below which it is normal.
const (
	slowPaceWPM   = 120
	normalPaceWPM = 200
)

// trendWindow is the number of scores in each half of the trend comparison.
const trendWindow = 3

// Options configures an Aggregator.
type Options struct {
	RecentCap           int
	TrendCap            int
	TopN                int
	ImprovementMinCount int
	PaceMinRecords      int
	Metrics             *observability.Metrics
	Logger              *slog.Logger
	Now                 func() time.Time
}

// Aggregator maintains speaking profiles. Folds for the same user are
// serialized; folds for different users run in parallel.
type Aggregator struct {
	store   Store
	locks   *keyLock
	opts    Options
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewAggregator creates an Aggregator over store.
func NewAggregator(store Store, opts Options) *Aggregator {
	if opts.RecentCap <= 0 {
		opts.RecentCap = DefaultRecentCap
	}
	if opts.TrendCap <= 0 {
		opts.TrendCap = DefaultTrendCap
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.ImprovementMinCount <= 0 {
		opts.ImprovementMinCount = DefaultImprovementMinCount
	}
	if opts.PaceMinRecords <= 0 {
		opts.PaceMinRecords = DefaultPaceMinRecords
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Aggregator{
		store:   store,
		locks:   newKeyLock(),
		opts:    opts,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("component", "profile"),
	}
}

// withUserLock runs fn under the store's cross-process user lock when the
// store has one.
func (a *Aggregator) withUserLock(ctx context.Context, userID string, fn func(context.Context, Store) error) error {
	if locker, ok := a.store.(UserLocker); ok {
		return locker.LockUser(ctx, userID, fn)
	}
	return fn(ctx, a.store)
}

// Fold applies one record to the user's profile, persists the profile and
// appends the record to the history. The updated profile is returned.
func (a *Aggregator) Fold(ctx context.Context, userID string, record types.PracticeRecord) (*types.SpeakingProfile, error) {
	if userID == "" {
		return nil, &types.InvalidInputError{Field: "user_id", Message: "user id is required"}
	}
	if record.UserID != "" && record.UserID != userID {
		return nil, &types.InvalidInputError{Field: "user_id", Message: "record belongs to another user"}
	}
	record.UserID = userID

	start := time.Now()
	unlock := a.locks.Lock(userID)
	defer unlock()

	var p *types.SpeakingProfile
	err := a.withUserLock(ctx, userID, func(ctx context.Context, store Store) error {
		var err error
		p, err = store.GetProfile(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load profile: %w", err)
		}
		now := a.opts.Now()
		if p == nil {
			p = types.NewSpeakingProfile(userID, now)
		}

		a.apply(p, record)
		p.UpdatedAt = now

		if err := store.SaveProfile(ctx, p); err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		if err := store.AppendRecord(ctx, record); err != nil {
			return fmt.Errorf("failed to append record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.metrics.ObserveFold(time.Since(start))
	a.logger.Info("profile updated",
		"user_id", userID,
		"practice_type", record.PracticeType,
		"score", record.OverallScore,
		"total_practices", p.TotalPractices,
	)
	return p, nil
}

// apply folds record into p in place.
func (a *Aggregator) apply(p *types.SpeakingProfile, record types.PracticeRecord) {
	p.TotalPractices++
	p.TotalWords += record.WordCount
	switch record.PracticeType {
	case types.PracticeInterview:
		p.InterviewCount++
	case types.PracticeSlideshow:
		p.SlideshowCount++
	case types.PracticeSelfIntro:
		p.SelfIntroCount++
	}

	recent := make([]types.PracticeRecord, 0, a.opts.RecentCap)
	recent = append(recent, record)
	recent = append(recent, p.RecentRecords...)
	if len(recent) > a.opts.RecentCap {
		recent = recent[:a.opts.RecentCap]
	}
	p.RecentRecords = recent

	trend := append(p.ScoreTrend, record.OverallScore)
	if len(trend) > a.opts.TrendCap {
		trend = trend[len(trend)-a.opts.TrendCap:]
	}
	p.ScoreTrend = trend
	p.AverageScore = mean(trend)

	var strengths, weaknesses []string
	for _, r := range p.RecentRecords {
		strengths = append(strengths, r.Strengths...)
		weaknesses = append(weaknesses, r.Improvements...)
	}
	p.CommonStrengths = topN(strengths, a.opts.TopN)
	p.CommonWeaknesses = topN(weaknesses, a.opts.TopN)
	p.ImprovementAreas = atLeast(weaknesses, a.opts.ImprovementMinCount)

	if pace, ok := a.pace(p.RecentRecords); ok {
		p.SpeakingPace = pace
	}
}

// pace classifies the mean speaking rate of timed records. It reports
// false when too few records carry a duration.
func (a *Aggregator) pace(records []types.PracticeRecord) (string, bool) {
	var total float64
	var n int
	for _, r := range records {
		if wpm, ok := r.WordsPerMinute(); ok {
			total += wpm
			n++
		}
	}
	if n < a.opts.PaceMinRecords {
		return "", false
	}

	avg := total / float64(n)
	switch {
	case avg < slowPaceWPM:
		return types.PaceSlow, true
	case avg < normalPaceWPM:
		return types.PaceNormal, true
	default:
		return types.PaceFast, true
	}
}

// PersonalizedContext summarizes the user's history for a prompt.
func (a *Aggregator) PersonalizedContext(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", &types.InvalidInputError{Field: "user_id", Message: "user id is required"}
	}
	p, err := a.store.GetProfile(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load profile: %w", err)
	}
	if p == nil || p.TotalPractices == 0 {
		return FirstTimeContext, nil
	}

	parts := []string{
		fmt.Sprintf("Profile: %d practices completed, average score %.1f.", p.TotalPractices, p.AverageScore),
	}
	if len(p.CommonStrengths) > 0 {
		parts = append(parts, "Common strengths: "+joinFirst(p.CommonStrengths, 3)+".")
	}
	if len(p.CommonWeaknesses) > 0 {
		parts = append(parts, "Common weaknesses: "+joinFirst(p.CommonWeaknesses, 3)+".")
	}
	if len(p.ImprovementAreas) > 0 {
		parts = append(parts, "Focus areas: "+joinFirst(p.ImprovementAreas, 2)+".")
	}
	if p.SpeakingPace != "" {
		parts = append(parts, "Speaking pace: "+p.SpeakingPace+".")
	}
	if remark := trendRemark(p.ScoreTrend); remark != "" {
		parts = append(parts, remark)
	}
	return strings.Join(parts, "\n"), nil
}

// Profile returns the user's profile, or an empty one if none exists yet.
func (a *Aggregator) Profile(ctx context.Context, userID string) (*types.SpeakingProfile, error) {
	if userID == "" {
		return nil, &types.InvalidInputError{Field: "user_id", Message: "user id is required"}
	}
	p, err := a.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if p == nil {
		p = types.NewSpeakingProfile(userID, a.opts.Now())
	}
	return p, nil
}

// Summary returns the condensed view of the user's profile.
func (a *Aggregator) Summary(ctx context.Context, userID string) (*types.ProfileSummary, error) {
	p, err := a.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	s := p.Summary()
	return &s, nil
}

// History returns up to limit past records, newest first. A non-positive
// limit means DefaultHistoryLimit; larger values are capped at MaxHistoryLimit.
func (a *Aggregator) History(ctx context.Context, userID string, limit int) ([]types.PracticeRecord, error) {
	if userID == "" {
		return nil, &types.InvalidInputError{Field: "user_id", Message: "user id is required"}
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	records, err := a.store.ListRecords(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	if records == nil {
		records = []types.PracticeRecord{}
	}
	return records, nil
}

// trendRemark compares the mean of the last three scores with the three
// before them. A difference above five points in either direction earns a remark.
func trendRemark(trend []int) string {
	if len(trend) < 2*trendWindow {
		return ""
	}
	recent := mean(trend[len(trend)-trendWindow:])
	older := mean(trend[len(trend)-2*trendWindow : len(trend)-trendWindow])

	switch {
	case recent > older+5:
		return "Recent scores are clearly improving; acknowledge the progress."
	case recent < older-5:
		return "Recent scores have dropped; offer extra support and encouragement."
	default:
		return ""
	}
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func joinFirst(items []string, n int) string {
	return strings.Join(items[:min(n, len(items))], ", ")
}
