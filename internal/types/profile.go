package types

import "time"

// Speaking pace labels. An empty pace means not enough timed records yet.
const (
	PaceSlow   = "slow"
	PaceNormal = "normal"
	PaceFast   = "fast"
)

// SpeakingProfile is the rolling per-user summary of practice history.
type SpeakingProfile struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TotalPractices int     `json:"total_practices"`
	TotalWords     int     `json:"total_words"`
	AverageScore   float64 `json:"average_score"`

	CommonStrengths  []string `json:"common_strengths"`
	CommonWeaknesses []string `json:"common_weaknesses"`
	ImprovementAreas []string `json:"improvement_areas"`
	SpeakingPace     string   `json:"speaking_pace,omitempty"`

	// RecentRecords is newest first.
	RecentRecords []PracticeRecord `json:"recent_records"`

	InterviewCount int `json:"interview_count"`
	SlideshowCount int `json:"slideshow_count"`
	SelfIntroCount int `json:"self_intro_count"`

	// ScoreTrend is chronological, oldest first.
	ScoreTrend []int `json:"score_trend"`
}

// NewSpeakingProfile returns an empty profile for userID.
func NewSpeakingProfile(userID string, now time.Time) *SpeakingProfile {
	return &SpeakingProfile{
		UserID:           userID,
		CreatedAt:        now,
		UpdatedAt:        now,
		CommonStrengths:  []string{},
		CommonWeaknesses: []string{},
		ImprovementAreas: []string{},
		RecentRecords:    []PracticeRecord{},
		ScoreTrend:       []int{},
	}
}

// ProfileSummary is the condensed profile view for dashboards.
type ProfileSummary struct {
	TotalPractices   int      `json:"total_practices"`
	AverageScore     float64  `json:"average_score"`
	InterviewCount   int      `json:"interview_count"`
	SlideshowCount   int      `json:"slideshow_count"`
	SelfIntroCount   int      `json:"self_intro_count"`
	CommonStrengths  []string `json:"common_strengths"`
	CommonWeaknesses []string `json:"common_weaknesses"`
	SpeakingPace     string   `json:"speaking_pace,omitempty"`
}

// Summary condenses the profile.
func (p *SpeakingProfile) Summary() ProfileSummary {
	return ProfileSummary{
		TotalPractices:   p.TotalPractices,
		AverageScore:     p.AverageScore,
		InterviewCount:   p.InterviewCount,
		SlideshowCount:   p.SlideshowCount,
		SelfIntroCount:   p.SelfIntroCount,
		CommonStrengths:  p.CommonStrengths,
		CommonWeaknesses: p.CommonWeaknesses,
		SpeakingPace:     p.SpeakingPace,
	}
}
