package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	AnalysisStatusPending   = "pending"
	AnalysisStatusAnalyzing = "analyzing"
	AnalysisStatusCompleted = "completed"
	AnalysisStatusFailed    = "failed"
)

const (
	TierHigh   = "high"
	TierMedium = "medium"
	TierLow    = "low"
)

const (
	RecommendationPursue = "pursue"
	RecommendationReview = "review"
	RecommendationSkip   = "skip"
)

// Tier thresholds. Confidence is always derived from the overall score
// through TierFor, never set independently.
const (
	tierHighMin   = 75.0
	tierMediumMin = 50.0
)

// CategoryScore is the score for one criterion of the weight configuration.
type CategoryScore struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// AnalysisResult holds AI-generated scoring output for a tender.
// A tender owns at most one active result; prior results are superseded,
// not merged.
type AnalysisResult struct {
	ID       uuid.UUID `db:"id"        json:"id"`
	TenderID uuid.UUID `db:"tender_id" json:"tender_id"`

	OverallScore float64 `db:"overall_score" json:"overall_score"`
	Confidence   string  `db:"confidence"    json:"confidence"`

	Scores map[string]CategoryScore `db:"scores" json:"scores"`

	Recommendation          string   `db:"recommendation"           json:"recommendation"`
	RecommendationReasoning string   `db:"recommendation_reasoning" json:"recommendation_reasoning"`
	RedFlags                []string `db:"red_flags"                json:"red_flags"`
	KeyDates                []string `db:"key_dates"                json:"key_dates"`

	Status    string    `db:"status"     json:"status"`
	ModelUsed string    `db:"model_used" json:"model_used"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TierFor maps an overall score to its confidence tier.
func TierFor(overallScore float64) string {
	switch {
	case overallScore >= tierHighMin:
		return TierHigh
	case overallScore >= tierMediumMin:
		return TierMedium
	default:
		return TierLow
	}
}
