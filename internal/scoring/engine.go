// Package scoring turns tender text plus a weight configuration into a
// persisted AnalysisResult.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tenderlens/tenderlens/internal/cache"
	"github.com/tenderlens/tenderlens/internal/config"
	"github.com/tenderlens/tenderlens/internal/store"
	"github.com/tenderlens/tenderlens/pkg/models"
)

const statusTTL = 30 * time.Minute

// ConfigError means the weight configuration cannot produce a score.
// Fatal to the single request; never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "weight configuration error: " + e.Reason }

// Engine orchestrates one scoring request end to end.
type Engine struct {
	provider   models.Provider
	store      store.Store
	cache      cache.Cache
	timeout    time.Duration
	thresholds config.ScoringThresholds
}

// NewEngine creates a scoring Engine.
func NewEngine(provider models.Provider, st store.Store, ca cache.Cache, timeout time.Duration, thresholds config.ScoringThresholds) *Engine {
	return &Engine{
		provider:   provider,
		store:      st,
		cache:      ca,
		timeout:    timeout,
		thresholds: thresholds,
	}
}

// Score runs a scoring request for a tender. Weight configuration problems
// fail fast with ConfigError and no partial result. Provider and validation
// failures never escape: they finalize the result as failed, with a
// human-readable reasoning string, and Score returns that result.
func (e *Engine) Score(ctx context.Context, tenderID uuid.UUID, tenderText string, weights models.WeightConfig) (*models.AnalysisResult, error) {
	if len(weights) == 0 {
		weights = models.DefaultWeights
	}
	if err := validateWeights(weights); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := &models.AnalysisResult{
		ID:        uuid.New(),
		TenderID:  tenderID,
		Scores:    map[string]models.CategoryScore{},
		RedFlags:  []string{},
		KeyDates:  []string{},
		Status:    models.AnalysisStatusPending,
		ModelUsed: e.provider.Model(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreateAnalysis(ctx, result); err != nil {
		return nil, fmt.Errorf("creating analysis: %w", err)
	}

	result.Status = models.AnalysisStatusAnalyzing
	if err := e.store.UpdateAnalysisStatus(ctx, result.ID, models.AnalysisStatusAnalyzing); err != nil {
		return nil, fmt.Errorf("updating analysis status: %w", err)
	}
	_ = e.cache.SetAnalysisStatus(ctx, result.ID, models.AnalysisStatusAnalyzing, statusTTL)

	raw, err := e.callProvider(ctx, tenderText, weights)
	if err != nil {
		return e.finalizeFailed(result, err)
	}

	e.combine(result, raw, weights)
	result.Status = models.AnalysisStatusCompleted
	result.UpdatedAt = time.Now().UTC()

	// Finalize is a single atomic write; a cancelled request either lands
	// the complete result or leaves the row untouched in analyzing.
	if err := e.store.FinalizeAnalysis(ctx, result); err != nil {
		return nil, fmt.Errorf("finalizing analysis: %w", err)
	}
	_ = e.cache.SetAnalysisStatus(ctx, result.ID, models.AnalysisStatusCompleted, statusTTL)

	return result, nil
}

// callProvider runs the model under the inference budget, retrying once on
// timeout or invalid response. Auth and unknown failures surface immediately.
func (e *Engine) callProvider(ctx context.Context, tenderText string, weights models.WeightConfig) (models.AnalysisResult, error) {
	req := models.AnalyzeRequest{TenderText: tenderText, Weights: weights}

	attempt := func() (models.AnalysisResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		return e.provider.Analyze(callCtx, req)
	}

	raw, err := attempt()
	if err == nil {
		return raw, nil
	}

	var provErr *models.ProviderError
	retryable := errors.As(err, &provErr) &&
		(provErr.Reason == models.ReasonTimeout || provErr.Reason == models.ReasonInvalidResponse)
	if !retryable || ctx.Err() != nil {
		return models.AnalysisResult{}, err
	}

	slog.Warn("retrying analysis after provider failure", "reason", provErr.Reason)
	return attempt()
}

// combine folds validated per-criterion scores into the final result:
// normalized weighted overall, derived tier, derived recommendation.
func (e *Engine) combine(result *models.AnalysisResult, raw models.AnalysisResult, weights models.WeightConfig) {
	total := weights.Total()

	var overall float64
	for name, weight := range weights {
		cs := raw.Scores[name]
		result.Scores[name] = cs
		overall += (weight / total) * cs.Score
	}
	// Clamp to absorb rounding.
	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}

	result.OverallScore = overall
	result.Confidence = models.TierFor(overall)
	result.RedFlags = append(result.RedFlags, raw.RedFlags...)
	result.KeyDates = append(result.KeyDates, raw.KeyDates...)
	result.Recommendation, result.RecommendationReasoning = e.recommend(overall, result.RedFlags)
}

// recommend derives the recommendation from the overall score and red
// flags: any red flag downgrades pursue to review regardless of score;
// otherwise the configured thresholds decide.
func (e *Engine) recommend(overall float64, redFlags []string) (string, string) {
	switch {
	case overall >= e.thresholds.PursueMin:
		if len(redFlags) > 0 {
			return models.RecommendationReview,
				fmt.Sprintf("Score %.1f clears the pursue threshold but %d red flag(s) require review", overall, len(redFlags))
		}
		return models.RecommendationPursue,
			fmt.Sprintf("Score %.1f clears the pursue threshold of %.0f", overall, e.thresholds.PursueMin)
	case overall >= e.thresholds.ReviewMin:
		return models.RecommendationReview,
			fmt.Sprintf("Score %.1f falls in the review band (%.0f-%.0f)", overall, e.thresholds.ReviewMin, e.thresholds.PursueMin)
	default:
		return models.RecommendationSkip,
			fmt.Sprintf("Score %.1f is below the review threshold of %.0f", overall, e.thresholds.ReviewMin)
	}
}

// finalizeFailed lands a terminal failed result that still explains itself.
// The write uses a fresh context so a caller cancellation cannot strand the
// row in analyzing.
func (e *Engine) finalizeFailed(result *models.AnalysisResult, cause error) (*models.AnalysisResult, error) {
	result.Status = models.AnalysisStatusFailed
	result.Recommendation = models.RecommendationReview
	result.RecommendationReasoning = "Analysis failed: " + cause.Error()
	result.Confidence = models.TierLow
	result.UpdatedAt = time.Now().UTC()

	writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.FinalizeAnalysis(writeCtx, result); err != nil {
		slog.Error("failed to persist failed analysis", "error", err, "analysis_id", result.ID)
	}
	_ = e.cache.SetAnalysisStatus(writeCtx, result.ID, models.AnalysisStatusFailed, statusTTL)

	return result, nil
}

func validateWeights(weights models.WeightConfig) error {
	for name, w := range weights {
		if w < 0 {
			return &ConfigError{Reason: fmt.Sprintf("criterion %q has negative weight %g", name, w)}
		}
	}
	if weights.Total() == 0 {
		return &ConfigError{Reason: "all weights are zero"}
	}
	return nil
}
