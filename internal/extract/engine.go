// Package extract turns raw tender documents into structured,
// confidence-annotated extraction results.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tenderlens/tenderlens/internal/cache"
	"github.com/tenderlens/tenderlens/internal/store"
	"github.com/tenderlens/tenderlens/pkg/models"
)

const cacheTTL = 24 * time.Hour

// Criticality weights for the overall-confidence aggregate. Critical fields
// (title, entity, deadline, value) dominate, so their absence keeps the
// overall value below any actionable threshold.
const (
	criticalWeight   = 3.0
	supportiveWeight = 1.0
)

// Report is the validation summary attached to every extraction response.
type Report struct {
	Valid          bool     `json:"valid"`
	Issues         []string `json:"issues"`
	RequiresReview bool     `json:"requires_review"`
}

// Result is the full output of one extraction request.
type Result struct {
	Extraction models.ExtractionResult `json:"extraction"`
	Validation Report                  `json:"validation"`
	FilePath   string                  `json:"file_path"`
}

// Engine orchestrates extraction: cache lookup, provider call, invariant
// enforcement, persistence.
type Engine struct {
	provider models.Provider
	store    store.Store
	cache    cache.Cache
	timeout  time.Duration
}

// NewEngine creates an extraction Engine.
func NewEngine(provider models.Provider, st store.Store, ca cache.Cache, timeout time.Duration) *Engine {
	return &Engine{provider: provider, store: st, cache: ca, timeout: timeout}
}

// Extract produces an ExtractionResult for the document. Repeated requests
// for identical content and the same model short-circuit to the cached
// result with cached=true; the cache key is a content hash, never the
// filename.
func (e *Engine) Extract(ctx context.Context, userID uuid.UUID, document []byte, filename string) (*Result, error) {
	sum := sha256.Sum256(document)
	contentHash := hex.EncodeToString(sum[:])
	key := cache.ExtractionKey(e.provider.Model(), contentHash)

	if cached, found, err := e.cache.Get(ctx, key); err == nil && found {
		var extraction models.ExtractionResult
		if err := json.Unmarshal(cached, &extraction); err == nil {
			extraction.Cached = true
			return &Result{
				Extraction: extraction,
				Validation: buildReport(&extraction),
				FilePath:   filename,
			}, nil
		}
		slog.Warn("discarding unreadable cache entry", "key", key)
	}

	// Cold cache still short-circuits if the store has seen this content
	// for the same model.
	if rec, err := e.store.GetExtractionByHash(ctx, userID, contentHash); err == nil && rec.ModelUsed == e.provider.Model() {
		extraction := rec.Result
		extraction.Cached = true
		if payload, err := json.Marshal(rec.Result); err == nil {
			_ = e.cache.Set(ctx, key, payload, cacheTTL)
		}
		return &Result{
			Extraction: extraction,
			Validation: buildReport(&extraction),
			FilePath:   filename,
		}, nil
	}

	start := time.Now()
	extraction, err := e.callProvider(ctx, document, filename)
	if err != nil {
		return nil, err
	}

	normalize(&extraction)
	extraction.OverallConfidence = OverallConfidence(&extraction)
	extraction.ModelUsed = e.provider.Model()
	extraction.Cached = false
	extraction.ProcessingTimeMs = time.Since(start).Milliseconds()

	// The cache entry is one atomic SET of the fully marshalled result;
	// racing writers resolve to last-writer-wins.
	if payload, err := json.Marshal(extraction); err == nil {
		_ = e.cache.Set(ctx, key, payload, cacheTTL)
	}

	rec := &store.ExtractionRecord{
		ID:          uuid.New(),
		UserID:      userID,
		ContentHash: contentHash,
		FilePath:    filename,
		ModelUsed:   extraction.ModelUsed,
		Result:      extraction,
	}
	if err := e.store.CreateExtraction(ctx, rec); err != nil {
		return nil, fmt.Errorf("persisting extraction: %w", err)
	}

	return &Result{
		Extraction: extraction,
		Validation: buildReport(&extraction),
		FilePath:   filename,
	}, nil
}

// callProvider runs the model under the inference budget, retrying once on
// timeout or invalid response.
func (e *Engine) callProvider(ctx context.Context, document []byte, filename string) (models.ExtractionResult, error) {
	req := models.ExtractRequest{Document: document, Filename: filename}

	attempt := func() (models.ExtractionResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		return e.provider.Extract(callCtx, req)
	}

	extraction, err := attempt()
	if err == nil {
		return extraction, nil
	}

	var provErr *models.ProviderError
	retryable := errors.As(err, &provErr) &&
		(provErr.Reason == models.ReasonTimeout || provErr.Reason == models.ReasonInvalidResponse)
	if !retryable || ctx.Err() != nil {
		return models.ExtractionResult{}, err
	}

	slog.Warn("retrying extraction after provider failure", "reason", provErr.Reason)
	return attempt()
}

// normalize enforces the never-fabricate contract regardless of provider:
// absent fields get zero confidence, nil evidence, and a not_found entry;
// a confidence claimed for an absent value is discarded with a warning.
func normalize(r *models.ExtractionResult) {
	if r.Requirements == nil {
		r.Requirements = []string{}
	}
	if r.LineItems == nil {
		r.LineItems = []models.LineItem{}
	}
	if r.Confidence == nil {
		r.Confidence = map[string]float64{}
	}
	if r.Evidence == nil {
		r.Evidence = map[string]*string{}
	}
	if r.Warnings == nil {
		r.Warnings = []string{}
	}

	notFound := map[string]bool{}
	for _, f := range r.NotFound {
		notFound[f] = true
	}

	for _, field := range models.ScalarFields {
		if r.ScalarPresent(field) {
			continue
		}
		if r.Confidence[field] > 0 {
			r.Warnings = append(r.Warnings,
				fmt.Sprintf("model claimed confidence for absent field %q; discarded", field))
		}
		r.Confidence[field] = 0
		r.Evidence[field] = nil
		if !notFound[field] {
			r.NotFound = append(r.NotFound, field)
			notFound[field] = true
		}
	}
	if r.NotFound == nil {
		r.NotFound = []string{}
	}
}

// OverallConfidence aggregates per-field confidences weighted by field
// importance. It is exactly 0 when every field is absent.
func OverallConfidence(r *models.ExtractionResult) float64 {
	fields := append(append([]string{}, models.ScalarFields...), models.FieldRequirements)

	var weighted, total float64
	anyFound := false
	for _, field := range fields {
		w := supportiveWeight
		if models.CriticalFields[field] {
			w = criticalWeight
		}
		c := r.Confidence[field]
		weighted += w * c
		total += w
		if c > 0 {
			anyFound = true
		}
	}
	if !anyFound || total == 0 {
		return 0
	}
	return weighted / total
}

// buildReport summarizes extraction quality for the caller.
func buildReport(r *models.ExtractionResult) Report {
	issues := []string{}
	for _, field := range models.ScalarFields {
		if models.CriticalFields[field] && !r.ScalarPresent(field) {
			issues = append(issues, fmt.Sprintf("critical field %q not found", field))
		}
	}
	return Report{
		Valid:          len(issues) == 0,
		Issues:         issues,
		RequiresReview: len(issues) > 0 || r.OverallConfidence < 0.6,
	}
}
