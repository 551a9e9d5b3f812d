// Package schema validates and normalizes AI model output before it is
// allowed to cross an engine boundary.
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tenderlens/tenderlens/pkg/models"
)

// ValidationError carries every violated field, not just the first, so
// callers can decide between retrying the model call and surfacing a
// partial result.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "schema validation failed: " + strings.Join(e.Violations, "; ")
}

// AnalysisPayload is the validated, normalized shape of a model's scoring
// response. Recommendation and status are derived later by the scoring
// engine, never taken from the model.
type AnalysisPayload struct {
	Scores   map[string]models.CategoryScore
	RedFlags []string
	KeyDates []string
}

var validRecommendations = map[string]bool{
	models.RecommendationPursue: true,
	models.RecommendationReview: true,
	models.RecommendationSkip:   true,
}

var validStatuses = map[string]bool{
	models.AnalysisStatusPending:   true,
	models.AnalysisStatusAnalyzing: true,
	models.AnalysisStatusCompleted: true,
	models.AnalysisStatusFailed:    true,
}

var validTiers = map[string]bool{
	models.TierHigh:   true,
	models.TierMedium: true,
	models.TierLow:    true,
}

// ValidateAnalysisPayload checks a decoded model response against the
// scoring shape. The scores map must carry exactly the criteria of the
// weight configuration; scores must lie in [0,100]. Array fields default
// to empty slices when absent. Pure function.
func ValidateAnalysisPayload(raw map[string]any, weights models.WeightConfig) (AnalysisPayload, error) {
	var violations []string
	out := AnalysisPayload{
		Scores:   make(map[string]models.CategoryScore, len(weights)),
		RedFlags: []string{},
		KeyDates: []string{},
	}

	if raw == nil {
		return out, &ValidationError{Violations: []string{"payload: not a JSON object"}}
	}

	scoresRaw, ok := raw["scores"].(map[string]any)
	if !ok {
		violations = append(violations, "scores: required object missing")
	} else {
		for name := range weights {
			entry, ok := scoresRaw[name]
			if !ok {
				violations = append(violations, fmt.Sprintf("scores.%s: missing criterion", name))
				continue
			}
			cs, errs := parseCategoryScore(name, entry)
			violations = append(violations, errs...)
			out.Scores[name] = cs
		}
		for name := range scoresRaw {
			if _, ok := weights[name]; !ok {
				violations = append(violations, fmt.Sprintf("scores.%s: criterion not in weight configuration", name))
			}
		}
	}

	out.RedFlags = append(out.RedFlags, stringSlice(raw, "red_flags", &violations)...)
	out.KeyDates = append(out.KeyDates, stringSlice(raw, "key_dates", &violations)...)

	// Models sometimes echo derived enums back; if present they must at
	// least belong to their closed sets.
	checkEnum(raw, "recommendation", validRecommendations, &violations)
	checkEnum(raw, "status", validStatuses, &violations)
	checkEnum(raw, "confidence", validTiers, &violations)

	if len(violations) > 0 {
		return out, &ValidationError{Violations: violations}
	}
	return out, nil
}

// ValidateExtractionPayload checks a decoded model response against the
// extraction shape and normalizes it into an ExtractionResult skeleton.
// Per-field confidences must lie in [0,1]; array fields default to empty
// slices; nullable scalars stay nil unless clearly present. Pure function.
func ValidateExtractionPayload(raw map[string]any) (models.ExtractionResult, error) {
	var violations []string
	out := models.ExtractionResult{
		Requirements: []string{},
		LineItems:    []models.LineItem{},
		Confidence:   map[string]float64{},
		Evidence:     map[string]*string{},
		Warnings:     []string{},
		NotFound:     []string{},
	}

	if raw == nil {
		return out, &ValidationError{Violations: []string{"payload: not a JSON object"}}
	}

	out.Entity = nullableString(raw, models.FieldEntity, &violations)
	out.TenderTitle = nullableString(raw, models.FieldTenderTitle, &violations)
	out.TenderNumber = nullableString(raw, models.FieldTenderNumber, &violations)
	out.Deadline = nullableString(raw, models.FieldDeadline, &violations)
	out.Description = nullableString(raw, models.FieldDescription, &violations)
	out.EstimatedValue = nullableNumber(raw, models.FieldEstimatedValue, &violations)

	out.Requirements = append(out.Requirements, stringSlice(raw, "requirements", &violations)...)

	if items, ok := raw["line_items"]; ok && items != nil {
		list, ok := items.([]any)
		if !ok {
			violations = append(violations, "line_items: must be an array")
		} else {
			for i, item := range list {
				li, errs := parseLineItem(i, item)
				violations = append(violations, errs...)
				if li != nil {
					out.LineItems = append(out.LineItems, *li)
				}
			}
		}
	}

	if confRaw, ok := raw["confidence"].(map[string]any); ok {
		for field, v := range confRaw {
			f, ok := asFloat(v)
			if !ok {
				violations = append(violations, fmt.Sprintf("confidence.%s: must be a number", field))
				continue
			}
			if f < 0 || f > 1 {
				violations = append(violations, fmt.Sprintf("confidence.%s: %g outside [0,1]", field, f))
				continue
			}
			out.Confidence[field] = f
		}
	} else if _, present := raw["confidence"]; present && raw["confidence"] != nil {
		violations = append(violations, "confidence: must be an object")
	}

	if evRaw, ok := raw["evidence"].(map[string]any); ok {
		for field, v := range evRaw {
			if v == nil {
				out.Evidence[field] = nil
				continue
			}
			s, ok := v.(string)
			if !ok {
				violations = append(violations, fmt.Sprintf("evidence.%s: must be a string or null", field))
				continue
			}
			out.Evidence[field] = &s
		}
	}

	if len(violations) > 0 {
		return out, &ValidationError{Violations: violations}
	}
	return out, nil
}

func parseCategoryScore(name string, entry any) (models.CategoryScore, []string) {
	var errs []string
	var cs models.CategoryScore

	obj, ok := entry.(map[string]any)
	if !ok {
		return cs, []string{fmt.Sprintf("scores.%s: must be an object", name)}
	}

	score, ok := asFloat(obj["score"])
	if !ok {
		errs = append(errs, fmt.Sprintf("scores.%s.score: must be a number", name))
	} else if score < 0 || score > 100 {
		errs = append(errs, fmt.Sprintf("scores.%s.score: %g outside [0,100]", name, score))
	} else {
		cs.Score = score
	}

	if reasoning, ok := obj["reasoning"].(string); ok {
		cs.Reasoning = reasoning
	}
	return cs, errs
}

func parseLineItem(idx int, entry any) (*models.LineItem, []string) {
	obj, ok := entry.(map[string]any)
	if !ok {
		return nil, []string{fmt.Sprintf("line_items[%d]: must be an object", idx)}
	}

	var errs []string
	li := models.LineItem{}

	desc, ok := obj["description"].(string)
	if !ok || strings.TrimSpace(desc) == "" {
		errs = append(errs, fmt.Sprintf("line_items[%d].description: required string missing", idx))
	}
	li.Description = desc

	if q, present := obj["quantity"]; present && q != nil {
		f, ok := asFloat(q)
		if !ok {
			errs = append(errs, fmt.Sprintf("line_items[%d].quantity: must be a number", idx))
		} else {
			li.Quantity = &f
		}
	}
	if u, present := obj["unit"]; present && u != nil {
		s, ok := u.(string)
		if !ok {
			errs = append(errs, fmt.Sprintf("line_items[%d].unit: must be a string", idx))
		} else {
			li.Unit = &s
		}
	}

	conf, ok := asFloat(obj["confidence"])
	if !ok {
		errs = append(errs, fmt.Sprintf("line_items[%d].confidence: must be a number", idx))
	} else if conf < 0 || conf > 1 {
		errs = append(errs, fmt.Sprintf("line_items[%d].confidence: %g outside [0,1]", idx, conf))
	} else {
		li.Confidence = conf
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return &li, nil
}

func nullableString(raw map[string]any, field string, violations *[]string) *string {
	v, present := raw[field]
	if !present || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		*violations = append(*violations, fmt.Sprintf("%s: must be a string or null", field))
		return nil
	}
	if strings.TrimSpace(s) == "" {
		// Empty string never means "found"; normalize to absent.
		return nil
	}
	return &s
}

func nullableNumber(raw map[string]any, field string, violations *[]string) *float64 {
	v, present := raw[field]
	if !present || v == nil {
		return nil
	}
	if f, ok := asFloat(v); ok {
		return &f
	}
	// Models occasionally return numeric fields as quoted strings;
	// coerce rather than reject.
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64); err == nil {
			return &f
		}
	}
	*violations = append(*violations, fmt.Sprintf("%s: must be a number or null", field))
	return nil
}

func stringSlice(raw map[string]any, field string, violations *[]string) []string {
	v, present := raw[field]
	if !present || v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		*violations = append(*violations, fmt.Sprintf("%s: must be an array", field))
		return nil
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			*violations = append(*violations, fmt.Sprintf("%s[%d]: must be a string", field, i))
			continue
		}
		out = append(out, s)
	}
	return out
}

func checkEnum(raw map[string]any, field string, valid map[string]bool, violations *[]string) {
	v, present := raw[field]
	if !present || v == nil {
		return
	}
	s, ok := v.(string)
	if !ok || !valid[s] {
		*violations = append(*violations, fmt.Sprintf("%s: %v not in closed set", field, v))
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
