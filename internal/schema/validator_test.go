package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenderlens/tenderlens/internal/schema"
	"github.com/tenderlens/tenderlens/pkg/models"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &obj))
	return obj
}

var testWeights = models.WeightConfig{"relevance": 60, "timeline": 40}

// --- ValidateAnalysisPayload ---

func TestValidateAnalysis_Valid(t *testing.T) {
	raw := decode(t, `{
		"scores": {
			"relevance": {"score": 80, "reasoning": "strong match"},
			"timeline": {"score": 55, "reasoning": "tight"}
		},
		"red_flags": ["penalty clause"],
		"key_dates": ["2026-10-15"]
	}`)

	payload, err := schema.ValidateAnalysisPayload(raw, testWeights)
	require.NoError(t, err)
	assert.Equal(t, 80.0, payload.Scores["relevance"].Score)
	assert.Equal(t, "tight", payload.Scores["timeline"].Reasoning)
	assert.Equal(t, []string{"penalty clause"}, payload.RedFlags)
	assert.Equal(t, []string{"2026-10-15"}, payload.KeyDates)
}

func TestValidateAnalysis_ArraysDefaultToEmpty(t *testing.T) {
	raw := decode(t, `{
		"scores": {
			"relevance": {"score": 80, "reasoning": ""},
			"timeline": {"score": 55, "reasoning": ""}
		}
	}`)

	payload, err := schema.ValidateAnalysisPayload(raw, testWeights)
	require.NoError(t, err)
	assert.NotNil(t, payload.RedFlags)
	assert.Empty(t, payload.RedFlags)
	assert.NotNil(t, payload.KeyDates)
	assert.Empty(t, payload.KeyDates)
}

func TestValidateAnalysis_EnumeratesAllViolations(t *testing.T) {
	raw := decode(t, `{
		"scores": {
			"relevance": {"score": 120, "reasoning": "x"},
			"invented": {"score": 10, "reasoning": "y"}
		},
		"recommendation": "maybe"
	}`)

	_, err := schema.ValidateAnalysisPayload(raw, testWeights)
	var valErr *schema.ValidationError
	require.ErrorAs(t, err, &valErr)

	assert.Contains(t, valErr.Violations, "scores.relevance.score: 120 outside [0,100]")
	assert.Contains(t, valErr.Violations, "scores.timeline: missing criterion")
	assert.Contains(t, valErr.Violations, "scores.invented: criterion not in weight configuration")
	assert.Contains(t, valErr.Violations, "recommendation: maybe not in closed set")
	assert.Len(t, valErr.Violations, 4)
}

func TestValidateAnalysis_MissingScores(t *testing.T) {
	_, err := schema.ValidateAnalysisPayload(decode(t, `{"red_flags": []}`), testWeights)
	var valErr *schema.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Violations, "scores: required object missing")
}

func TestValidateAnalysis_NilPayload(t *testing.T) {
	_, err := schema.ValidateAnalysisPayload(nil, testWeights)
	var valErr *schema.ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestValidateAnalysis_EchoedEnumsAccepted(t *testing.T) {
	raw := decode(t, `{
		"scores": {
			"relevance": {"score": 70, "reasoning": ""},
			"timeline": {"score": 70, "reasoning": ""}
		},
		"recommendation": "pursue",
		"status": "completed",
		"confidence": "medium"
	}`)

	_, err := schema.ValidateAnalysisPayload(raw, testWeights)
	assert.NoError(t, err)
}

// --- ValidateExtractionPayload ---

func TestValidateExtraction_Valid(t *testing.T) {
	raw := decode(t, `{
		"entity": "Ministry of Works",
		"tender_title": "Road Maintenance",
		"deadline": "2026-10-15",
		"estimated_value": 1250000,
		"requirements": ["ISO 9001"],
		"line_items": [{"description": "Asphalt", "quantity": 120, "unit": "km", "confidence": 0.8}],
		"confidence": {"entity": 0.9, "deadline": 0.85},
		"evidence": {"entity": "Entity: Ministry of Works", "deadline": null}
	}`)

	out, err := schema.ValidateExtractionPayload(raw)
	require.NoError(t, err)
	require.NotNil(t, out.Entity)
	assert.Equal(t, "Ministry of Works", *out.Entity)
	require.NotNil(t, out.EstimatedValue)
	assert.Equal(t, 1250000.0, *out.EstimatedValue)
	assert.Nil(t, out.TenderNumber)
	require.Len(t, out.LineItems, 1)
	assert.Equal(t, 0.8, out.LineItems[0].Confidence)
	assert.Nil(t, out.Evidence["deadline"])
	require.NotNil(t, out.Evidence["entity"])
}

func TestValidateExtraction_EmptyStringMeansAbsent(t *testing.T) {
	out, err := schema.ValidateExtractionPayload(decode(t, `{"entity": "  ", "tender_title": ""}`))
	require.NoError(t, err)
	assert.Nil(t, out.Entity)
	assert.Nil(t, out.TenderTitle)
}

func TestValidateExtraction_NumericStringCoerced(t *testing.T) {
	out, err := schema.ValidateExtractionPayload(decode(t, `{"estimated_value": "1,250,000.50"}`))
	require.NoError(t, err)
	require.NotNil(t, out.EstimatedValue)
	assert.Equal(t, 1250000.50, *out.EstimatedValue)
}

func TestValidateExtraction_ConfidenceBounds(t *testing.T) {
	raw := decode(t, `{"confidence": {"entity": 1.5, "deadline": -0.1, "description": "high"}}`)

	_, err := schema.ValidateExtractionPayload(raw)
	var valErr *schema.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Violations, "confidence.entity: 1.5 outside [0,1]")
	assert.Contains(t, valErr.Violations, "confidence.deadline: -0.1 outside [0,1]")
	assert.Contains(t, valErr.Violations, "confidence.description: must be a number")
}

func TestValidateExtraction_ArraysDefaultToEmpty(t *testing.T) {
	out, err := schema.ValidateExtractionPayload(decode(t, `{}`))
	require.NoError(t, err)
	assert.NotNil(t, out.Requirements)
	assert.Empty(t, out.Requirements)
	assert.NotNil(t, out.LineItems)
	assert.Empty(t, out.LineItems)
}

func TestValidateExtraction_BadLineItem(t *testing.T) {
	raw := decode(t, `{"line_items": [{"quantity": "many", "confidence": 2}]}`)

	_, err := schema.ValidateExtractionPayload(raw)
	var valErr *schema.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Violations, "line_items[0].description: required string missing")
	assert.Contains(t, valErr.Violations, "line_items[0].quantity: must be a number")
	assert.Contains(t, valErr.Violations, "line_items[0].confidence: 2 outside [0,1]")
}
