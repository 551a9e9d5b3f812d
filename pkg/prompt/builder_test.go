package prompt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tenderlens/tenderlens/pkg/prompt"
)

func TestBuildAnalysisPrompt_IncludesCriteriaSorted(t *testing.T) {
	var b prompt.Builder
	out := b.BuildAnalysisPrompt(prompt.AnalysisParams{
		TenderText: "tender body",
		Criteria:   map[string]float64{"timeline": 10, "budgetFit": 25, "relevance": 30},
	})

	assert.Contains(t, out, "- budgetFit (weight 25)")
	assert.Contains(t, out, "- relevance (weight 30)")
	assert.Contains(t, out, "- timeline (weight 10)")
	assert.Less(t, strings.Index(out, "budgetFit"), strings.Index(out, "relevance"))
	assert.Less(t, strings.Index(out, "relevance"), strings.Index(out, "timeline"))
	assert.Contains(t, out, "tender body")
	assert.Contains(t, out, `"scores"`)
}

func TestBuildAnalysisPrompt_Deterministic(t *testing.T) {
	var b prompt.Builder
	params := prompt.AnalysisParams{
		TenderText: "same text",
		Criteria:   map[string]float64{"a": 1, "b": 2, "c": 3, "d": 4},
	}
	assert.Equal(t, b.BuildAnalysisPrompt(params), b.BuildAnalysisPrompt(params))
}

func TestBuildAnalysisPrompt_TruncatesTenderText(t *testing.T) {
	var b prompt.Builder
	long := strings.Repeat("x", 500)
	out := b.BuildAnalysisPrompt(prompt.AnalysisParams{
		TenderText: long,
		Criteria:   map[string]float64{"a": 1},
		MaxChars:   100,
	})

	assert.NotContains(t, out, strings.Repeat("x", 101))
	assert.Contains(t, out, strings.Repeat("x", 100))
}

func TestBuildExtractionPrompt_ContractShape(t *testing.T) {
	var b prompt.Builder
	out := b.BuildExtractionPrompt(prompt.ExtractionParams{Document: "doc body"})

	assert.Contains(t, out, "doc body")
	assert.Contains(t, out, `"tender_number"`)
	assert.Contains(t, out, `"line_items"`)
	assert.Contains(t, out, "Use null for any field the document does not clearly state")
}

func TestBuildExtractionPrompt_NoTruncationWhenUnlimited(t *testing.T) {
	var b prompt.Builder
	long := strings.Repeat("y", 2000)
	out := b.BuildExtractionPrompt(prompt.ExtractionParams{Document: long, MaxChars: 0})
	assert.Contains(t, out, long)
}
