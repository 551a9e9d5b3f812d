// Package prompt constructs the prompts sent to AI providers.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Builder constructs prompts for analysis and extraction calls.
// All methods are pure functions with no side effects.
// Zero value is ready to use.
type Builder struct{}

// AnalysisParams defines inputs for a scoring prompt.
type AnalysisParams struct {
	TenderText string
	Criteria   map[string]float64
	MaxChars   int
}

// ExtractionParams defines inputs for an extraction prompt.
type ExtractionParams struct {
	Document string
	MaxChars int
}

// BuildAnalysisPrompt returns the scoring prompt. The criterion list is
// rendered sorted so identical inputs always produce identical prompts.
func (b Builder) BuildAnalysisPrompt(p AnalysisParams) string {
	var sb strings.Builder
	sb.WriteString("You are a bid analyst scoring a government tender against weighted criteria.\n\n")
	sb.WriteString("Criteria and weights:\n")
	for _, name := range sortedKeys(p.Criteria) {
		fmt.Fprintf(&sb, "- %s (weight %g)\n", name, p.Criteria[name])
	}
	sb.WriteString("\nScore every criterion from 0 to 100 and explain each score in one sentence.\n")
	sb.WriteString("List red flags (penalty clauses, unrealistic deadlines, unclear scope) and key dates.\n\n")
	sb.WriteString("Return only a JSON object of this exact shape:\n")
	sb.WriteString(`{"scores": {"<criterion>": {"score": 0-100, "reasoning": "..."}}, "red_flags": ["..."], "key_dates": ["..."]}`)
	sb.WriteString("\n\nTender text:\n")
	sb.WriteString(truncate(p.TenderText, p.MaxChars))
	return sb.String()
}

// BuildExtractionPrompt returns the field-extraction prompt.
func (b Builder) BuildExtractionPrompt(p ExtractionParams) string {
	var sb strings.Builder
	sb.WriteString("You are a procurement assistant extracting structured fields from a tender document.\n\n")
	sb.WriteString("Extract: entity, tender_title, tender_number, deadline, estimated_value, description,\n")
	sb.WriteString("requirements (in document order), line_items.\n")
	sb.WriteString("Use null for any field the document does not clearly state. Never guess.\n")
	sb.WriteString("For each field give a confidence between 0 and 1 and the source excerpt as evidence.\n\n")
	sb.WriteString("Return only a JSON object of this exact shape:\n")
	sb.WriteString(`{"entity": ..., "tender_title": ..., "tender_number": ..., "deadline": ..., ` +
		`"estimated_value": ..., "description": ..., "requirements": [...], ` +
		`"line_items": [{"description": "...", "quantity": ..., "unit": ..., "confidence": 0-1}], ` +
		`"confidence": {"<field>": 0-1}, "evidence": {"<field>": "..."}}`)
	sb.WriteString("\n\nDocument:\n")
	sb.WriteString(truncate(p.Document, p.MaxChars))
	return sb.String()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	return s[:maxChars]
}
