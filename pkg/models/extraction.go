package models

// Canonical field names used as keys in confidence/evidence maps and in
// not_found lists. Extraction output never invents keys outside this set
// plus the criteria of the active weight configuration.
const (
	FieldEntity         = "entity"
	FieldTenderTitle    = "tender_title"
	FieldTenderNumber   = "tender_number"
	FieldDeadline       = "deadline"
	FieldEstimatedValue = "estimated_value"
	FieldDescription    = "description"
	FieldRequirements   = "requirements"
)

// ScalarFields lists the nullable scalar extraction fields in report order.
var ScalarFields = []string{
	FieldEntity,
	FieldTenderTitle,
	FieldTenderNumber,
	FieldDeadline,
	FieldEstimatedValue,
	FieldDescription,
}

// CriticalFields are the fields whose absence must depress overall
// confidence below any actionable threshold.
var CriticalFields = map[string]bool{
	FieldTenderTitle:    true,
	FieldEntity:         true,
	FieldDeadline:       true,
	FieldEstimatedValue: true,
}

// LineItem is a single priced/quantified row extracted from a tender.
type LineItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	Unit        *string  `json:"unit,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// ExtractionResult is the structured output of one extraction attempt.
// Nil pointer means "not found", never an empty string or zero value, so
// callers can distinguish "found as zero" from "absent". Immutable after
// return; a fresh extraction replaces, never patches, a prior one.
type ExtractionResult struct {
	Entity         *string  `json:"entity"`
	TenderTitle    *string  `json:"tender_title"`
	TenderNumber   *string  `json:"tender_number"`
	Deadline       *string  `json:"deadline"`
	EstimatedValue *float64 `json:"estimated_value"`
	Description    *string  `json:"description"`

	// Requirements preserves document order. Empty section and absent
	// section both yield an empty slice, never nil in serialized form.
	Requirements []string   `json:"requirements"`
	LineItems    []LineItem `json:"line_items"`

	Confidence        map[string]float64 `json:"confidence"`
	Evidence          map[string]*string `json:"evidence"`
	OverallConfidence float64            `json:"overall_confidence"`

	Warnings []string `json:"warnings"`
	NotFound []string `json:"not_found"`

	Cached           bool   `json:"cached"`
	ModelUsed        string `json:"model_used"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// ScalarPresent reports whether a named scalar field was found.
func (r *ExtractionResult) ScalarPresent(field string) bool {
	switch field {
	case FieldEntity:
		return r.Entity != nil
	case FieldTenderTitle:
		return r.TenderTitle != nil
	case FieldTenderNumber:
		return r.TenderNumber != nil
	case FieldDeadline:
		return r.Deadline != nil
	case FieldEstimatedValue:
		return r.EstimatedValue != nil
	case FieldDescription:
		return r.Description != nil
	}
	return false
}
