package schema

import (
	"fmt"

	"github.com/tenderlens/tenderlens/pkg/models"
)

// ParseAnalysis turns raw model text into a validated analysis payload.
// If the text does not decode or validate directly, exactly one structural
// repair pass (CoerceObject) is attempted before giving up.
func ParseAnalysis(raw string, weights models.WeightConfig) (AnalysisPayload, error) {
	if obj, ok := DecodeObject(raw); ok {
		if payload, err := ValidateAnalysisPayload(obj, weights); err == nil {
			return payload, nil
		}
	}
	obj, ok := CoerceObject(raw)
	if !ok {
		return AnalysisPayload{}, fmt.Errorf("response is not a JSON object")
	}
	return ValidateAnalysisPayload(obj, weights)
}

// ParseExtraction is the extraction counterpart of ParseAnalysis.
func ParseExtraction(raw string) (models.ExtractionResult, error) {
	if obj, ok := DecodeObject(raw); ok {
		if result, err := ValidateExtractionPayload(obj); err == nil {
			return result, nil
		}
	}
	obj, ok := CoerceObject(raw)
	if !ok {
		return models.ExtractionResult{}, fmt.Errorf("response is not a JSON object")
	}
	return ValidateExtractionPayload(obj)
}
