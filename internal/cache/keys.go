package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// ExtractionKey addresses a cached extraction result. The key is the
// content hash of the document plus the model that produced the result,
// never the filename, so renamed re-uploads still hit.
func ExtractionKey(model, contentHash string) string {
	return fmt.Sprintf("extract:%s:%s", model, contentHash)
}

func AnalysisStatusKey(analysisID uuid.UUID) string {
	return fmt.Sprintf("analysis:%s", analysisID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
