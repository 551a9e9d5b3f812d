package models

// WeightConfig maps criterion name to a non-negative weight. Weights need
// not sum to 100; the scoring engine normalizes the total internally.
type WeightConfig map[string]float64

// Total returns the sum of all weights.
func (w WeightConfig) Total() float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	return total
}

// Criteria returns the criterion names in unspecified order.
func (w WeightConfig) Criteria() []string {
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	return names
}

// DefaultWeights is the stock rubric applied when a scoring request carries
// no explicit configuration. Thresholds that turn the weighted score into a
// recommendation live in config.ScoringThresholds.
var DefaultWeights = WeightConfig{
	"relevance":   30,
	"budgetFit":   25,
	"feasibility": 20,
	"competition": 15,
	"timeline":    10,
}
