// Package mock implements a deterministic, offline AI provider. It needs no
// network or credentials and always returns schema-valid output for any
// non-empty input, so extraction and scoring are reproducible in tests and
// in offline deployments.
package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tenderlens/tenderlens/pkg/models"
)

const modelName = "mock-v1"

// Provider satisfies models.Provider with pure text heuristics.
// Identical input always produces identical output.
type Provider struct{}

func NewProvider() *Provider { return &Provider{} }

func (p *Provider) Name() string  { return "mock" }
func (p *Provider) Model() string { return modelName }

var _ models.Provider = (*Provider)(nil)

// Labeled-field patterns. Values are only ever taken from explicit labels;
// an unlabeled document yields nulls, never guesses.
var (
	entityRe   = regexp.MustCompile(`(?im)^\s*(?:entity|issuing authority|contracting authority|buyer)\s*:\s*(.+?)\s*$`)
	titleRe    = regexp.MustCompile(`(?im)^\s*(?:tender title|title|subject)\s*:\s*(.+?)\s*$`)
	numberRe   = regexp.MustCompile(`(?im)^\s*(?:tender (?:no|number|ref)|reference|ref)\.?\s*:\s*(.+?)\s*$`)
	deadlineRe = regexp.MustCompile(`(?im)^\s*(?:deadline|closing date|submission deadline|due date)\s*:\s*(.+?)\s*$`)
	valueRe    = regexp.MustCompile(`(?im)^\s*(?:estimated value|budget|contract value)\s*:\s*(.+?)\s*$`)
	descRe     = regexp.MustCompile(`(?im)^\s*description\s*:\s*(.+?)\s*$`)

	sectionHeaderRe = regexp.MustCompile(`(?im)^\s*requirements\s*:?\s*$`)
	itemsHeaderRe   = regexp.MustCompile(`(?im)^\s*(?:line items|items)\s*:?\s*$`)
	bulletRe        = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*(.+?)\s*$`)
	quantityRe      = regexp.MustCompile(`^(.*?)\s*[x×]\s*(\d+(?:\.\d+)?)\s*(\w+)?\s*$`)
	numberValueRe   = regexp.MustCompile(`[\d][\d,.]*`)

	dateRe = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}[./]\d{1,2}[./]\d{4}\b`)
)

// Red-flag phrases the mock scans for during analysis.
var redFlagPhrases = []struct {
	needle string
	flag   string
}{
	{"liquidated damages", "Liquidated damages clause"},
	{"penalty", "Penalty clause in terms"},
	{"no extension", "Deadline extension excluded"},
	{"bank guarantee", "Bank guarantee required"},
	{"sole discretion", "Award at buyer's sole discretion"},
	{"blacklist", "Blacklisting risk on non-performance"},
}

// Extract parses labeled fields out of the document text.
func (p *Provider) Extract(_ context.Context, req models.ExtractRequest) (models.ExtractionResult, error) {
	text := string(req.Document)
	if strings.TrimSpace(text) == "" {
		return models.ExtractionResult{}, models.ProviderInvalidResponse(fmt.Errorf("empty document"))
	}

	out := models.ExtractionResult{
		Requirements: []string{},
		LineItems:    []models.LineItem{},
		Confidence:   map[string]float64{},
		Evidence:     map[string]*string{},
		Warnings:     []string{},
		NotFound:     []string{},
		ModelUsed:    modelName,
	}

	out.Entity = capture(text, entityRe, models.FieldEntity, &out)
	out.TenderTitle = capture(text, titleRe, models.FieldTenderTitle, &out)
	out.TenderNumber = capture(text, numberRe, models.FieldTenderNumber, &out)
	out.Deadline = capture(text, deadlineRe, models.FieldDeadline, &out)
	out.Description = capture(text, descRe, models.FieldDescription, &out)

	if m := valueRe.FindStringSubmatch(text); m != nil {
		if v, ok := parseMoney(m[1]); ok {
			line := strings.TrimSpace(m[0])
			out.EstimatedValue = &v
			out.Confidence[models.FieldEstimatedValue] = 0.9
			out.Evidence[models.FieldEstimatedValue] = &line
		} else {
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("estimated value label found but not parseable: %q", strings.TrimSpace(m[1])))
			markMissing(models.FieldEstimatedValue, &out)
		}
	} else {
		markMissing(models.FieldEstimatedValue, &out)
	}

	reqs, sectionFound := sectionBullets(text, sectionHeaderRe)
	out.Requirements = reqs
	if !sectionFound {
		// Header absent entirely: the field was not found. A present but
		// empty section stays out of not_found.
		markMissing(models.FieldRequirements, &out)
	} else {
		out.Confidence[models.FieldRequirements] = 0.85
		if len(reqs) == 0 {
			out.Warnings = append(out.Warnings, "requirements section is present but empty")
		}
	}

	items, _ := sectionBullets(text, itemsHeaderRe)
	for _, item := range items {
		out.LineItems = append(out.LineItems, parseLineItem(item))
	}

	// OverallConfidence is aggregated by the extraction engine, which owns
	// the field-importance weighting for every provider.
	return out, nil
}

// Analyze scores tender text against the supplied criteria. Per-criterion
// scores are derived from an FNV hash of (criterion, text) so the output is
// stable across calls but varies plausibly between documents.
func (p *Provider) Analyze(_ context.Context, req models.AnalyzeRequest) (models.AnalysisResult, error) {
	if strings.TrimSpace(req.TenderText) == "" {
		return models.AnalysisResult{}, models.ProviderInvalidResponse(fmt.Errorf("empty tender text"))
	}

	result := models.AnalysisResult{
		Scores:    make(map[string]models.CategoryScore, len(req.Weights)),
		RedFlags:  []string{},
		KeyDates:  []string{},
		ModelUsed: modelName,
	}

	criteria := req.Weights.Criteria()
	sort.Strings(criteria)
	for _, name := range criteria {
		score := derivedScore(name, req.TenderText)
		result.Scores[name] = models.CategoryScore{
			Score:     score,
			Reasoning: fmt.Sprintf("Heuristic %s score %.0f based on document content", name, score),
		}
	}

	lower := strings.ToLower(req.TenderText)
	for _, rf := range redFlagPhrases {
		if strings.Contains(lower, rf.needle) {
			result.RedFlags = append(result.RedFlags, rf.flag)
		}
	}

	for _, d := range dateRe.FindAllString(req.TenderText, 8) {
		result.KeyDates = append(result.KeyDates, d)
	}

	return result, nil
}

// derivedScore maps hash(criterion|text) into [35, 95].
func derivedScore(criterion, text string) float64 {
	h := fnv.New32a()
	h.Write([]byte(criterion))
	h.Write([]byte{'|'})
	h.Write([]byte(text))
	return 35 + float64(h.Sum32()%61)
}

func capture(text string, re *regexp.Regexp, field string, out *models.ExtractionResult) *string {
	m := re.FindStringSubmatch(text)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		markMissing(field, out)
		return nil
	}
	val := strings.TrimSpace(m[1])
	line := strings.TrimSpace(m[0])
	out.Confidence[field] = 0.9
	out.Evidence[field] = &line
	return &val
}

func markMissing(field string, out *models.ExtractionResult) {
	out.Confidence[field] = 0
	out.Evidence[field] = nil
	out.NotFound = append(out.NotFound, field)
}

// sectionBullets returns the bullet lines under a section header, stopping
// at the first blank line or non-bullet line. The second return reports
// whether the header itself was present.
func sectionBullets(text string, headerRe *regexp.Regexp) ([]string, bool) {
	loc := headerRe.FindStringIndex(text)
	if loc == nil {
		return []string{}, false
	}
	rest := text[loc[1]:]
	lines := strings.Split(rest, "\n")
	items := []string{}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if len(items) > 0 {
				break
			}
			continue
		}
		m := bulletRe.FindStringSubmatch(line)
		if m == nil {
			break
		}
		items = append(items, m[1])
	}
	return items, true
}

func parseLineItem(item string) models.LineItem {
	if m := quantityRe.FindStringSubmatch(item); m != nil {
		qty, err := strconv.ParseFloat(m[2], 64)
		if err == nil {
			li := models.LineItem{Description: strings.TrimSpace(m[1]), Quantity: &qty, Confidence: 0.85}
			if m[3] != "" {
				unit := m[3]
				li.Unit = &unit
			}
			return li
		}
	}
	return models.LineItem{Description: item, Confidence: 0.6}
}

func parseMoney(s string) (float64, bool) {
	m := numberValueRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
