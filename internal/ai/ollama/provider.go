// Package ollama implements models.Provider against a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tenderlens/tenderlens/internal/config"
	"github.com/tenderlens/tenderlens/internal/schema"
	"github.com/tenderlens/tenderlens/pkg/models"
	"github.com/tenderlens/tenderlens/pkg/prompt"
)

// Provider implements models.Provider using Ollama.
type Provider struct {
	cfg      config.OllamaConfig
	maxChars int
	client   *http.Client
	builder  prompt.Builder
}

func NewProvider(cfg config.OllamaConfig, promptMaxChars int) *Provider {
	return &Provider{cfg: cfg, maxChars: promptMaxChars, client: &http.Client{}}
}

func (p *Provider) Name() string  { return "ollama" }
func (p *Provider) Model() string { return p.cfg.Model }

func (p *Provider) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalysisResult, error) {
	raw, err := p.generate(ctx, p.builder.BuildAnalysisPrompt(prompt.AnalysisParams{
		TenderText: req.TenderText,
		Criteria:   req.Weights,
		MaxChars:   p.maxChars,
	}))
	if err != nil {
		return models.AnalysisResult{}, err
	}
	payload, err := schema.ParseAnalysis(raw, req.Weights)
	if err != nil {
		return models.AnalysisResult{}, models.ProviderInvalidResponse(err)
	}
	return models.AnalysisResult{
		Scores:    payload.Scores,
		RedFlags:  payload.RedFlags,
		KeyDates:  payload.KeyDates,
		ModelUsed: p.cfg.Model,
	}, nil
}

func (p *Provider) Extract(ctx context.Context, req models.ExtractRequest) (models.ExtractionResult, error) {
	raw, err := p.generate(ctx, p.builder.BuildExtractionPrompt(prompt.ExtractionParams{
		Document: string(req.Document),
		MaxChars: p.maxChars,
	}))
	if err != nil {
		return models.ExtractionResult{}, err
	}
	result, err := schema.ParseExtraction(raw)
	if err != nil {
		return models.ExtractionResult{}, models.ProviderInvalidResponse(err)
	}
	result.ModelUsed = p.cfg.Model
	return result, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (p *Provider) generate(ctx context.Context, promptText string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  p.cfg.Model,
		Prompt: promptText,
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return "", models.ProviderUnknown(fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", models.ProviderUnknown(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", models.ProviderTimeout(err)
		}
		return "", models.ProviderUnknown(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", models.ProviderUnknown(fmt.Errorf("ollama returned %d: %s", resp.StatusCode, snippet))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", models.ProviderInvalidResponse(fmt.Errorf("decode response: %w", err))
	}
	return parsed.Response, nil
}

var _ models.Provider = (*Provider)(nil)
