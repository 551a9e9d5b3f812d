// Package anthropic implements models.Provider using the Anthropic messages API.
package anthropic

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

const (
	messagesURL = "https://api.anthropic.com/v1/messages"
	apiVersion  = "2023-06-01"
	maxTokens   = 4096
)

// Provider implements models.Provider using Anthropic.
type Provider struct {
	cfg      config.AnthropicConfig
	maxChars int
	client   *http.Client
	builder  prompt.Builder
}

func NewProvider(cfg config.AnthropicConfig, promptMaxChars int) *Provider {
	return &Provider{cfg: cfg, maxChars: promptMaxChars, client: &http.Client{}}
}

func (p *Provider) Name() string  { return "anthropic" }
func (p *Provider) Model() string { return p.cfg.Model }

func (p *Provider) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalysisResult, error) {
	raw, err := p.complete(ctx, p.builder.BuildAnalysisPrompt(prompt.AnalysisParams{
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
	raw, err := p.complete(ctx, p.builder.BuildExtractionPrompt(prompt.ExtractionParams{
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

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *Provider) complete(ctx context.Context, promptText string) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: promptText}},
	})
	if err != nil {
		return "", models.ProviderUnknown(fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, messagesURL, bytes.NewReader(body))
	if err != nil {
		return "", models.ProviderUnknown(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", models.ProviderTimeout(err)
		}
		return "", models.ProviderUnknown(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", models.ProviderAuthFailure(fmt.Errorf("anthropic returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", models.ProviderUnknown(fmt.Errorf("anthropic returned %d: %s", resp.StatusCode, snippet))
	}

	var parsed messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", models.ProviderInvalidResponse(fmt.Errorf("decode response: %w", err))
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", models.ProviderInvalidResponse(fmt.Errorf("no text content in response"))
}

var _ models.Provider = (*Provider)(nil)
