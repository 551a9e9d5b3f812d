// Package openai implements models.Provider using the OpenAI chat API.
package openai

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

const chatCompletionsURL = "https://api.openai.com/v1/chat/completions"

// Provider implements models.Provider using OpenAI.
type Provider struct {
	cfg      config.OpenAIConfig
	maxChars int
	client   *http.Client
	builder  prompt.Builder
}

func NewProvider(cfg config.OpenAIConfig, promptMaxChars int) *Provider {
	return &Provider{cfg: cfg, maxChars: promptMaxChars, client: &http.Client{}}
}

func (p *Provider) Name() string  { return "openai" }
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

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete sends one chat completion request and returns the raw model text.
// The caller's context carries the inference deadline.
func (p *Provider) complete(ctx context.Context, promptText string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:          p.cfg.Model,
		Messages:       []chatMessage{{Role: "user", Content: promptText}},
		Temperature:    0,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return "", models.ProviderUnknown(fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, chatCompletionsURL, bytes.NewReader(body))
	if err != nil {
		return "", models.ProviderUnknown(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", models.ProviderTimeout(err)
		}
		return "", models.ProviderUnknown(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", models.ProviderAuthFailure(fmt.Errorf("openai returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", models.ProviderUnknown(fmt.Errorf("openai returned %d: %s", resp.StatusCode, snippet))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", models.ProviderInvalidResponse(fmt.Errorf("decode response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", models.ProviderInvalidResponse(fmt.Errorf("no choices in response"))
	}
	return parsed.Choices[0].Message.Content, nil
}

var _ models.Provider = (*Provider)(nil)
