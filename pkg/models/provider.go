// Package models contains shared data models used across the TenderLens codebase.
package models

import "context"

// Provider is the core interface that all AI integrations must implement.
// Never call specific AI providers directly; always inject this interface.
type Provider interface {
	// Analyze scores tender text against a weight configuration.
	Analyze(ctx context.Context, req AnalyzeRequest) (AnalysisResult, error)
	// Extract pulls structured fields out of a raw tender document.
	Extract(ctx context.Context, req ExtractRequest) (ExtractionResult, error)
	// Name returns the provider identifier (e.g., "mock", "openai").
	Name() string
	// Model returns the backing model identifier (e.g., "gpt-4").
	Model() string
}

// AnalyzeRequest is the input to a scoring operation.
type AnalyzeRequest struct {
	TenderText string
	Weights    WeightConfig
}

// ExtractRequest is the input to an extraction operation.
type ExtractRequest struct {
	Document []byte
	Filename string
}
