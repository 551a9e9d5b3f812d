package mock

import (
	"context"

	"github.com/tenderlens/tenderlens/pkg/models"
)

// Stub satisfies models.Provider for tests that need scripted responses.
type Stub struct {
	Name_       string
	Model_      string
	AnalyzeFunc func(ctx context.Context, req models.AnalyzeRequest) (models.AnalysisResult, error)
	ExtractFunc func(ctx context.Context, req models.ExtractRequest) (models.ExtractionResult, error)
}

func (s *Stub) Name() string  { return s.Name_ }
func (s *Stub) Model() string { return s.Model_ }

func (s *Stub) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalysisResult, error) {
	if s.AnalyzeFunc != nil {
		return s.AnalyzeFunc(ctx, req)
	}
	return models.AnalysisResult{}, nil
}

func (s *Stub) Extract(ctx context.Context, req models.ExtractRequest) (models.ExtractionResult, error) {
	if s.ExtractFunc != nil {
		return s.ExtractFunc(ctx, req)
	}
	return models.ExtractionResult{}, nil
}

// NewFailingProvider returns a Stub that always returns the given error.
func NewFailingProvider(err error) *Stub {
	return &Stub{
		Name_:  "stub-failing",
		Model_: "stub",
		AnalyzeFunc: func(_ context.Context, _ models.AnalyzeRequest) (models.AnalysisResult, error) {
			return models.AnalysisResult{}, err
		},
		ExtractFunc: func(_ context.Context, _ models.ExtractRequest) (models.ExtractionResult, error) {
			return models.ExtractionResult{}, err
		},
	}
}

// NewTimeoutProvider returns a Stub that blocks until context is cancelled.
func NewTimeoutProvider() *Stub {
	return &Stub{
		Name_:  "stub-timeout",
		Model_: "stub",
		AnalyzeFunc: func(ctx context.Context, _ models.AnalyzeRequest) (models.AnalysisResult, error) {
			<-ctx.Done()
			return models.AnalysisResult{}, models.ProviderTimeout(ctx.Err())
		},
		ExtractFunc: func(ctx context.Context, _ models.ExtractRequest) (models.ExtractionResult, error) {
			<-ctx.Done()
			return models.ExtractionResult{}, models.ProviderTimeout(ctx.Err())
		},
	}
}

var _ models.Provider = (*Stub)(nil)
