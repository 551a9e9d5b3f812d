// Package store is the data access layer. All database operations go
// through the Store interface.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tenderlens/tenderlens/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrStageConflict means a compare-and-set stage update found the tender in
// a different stage than expected; the remote authority is the source of
// truth for conflicting concurrent moves.
var ErrStageConflict = errors.New("tender stage conflict")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultUser(ctx context.Context) (*models.User, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error

	CreateTender(ctx context.Context, tender *models.Tender) error
	GetTender(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Tender, error)
	ListTenders(ctx context.Context, filter TenderFilter) ([]*models.Tender, int, error)
	UpdateTenderStage(ctx context.Context, id uuid.UUID, from, to models.Stage) error

	CreateExtraction(ctx context.Context, rec *ExtractionRecord) error
	GetExtractionByHash(ctx context.Context, userID uuid.UUID, contentHash string) (*ExtractionRecord, error)

	CreateAnalysis(ctx context.Context, result *models.AnalysisResult) error
	UpdateAnalysisStatus(ctx context.Context, id uuid.UUID, status string) error
	FinalizeAnalysis(ctx context.Context, result *models.AnalysisResult) error
	GetAnalysis(ctx context.Context, id uuid.UUID) (*models.AnalysisResult, error)
	GetActiveAnalysis(ctx context.Context, tenderID uuid.UUID) (*models.AnalysisResult, error)
}

// TenderFilter narrows ListTenders queries.
type TenderFilter struct {
	UserID uuid.UUID
	Stage  models.Stage
	Page   int
	Limit  int
}

// ExtractionRecord is the persisted form of one extraction attempt.
type ExtractionRecord struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ContentHash string
	FilePath    string
	ModelUsed   string
	Result      models.ExtractionResult
}
