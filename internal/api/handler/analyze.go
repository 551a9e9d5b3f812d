package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	mw "github.com/tenderlens/tenderlens/internal/api/middleware"
	"github.com/tenderlens/tenderlens/internal/api/response"
	"github.com/tenderlens/tenderlens/internal/pipeline"
	"github.com/tenderlens/tenderlens/internal/store"
	"github.com/tenderlens/tenderlens/pkg/models"
)

// Scorer defines the interface the analyze handler depends on.
type Scorer interface {
	Score(ctx context.Context, tenderID uuid.UUID, tenderText string, weights models.WeightConfig) (*models.AnalysisResult, error)
}

// Placer advances a tender on the board once scoring lands.
type Placer interface {
	PlaceFromAnalysis(ctx context.Context, tenderID uuid.UUID, analysis *models.AnalysisResult) (*pipeline.MoveOutcome, error)
}

// TenderReader fetches tenders for the authenticated user.
type TenderReader interface {
	GetTender(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Tender, error)
}

// NewAnalyzeHandler returns an http.HandlerFunc for POST /api/v1/analyze.
// Scoring a tender in the new stage moves it to scored on success; a board
// placement failure is logged, not surfaced, because the analysis itself
// succeeded.
func NewAnalyzeHandler(svc Scorer, tenders TenderReader, board Placer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			TenderID   string             `json:"tender_id"`
			TenderText string             `json:"tender_text"`
			Weights    map[string]float64 `json:"weights"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		tenderID, err := uuid.Parse(req.TenderID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "tender_id must be a valid UUID", nil)
			return
		}

		tenderText := req.TenderText
		if tenderText == "" {
			tender, err := tenders.GetTender(r.Context(), tenderID, userID)
			if err != nil {
				writeError(w, err)
				return
			}
			tenderText = tender.SourceText
		}
		if tenderText == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"tender_text is required when the tender has no stored source text", nil)
			return
		}

		result, err := svc.Score(r.Context(), tenderID, tenderText, models.WeightConfig(req.Weights))
		if err != nil {
			writeError(w, err)
			return
		}

		if _, err := board.PlaceFromAnalysis(r.Context(), tenderID, result); err != nil {
			slog.Warn("board placement after scoring failed", "tender_id", tenderID, "error", err)
		}

		response.JSON(w, result)
	}
}

// AnalysisStatusReader resolves an analysis id to its current status,
// preferring the cache mirror over a store read.
type AnalysisStatusReader interface {
	GetAnalysisStatus(ctx context.Context, analysisID uuid.UUID) (string, bool, error)
}

// NewGetAnalysisHandler returns an http.HandlerFunc for
// GET /api/v1/analyses/{analysisID}.
func NewGetAnalysisHandler(st store.Store, statuses AnalysisStatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		analysisID, err := uuid.Parse(pathParam(r, "analysisID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "analysisID must be a valid UUID", nil)
			return
		}

		// A cached non-terminal status answers polls without touching the db.
		if status, found, err := statuses.GetAnalysisStatus(r.Context(), analysisID); err == nil && found &&
			(status == models.AnalysisStatusPending || status == models.AnalysisStatusAnalyzing) {
			response.JSON(w, map[string]string{"id": analysisID.String(), "status": status})
			return
		}

		result, err := st.GetAnalysis(r.Context(), analysisID)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, result)
	}
}
