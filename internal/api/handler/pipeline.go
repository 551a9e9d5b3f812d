package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	mw "github.com/tenderlens/tenderlens/internal/api/middleware"
	"github.com/tenderlens/tenderlens/internal/api/response"
	"github.com/tenderlens/tenderlens/internal/pipeline"
	"github.com/tenderlens/tenderlens/pkg/models"
)

// Mover defines the interface the move handler depends on.
type Mover interface {
	StageOf(tenderID uuid.UUID) (models.Stage, bool)
	MoveTender(ctx context.Context, tenderID uuid.UUID, from, to models.Stage) (*pipeline.MoveOutcome, error)
}

// NewMoveTenderHandler returns an http.HandlerFunc for
// POST /api/v1/tenders/{tenderID}/move. A remotely rejected move answers
// with 409 and the reverted local stage; the tender never raises past this
// boundary in an inconsistent state.
func NewMoveTenderHandler(board Mover, tenders TenderReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		tenderID, err := uuid.Parse(pathParam(r, "tenderID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "tenderID must be a valid UUID", nil)
			return
		}

		var req struct {
			TargetStage string `json:"target_stage"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		target := models.Stage(req.TargetStage)
		if !models.ValidStage(target) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"target_stage must be one of new, scored, approved, pushed, won, lost", nil)
			return
		}

		// Ownership check before touching the board.
		if _, err := tenders.GetTender(r.Context(), tenderID, userID); err != nil {
			writeError(w, err)
			return
		}

		from, ok := board.StageOf(tenderID)
		if !ok {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Tender is not on the board", nil)
			return
		}

		outcome, err := board.MoveTender(r.Context(), tenderID, from, target)
		if err != nil {
			if errors.Is(err, pipeline.ErrUnknownTender) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Tender is not on the board", nil)
				return
			}
			writeError(w, err)
			return
		}

		if outcome.Reverted {
			response.Error(w, http.StatusConflict, "MOVE_REVERTED", outcome.Message, outcome)
			return
		}
		response.JSON(w, outcome)
	}
}
