package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	mw "github.com/tenderlens/tenderlens/internal/api/middleware"
	"github.com/tenderlens/tenderlens/internal/api/response"
	"github.com/tenderlens/tenderlens/internal/pipeline"
	"github.com/tenderlens/tenderlens/internal/store"
	"github.com/tenderlens/tenderlens/pkg/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// NewCreateTenderHandler returns an http.HandlerFunc for POST /api/v1/tenders.
// New tenders always start in the new stage.
func NewCreateTenderHandler(st store.Store, board *pipeline.Board) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			Title          string   `json:"title"`
			Entity         *string  `json:"entity"`
			TenderNumber   *string  `json:"tender_number"`
			Deadline       *string  `json:"deadline"`
			EstimatedValue *float64 `json:"estimated_value"`
			Description    *string  `json:"description"`
			SourceText     string   `json:"source_text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Title == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "title is required", nil)
			return
		}

		now := time.Now().UTC()
		tender := &models.Tender{
			ID:             uuid.New(),
			UserID:         userID,
			Title:          req.Title,
			Entity:         req.Entity,
			TenderNumber:   req.TenderNumber,
			Deadline:       req.Deadline,
			EstimatedValue: req.EstimatedValue,
			Description:    req.Description,
			SourceText:     req.SourceText,
			Stage:          models.StageNew,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := st.CreateTender(r.Context(), tender); err != nil {
			writeError(w, err)
			return
		}
		board.Track(tender.ID, tender.Stage)

		response.Created(w, tender)
	}
}

// NewListTendersHandler returns an http.HandlerFunc for GET /api/v1/tenders.
// Supports ?stage=, ?page= and ?limit=.
func NewListTendersHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		filter := store.TenderFilter{
			UserID: userID,
			Page:   1,
			Limit:  defaultPageLimit,
		}

		if stage := r.URL.Query().Get("stage"); stage != "" {
			if !models.ValidStage(models.Stage(stage)) {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"stage must be one of new, scored, approved, pushed, won, lost", nil)
				return
			}
			filter.Stage = models.Stage(stage)
		}
		if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 0 {
			filter.Page = page
		}
		if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
			if limit > maxPageLimit {
				limit = maxPageLimit
			}
			filter.Limit = limit
		}

		tenders, total, err := st.ListTenders(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}

		response.Collection(w, tenders, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: filter.Page*filter.Limit < total,
		})
	}
}

// NewGetTenderHandler returns an http.HandlerFunc for
// GET /api/v1/tenders/{tenderID}. The response includes the active analysis
// when one exists.
func NewGetTenderHandler(st store.Store) http.HandlerFunc {
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

		tender, err := st.GetTender(r.Context(), tenderID, userID)
		if err != nil {
			writeError(w, err)
			return
		}

		analysis, err := st.GetActiveAnalysis(r.Context(), tenderID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				writeError(w, err)
				return
			}
			analysis = nil
		}

		response.JSON(w, struct {
			Tender   *models.Tender         `json:"tender"`
			Analysis *models.AnalysisResult `json:"analysis,omitempty"`
		}{Tender: tender, Analysis: analysis})
	}
}
