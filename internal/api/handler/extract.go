package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	mw "github.com/tenderlens/tenderlens/internal/api/middleware"
	"github.com/tenderlens/tenderlens/internal/api/response"
	"github.com/tenderlens/tenderlens/internal/extract"
)

const maxDocumentBytes = 2 << 20

// Extractor defines the interface the extract handler depends on.
type Extractor interface {
	Extract(ctx context.Context, userID uuid.UUID, document []byte, filename string) (*extract.Result, error)
}

// NewExtractHandler returns an http.HandlerFunc for POST /api/v1/extract.
func NewExtractHandler(svc Extractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			Document string `json:"document"`
			Filename string `json:"filename"`
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Document == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "document is required", nil)
			return
		}

		result, err := svc.Extract(r.Context(), userID, []byte(req.Document), req.Filename)
		if err != nil {
			writeError(w, err)
			return
		}

		response.JSON(w, result)
	}
}
