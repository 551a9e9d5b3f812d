package handler

import (
	"errors"
	"net/http"

	"github.com/tenderlens/tenderlens/internal/api/response"
	"github.com/tenderlens/tenderlens/internal/schema"
	"github.com/tenderlens/tenderlens/internal/scoring"
	"github.com/tenderlens/tenderlens/internal/store"
	"github.com/tenderlens/tenderlens/pkg/models"
)

// writeError maps engine and store errors to HTTP responses. Every failure
// carries a displayable code and message.
func writeError(w http.ResponseWriter, err error) {
	var valErr *schema.ValidationError
	if errors.As(err, &valErr) {
		response.Error(w, http.StatusUnprocessableEntity,
			"VALIDATION_FAILED", "Model output failed validation", valErr.Violations)
		return
	}

	var cfgErr *scoring.ConfigError
	if errors.As(err, &cfgErr) {
		response.Error(w, http.StatusBadRequest,
			"CONFIG_ERROR", cfgErr.Error(), nil)
		return
	}

	var provErr *models.ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Reason {
		case models.ReasonTimeout:
			response.Error(w, http.StatusGatewayTimeout,
				"AI_INFERENCE_TIMEOUT", "The model call exceeded its time budget", nil)
		case models.ReasonInvalidResponse:
			response.Error(w, http.StatusBadGateway,
				"AI_INVALID_RESPONSE", "The model returned unusable output", nil)
		case models.ReasonAuth:
			response.Error(w, http.StatusBadGateway,
				"AI_AUTH_FAILED", "The AI provider rejected our credentials", nil)
		default:
			response.Error(w, http.StatusBadGateway,
				"AI_PROVIDER_ERROR", "The AI provider failed", nil)
		}
		return
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, store.ErrDuplicateKey):
		response.Error(w, http.StatusConflict, "DUPLICATE_KEY", "Resource already exists", nil)
	case errors.Is(err, store.ErrStageConflict):
		response.Error(w, http.StatusConflict, "STAGE_CONFLICT",
			"Tender is no longer in the expected stage", nil)
	default:
		response.Error(w, http.StatusInternalServerError,
			"INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
