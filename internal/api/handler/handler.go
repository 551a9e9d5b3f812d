// Package handler contains the HTTP handlers for the TenderLens API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func pathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
