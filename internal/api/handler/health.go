package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/tenderlens/tenderlens/internal/api/response"
)

// Pinger is a dependency that can be liveness-probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProber is a remote dependency with a readiness endpoint.
type ReadyProber interface {
	Ready(ctx context.Context) error
}

type healthStatus struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health. It
// probes the database, cache, and CRM authority; any failure degrades the
// overall status but still answers 200 so load balancers see the detail.
func NewHealthHandler(db Pinger, cache Pinger, authority ReadyProber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		deps := map[string]string{}
		status := "ok"

		if err := db.Ping(ctx); err != nil {
			deps["database"] = err.Error()
			status = "degraded"
		} else {
			deps["database"] = "ok"
		}

		if err := cache.Ping(ctx); err != nil {
			deps["cache"] = err.Error()
			status = "degraded"
		} else {
			deps["cache"] = "ok"
		}

		if err := authority.Ready(ctx); err != nil {
			deps["crm"] = err.Error()
			status = "degraded"
		} else {
			deps["crm"] = "ok"
		}

		response.JSON(w, healthStatus{Status: status, Dependencies: deps})
	}
}
