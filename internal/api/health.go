package api

import (
	"net/http"

	"turnstile/internal/db"
)

type HealthHandler struct {
	database *db.DB
}

func NewHealthHandler(database *db.DB) *HealthHandler {
	return &HealthHandler{database: database}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	status := http.StatusOK

	if err := h.database.PingContext(r.Context()); err != nil {
		checks["database"] = "error"
		status = http.StatusServiceUnavailable
	}

	result := "ok"
	if status != http.StatusOK {
		result = "degraded"
	}

	writeJSON(w, status, map[string]any{
		"status": result,
		"checks": checks,
	})
}
