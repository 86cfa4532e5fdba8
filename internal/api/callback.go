package api

import (
	"log/slog"
	"net/http"

	"turnstile/internal/entitlement"
)

type CallbackHandler struct {
	engine *entitlement.Service
}

func NewCallbackHandler(engine *entitlement.Service) *CallbackHandler {
	return &CallbackHandler{engine: engine}
}

type VerifyCallbackRequest struct {
	Token string `json:"token" validate:"required,max=128"`
}

// POST /api/v1/verify/callback
//
// Invoked by the external verifier once the user finishes the redirect
// step. Idempotent: repeated calls, late calls, and calls for unknown
// tokens all answer 200 without touching domain state twice.
func (h *CallbackHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyCallbackRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.engine.MarkVerified(r.Context(), req.Token); err != nil {
		slog.Error("error marking token verified", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
