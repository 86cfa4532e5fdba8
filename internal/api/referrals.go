package api

import (
	"log/slog"
	"net/http"

	"turnstile/internal/entitlement"
)

type ReferralHandler struct {
	engine *entitlement.Service
}

func NewReferralHandler(engine *entitlement.Service) *ReferralHandler {
	return &ReferralHandler{engine: engine}
}

type ReferralRequest struct {
	ReferrerExternalID  string `json:"referrerExternalId" validate:"required,max=64"`
	ReferredExternalID  string `json:"referredExternalId" validate:"required,max=64"`
	ReferredDisplayName string `json:"referredDisplayName" validate:"max=128"`
}

// POST /api/v1/referrals
//
// Called when a new user arrives through someone's invite link. Best-effort
// and first-write-wins: a repeat or self referral answers registered=false.
func (h *ReferralHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req ReferralRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	referrer, _, err := h.engine.GetOrCreateAccount(r.Context(), req.ReferrerExternalID, "")
	if err != nil {
		slog.Error("error resolving referrer", "error", err)
		internalError(w)
		return
	}

	referred, isNew, err := h.engine.GetOrCreateAccount(r.Context(), req.ReferredExternalID, req.ReferredDisplayName)
	if err != nil {
		slog.Error("error resolving referred account", "error", err)
		internalError(w)
		return
	}

	result, err := h.engine.RegisterReferral(r.Context(), referrer, referred, isNew)
	if err != nil {
		slog.Error("error registering referral", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
