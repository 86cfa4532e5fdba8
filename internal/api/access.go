package api

import (
	"context"
	"log/slog"
	"net/http"

	"turnstile/internal/entitlement"
	"turnstile/internal/models"
)

type AccessHandler struct {
	engine *entitlement.Service
}

func NewAccessHandler(engine *entitlement.Service) *AccessHandler {
	return &AccessHandler{engine: engine}
}

type AccessRequest struct {
	ExternalID  string `json:"externalId" validate:"required,max=64"`
	DisplayName string `json:"displayName" validate:"max=128"`
	ItemID      string `json:"itemId" validate:"required,max=64"`
}

// POST /api/v1/access/request
func (h *AccessHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req AccessRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	account, ok := h.resolveAccount(r.Context(), w, req.ExternalID, req.DisplayName)
	if !ok {
		return
	}

	decision, err := h.engine.RequestAccess(r.Context(), account, req.ItemID)
	if err != nil {
		slog.Error("error deciding access request", "error", err)
		internalError(w)
		return
	}

	writeDecision(w, decision)
}

// POST /api/v1/access/unlock is the credit-spend path.
func (h *AccessHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req AccessRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	account, ok := h.resolveAccount(r.Context(), w, req.ExternalID, req.DisplayName)
	if !ok {
		return
	}

	decision, err := h.engine.UnlockWithCredit(r.Context(), account, req.ItemID)
	if err != nil {
		slog.Error("error unlocking with credit", "error", err)
		internalError(w)
		return
	}

	if decision.Outcome == entitlement.OutcomeInsufficientBalance {
		writeError(w, http.StatusPaymentRequired, ErrCodeInsufficientBalance, "Not enough credits")
		return
	}

	writeDecision(w, decision)
}

type ClaimRequest struct {
	ExternalID string `json:"externalId" validate:"required,max=64"`
	Token      string `json:"token" validate:"required,max=128"`
}

// POST /api/v1/access/claim
func (h *AccessHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	account, ok := h.resolveAccount(r.Context(), w, req.ExternalID, "")
	if !ok {
		return
	}

	decision, err := h.engine.ClaimContentToken(r.Context(), account, req.Token)
	if err != nil {
		slog.Error("error claiming content token", "error", err)
		internalError(w)
		return
	}

	writeDecision(w, decision)
}

func (h *AccessHandler) resolveAccount(ctx context.Context, w http.ResponseWriter, externalID, displayName string) (*models.Account, bool) {
	account, _, err := h.engine.GetOrCreateAccount(ctx, externalID, displayName)
	if err != nil {
		slog.Error("error resolving account", "error", err)
		internalError(w)
		return nil, false
	}
	return account, true
}
