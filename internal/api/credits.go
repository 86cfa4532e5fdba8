package api

import (
	"log/slog"
	"net/http"

	"turnstile/internal/db"
	"turnstile/internal/entitlement"
)

type CreditHandler struct {
	engine *entitlement.Service
	ledger *db.LedgerRepository
}

func NewCreditHandler(engine *entitlement.Service, ledger *db.LedgerRepository) *CreditHandler {
	return &CreditHandler{engine: engine, ledger: ledger}
}

type AccountRequest struct {
	ExternalID  string `json:"externalId" validate:"required,max=64"`
	DisplayName string `json:"displayName" validate:"max=128"`
}

type CreditStatusResponse struct {
	Balance int64                   `json:"balance"`
	Earn    *entitlement.EarnStatus `json:"earn"`
}

// POST /api/v1/credits/status
func (h *CreditHandler) Status(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	account, _, err := h.engine.GetOrCreateAccount(r.Context(), req.ExternalID, req.DisplayName)
	if err != nil {
		slog.Error("error resolving account", "error", err)
		internalError(w)
		return
	}

	status, err := h.engine.CanEarn(r.Context(), account)
	if err != nil {
		slog.Error("error evaluating earn status", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, CreditStatusResponse{Balance: status.Balance, Earn: status})
}

// POST /api/v1/credits/request
func (h *CreditHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	account, _, err := h.engine.GetOrCreateAccount(r.Context(), req.ExternalID, req.DisplayName)
	if err != nil {
		slog.Error("error resolving account", "error", err)
		internalError(w)
		return
	}

	decision, err := h.engine.RequestCreditGrant(r.Context(), account)
	if err != nil {
		slog.Error("error requesting credit grant", "error", err)
		internalError(w)
		return
	}

	writeDecision(w, decision)
}

// POST /api/v1/credits/history
func (h *CreditHandler) History(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	account, _, err := h.engine.GetOrCreateAccount(r.Context(), req.ExternalID, req.DisplayName)
	if err != nil {
		slog.Error("error resolving account", "error", err)
		internalError(w)
		return
	}

	entries, err := h.ledger.ListForAccount(r.Context(), account.ID, 50)
	if err != nil {
		slog.Error("error listing ledger", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"balance": account.Balance,
		"entries": entries,
	})
}

// POST /api/v1/credits/claim
func (h *CreditHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	account, _, err := h.engine.GetOrCreateAccount(r.Context(), req.ExternalID, "")
	if err != nil {
		slog.Error("error resolving account", "error", err)
		internalError(w)
		return
	}

	decision, err := h.engine.ClaimCreditToken(r.Context(), account, req.Token)
	if err != nil {
		slog.Error("error claiming credit token", "error", err)
		internalError(w)
		return
	}

	writeDecision(w, decision)
}
