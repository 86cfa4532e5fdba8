package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"turnstile/internal/auth"
	"turnstile/internal/db"
	"turnstile/internal/entitlement"
	"turnstile/internal/models"
)

type AdminHandler struct {
	engine     *entitlement.Service
	accounts   *db.AccountRepository
	channels   *db.ChannelRepository
	ledger     *db.LedgerRepository
	jwtService *auth.JWTService
}

func NewAdminHandler(
	engine *entitlement.Service,
	accounts *db.AccountRepository,
	channels *db.ChannelRepository,
	ledger *db.LedgerRepository,
	jwtService *auth.JWTService,
) *AdminHandler {
	return &AdminHandler{
		engine:     engine,
		accounts:   accounts,
		channels:   channels,
		ledger:     ledger,
		jwtService: jwtService,
	}
}

type AdminAuthRequest struct {
	ExternalID string `json:"externalId" validate:"required,max=64"`
}

type AdminAuthResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

// POST /api/v1/admin/auth
func (h *AdminHandler) Auth(w http.ResponseWriter, r *http.Request) {
	var req AdminAuthRequest
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

	if !h.engine.IsAdmin(account) {
		unauthorized(w, "Not an admin")
		return
	}

	token, expiry, err := h.jwtService.IssueAdminToken(account.ExternalID)
	if err != nil {
		slog.Error("error issuing admin token", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, AdminAuthResponse{
		Token:     token,
		ExpiresAt: expiry.UTC().Format(time.RFC3339),
	})
}

// POST /api/v1/admin/accounts/{externalId}/ban
func (h *AdminHandler) Ban(w http.ResponseWriter, r *http.Request) {
	h.setBanned(w, r, true)
}

// POST /api/v1/admin/accounts/{externalId}/unban
func (h *AdminHandler) Unban(w http.ResponseWriter, r *http.Request) {
	h.setBanned(w, r, false)
}

func (h *AdminHandler) setBanned(w http.ResponseWriter, r *http.Request, banned bool) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	if err := h.accounts.SetBanned(r.Context(), account.ID, banned); err != nil {
		slog.Error("error updating ban state", "error", err)
		internalError(w)
		return
	}

	slog.Info("ban state changed", "account", account.ExternalID, "banned", banned, "admin", GetAdminID(r))
	writeJSON(w, http.StatusOK, map[string]any{"externalId": account.ExternalID, "banned": banned})
}

type PremiumRequest struct {
	Days int `json:"days" validate:"min=0,max=3650"`
}

// POST /api/v1/admin/accounts/{externalId}/premium
//
// days > 0 grants premium for that many days; days == 0 grants it without
// expiry.
func (h *AdminHandler) GrantPremium(w http.ResponseWriter, r *http.Request) {
	var req PremiumRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	var expiry *time.Time
	if req.Days > 0 {
		t := time.Now().UTC().AddDate(0, 0, req.Days)
		expiry = &t
	}

	if err := h.accounts.SetPremium(r.Context(), account.ID, true, expiry); err != nil {
		slog.Error("error granting premium", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"externalId": account.ExternalID, "premium": true})
}

// DELETE /api/v1/admin/accounts/{externalId}/premium
func (h *AdminHandler) RevokePremium(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	if err := h.accounts.SetPremium(r.Context(), account.ID, false, nil); err != nil {
		slog.Error("error revoking premium", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"externalId": account.ExternalID, "premium": false})
}

type TopUpRequest struct {
	Amount int64 `json:"amount" validate:"required,min=1,max=1000"`
}

// POST /api/v1/admin/accounts/{externalId}/credits
func (h *AdminHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	var req TopUpRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	balance, err := h.accounts.AddCredits(r.Context(), account.ID, req.Amount, models.ReasonAdmin)
	if err != nil {
		slog.Error("error topping up balance", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"externalId": account.ExternalID, "balance": balance})
}

// DELETE /api/v1/admin/accounts/{externalId}/credits
func (h *AdminHandler) ZeroBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	if err := h.accounts.ZeroBalance(r.Context(), account.ID); err != nil {
		slog.Error("error zeroing balance", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"externalId": account.ExternalID, "balance": 0})
}

// GET /api/v1/admin/accounts/{externalId}/ledger
func (h *AdminHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	account, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	entries, err := h.ledger.ListForAccount(r.Context(), account.ID, 100)
	if err != nil {
		slog.Error("error listing ledger", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "balance": account.Balance})
}

type ChannelRequest struct {
	ChannelID string `json:"channelId" validate:"required,max=64"`
	Title     string `json:"title" validate:"max=128"`
	InviteURL string `json:"inviteUrl" validate:"omitempty,url,max=256"`
}

// POST /api/v1/admin/channels
func (h *AdminHandler) AddChannel(w http.ResponseWriter, r *http.Request) {
	var req ChannelRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	channel, err := h.channels.Add(r.Context(), req.ChannelID, req.Title, req.InviteURL)
	if errors.Is(err, db.ErrDuplicate) {
		conflict(w, "Channel already required")
		return
	}
	if err != nil {
		slog.Error("error adding channel rule", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, channel)
}

// DELETE /api/v1/admin/channels/{channelId}
func (h *AdminHandler) RemoveChannel(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelId")

	err := h.channels.Remove(r.Context(), channelID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Channel rule not found")
		return
	}
	if err != nil {
		slog.Error("error removing channel rule", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"channelId": channelID})
}

// GET /api/v1/admin/channels
func (h *AdminHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.channels.List(r.Context())
	if err != nil {
		slog.Error("error listing channel rules", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

func (h *AdminHandler) loadAccount(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	externalID := chi.URLParam(r, "externalId")

	account, err := h.accounts.FindByExternalID(r.Context(), externalID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Account not found")
		return nil, false
	}
	if err != nil {
		slog.Error("error finding account", "error", err)
		internalError(w)
		return nil, false
	}

	return account, true
}
