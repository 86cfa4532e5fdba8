package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	"turnstile/internal/db"
	"turnstile/internal/models"
)

// sanitizer strips any markup from admin-supplied item text before it is
// stored and later pushed to users.
var sanitizer = bluemonday.StrictPolicy()

type ItemHandler struct {
	items *db.ItemRepository
}

func NewItemHandler(items *db.ItemRepository) *ItemHandler {
	return &ItemHandler{items: items}
}

type AssetPayload struct {
	Kind     string `json:"kind" validate:"required,oneof=file link"`
	Location string `json:"location" validate:"required,max=512"`
}

type CreateItemRequest struct {
	Title       string         `json:"title" validate:"required,max=256"`
	Description string         `json:"description" validate:"max=2048"`
	Published   bool           `json:"published"`
	Assets      []AssetPayload `json:"assets" validate:"required,min=1,max=50,dive"`
}

// POST /api/v1/admin/items
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	assets := make([]models.ContentAsset, 0, len(req.Assets))
	for _, a := range req.Assets {
		assets = append(assets, models.ContentAsset{
			Kind:     models.AssetKind(a.Kind),
			Location: a.Location,
		})
	}

	item, err := h.items.Create(
		r.Context(),
		sanitizer.Sanitize(req.Title),
		sanitizer.Sanitize(req.Description),
		req.Published,
		assets,
	)
	if err != nil {
		slog.Error("error creating item", "error", err)
		internalError(w)
		return
	}

	slog.Info("content item created", "item", item.ID, "admin", GetAdminID(r))
	writeJSON(w, http.StatusCreated, item)
}

type PublishRequest struct {
	Published bool `json:"published"`
}

// PATCH /api/v1/admin/items/{itemId}
func (h *ItemHandler) SetPublished(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	itemID := chi.URLParam(r, "itemId")
	err := h.items.SetPublished(r.Context(), itemID, req.Published)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Item not found")
		return
	}
	if err != nil {
		slog.Error("error updating item", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": itemID, "published": req.Published})
}

// DELETE /api/v1/admin/items/{itemId}
//
// Removes the item together with its grants and verification tokens.
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	err := h.items.Delete(r.Context(), itemID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Item not found")
		return
	}
	if err != nil {
		slog.Error("error deleting item", "error", err)
		internalError(w)
		return
	}

	slog.Info("content item deleted", "item", itemID, "admin", GetAdminID(r))
	writeJSON(w, http.StatusOK, map[string]string{"id": itemID})
}

// GET /api/v1/admin/items?q=...
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.List(r.Context(), r.URL.Query().Get("q"), 100)
	if err != nil {
		slog.Error("error listing items", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
