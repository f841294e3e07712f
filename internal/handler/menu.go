package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meja-pos/composer-gateway/internal/menu"
)

// MenuStore defines the catalog methods needed by menu handlers.
// Satisfied by *menu.Store; narrow interface for testability.
type MenuStore interface {
	ListMenuItems() []menu.MenuItem
	ListCategories() []menu.Category
	Refresh(ctx context.Context) error
}

// MenuHandler serves the catalog snapshot the terminals browse.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterRoutes registers menu endpoints on the given Chi router.
// Expected to be mounted at /menu
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/items", h.ListItems)
	r.Get("/categories", h.ListCategories)
	r.Post("/refresh", h.Refresh)
}

// --- Response types ---

type sizeResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	UnitPrice string    `json:"unit_price"`
	RecipeID  string    `json:"recipe_id,omitempty"`
}

type menuItemResponse struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	CategoryID   uuid.UUID      `json:"category_id"`
	CategoryName string         `json:"category_name"`
	Images       []string       `json:"images"`
	InStock      bool           `json:"in_stock"`
	Sizes        []sizeResponse `json:"sizes"`
}

type categoryResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type menuItemListResponse struct {
	Items []menuItemResponse `json:"items"`
}

type categoryListResponse struct {
	Categories []categoryResponse `json:"categories"`
}

// --- Handlers ---

// ListItems handles GET /menu/items. Optional ?category= filters by
// category ID.
func (h *MenuHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items := h.store.ListMenuItems()

	var categoryFilter string
	if s := r.URL.Query().Get("category"); s != "" {
		if _, err := uuid.Parse(s); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category ID"})
			return
		}
		categoryFilter = s
	}

	resp := menuItemListResponse{Items: make([]menuItemResponse, 0, len(items))}
	for _, item := range items {
		if categoryFilter != "" && item.CategoryID.String() != categoryFilter {
			continue
		}
		resp.Items = append(resp.Items, toMenuItemResponse(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListCategories handles GET /menu/categories.
func (h *MenuHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories := h.store.ListCategories()
	resp := categoryListResponse{Categories: make([]categoryResponse, len(categories))}
	for i, c := range categories {
		resp.Categories[i] = categoryResponse{ID: c.ID, Name: c.Name}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /menu/refresh, replacing the snapshot from upstream.
func (h *MenuHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Refresh(r.Context()); err != nil {
		log.Printf("ERROR: refresh menu: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "menu refresh failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toMenuItemResponse(item menu.MenuItem) menuItemResponse {
	resp := menuItemResponse{
		ID:           item.ID,
		Name:         item.Name,
		Description:  item.Description,
		CategoryID:   item.CategoryID,
		CategoryName: item.CategoryName,
		Images:       item.Images,
		InStock:      item.InStock,
		Sizes:        make([]sizeResponse, len(item.Sizes)),
	}
	if resp.Images == nil {
		resp.Images = []string{}
	}
	for i, s := range item.Sizes {
		resp.Sizes[i] = sizeResponse{
			ID:        s.ID,
			Name:      s.Name,
			UnitPrice: s.UnitPrice.StringFixed(2),
			RecipeID:  s.RecipeID,
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}
