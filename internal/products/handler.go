package products

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace-api/internal/auth"
	"github.com/joao-fontenele/marketplace-api/internal/domain"
	"github.com/joao-fontenele/marketplace-api/internal/providers"
)

const defaultLowStockThreshold = 5

type Handler struct {
	repo      *Repository
	providers *providers.Repository
	logger    *slog.Logger
}

func NewHandler(repo *Repository, providerRepo *providers.Repository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:      repo,
		providers: providerRepo,
		logger:    logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter := Filter{
		ProviderID: r.URL.Query().Get("provider_id"),
		CategoryID: r.URL.Query().Get("category_id"),
		Search:     r.URL.Query().Get("search"),
	}

	products, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	product, err := h.repo.ByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

// HandleListMine lists all products of the authenticated provider,
// including deactivated ones.
func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.requireProfile(w, r)
	if !ok {
		return
	}

	products, err := h.repo.ListByProvider(r.Context(), provider.ID)
	if err != nil {
		h.logger.Error("failed to list provider products", "error", err, "provider_id", provider.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, products)
}

type createProductRequest struct {
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	ImageURL          string          `json:"image_url"`
	CategoryID        string          `json:"category_id"`
	Price             decimal.Decimal `json:"price"`
	Stock             int             `json:"stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.requireProfile(w, r)
	if !ok {
		return
	}

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Price.IsNegative() {
		h.writeError(w, http.StatusBadRequest, "price must not be negative")
		return
	}
	if req.Stock < 0 {
		h.writeError(w, http.StatusBadRequest, "stock must not be negative")
		return
	}

	threshold := req.LowStockThreshold
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:                uuid.New().String(),
		ProviderID:        provider.ID,
		CategoryID:        req.CategoryID,
		Name:              req.Name,
		Description:       req.Description,
		ImageURL:          req.ImageURL,
		Price:             req.Price,
		Stock:             req.Stock,
		LowStockThreshold: threshold,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := h.repo.Create(r.Context(), product); err != nil {
		if errors.Is(err, domain.ErrConfigurationMissing) {
			h.logger.Error("movement kind catalog not seeded", "error", err)
		} else {
			h.logger.Error("failed to create product", "error", err)
		}
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("product created", "product_id", product.ID, "provider_id", provider.ID, "stock", product.Stock)
	h.writeJSON(w, http.StatusCreated, product)
}

type updateProductRequest struct {
	Name              *string          `json:"name"`
	Description       *string          `json:"description"`
	ImageURL          *string          `json:"image_url"`
	CategoryID        *string          `json:"category_id"`
	Price             *decimal.Decimal `json:"price"`
	LowStockThreshold *int             `json:"low_stock_threshold"`
	Active            *bool            `json:"active"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	product, ok := h.requireOwnedProduct(w, r)
	if !ok {
		return
	}

	var req updateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.ImageURL != nil {
		product.ImageURL = *req.ImageURL
	}
	if req.CategoryID != nil {
		product.CategoryID = *req.CategoryID
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			h.writeError(w, http.StatusBadRequest, "price must not be negative")
			return
		}
		product.Price = *req.Price
	}
	if req.LowStockThreshold != nil {
		product.LowStockThreshold = *req.LowStockThreshold
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	if err := h.repo.Update(r.Context(), product); err != nil {
		h.logger.Error("failed to update product", "error", err, "product_id", product.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

// HandleDeactivate soft-deletes the product; catalog rows are never
// removed because order lines and movements keep referencing them.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	product, ok := h.requireOwnedProduct(w, r)
	if !ok {
		return
	}

	if err := h.repo.Deactivate(r.Context(), product.ID); err != nil {
		h.logger.Error("failed to deactivate product", "error", err, "product_id", product.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("product deactivated", "product_id", product.ID)
	w.WriteHeader(http.StatusNoContent)
}

// requireProfile resolves the actor's provider profile, rejecting users
// that have none.
func (h *Handler) requireProfile(w http.ResponseWriter, r *http.Request) (*domain.Provider, bool) {
	actor, _ := auth.ActorFromContext(r.Context())

	provider, err := h.providers.ByUserID(r.Context(), actor.ID)
	if err != nil {
		h.logger.Error("failed to look up provider profile", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	if provider == nil {
		h.writeError(w, http.StatusForbidden, "provider profile required")
		return nil, false
	}

	return provider, true
}

// requireOwnedProduct loads the product from the path and verifies the
// actor's provider profile owns it.
func (h *Handler) requireOwnedProduct(w http.ResponseWriter, r *http.Request) (*domain.Product, bool) {
	provider, ok := h.requireProfile(w, r)
	if !ok {
		return nil, false
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing product id")
		return nil, false
	}

	product, err := h.repo.ByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return nil, false
	}
	if product.ProviderID != provider.ID {
		h.writeError(w, http.StatusForbidden, domain.ErrForbidden.Error())
		return nil, false
	}

	return product, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
