package catalog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lib/pq"
)

type Handler struct {
	repo   *Repository
	logger *slog.Logger
}

func NewHandler(repo *Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

func (h *Handler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	category, err := h.repo.CreateCategory(r.Context(), req.Name)
	if err != nil {
		if isUniqueViolation(err) {
			h.writeError(w, http.StatusConflict, "category already exists")
			return
		}
		h.logger.Error("failed to create category", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, category)
}

type createCatalogEntryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) HandleCreateStatus(w http.ResponseWriter, r *http.Request) {
	var req createCatalogEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	status, err := h.repo.CreateStatus(r.Context(), req.Name, req.Description)
	if err != nil {
		if isUniqueViolation(err) {
			h.writeError(w, http.StatusConflict, "order status already exists")
			return
		}
		h.logger.Error("failed to create order status", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, status)
}

func (h *Handler) HandleCreateMovementKind(w http.ResponseWriter, r *http.Request) {
	var req createCatalogEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	kind, err := h.repo.CreateMovementKind(r.Context(), req.Name, req.Description)
	if err != nil {
		if isUniqueViolation(err) {
			h.writeError(w, http.StatusConflict, "movement kind already exists")
			return
		}
		h.logger.Error("failed to create movement kind", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, kind)
}

func (h *Handler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("failed to list categories", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) HandleListStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.repo.ListStatuses(r.Context())
	if err != nil {
		h.logger.Error("failed to list order statuses", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, statuses)
}

func (h *Handler) HandleListMovementKinds(w http.ResponseWriter, r *http.Request) {
	kinds, err := h.repo.ListMovementKinds(r.Context())
	if err != nil {
		h.logger.Error("failed to list movement kinds", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, kinds)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
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
