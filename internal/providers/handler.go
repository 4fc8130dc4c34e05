package providers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/marketplace-api/internal/auth"
	"github.com/joao-fontenele/marketplace-api/internal/domain"
)

type Handler struct {
	repo   *Repository
	logger *slog.Logger
}

func NewHandler(repo *Repository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

type registerProviderRequest struct {
	TradeName string  `json:"trade_name"`
	TaxID     string  `json:"tax_id"`
	Address   string  `json:"address"`
	Phone     string  `json:"phone"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// HandleRegister creates the provider profile for the authenticated
// PROVIDER user. The profile is what order-status authorization checks
// line ownership against.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())

	var req registerProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.TradeName == "" || req.TaxID == "" {
		h.writeError(w, http.StatusBadRequest, "trade_name and tax_id are required")
		return
	}

	existing, err := h.repo.ByUserID(r.Context(), actor.ID)
	if err != nil {
		h.logger.Error("failed to look up provider profile", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if existing != nil {
		h.writeError(w, http.StatusConflict, "provider profile already exists")
		return
	}

	provider := &domain.Provider{
		ID:        uuid.New().String(),
		UserID:    actor.ID,
		TradeName: req.TradeName,
		TaxID:     req.TaxID,
		Address:   req.Address,
		Phone:     req.Phone,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.Create(r.Context(), provider); err != nil {
		h.logger.Error("failed to create provider profile", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("provider registered", "provider_id", provider.ID, "user_id", actor.ID)
	h.writeJSON(w, http.StatusCreated, provider)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())

	provider, err := h.repo.ByUserID(r.Context(), actor.ID)
	if err != nil {
		h.logger.Error("failed to look up provider profile", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if provider == nil {
		h.writeError(w, http.StatusNotFound, "provider profile not found")
		return
	}

	h.writeJSON(w, http.StatusOK, provider)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	providers, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list providers", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, providers)
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
