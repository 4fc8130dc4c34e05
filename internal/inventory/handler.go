package inventory

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
	"github.com/joao-fontenele/marketplace-api/internal/telemetry"
)

type Handler struct {
	repo    *Repository
	metrics *telemetry.OrderMetrics
	logger  *slog.Logger
}

// NewHandler wires the movement endpoints. metrics may be nil when the
// meter provider is not configured.
func NewHandler(repo *Repository, metrics *telemetry.OrderMetrics, logger *slog.Logger) *Handler {
	return &Handler{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
	}
}

type registerMovementRequest struct {
	ProductID string `json:"product_id"`
	Kind      string `json:"kind"`
	Quantity  int    `json:"quantity"`
	Outbound  bool   `json:"outbound"`
}

type movementResponse struct {
	Movement *domain.Movement `json:"movement"`
	Stock    int              `json:"stock"`
}

// HandleRegisterMovement records a manual INBOUND or ADJUSTMENT movement.
// SALE and RETURN movements only ever originate from the order workflow.
func (h *Handler) HandleRegisterMovement(w http.ResponseWriter, r *http.Request) {
	var req registerMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "missing product_id")
		return
	}
	if req.Quantity <= 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidQuantity.Error())
		return
	}
	if req.Kind != domain.KindInbound && req.Kind != domain.KindAdjustment {
		h.writeError(w, http.StatusBadRequest, "kind must be INBOUND or ADJUSTMENT")
		return
	}

	movement, stock, err := h.repo.RegisterMovement(r.Context(), req.ProductID, req.Kind, req.Quantity, req.Outbound)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProductNotFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, domain.ErrInsufficientStock):
			h.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, domain.ErrConfigurationMissing):
			h.logger.Error("movement kind catalog not seeded", "error", err)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		default:
			h.logger.Error("failed to register movement", "error", err, "product_id", req.ProductID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordMovement(r.Context(), req.Kind)
	}

	h.logger.Info("movement registered", "movement_id", movement.ID, "product_id", req.ProductID, "kind", req.Kind, "quantity", req.Quantity)
	h.writeJSON(w, http.StatusCreated, movementResponse{Movement: movement, Stock: stock})
}

func (h *Handler) HandleListMovements(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")

	movements, err := h.repo.ListMovements(r.Context(), productID)
	if err != nil {
		h.logger.Error("failed to list movements", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, movements)
}

func (h *Handler) HandleLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.LowStock(r.Context(), nil)
	if err != nil {
		h.logger.Error("failed to list low stock products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, products)
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
