package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/marketplace-api/internal/auth"
	"github.com/joao-fontenele/marketplace-api/internal/domain"
	"github.com/joao-fontenele/marketplace-api/internal/telemetry"
)

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
)

// Publisher delivers order events to the broker. *messaging.Producer
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type Handler struct {
	service  *Service
	producer Publisher
	metrics  *telemetry.OrderMetrics
	logger   *slog.Logger
}

// NewHandler wires the workflow service to HTTP. producer and metrics
// may be nil when Kafka or the meter provider are not configured.
func NewHandler(service *Service, producer Publisher, metrics *telemetry.OrderMetrics, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		producer: producer,
		metrics:  metrics,
		logger:   logger,
	}
}

type createOrderRequest struct {
	Items []LineInput `json:"items"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.CreateOrder(r.Context(), actor.ID, req.Items)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordOrderCreated(r.Context(), order.Total.InexactFloat64())
	}

	if h.producer != nil {
		event := domain.OrderCreatedEvent{
			OrderID:   order.ID,
			UserID:    order.UserID,
			Items:     eventItems(order.Lines),
			Timestamp: order.CreatedAt,
		}
		if err := h.producer.Publish(r.Context(), TopicOrderCreated, order.ID, event); err != nil {
			h.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
		}
	}

	h.writeJSON(w, http.StatusCreated, order)
}

type updateStatusRequest struct {
	StatusID string `json:"status_id"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StatusID == "" {
		h.writeError(w, http.StatusBadRequest, "missing status_id")
		return
	}

	order, changed, err := h.service.SetOrderStatus(r.Context(), id, req.StatusID, actor)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if !changed {
		h.writeJSON(w, http.StatusOK, order)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordStatusChange(r.Context(), order.Status.Name)
	}

	if h.producer != nil {
		event := domain.OrderStatusChangedEvent{
			OrderID:   order.ID,
			Status:    order.Status.Name,
			Items:     eventItems(order.Lines),
			Timestamp: time.Now().UTC(),
		}
		if err := h.producer.Publish(r.Context(), TopicOrderStatusChanged, order.ID, event); err != nil {
			h.logger.Error("failed to publish status changed event", "error", err, "order_id", order.ID)
		}
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.service.GetOrder(r.Context(), id, actor)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	orders, err := h.service.ListOrders(r.Context(), actor)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

// writeDomainError maps the workflow's failure kinds to HTTP statuses.
// ConfigurationMissing and unexpected storage failures are server faults
// and never leak their details to the client.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyOrder),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidStatus):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrTerminalState):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrConfigurationMissing):
		h.logger.Error("catalog rows not seeded", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		h.logger.Error("order workflow failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func eventItems(lines []domain.OrderLine) []domain.OrderItemEvent {
	items := make([]domain.OrderItemEvent, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.OrderItemEvent{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}
	return items
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
