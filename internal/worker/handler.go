package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
	"github.com/joao-fontenele/marketplace-api/internal/orders"
)

// StockReader reports products whose stock has fallen to or below
// their configured threshold, optionally restricted to a set of ids.
type StockReader interface {
	LowStock(ctx context.Context, ids []string) ([]domain.Product, error)
}

// LowStockHandler watches order lifecycle events and raises an alert
// whenever a sale pushes a product under its low stock threshold.
// Alerts are structured log lines; restocking is a manual INBOUND
// movement.
type LowStockHandler struct {
	stock  StockReader
	logger *slog.Logger
}

func NewLowStockHandler(stock StockReader, logger *slog.Logger) *LowStockHandler {
	return &LowStockHandler{
		stock:  stock,
		logger: logger,
	}
}

func (h *LowStockHandler) Handle(ctx context.Context, topic string, payload []byte) error {
	switch topic {
	case orders.TopicOrderCreated:
		return h.handleOrderCreated(ctx, payload)
	case orders.TopicOrderStatusChanged:
		return h.handleStatusChanged(ctx, payload)
	default:
		h.logger.Warn("ignoring message from unexpected topic", "topic", topic)
		return nil
	}
}

func (h *LowStockHandler) handleOrderCreated(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order created event: %w", err)
	}

	h.logger.Info("processing order created event", "order_id", event.OrderID, "items", len(event.Items))

	ids := make([]string, 0, len(event.Items))
	for _, item := range event.Items {
		ids = append(ids, item.ProductID)
	}

	return h.alertLowStock(ctx, ids)
}

func (h *LowStockHandler) handleStatusChanged(ctx context.Context, payload []byte) error {
	var event domain.OrderStatusChangedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal status changed event: %w", err)
	}

	h.logger.Info("order status changed", "order_id", event.OrderID, "status", event.Status)

	// Only a cancellation moves stock, and it moves it upward, so no
	// threshold check is needed here.
	return nil
}

func (h *LowStockHandler) alertLowStock(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	products, err := h.stock.LowStock(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to check stock levels: %w", err)
	}

	for _, p := range products {
		h.logger.Warn("product stock below threshold",
			"product_id", p.ID,
			"product_name", p.Name,
			"provider_id", p.ProviderID,
			"stock", p.Stock,
			"threshold", p.LowStockThreshold,
		)
	}

	return nil
}
