package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OrderMetrics tracks the business-level counters the dashboards are
// built on. HTTP-level metrics come from otelhttp; these cover what
// the transport layer cannot see.
type OrderMetrics struct {
	ordersCreated metric.Int64Counter
	orderValue    metric.Float64Histogram
	statusChanges metric.Int64Counter
	movements     metric.Int64Counter
}

func NewOrderMetrics() (*OrderMetrics, error) {
	meter := otel.Meter("marketplace/orders")

	ordersCreated, err := meter.Int64Counter("orders_created_total",
		metric.WithDescription("Number of orders successfully created"),
	)
	if err != nil {
		return nil, err
	}

	orderValue, err := meter.Float64Histogram("order_value",
		metric.WithDescription("Order totals in currency units"),
	)
	if err != nil {
		return nil, err
	}

	statusChanges, err := meter.Int64Counter("order_status_changes_total",
		metric.WithDescription("Number of order status transitions, by target status"),
	)
	if err != nil {
		return nil, err
	}

	movements, err := meter.Int64Counter("inventory_movements_total",
		metric.WithDescription("Number of inventory movements registered, by kind"),
	)
	if err != nil {
		return nil, err
	}

	return &OrderMetrics{
		ordersCreated: ordersCreated,
		orderValue:    orderValue,
		statusChanges: statusChanges,
		movements:     movements,
	}, nil
}

func (m *OrderMetrics) RecordOrderCreated(ctx context.Context, total float64) {
	m.ordersCreated.Add(ctx, 1)
	m.orderValue.Record(ctx, total)
}

func (m *OrderMetrics) RecordStatusChange(ctx context.Context, status string) {
	m.statusChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *OrderMetrics) RecordMovement(ctx context.Context, kind string) {
	m.movements.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
