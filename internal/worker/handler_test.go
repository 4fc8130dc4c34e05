package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
	"github.com/joao-fontenele/marketplace-api/internal/orders"
)

type fakeStockReader struct {
	low      []domain.Product
	gotIDs   []string
	err      error
	numCalls int
}

func (f *fakeStockReader) LowStock(_ context.Context, ids []string) ([]domain.Product, error) {
	f.numCalls++
	f.gotIDs = ids
	return f.low, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLowStockHandler_Handle(t *testing.T) {
	t.Run("checks stock for every product in a created order", func(t *testing.T) {
		reader := &fakeStockReader{
			low: []domain.Product{
				{
					ID:                "prod-1",
					Name:              "Laptop",
					Price:             decimal.RequireFromString("45.00"),
					Stock:             2,
					LowStockThreshold: 5,
				},
			},
		}
		handler := NewLowStockHandler(reader, discardLogger())

		event := domain.OrderCreatedEvent{
			OrderID: "order-1",
			UserID:  "user-1",
			Items: []domain.OrderItemEvent{
				{ProductID: "prod-1", Quantity: 2},
				{ProductID: "prod-2", Quantity: 1},
			},
			Timestamp: time.Now().UTC(),
		}
		payload, _ := json.Marshal(event)

		if err := handler.Handle(context.Background(), orders.TopicOrderCreated, payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if reader.numCalls != 1 {
			t.Fatalf("expected 1 stock check, got %d", reader.numCalls)
		}
		if len(reader.gotIDs) != 2 {
			t.Fatalf("expected 2 product ids, got %v", reader.gotIDs)
		}
		if reader.gotIDs[0] != "prod-1" || reader.gotIDs[1] != "prod-2" {
			t.Errorf("unexpected product ids: %v", reader.gotIDs)
		}
	})

	t.Run("status change does not trigger a stock check", func(t *testing.T) {
		reader := &fakeStockReader{}
		handler := NewLowStockHandler(reader, discardLogger())

		event := domain.OrderStatusChangedEvent{
			OrderID:   "order-1",
			Status:    domain.StatusCancelled,
			Timestamp: time.Now().UTC(),
		}
		payload, _ := json.Marshal(event)

		if err := handler.Handle(context.Background(), orders.TopicOrderStatusChanged, payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reader.numCalls != 0 {
			t.Errorf("expected no stock checks, got %d", reader.numCalls)
		}
	})

	t.Run("malformed payload is rejected so the offset is not committed", func(t *testing.T) {
		handler := NewLowStockHandler(&fakeStockReader{}, discardLogger())

		if err := handler.Handle(context.Background(), orders.TopicOrderCreated, []byte("{not json")); err == nil {
			t.Fatal("expected an error for malformed payload")
		}
	})

	t.Run("unknown topic is ignored", func(t *testing.T) {
		reader := &fakeStockReader{}
		handler := NewLowStockHandler(reader, discardLogger())

		if err := handler.Handle(context.Background(), "some.other.topic", []byte("{}")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reader.numCalls != 0 {
			t.Errorf("expected no stock checks, got %d", reader.numCalls)
		}
	})
}
