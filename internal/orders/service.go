package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
)

// commissionRate is the platform fee applied to every order total.
var commissionRate = decimal.New(10, -2) // 0.10

// LineInput is one requested order line.
type LineInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Service is the order workflow: transactional creation with stock
// reservation and ledger entries, and the status state machine with its
// cancellation repost. All effects of one call commit or roll back
// together.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// CreateOrder validates stock for every line, persists the order with
// price snapshots, reserves inventory, and appends one SALE movement per
// line, all in a single transaction.
func (s *Service) CreateOrder(ctx context.Context, userID string, items []LineInput) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, domain.ErrEmptyOrder
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, domain.ErrInvalidQuantity)
		}
	}

	var order *domain.Order

	err := s.store.Transact(ctx, func(tx Tx) error {
		pending, err := tx.StatusByName(ctx, domain.StatusPending)
		if err != nil {
			return err
		}
		sale, err := tx.KindByName(ctx, domain.KindSale)
		if err != nil {
			return err
		}
		if pending == nil || sale == nil {
			return fmt.Errorf("order status %s or movement kind %s not seeded: %w",
				domain.StatusPending, domain.KindSale, domain.ErrConfigurationMissing)
		}

		ids := make([]string, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ProductID)
		}
		products, err := tx.ProductsByIDs(ctx, ids)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		order = &domain.Order{
			ID:        uuid.New().String(),
			UserID:    userID,
			Status:    *pending,
			CreatedAt: now,
			UpdatedAt: now,
		}

		total := decimal.Zero
		for _, item := range items {
			product, ok := products[item.ProductID]
			if !ok {
				return fmt.Errorf("product %s: %w", item.ProductID, domain.ErrProductNotFound)
			}
			if product.Stock < item.Quantity {
				return fmt.Errorf("product %s: %w", product.Name, domain.ErrInsufficientStock)
			}

			subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			total = total.Add(subtotal)

			order.Lines = append(order.Lines, domain.OrderLine{
				ID:        uuid.New().String(),
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     product.Price,
				Subtotal:  subtotal,
			})
		}

		order.Total = total
		order.Commission = total.Mul(commissionRate)

		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}

		for _, line := range order.Lines {
			if _, err := tx.Reserve(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
			if err := tx.AppendMovement(ctx, sale.ID, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		"order_id", order.ID, "user_id", userID,
		"lines", len(order.Lines), "total", order.Total)
	return order, nil
}

// SetOrderStatus moves an order through the state machine. DELIVERED and
// CANCELLED are terminal; entering CANCELLED reposts every line's stock
// and appends a RETURN movement per line. Requesting the current status
// is an idempotent no-op, reported through the changed return so callers
// do not re-emit side effects for it.
func (s *Service) SetOrderStatus(ctx context.Context, orderID, statusID string, actor domain.Actor) (order *domain.Order, changed bool, err error) {

	err = s.store.Transact(ctx, func(tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
		}

		if err := s.authorizeTransition(ctx, tx, o, actor); err != nil {
			return err
		}

		if o.Status.Terminal() {
			return fmt.Errorf("order %s is already %s: %w", o.ID, o.Status.Name, domain.ErrTerminalState)
		}

		target, err := tx.StatusByID(ctx, statusID)
		if err != nil {
			return err
		}
		if target == nil {
			return fmt.Errorf("status %s: %w", statusID, domain.ErrInvalidStatus)
		}

		if target.ID == o.Status.ID {
			order = o
			return nil
		}

		if target.Name == domain.StatusCancelled {
			ret, err := tx.KindByName(ctx, domain.KindReturn)
			if err != nil {
				return err
			}
			if ret == nil {
				return fmt.Errorf("movement kind %s not seeded: %w", domain.KindReturn, domain.ErrConfigurationMissing)
			}

			for _, line := range o.Lines {
				if _, err := tx.Release(ctx, line.ProductID, line.Quantity); err != nil {
					return err
				}
				if err := tx.AppendMovement(ctx, ret.ID, line.ProductID, line.Quantity); err != nil {
					return err
				}
			}
		}

		if err := tx.UpdateOrderStatus(ctx, o.ID, target.ID); err != nil {
			return err
		}

		o.Status = *target
		o.UpdatedAt = time.Now().UTC()
		order = o
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		s.logger.Info("order status set",
			"order_id", order.ID, "status", order.Status.Name,
			"actor_id", actor.ID, "actor_role", actor.Role)
	}
	return order, changed, nil
}

// authorizeTransition allows ADMIN for any order and PROVIDER only when
// every line's product belongs to that provider's own profile.
func (s *Service) authorizeTransition(ctx context.Context, tx Tx, order *domain.Order, actor domain.Actor) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleProvider:
		providerID, err := tx.ProviderIDByUserID(ctx, actor.ID)
		if err != nil {
			return err
		}
		if providerID == "" {
			return fmt.Errorf("user %s has no provider profile: %w", actor.ID, domain.ErrForbidden)
		}

		ids := make([]string, 0, len(order.Lines))
		for _, line := range order.Lines {
			ids = append(ids, line.ProductID)
		}
		products, err := tx.ProductsByIDs(ctx, ids)
		if err != nil {
			return err
		}
		for _, line := range order.Lines {
			product, ok := products[line.ProductID]
			if !ok || product.ProviderID != providerID {
				return fmt.Errorf("order %s contains products of another provider: %w", order.ID, domain.ErrForbidden)
			}
		}
		return nil
	default:
		return fmt.Errorf("role %s may not change order status: %w", actor.Role, domain.ErrForbidden)
	}
}

// GetOrder returns an order visible to the actor: admins see all orders,
// users only their own.
func (s *Service) GetOrder(ctx context.Context, id string, actor domain.Actor) (*domain.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrOrderNotFound)
	}
	if actor.Role != domain.RoleAdmin && order.UserID != actor.ID {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrForbidden)
	}
	return order, nil
}

// ListOrders returns the actor's own orders, or every order for admins.
func (s *Service) ListOrders(ctx context.Context, actor domain.Actor) ([]domain.Order, error) {
	if actor.Role == domain.RoleAdmin {
		return s.store.ListOrders(ctx, "")
	}
	return s.store.ListOrders(ctx, actor.ID)
}
