package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace-api/internal/domain"
)

// fakeStore is an in-memory Store. Transact serializes callers and
// restores a snapshot of the whole state when the callback fails, which
// mirrors the all-or-nothing commit the workflow relies on.
type fakeStore struct {
	mu sync.Mutex

	statuses  map[string]domain.OrderStatus // by name
	kinds     map[string]domain.MovementKind
	products  map[string]*domain.Product
	orders    map[string]*domain.Order
	movements []fakeMovement
	providers map[string]string // userID -> providerID
}

type fakeMovement struct {
	kindID    string
	productID string
	quantity  int
}

func newFakeStore() *fakeStore {
	s := &fakeStore{
		statuses:  map[string]domain.OrderStatus{},
		kinds:     map[string]domain.MovementKind{},
		products:  map[string]*domain.Product{},
		orders:    map[string]*domain.Order{},
		providers: map[string]string{},
	}
	for _, name := range []string{domain.StatusPending, domain.StatusConfirmed, domain.StatusDelivered, domain.StatusCancelled} {
		s.statuses[name] = domain.OrderStatus{ID: "status-" + name, Name: name}
	}
	for _, name := range []string{domain.KindSale, domain.KindInbound, domain.KindReturn, domain.KindAdjustment} {
		s.kinds[name] = domain.MovementKind{ID: "kind-" + name, Name: name}
	}
	return s
}

func (s *fakeStore) addProduct(id, providerID, name, price string, stock int) {
	s.products[id] = &domain.Product{
		ID:         id,
		ProviderID: providerID,
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		Active:     true,
	}
}

func (s *fakeStore) snapshot() *fakeStore {
	cp := &fakeStore{
		statuses:  s.statuses,
		kinds:     s.kinds,
		products:  map[string]*domain.Product{},
		orders:    map[string]*domain.Order{},
		movements: append([]fakeMovement(nil), s.movements...),
		providers: s.providers,
	}
	for id, p := range s.products {
		clone := *p
		cp.products[id] = &clone
	}
	for id, o := range s.orders {
		clone := *o
		clone.Lines = append([]domain.OrderLine(nil), o.Lines...)
		cp.orders[id] = &clone
	}
	return cp
}

func (s *fakeStore) restore(snap *fakeStore) {
	s.products = snap.products
	s.orders = snap.orders
	s.movements = snap.movements
}

func (s *fakeStore) Transact(_ context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&fakeTx{store: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *fakeStore) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	clone := *o
	clone.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &clone, nil
}

func (s *fakeStore) ListOrders(_ context.Context, userID string) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if userID == "" || o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *fakeStore) movementCount(kindName string) int {
	n := 0
	for _, m := range s.movements {
		if m.kindID == s.kinds[kindName].ID {
			n++
		}
	}
	return n
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) StatusByName(_ context.Context, name string) (*domain.OrderStatus, error) {
	if st, ok := t.store.statuses[name]; ok {
		return &st, nil
	}
	return nil, nil
}

func (t *fakeTx) StatusByID(_ context.Context, id string) (*domain.OrderStatus, error) {
	for _, st := range t.store.statuses {
		if st.ID == id {
			return &st, nil
		}
	}
	return nil, nil
}

func (t *fakeTx) KindByName(_ context.Context, name string) (*domain.MovementKind, error) {
	if k, ok := t.store.kinds[name]; ok {
		return &k, nil
	}
	return nil, nil
}

func (t *fakeTx) ProductsByIDs(_ context.Context, ids []string) (map[string]*domain.Product, error) {
	out := map[string]*domain.Product{}
	for _, id := range ids {
		if p, ok := t.store.products[id]; ok {
			clone := *p
			out[id] = &clone
		}
	}
	return out, nil
}

func (t *fakeTx) InsertOrder(_ context.Context, order *domain.Order) error {
	clone := *order
	clone.Lines = append([]domain.OrderLine(nil), order.Lines...)
	t.store.orders[order.ID] = &clone
	return nil
}

func (t *fakeTx) OrderForUpdate(_ context.Context, id string) (*domain.Order, error) {
	o, ok := t.store.orders[id]
	if !ok {
		return nil, nil
	}
	clone := *o
	clone.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &clone, nil
}

func (t *fakeTx) UpdateOrderStatus(_ context.Context, orderID, statusID string) error {
	o, ok := t.store.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s vanished", orderID)
	}
	for _, st := range t.store.statuses {
		if st.ID == statusID {
			o.Status = st
			return nil
		}
	}
	return fmt.Errorf("status %s vanished", statusID)
}

func (t *fakeTx) ProviderIDByUserID(_ context.Context, userID string) (string, error) {
	return t.store.providers[userID], nil
}

func (t *fakeTx) Reserve(_ context.Context, productID string, quantity int) (int, error) {
	p, ok := t.store.products[productID]
	if !ok {
		return 0, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	if p.Stock < quantity {
		return 0, fmt.Errorf("product %s: %w", p.Name, domain.ErrInsufficientStock)
	}
	p.Stock -= quantity
	return p.Stock, nil
}

func (t *fakeTx) Release(_ context.Context, productID string, quantity int) (int, error) {
	p, ok := t.store.products[productID]
	if !ok {
		return 0, fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	}
	p.Stock += quantity
	return p.Stock, nil
}

func (t *fakeTx) AppendMovement(_ context.Context, kindID, productID string, quantity int) error {
	t.store.movements = append(t.store.movements, fakeMovement{
		kindID:    kindID,
		productID: productID,
		quantity:  quantity,
	})
	return nil
}

func newTestService(store *fakeStore) *Service {
	return NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestService_CreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("computes exact totals and commission", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 50)
		store.addProduct("prod-2", "prov-1", "Mouse", "19.99", 10)
		svc := newTestService(store)

		order, err := svc.CreateOrder(ctx, "user-1", []LineInput{
			{ProductID: "prod-1", Quantity: 2},
			{ProductID: "prod-2", Quantity: 3},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wantTotal := decimal.RequireFromString("149.97")
		if !order.Total.Equal(wantTotal) {
			t.Errorf("expected total %s, got %s", wantTotal, order.Total)
		}
		wantCommission := decimal.RequireFromString("14.997")
		if !order.Commission.Equal(wantCommission) {
			t.Errorf("expected commission %s, got %s", wantCommission, order.Commission)
		}
		if order.Status.Name != domain.StatusPending {
			t.Errorf("expected status PENDING, got %s", order.Status.Name)
		}
		if len(order.Lines) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(order.Lines))
		}
		if !order.Lines[0].Subtotal.Equal(decimal.RequireFromString("90.00")) {
			t.Errorf("unexpected subtotal for first line: %s", order.Lines[0].Subtotal)
		}
	})

	t.Run("reserves stock and appends one sale movement per line", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 50)
		store.addProduct("prod-2", "prov-1", "Mouse", "19.99", 10)
		svc := newTestService(store)

		if _, err := svc.CreateOrder(ctx, "user-1", []LineInput{
			{ProductID: "prod-1", Quantity: 2},
			{ProductID: "prod-2", Quantity: 3},
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := store.products["prod-1"].Stock; got != 48 {
			t.Errorf("expected stock 48, got %d", got)
		}
		if got := store.products["prod-2"].Stock; got != 7 {
			t.Errorf("expected stock 7, got %d", got)
		}
		if got := store.movementCount(domain.KindSale); got != 2 {
			t.Errorf("expected 2 SALE movements, got %d", got)
		}
	})

	t.Run("rejects an order with no items", func(t *testing.T) {
		svc := newTestService(newFakeStore())

		_, err := svc.CreateOrder(ctx, "user-1", nil)
		if !errors.Is(err, domain.ErrEmptyOrder) {
			t.Fatalf("expected ErrEmptyOrder, got %v", err)
		}
	})

	t.Run("rejects non-positive quantities before touching storage", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 50)
		svc := newTestService(store)

		for _, quantity := range []int{0, -3} {
			_, err := svc.CreateOrder(ctx, "user-1", []LineInput{{ProductID: "prod-1", Quantity: quantity}})
			if !errors.Is(err, domain.ErrInvalidQuantity) {
				t.Errorf("quantity %d: expected ErrInvalidQuantity, got %v", quantity, err)
			}
		}
		if got := store.products["prod-1"].Stock; got != 50 {
			t.Errorf("stock must be untouched, got %d", got)
		}
	})

	t.Run("unknown product fails the whole order", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 50)
		svc := newTestService(store)

		_, err := svc.CreateOrder(ctx, "user-1", []LineInput{
			{ProductID: "prod-1", Quantity: 1},
			{ProductID: "prod-missing", Quantity: 1},
		})
		if !errors.Is(err, domain.ErrProductNotFound) {
			t.Fatalf("expected ErrProductNotFound, got %v", err)
		}
		if got := store.products["prod-1"].Stock; got != 50 {
			t.Errorf("stock must be untouched after rollback, got %d", got)
		}
		if len(store.orders) != 0 {
			t.Errorf("no order must be stored, got %d", len(store.orders))
		}
	})

	t.Run("insufficient stock rolls back every effect", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 50)
		store.addProduct("prod-2", "prov-1", "Mouse", "19.99", 2)
		svc := newTestService(store)

		_, err := svc.CreateOrder(ctx, "user-1", []LineInput{
			{ProductID: "prod-1", Quantity: 1},
			{ProductID: "prod-2", Quantity: 5},
		})
		if !errors.Is(err, domain.ErrInsufficientStock) {
			t.Fatalf("expected ErrInsufficientStock, got %v", err)
		}

		if got := store.products["prod-1"].Stock; got != 50 {
			t.Errorf("expected stock 50 after rollback, got %d", got)
		}
		if got := store.products["prod-2"].Stock; got != 2 {
			t.Errorf("expected stock 2 after rollback, got %d", got)
		}
		if len(store.orders) != 0 {
			t.Errorf("no order must be stored, got %d", len(store.orders))
		}
		if len(store.movements) != 0 {
			t.Errorf("no movements must be stored, got %d", len(store.movements))
		}
	})

	t.Run("missing catalog rows surface as configuration missing", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 50)
		delete(store.statuses, domain.StatusPending)
		svc := newTestService(store)

		_, err := svc.CreateOrder(ctx, "user-1", []LineInput{{ProductID: "prod-1", Quantity: 1}})
		if !errors.Is(err, domain.ErrConfigurationMissing) {
			t.Fatalf("expected ErrConfigurationMissing, got %v", err)
		}
	})

	t.Run("two racing orders over the same stock produce one success and one conflict", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 3)
		svc := newTestService(store)

		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.CreateOrder(ctx, "user-1", []LineInput{{ProductID: "prod-1", Quantity: 2}})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		var successes, conflicts int
		for err := range errs {
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrInsufficientStock):
				conflicts++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if successes != 1 || conflicts != 1 {
			t.Fatalf("expected 1 success and 1 conflict, got %d and %d", successes, conflicts)
		}
		if got := store.products["prod-1"].Stock; got != 1 {
			t.Errorf("expected stock 1, got %d", got)
		}
	})
}

func TestService_SetOrderStatus(t *testing.T) {
	ctx := context.Background()
	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}

	createOrder := func(t *testing.T, store *fakeStore, svc *Service) *domain.Order {
		t.Helper()
		order, err := svc.CreateOrder(ctx, "user-1", []LineInput{{ProductID: "prod-1", Quantity: 2}})
		if err != nil {
			t.Fatalf("failed to create order: %v", err)
		}
		return order
	}

	t.Run("admin confirms a pending order", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 50)
		svc := newTestService(store)
		order := createOrder(t, store, svc)

		updated, changed, err := svc.SetOrderStatus(ctx, order.ID, store.statuses[domain.StatusConfirmed].ID, admin)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !changed {
			t.Error("expected the transition to report a change")
		}
		if updated.Status.Name != domain.StatusConfirmed {
			t.Errorf("expected CONFIRMED, got %s", updated.Status.Name)
		}
	})

	t.Run("setting the current status is a no-op", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 50)
		svc := newTestService(store)
		order := createOrder(t, store, svc)

		before := len(store.movements)
		updated, changed, err := svc.SetOrderStatus(ctx, order.ID, store.statuses[domain.StatusPending].ID, admin)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if changed {
			t.Error("no-op must not report a change")
		}
		if updated.Status.Name != domain.StatusPending {
			t.Errorf("expected PENDING, got %s", updated.Status.Name)
		}
		if len(store.movements) != before {
			t.Errorf("no-op must not append movements")
		}
	})

	t.Run("cancellation reposts stock with return movements", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 50)
		svc := newTestService(store)
		order := createOrder(t, store, svc)

		if got := store.products["prod-1"].Stock; got != 48 {
			t.Fatalf("expected stock 48 before cancellation, got %d", got)
		}

		updated, _, err := svc.SetOrderStatus(ctx, order.ID, store.statuses[domain.StatusCancelled].ID, admin)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Status.Name != domain.StatusCancelled {
			t.Errorf("expected CANCELLED, got %s", updated.Status.Name)
		}
		if got := store.products["prod-1"].Stock; got != 50 {
			t.Errorf("expected stock reposted to 50, got %d", got)
		}
		if got := store.movementCount(domain.KindReturn); got != 1 {
			t.Errorf("expected 1 RETURN movement, got %d", got)
		}
	})

	t.Run("terminal orders reject any further transition", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 50)
		svc := newTestService(store)
		order := createOrder(t, store, svc)

		if _, _, err := svc.SetOrderStatus(ctx, order.ID, store.statuses[domain.StatusCancelled].ID, admin); err != nil {
			t.Fatalf("cancellation failed: %v", err)
		}

		_, _, err := svc.SetOrderStatus(ctx, order.ID, store.statuses[domain.StatusConfirmed].ID, admin)
		if !errors.Is(err, domain.ErrTerminalState) {
			t.Fatalf("expected ErrTerminalState, got %v", err)
		}

		// A second cancellation must not repost stock again.
		_, _, err = svc.SetOrderStatus(ctx, order.ID, store.statuses[domain.StatusCancelled].ID, admin)
		if !errors.Is(err, domain.ErrTerminalState) {
			t.Fatalf("expected ErrTerminalState, got %v", err)
		}
		if got := store.products["prod-1"].Stock; got != 50 {
			t.Errorf("expected stock 50, got %d", got)
		}
		if got := store.movementCount(domain.KindReturn); got != 1 {
			t.Errorf("expected exactly 1 RETURN movement, got %d", got)
		}
	})

	t.Run("unknown status id is rejected", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 50)
		svc := newTestService(store)
		order := createOrder(t, store, svc)

		_, _, err := svc.SetOrderStatus(ctx, order.ID, "status-nope", admin)
		if !errors.Is(err, domain.ErrInvalidStatus) {
			t.Fatalf("expected ErrInvalidStatus, got %v", err)
		}
	})

	t.Run("unknown order is rejected", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store)

		_, _, err := svc.SetOrderStatus(ctx, "order-nope", store.statuses[domain.StatusConfirmed].ID, admin)
		if !errors.Is(err, domain.ErrOrderNotFound) {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
	})

	t.Run("plain users may not change status", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 50)
		svc := newTestService(store)
		order := createOrder(t, store, svc)

		_, _, err := svc.SetOrderStatus(ctx, order.ID, store.statuses[domain.StatusConfirmed].ID,
			domain.Actor{ID: "user-1", Role: domain.RoleUser})
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("provider without a profile is forbidden", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 50)
		svc := newTestService(store)
		order := createOrder(t, store, svc)

		_, _, err := svc.SetOrderStatus(ctx, order.ID, store.statuses[domain.StatusConfirmed].ID,
			domain.Actor{ID: "stranger", Role: domain.RoleProvider})
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("provider owning every line may transition", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 50)
		store.providers["provider-user"] = "prov-1"
		svc := newTestService(store)
		order := createOrder(t, store, svc)

		updated, _, err := svc.SetOrderStatus(ctx, order.ID, store.statuses[domain.StatusConfirmed].ID,
			domain.Actor{ID: "provider-user", Role: domain.RoleProvider})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Status.Name != domain.StatusConfirmed {
			t.Errorf("expected CONFIRMED, got %s", updated.Status.Name)
		}
	})

	t.Run("provider is forbidden when the order mixes another provider's products", func(t *testing.T) {
		store := newFakeStore()
		store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 50)
		store.addProduct("prod-2", "prov-2", "Mouse", "19.99", 10)
		store.providers["provider-user"] = "prov-1"
		svc := newTestService(store)

		order, err := svc.CreateOrder(ctx, "user-1", []LineInput{
			{ProductID: "prod-1", Quantity: 1},
			{ProductID: "prod-2", Quantity: 1},
		})
		if err != nil {
			t.Fatalf("failed to create order: %v", err)
		}

		_, _, err = svc.SetOrderStatus(ctx, order.ID, store.statuses[domain.StatusConfirmed].ID,
			domain.Actor{ID: "provider-user", Role: domain.RoleProvider})
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})
}

func TestService_GetOrder(t *testing.T) {
	ctx := context.Background()

	store := newFakeStore()
	store.addProduct("prod-1", "prov-1", "Laptop", "45.00", 50)
	svc := newTestService(store)

	order, err := svc.CreateOrder(ctx, "user-1", []LineInput{{ProductID: "prod-1", Quantity: 1}})
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	t.Run("owner sees the order", func(t *testing.T) {
		got, err := svc.GetOrder(ctx, order.ID, domain.Actor{ID: "user-1", Role: domain.RoleUser})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ID != order.ID {
			t.Errorf("expected order %s, got %s", order.ID, got.ID)
		}
	})

	t.Run("admin sees any order", func(t *testing.T) {
		if _, err := svc.GetOrder(ctx, order.ID, domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("another user is forbidden", func(t *testing.T) {
		_, err := svc.GetOrder(ctx, order.ID, domain.Actor{ID: "user-2", Role: domain.RoleUser})
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("missing order", func(t *testing.T) {
		_, err := svc.GetOrder(ctx, "order-nope", domain.Actor{ID: "user-1", Role: domain.RoleUser})
		if !errors.Is(err, domain.ErrOrderNotFound) {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
	})
}
