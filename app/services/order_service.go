package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
	"github.com/shashiranjanraj/kashvi-shop/app/repositories"
	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
	"github.com/shashiranjanraj/kashvi-shop/pkg/response"
)

// Viewer is the caller an order query runs on behalf of.
type Viewer struct {
	UserID uint
	Admin  bool
}

// PageLimits bounds a list endpoint's page size.
type PageLimits struct {
	Default int
	Max     int
}

var (
	MyOrdersLimits    = PageLimits{Default: 10, Max: 50}
	AdminOrdersLimits = PageLimits{Default: 20, Max: 100}
)

// clamp normalises page to ≥ 1 and limit to [1, Max], using Default for 0.
func (l PageLimits) clamp(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit == 0:
		limit = l.Default
	case limit < 1:
		limit = 1
	case limit > l.Max:
		limit = l.Max
	}
	return page, limit
}

// OrderService is the entry point for everything order related: placing
// orders (with optional idempotency keys), reading them, and moving them
// through their status lifecycle.
type OrderService struct {
	engine   *OrderEngine
	orders   *repositories.OrderRepository
	notifier OrderNotifier
	idem     *Idempotency
}

func NewOrderService(db *gorm.DB, engine *OrderEngine, notifier OrderNotifier, idem *Idempotency) *OrderService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &OrderService{
		engine:   engine,
		orders:   repositories.NewOrderRepository(db),
		notifier: notifier,
		idem:     idem,
	}
}

// Checkout converts the user's cart into an order. replayed is true when
// idemKey matched an earlier successful checkout.
func (s *OrderService) Checkout(ctx context.Context, userID uint, idemKey, shippingAddress string) (*models.Order, bool, error) {
	return s.idem.Do(ctx, userID, idemKey,
		func() (*models.Order, error) { return s.engine.CheckoutCart(ctx, userID, shippingAddress) },
		func(id uint) (*models.Order, error) { return s.find(ctx, id) },
	)
}

// Place creates an order from an explicit item list.
func (s *OrderService) Place(ctx context.Context, userID uint, idemKey, shippingAddress string, items []LineItem) (*models.Order, bool, error) {
	return s.idem.Do(ctx, userID, idemKey,
		func() (*models.Order, error) { return s.engine.PlaceOrder(ctx, userID, shippingAddress, items) },
		func(id uint) (*models.Order, error) { return s.find(ctx, id) },
	)
}

// Get returns an order visible to viewer: its owner or an admin.
func (s *OrderService) Get(ctx context.Context, viewer Viewer, id uint) (*models.Order, error) {
	o, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != viewer.UserID && !viewer.Admin {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListMine pages through the user's own orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, userID uint, page, limit int) ([]models.Order, response.Pagination, error) {
	page, limit = MyOrdersLimits.clamp(page, limit)
	orders, total, err := s.orders.ListByUser(ctx, userID, page, limit)
	if err != nil {
		return nil, response.Pagination{}, fmt.Errorf("list orders: %w", err)
	}
	return orders, response.NewPagination(page, limit, total), nil
}

// ListAll pages through every order, optionally filtered by status.
func (s *OrderService) ListAll(ctx context.Context, status string, page, limit int) ([]models.Order, response.Pagination, error) {
	st := models.OrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && !st.Valid() {
		return nil, response.Pagination{}, invalidStatus()
	}
	page, limit = AdminOrdersLimits.clamp(page, limit)
	orders, total, err := s.orders.List(ctx, st, page, limit)
	if err != nil {
		return nil, response.Pagination{}, fmt.Errorf("list orders: %w", err)
	}
	return orders, response.NewPagination(page, limit, total), nil
}

// UpdateStatus sets an order's status. Moving to shipped or delivered tells
// the customer, best effort.
func (s *OrderService) UpdateStatus(ctx context.Context, id uint, status string) (*models.Order, error) {
	st := models.OrderStatus(status)
	if !st.Valid() {
		return nil, invalidStatus()
	}

	ok, err := s.orders.UpdateStatus(ctx, id, st)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}

	o, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.WithCtx(ctx).Info("order: status changed", "order_id", id, "status", st)

	if st == models.StatusShipped || st == models.StatusDelivered {
		if nerr := s.notifier.StatusChanged(context.WithoutCancel(ctx), o); nerr != nil {
			logger.WithCtx(ctx).Warn("order: status notification failed", "order_id", id, "error", nerr)
		}
	}
	return o, nil
}

func (s *OrderService) find(ctx context.Context, id uint) (*models.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if repositories.IsNotFound(err) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	return o, nil
}

func invalidStatus() error {
	names := make([]string, len(models.OrderStatuses))
	for i, s := range models.OrderStatuses {
		names[i] = string(s)
	}
	return &ValidationError{Fields: map[string]string{
		"status": "must be one of " + strings.Join(names, ", "),
	}}
}
