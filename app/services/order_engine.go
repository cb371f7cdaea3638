package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
	"github.com/shashiranjanraj/kashvi-shop/app/repositories"
	"github.com/shashiranjanraj/kashvi-shop/config"
	"github.com/shashiranjanraj/kashvi-shop/pkg/database"
	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
	"github.com/shashiranjanraj/kashvi-shop/pkg/metrics"
)

const (
	minAddressLen = 5

	// MaxLineQuantity caps one product's quantity in a cart line or order.
	MaxLineQuantity = 10_000

	sourceCart  = "cart"
	sourceItems = "items"
)

// LineItem is one line of an explicit order. Name and Price are taken as
// given and become the order's snapshot.
type LineItem struct {
	ProductID uint            `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderEngine turns a cart or an explicit item list into a confirmed order.
// Stock reservation, order creation and cart clearing commit together or
// not at all.
type OrderEngine struct {
	db          *gorm.DB
	notifier    OrderNotifier
	maxAttempts int
	backoff     time.Duration
}

func NewOrderEngine(db *gorm.DB, notifier OrderNotifier) *OrderEngine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &OrderEngine{
		db:          db,
		notifier:    notifier,
		maxAttempts: config.CheckoutMaxAttempts(),
		backoff:     50 * time.Millisecond,
	}
}

// WithRetry overrides how often a transaction that hit a serialization
// failure or deadlock is re-run, and the base delay between runs.
func (e *OrderEngine) WithRetry(maxAttempts int, backoff time.Duration) *OrderEngine {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	e.maxAttempts = maxAttempts
	e.backoff = backoff
	return e
}

// CheckoutCart places an order for everything in the user's cart at the
// cart's snapshot prices and empties the cart.
func (e *OrderEngine) CheckoutCart(ctx context.Context, userID uint, shippingAddress string) (*models.Order, error) {
	addr, err := validatePlacement(userID, shippingAddress, nil, false)
	if err != nil {
		return nil, err
	}

	return e.place(ctx, sourceCart, func(tx *gorm.DB) (*models.Order, error) {
		carts := repositories.NewCartRepository(tx)
		cart, err := carts.FindByUserForUpdate(ctx, userID)
		if repositories.IsNotFound(err) {
			return nil, ErrEmptyCart
		}
		if err != nil {
			return nil, fmt.Errorf("load cart: %w", err)
		}
		if len(cart.Items) == 0 {
			return nil, ErrEmptyCart
		}

		lines := make([]LineItem, len(cart.Items))
		for i, it := range cart.Items {
			lines[i] = LineItem{
				ProductID: it.ProductID,
				Name:      it.NameSnapshot,
				Quantity:  it.Quantity,
				Price:     it.PriceSnapshot,
			}
		}

		order, err := createOrder(ctx, tx, userID, addr, lines)
		if err != nil {
			return nil, err
		}
		if err := carts.ClearItems(ctx, cart); err != nil {
			return nil, fmt.Errorf("clear cart: %w", err)
		}
		return order, nil
	})
}

// PlaceOrder places an order for an explicit item list. The cart is left
// untouched.
func (e *OrderEngine) PlaceOrder(ctx context.Context, userID uint, shippingAddress string, items []LineItem) (*models.Order, error) {
	addr, err := validatePlacement(userID, shippingAddress, items, true)
	if err != nil {
		return nil, err
	}

	return e.place(ctx, sourceItems, func(tx *gorm.DB) (*models.Order, error) {
		return createOrder(ctx, tx, userID, addr, items)
	})
}

// place runs body in a transaction, re-running it on transient conflicts,
// then notifies outside the transaction.
func (e *OrderEngine) place(ctx context.Context, source string, body func(tx *gorm.DB) (*models.Order, error)) (*models.Order, error) {
	log := logger.WithCtx(ctx)
	start := time.Now()

	var (
		order *models.Order
		err   error
	)
	for attempt := 1; ; attempt++ {
		order = nil
		err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			o, err := body(tx)
			if err != nil {
				return err
			}
			order = o
			return nil
		})
		if err == nil || attempt >= e.maxAttempts || !database.IsTransient(err) {
			break
		}

		metrics.CheckoutRetries.Inc()
		log.Warn("checkout: transient conflict, retrying", "source", source, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(time.Duration(attempt) * e.backoff):
			continue
		}
		break
	}

	if err != nil {
		err = classifyFailure(err)
		metrics.RecordCheckout(source, failureLabel(err), start)
		var txErr *TransactionFailedError
		if errors.As(err, &txErr) {
			log.Error("checkout: transaction failed", "source", source, "error", txErr.Err)
		}
		return nil, err
	}

	metrics.RecordCheckout(source, "success", start)
	log.Info("checkout: order placed",
		"source", source,
		"order_id", order.ID,
		"total", order.Total.StringFixed(2),
		"items", len(order.Items),
	)

	// The order is committed; a cancelled request must not stop the notice.
	if nerr := e.notifier.OrderPlaced(context.WithoutCancel(ctx), order); nerr != nil {
		log.Warn("checkout: order notification failed", "order_id", order.ID, "error", nerr)
	}
	return order, nil
}

// createOrder reserves stock and inserts the order with status confirmed.
// It must run inside the checkout transaction.
func createOrder(ctx context.Context, tx *gorm.DB, userID uint, addr string, lines []LineItem) (*models.Order, error) {
	reservations := make([]Reservation, len(lines))
	for i, l := range lines {
		reservations[i] = Reservation{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	if err := Reserve(ctx, repositories.NewProductRepository(tx), reservations); err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:          userID,
		ShippingAddress: addr,
		Status:          models.StatusConfirmed,
		Total:           decimal.Zero,
		Items:           make([]models.OrderItem, len(lines)),
	}
	for i, l := range lines {
		item := models.OrderItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			Price:     l.Price,
		}
		order.Items[i] = item
		order.Total = order.Total.Add(item.Subtotal())
	}

	if err := repositories.NewOrderRepository(tx).Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

func validatePlacement(userID uint, address string, items []LineItem, explicit bool) (string, error) {
	v := &ValidationError{}
	if userID == 0 {
		v.add("userId", "is required")
	}
	addr := strings.TrimSpace(address)
	if utf8.RuneCountInString(addr) < minAddressLen {
		v.add("shippingAddress", fmt.Sprintf("must be at least %d characters", minAddressLen))
	}
	if explicit {
		if len(items) == 0 {
			v.add("items", "must contain at least one item")
		}
		for i, it := range items {
			prefix := fmt.Sprintf("items.%d.", i)
			if it.ProductID == 0 {
				v.add(prefix+"productId", "is required")
			}
			if strings.TrimSpace(it.Name) == "" {
				v.add(prefix+"name", "is required")
			}
			if it.Quantity <= 0 {
				v.add(prefix+"quantity", "must be greater than 0")
			} else if it.Quantity > MaxLineQuantity {
				v.add(prefix+"quantity", fmt.Sprintf("must be at most %d", MaxLineQuantity))
			}
			if it.Price.IsNegative() {
				v.add(prefix+"price", "must not be negative")
			}
		}
	}
	return addr, v.orNil()
}

// classifyFailure passes business errors through and wraps everything else.
func classifyFailure(err error) error {
	var stock *InsufficientStockError
	var verr *ValidationError
	switch {
	case errors.As(err, &stock), errors.As(err, &verr), errors.Is(err, ErrEmptyCart):
		return err
	default:
		return &TransactionFailedError{Err: err}
	}
}

func failureLabel(err error) string {
	var stock *InsufficientStockError
	switch {
	case errors.As(err, &stock):
		return "insufficient_stock"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	default:
		return "error"
	}
}
