// Package jobs holds the shop's background work. Order notifications are
// queued so SMTP or broker latency never sits inside a checkout request.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
	"github.com/shashiranjanraj/kashvi-shop/app/notifications"
	"github.com/shashiranjanraj/kashvi-shop/app/repositories"
	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
	"github.com/shashiranjanraj/kashvi-shop/pkg/notification"
	"github.com/shashiranjanraj/kashvi-shop/pkg/queue"
	"github.com/shashiranjanraj/kashvi-shop/pkg/storage"
)

const (
	OrderPlacedName = "order.placed"
	OrderStatusName = "order.status"
)

// Sender is satisfied by *notification.Dispatcher.
type Sender interface {
	Send(ctx context.Context, address string, n notification.Notification) error
}

// Deps is what the jobs need on the worker side. Receipts may be nil.
type Deps struct {
	Orders   *repositories.OrderRepository
	Users    *repositories.UserRepository
	Sender   Sender
	Receipts storage.Disk
}

// Register installs the job factories on m.
func Register(m *queue.Manager, d *Deps) {
	m.Register(OrderPlacedName, func() queue.Job { return &OrderPlacedJob{deps: d} })
	m.Register(OrderStatusName, func() queue.Job { return &OrderStatusJob{deps: d} })
}

// OrderPlacedJob archives the receipt and sends the confirmation.
type OrderPlacedJob struct {
	OrderID uint `json:"order_id"`
	deps    *Deps
}

func (j *OrderPlacedJob) JobName() string { return OrderPlacedName }

func (j *OrderPlacedJob) Handle(ctx context.Context) error {
	order, email, err := j.deps.load(ctx, j.OrderID)
	if err != nil {
		return err
	}
	if err := j.deps.archive(ctx, order); err != nil {
		return err
	}
	if email == "" {
		return nil
	}
	return j.deps.Sender.Send(ctx, email, notifications.OrderConfirmation{Order: order})
}

// OrderStatusJob tells the customer about a shipped or delivered order.
type OrderStatusJob struct {
	OrderID uint               `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
	deps    *Deps
}

func (j *OrderStatusJob) JobName() string { return OrderStatusName }

func (j *OrderStatusJob) Handle(ctx context.Context) error {
	order, email, err := j.deps.load(ctx, j.OrderID)
	if err != nil || email == "" {
		return err
	}
	return j.deps.Sender.Send(ctx, email, notifications.StatusChanged{Order: order, Status: j.Status})
}

// load returns an empty email when the customer has none on record; there
// is nobody to notify and retrying will not change that.
func (d *Deps) load(ctx context.Context, orderID uint) (*models.Order, string, error) {
	order, err := d.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, "", fmt.Errorf("load order %d: %w", orderID, err)
	}
	email, err := d.Users.FindEmail(ctx, order.UserID)
	if repositories.IsNotFound(err) {
		logger.WithCtx(ctx).Warn("jobs: no email on record, notification skipped",
			"order_id", order.ID, "user_id", order.UserID)
		return order, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("load email for user %d: %w", order.UserID, err)
	}
	return order, email, nil
}

// ReceiptPath is where an order's receipt is archived.
func ReceiptPath(o *models.Order) string {
	return fmt.Sprintf("receipts/%s/order-%d.json", o.CreatedAt.UTC().Format("2006/01"), o.ID)
}

func (d *Deps) archive(ctx context.Context, o *models.Order) error {
	if d.Receipts == nil {
		return nil
	}
	raw, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	path := ReceiptPath(o)
	if err := d.Receipts.Put(ctx, path, raw); err != nil {
		return fmt.Errorf("archive receipt: %w", err)
	}
	logger.WithCtx(ctx).Debug("jobs: receipt archived", "order_id", o.ID, "path", path)
	return nil
}
