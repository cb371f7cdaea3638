package services

import (
	"context"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
)

// OrderNotifier is told about committed orders. Implementations must not
// block on delivery; errors are logged by the caller and otherwise ignored.
type OrderNotifier interface {
	OrderPlaced(ctx context.Context, order *models.Order) error
	StatusChanged(ctx context.Context, order *models.Order) error
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) OrderPlaced(context.Context, *models.Order) error   { return nil }
func (NopNotifier) StatusChanged(context.Context, *models.Order) error { return nil }
