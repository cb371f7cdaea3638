package jobs

import (
	"context"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
	"github.com/shashiranjanraj/kashvi-shop/pkg/queue"
)

// QueueNotifier turns order events into queued jobs.
type QueueNotifier struct {
	queue *queue.Manager
}

func NewQueueNotifier(m *queue.Manager) *QueueNotifier {
	return &QueueNotifier{queue: m}
}

func (n *QueueNotifier) OrderPlaced(ctx context.Context, o *models.Order) error {
	return n.queue.Dispatch(ctx, &OrderPlacedJob{OrderID: o.ID})
}

func (n *QueueNotifier) StatusChanged(ctx context.Context, o *models.Order) error {
	return n.queue.Dispatch(ctx, &OrderStatusJob{OrderID: o.ID, Status: o.Status})
}
