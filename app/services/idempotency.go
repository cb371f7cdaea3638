package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
	"github.com/shashiranjanraj/kashvi-shop/pkg/cache"
	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
)

const (
	maxIdempotencyKeyLen = 128
	idemPending          = "pending"
	idemDone             = "done"
)

type idemRecord struct {
	State   string `json:"state"`
	OrderID uint   `json:"order_id,omitempty"`
}

// Idempotency remembers which order a client-chosen key produced, per user.
type Idempotency struct {
	store      cache.Store
	ttl        time.Duration
	pendingTTL time.Duration
}

func NewIdempotency(store cache.Store, ttl time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl, pendingTTL: 5 * time.Minute}
}

// Do runs place at most once per (userID, key). A key that already produced
// an order returns that order with replayed=true. A key whose first request
// is still running returns ErrDuplicateRequest. When place fails the key is
// released so the client can retry with it.
//
// An empty key, or a nil receiver, runs place directly.
func (i *Idempotency) Do(
	ctx context.Context,
	userID uint,
	key string,
	place func() (*models.Order, error),
	load func(id uint) (*models.Order, error),
) (order *models.Order, replayed bool, err error) {
	if i == nil || key == "" {
		order, err = place()
		return order, false, err
	}
	if len(key) > maxIdempotencyKeyLen {
		return nil, false, &ValidationError{Fields: map[string]string{
			"Idempotency-Key": fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLen),
		}}
	}

	log := logger.WithCtx(ctx)
	cacheKey := fmt.Sprintf("idem:%d:%s", userID, key)
	pending := idemRecord{State: idemPending}

	raw, err := encodeIdem(pending)
	if err != nil {
		return nil, false, err
	}
	claimed, err := i.store.SetNX(ctx, cacheKey, raw, i.pendingTTL)
	if err != nil {
		// The cache is an optimisation over the transaction; run unguarded.
		log.Warn("idempotency: cache unavailable, running without key", "error", err)
		order, err = place()
		return order, false, err
	}

	if !claimed {
		var rec idemRecord
		if err := cache.GetJSON(ctx, i.store, cacheKey, &rec); err != nil {
			if errors.Is(err, cache.ErrMiss) {
				return nil, false, ErrDuplicateRequest
			}
			return nil, false, fmt.Errorf("idempotency: read: %w", err)
		}
		if rec.State != idemDone {
			return nil, false, ErrDuplicateRequest
		}
		order, err = load(rec.OrderID)
		if err != nil {
			return nil, false, err
		}
		log.Info("idempotency: replayed", "order_id", rec.OrderID)
		return order, true, nil
	}

	order, err = place()
	if err != nil {
		if derr := i.store.Del(context.WithoutCancel(ctx), cacheKey); derr != nil {
			log.Warn("idempotency: release key", "error", derr)
		}
		return nil, false, err
	}

	done := idemRecord{State: idemDone, OrderID: order.ID}
	if err := cache.SetJSON(context.WithoutCancel(ctx), i.store, cacheKey, done, i.ttl); err != nil {
		log.Warn("idempotency: store result", "order_id", order.ID, "error", err)
	}
	return order, false, nil
}

func encodeIdem(r idemRecord) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("idempotency: encode: %w", err)
	}
	return raw, nil
}
