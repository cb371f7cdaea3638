package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/shashiranjanraj/kashvi-shop/pkg/metrics"
)

// StockDecrementer is the catalog's conditional decrement: subtract qty only
// if at least qty is in stock, and report whether a row changed.
type StockDecrementer interface {
	DecrementStock(ctx context.Context, productID uint, qty int) (bool, error)
}

// Reservation is a (product, quantity) pair to take from stock.
type Reservation struct {
	ProductID uint
	Quantity  int
}

// Reserve decrements stock for every reservation using the catalog's
// conditional update. Lines for the same product are merged and products
// are locked in ascending id order, so two checkouts over the same products
// always take row locks in the same order.
//
// Every line must be positive and the merged quantity per product may not
// exceed MaxLineQuantity; a *ValidationError is returned otherwise.
//
// Reserve stops at the first shortfall and returns *InsufficientStockError.
// It does not undo earlier decrements; callers run it inside a transaction.
func Reserve(ctx context.Context, catalog StockDecrementer, lines []Reservation) error {
	merged, err := mergeReservations(lines)
	if err != nil {
		return err
	}
	for _, r := range merged {
		ok, err := catalog.DecrementStock(ctx, r.ProductID, r.Quantity)
		if err != nil {
			return fmt.Errorf("reserve product %d: %w", r.ProductID, err)
		}
		if !ok {
			metrics.StockReservationFailures.WithLabelValues(strconv.FormatUint(uint64(r.ProductID), 10)).Inc()
			return &InsufficientStockError{ProductID: r.ProductID}
		}
	}
	return nil
}

func mergeReservations(lines []Reservation) ([]Reservation, error) {
	qty := make(map[uint]int, len(lines))
	for _, l := range lines {
		// Checked as a difference so the sum cannot wrap.
		if l.Quantity <= 0 || l.Quantity > MaxLineQuantity-qty[l.ProductID] {
			return nil, &ValidationError{Fields: map[string]string{
				"items": fmt.Sprintf("total quantity for product %d must be between 1 and %d", l.ProductID, MaxLineQuantity),
			}}
		}
		qty[l.ProductID] += l.Quantity
	}
	out := make([]Reservation, 0, len(qty))
	for id, q := range qty {
		out = append(out, Reservation{ProductID: id, Quantity: q})
	}
	slices.SortFunc(out, func(a, b Reservation) int { return cmp.Compare(a.ProductID, b.ProductID) })
	return out, nil
}
