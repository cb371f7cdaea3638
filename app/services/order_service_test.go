package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
	"github.com/shashiranjanraj/kashvi-shop/pkg/cache"
)

func newOrderService(db *gorm.DB, notes OrderNotifier) *OrderService {
	idem := NewIdempotency(cache.NewMemoryStore(), time.Hour)
	return NewOrderService(db, NewOrderEngine(db, notes), notes, idem)
}

func placeOne(t *testing.T, svc *OrderService, userID uint, p *models.Product) *models.Order {
	t.Helper()
	o, _, err := svc.Place(context.Background(), userID, "", addr, []LineItem{
		{ProductID: p.ID, Name: p.Name, Quantity: 1, Price: p.Price},
	})
	require.NoError(t, err)
	return o
}

func TestGetOrderVisibility(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	owner := seedUser(t, db, "owner@shop.test", models.RoleCustomer)
	other := seedUser(t, db, "other@shop.test", models.RoleCustomer)
	admin := seedUser(t, db, "admin@shop.test", models.RoleAdmin)
	p := seedProduct(t, db, "kurta", "10.00", 5)
	svc := newOrderService(db, nil)
	o := placeOne(t, svc, owner.ID, p)

	got, err := svc.Get(ctx, Viewer{UserID: owner.ID}, o.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)

	_, err = svc.Get(ctx, Viewer{UserID: other.ID}, o.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(ctx, Viewer{UserID: admin.ID, Admin: true}, o.ID)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, Viewer{UserID: owner.ID}, o.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListMinePaginates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)
	other := seedUser(t, db, "b@shop.test", models.RoleCustomer)
	p := seedProduct(t, db, "kurta", "10.00", 50)
	svc := newOrderService(db, nil)

	var ids []uint
	for i := 0; i < 3; i++ {
		ids = append(ids, placeOne(t, svc, user.ID, p).ID)
	}
	placeOne(t, svc, other.ID, p)

	orders, page, err := svc.ListMine(ctx, user.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, ids[2], orders[0].ID, "newest first")
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)

	orders, _, err = svc.ListMine(ctx, user.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, ids[0], orders[0].ID)

	_, page, err = svc.ListMine(ctx, user.ID, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, MyOrdersLimits.Max, page.Limit)
}

func TestListAllFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)
	p := seedProduct(t, db, "kurta", "10.00", 50)
	svc := newOrderService(db, nil)

	first := placeOne(t, svc, user.ID, p)
	placeOne(t, svc, user.ID, p)
	_, err := svc.UpdateStatus(ctx, first.ID, "shipped")
	require.NoError(t, err)

	orders, page, err := svc.ListAll(ctx, "Shipped", 0, 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, first.ID, orders[0].ID)
	assert.Equal(t, AdminOrdersLimits.Default, page.Limit)

	all, _, err := svc.ListAll(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, _, err = svc.ListAll(ctx, "lost", 1, 10)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)
	p := seedProduct(t, db, "kurta", "10.00", 5)
	notes := &recordingNotifier{}
	svc := newOrderService(db, notes)
	o := placeOne(t, svc, user.ID, p)

	_, err := svc.UpdateStatus(ctx, o.ID, "teleported")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["status"], "pending, confirmed, shipped, delivered")

	_, err = svc.UpdateStatus(ctx, o.ID+100, "shipped")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := svc.UpdateStatus(ctx, o.ID, "pending")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)

	got, err = svc.UpdateStatus(ctx, o.ID, "shipped")
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, got.Status)
	_, err = svc.UpdateStatus(ctx, o.ID, "delivered")
	require.NoError(t, err)

	assert.Equal(t, []models.OrderStatus{models.StatusShipped, models.StatusDelivered}, notes.changed)
}

func TestCheckoutReplaysIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)
	p := seedProduct(t, db, "kurta", "10.00", 5)
	svc := newOrderService(db, nil)
	addToCart(t, db, user.ID, p.ID, 2)

	first, replayed, err := svc.Checkout(ctx, user.ID, "abc-123", addr)
	require.NoError(t, err)
	assert.False(t, replayed)

	again, replayed, err := svc.Checkout(ctx, user.ID, "abc-123", addr)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, again.ID)

	assert.Equal(t, 3, stockOf(t, db, p.ID))
	assert.Equal(t, int64(1), countOrders(t, db))

	// Without the key the cart is empty.
	_, _, err = svc.Checkout(ctx, user.ID, "", addr)
	assert.ErrorIs(t, err, ErrEmptyCart)
}
