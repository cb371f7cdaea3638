package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
	"github.com/shashiranjanraj/kashvi-shop/app/repositories"
)

const addr = "221B Baker Street, London"

func addToCart(t *testing.T, db *gorm.DB, userID, productID uint, qty int) {
	t.Helper()
	_, err := NewCartService(db).AddItem(context.Background(), userID, productID, qty)
	require.NoError(t, err)
}

func TestCheckoutCartHappyPath(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)
	kurta := seedProduct(t, db, "kurta", "24.99", 10)
	saree := seedProduct(t, db, "saree", "129.00", 2)
	notes := &recordingNotifier{}
	engine := NewOrderEngine(db, notes)

	addToCart(t, db, user.ID, saree.ID, 1)
	addToCart(t, db, user.ID, kurta.ID, 3)

	order, err := engine.CheckoutCart(ctx, user.ID, "  "+addr+"  ")
	require.NoError(t, err)

	assert.Equal(t, models.StatusConfirmed, order.Status)
	assert.Equal(t, addr, order.ShippingAddress)
	assert.Equal(t, "203.97", order.Total.StringFixed(2))
	require.Len(t, order.Items, 2)
	assert.Equal(t, saree.ID, order.Items[0].ProductID, "items keep cart order")
	assert.Equal(t, "kurta", order.Items[1].Name)

	assert.Equal(t, 7, stockOf(t, db, kurta.ID))
	assert.Equal(t, 1, stockOf(t, db, saree.ID))

	view, err := NewCartService(db).Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Cart.Items)
	assert.True(t, view.Total.IsZero())

	assert.Equal(t, []uint{order.ID}, notes.placed)

	stored, err := repositories.NewOrderRepository(db).FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, order.Total.Equal(stored.Total))
	assert.Len(t, stored.Items, 2)
}

func TestCheckoutTwiceEmptyCart(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)
	p := seedProduct(t, db, "kurta", "10.00", 5)
	engine := NewOrderEngine(db, nil)

	addToCart(t, db, user.ID, p.ID, 2)
	_, err := engine.CheckoutCart(ctx, user.ID, addr)
	require.NoError(t, err)

	_, err = engine.CheckoutCart(ctx, user.ID, addr)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 3, stockOf(t, db, p.ID))
	assert.Equal(t, int64(1), countOrders(t, db))
}

func TestCheckoutWithoutCart(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)

	_, err := NewOrderEngine(db, nil).CheckoutCart(context.Background(), user.ID, addr)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestAtomicityOnInsufficientStock(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)
	a := seedProduct(t, db, "a", "5.00", 10)
	b := seedProduct(t, db, "b", "7.00", 5)
	notes := &recordingNotifier{}

	_, err := NewOrderEngine(db, notes).PlaceOrder(ctx, user.ID, addr, []LineItem{
		{ProductID: a.ID, Name: "a", Quantity: 2, Price: a.Price},
		{ProductID: b.ID, Name: "b", Quantity: 100, Price: b.Price},
	})

	var stock *InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, b.ID, stock.ProductID)
	assert.Equal(t, 10, stockOf(t, db, a.ID))
	assert.Equal(t, 5, stockOf(t, db, b.ID))
	assert.Zero(t, countOrders(t, db))
	assert.Zero(t, notes.placedCount())
}

func TestCartKeptWhenCheckoutFails(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)
	a := seedProduct(t, db, "a", "5.00", 10)
	b := seedProduct(t, db, "b", "7.00", 1)

	addToCart(t, db, user.ID, a.ID, 1)
	addToCart(t, db, user.ID, b.ID, 2)

	_, err := NewOrderEngine(db, nil).CheckoutCart(ctx, user.ID, addr)
	var stock *InsufficientStockError
	require.ErrorAs(t, err, &stock)

	view, err := NewCartService(db).Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, view.Cart.Items, 2)
	assert.Equal(t, 10, stockOf(t, db, a.ID))
}

func TestSnapshotPriceWins(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)
	p := seedProduct(t, db, "kurta", "20.00", 10)

	addToCart(t, db, user.ID, p.ID, 2)
	require.NoError(t, repositories.NewProductRepository(db).UpdatePrice(ctx, p.ID, decimal.RequireFromString("99.00")))

	// Viewing does not refresh the snapshot.
	view, err := NewCartService(db).Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "40.00", view.Total.StringFixed(2))

	order, err := NewOrderEngine(db, nil).CheckoutCart(ctx, user.ID, addr)
	require.NoError(t, err)
	assert.Equal(t, "20.00", order.Items[0].Price.StringFixed(2))
	assert.Equal(t, "40.00", order.Total.StringFixed(2))
}

func TestShortAddressFailsBeforeStorage(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)
	p := seedProduct(t, db, "kurta", "20.00", 10)

	var queries int
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("count_queries", func(*gorm.DB) { queries++ }))
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("count_updates", func(*gorm.DB) { queries++ }))

	engine := NewOrderEngine(db, nil)
	_, err := engine.CheckoutCart(context.Background(), user.ID, "abc")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "shippingAddress")

	_, err = engine.PlaceOrder(context.Background(), user.ID, "abc", []LineItem{{ProductID: p.ID, Name: "k", Quantity: 1, Price: p.Price}})
	require.ErrorAs(t, err, &verr)

	assert.Zero(t, queries)
	assert.Equal(t, 10, stockOf(t, db, p.ID))
}

func TestPlaceOrderValidation(t *testing.T) {
	db := newTestDB(t)
	engine := NewOrderEngine(db, nil)

	_, err := engine.PlaceOrder(context.Background(), 0, addr, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "userId")
	assert.Contains(t, verr.Fields, "items")

	_, err = engine.PlaceOrder(context.Background(), 1, addr, []LineItem{
		{ProductID: 1, Name: "ok", Quantity: 0, Price: decimal.NewFromInt(1)},
		{ProductID: 0, Name: " ", Quantity: 1, Price: decimal.NewFromInt(-1)},
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{
		"items.0.quantity":  "must be greater than 0",
		"items.1.productId": "is required",
		"items.1.name":      "is required",
		"items.1.price":     "must not be negative",
	}, verr.Fields)
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)

	_, err := NewOrderEngine(db, nil).PlaceOrder(context.Background(), user.ID, addr, []LineItem{
		{ProductID: 999, Name: "ghost", Quantity: 1, Price: decimal.NewFromInt(1)},
	})
	var stock *InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, uint(999), stock.ProductID)
}

func TestPlaceOrderQuantityOverflowLeavesStock(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)
	p := seedProduct(t, db, "kurta", "10.00", 5)
	engine := NewOrderEngine(db, nil)

	_, err := engine.PlaceOrder(context.Background(), user.ID, addr, []LineItem{
		{ProductID: p.ID, Name: "kurta", Quantity: math.MaxInt, Price: p.Price},
		{ProductID: p.ID, Name: "kurta", Quantity: math.MaxInt, Price: p.Price},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items.0.quantity")
	assert.Equal(t, 5, stockOf(t, db, p.ID))
	assert.Zero(t, countOrders(t, db))

	// Each line is under the cap but their sum is not.
	half := MaxLineQuantity/2 + 1
	_, err = engine.PlaceOrder(context.Background(), user.ID, addr, []LineItem{
		{ProductID: p.ID, Name: "kurta", Quantity: half, Price: p.Price},
		{ProductID: p.ID, Name: "kurta", Quantity: half, Price: p.Price},
	})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items")
	assert.Equal(t, 5, stockOf(t, db, p.ID))
	assert.Zero(t, countOrders(t, db))
}

func TestCheckoutKeepsLineAddedAfterRead(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)
	kurta := seedProduct(t, db, "kurta", "10.00", 5)
	saree := seedProduct(t, db, "saree", "50.00", 5)
	addToCart(t, db, user.ID, kurta.ID, 1)

	cart, err := repositories.NewCartRepository(db).FindByUser(ctx, user.ID)
	require.NoError(t, err)

	// Another writer lands a line right after checkout has read the cart.
	injected := false
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("late_cart_add", func(tx *gorm.DB) {
		if injected || tx.Error != nil || tx.Statement.Table != "cart_items" {
			return
		}
		injected = true
		tx.AddError(tx.Session(&gorm.Session{NewDB: true}).Create(&models.CartItem{
			CartID:        cart.ID,
			ProductID:     saree.ID,
			Quantity:      1,
			PriceSnapshot: saree.Price,
			NameSnapshot:  saree.Name,
		}).Error)
	}))

	order, err := NewOrderEngine(db, nil).CheckoutCart(ctx, user.ID, addr)
	require.NoError(t, err)
	require.True(t, injected)
	require.Len(t, order.Items, 1)
	assert.Equal(t, kurta.ID, order.Items[0].ProductID)

	var left []models.CartItem
	require.NoError(t, db.Where("cart_id = ?", cart.ID).Find(&left).Error)
	require.Len(t, left, 1, "the late line must survive the clear")
	assert.Equal(t, saree.ID, left[0].ProductID)
	assert.Equal(t, 5, stockOf(t, db, saree.ID))
}

func TestTwoCheckoutsRaceForThreeUnits(t *testing.T) {
	db := newTestDB(t)
	p := seedProduct(t, db, "diya", "18.75", 3)
	u1 := seedUser(t, db, "u1@shop.test", models.RoleCustomer)
	u2 := seedUser(t, db, "u2@shop.test", models.RoleCustomer)
	addToCart(t, db, u1.ID, p.ID, 2)
	addToCart(t, db, u2.ID, p.ID, 2)
	engine := NewOrderEngine(db, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	orders := make([]*models.Order, 2)
	for i, uid := range []uint{u1.ID, u2.ID} {
		i, uid := i, uid
		wg.Add(1)
		go func() {
			defer wg.Done()
			orders[i], errs[i] = engine.CheckoutCart(context.Background(), uid, addr)
		}()
	}
	wg.Wait()

	var ok, short int
	for i, err := range errs {
		var stock *InsufficientStockError
		switch {
		case err == nil:
			ok++
			assert.Equal(t, "37.50", orders[i].Total.StringFixed(2))
		case errors.As(err, &stock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 1, stockOf(t, db, p.ID))
}

func TestNoOversellUnderConcurrency(t *testing.T) {
	db := newTestDB(t)
	const stock, buyers = 7, 20
	p := seedProduct(t, db, "saree", "129.00", stock)
	engine := NewOrderEngine(db, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	sold := 0
	for i := 0; i < buyers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := engine.PlaceOrder(context.Background(), uint(i+1), addr, []LineItem{
				{ProductID: p.ID, Name: "saree", Quantity: 1, Price: p.Price},
			})
			if err == nil {
				mu.Lock()
				sold += o.Items[0].Quantity
				mu.Unlock()
				return
			}
			var short *InsufficientStockError
			assert.ErrorAs(t, err, &short)
		}()
	}
	wg.Wait()

	assert.Equal(t, stock, sold)
	assert.Zero(t, stockOf(t, db, p.ID))
	assert.Equal(t, int64(stock), countOrders(t, db))
}

func TestNotifierFailureDoesNotFailOrder(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)
	p := seedProduct(t, db, "kurta", "10.00", 5)
	notes := &recordingNotifier{err: errors.New("queue down")}

	order, err := NewOrderEngine(db, notes).PlaceOrder(context.Background(), user.ID, addr, []LineItem{
		{ProductID: p.ID, Name: "kurta", Quantity: 1, Price: p.Price},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, order.Status)
	assert.Equal(t, 1, notes.placedCount())
}

func TestStorageErrorBecomesTransactionFailed(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)
	p := seedProduct(t, db, "kurta", "10.00", 5)
	require.NoError(t, db.Migrator().DropTable(&models.OrderItem{}))

	_, err := NewOrderEngine(db, nil).PlaceOrder(context.Background(), user.ID, addr, []LineItem{
		{ProductID: p.ID, Name: "kurta", Quantity: 1, Price: p.Price},
	})
	var txErr *TransactionFailedError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, 5, stockOf(t, db, p.ID), "decrement must be rolled back")
	assert.Zero(t, countOrders(t, db))
}

func TestTransientConflictIsRetried(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)
	p := seedProduct(t, db, "kurta", "10.00", 5)

	// Fail the first order insert with a lock error, then let it through.
	failures := 1
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("flaky_orders", func(tx *gorm.DB) {
		if tx.Statement.Table == "orders" && failures > 0 {
			failures--
			tx.AddError(errors.New("database is locked"))
		}
	}))

	order, err := NewOrderEngine(db, nil).WithRetry(3, time.Millisecond).PlaceOrder(context.Background(), user.ID, addr, []LineItem{
		{ProductID: p.ID, Name: "kurta", Quantity: 2, Price: p.Price},
	})
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
	assert.Equal(t, 3, stockOf(t, db, p.ID), "first attempt's decrement was rolled back")
}

func TestTransientConflictGivesUp(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "a@shop.test", models.RoleCustomer)
	p := seedProduct(t, db, "kurta", "10.00", 5)

	attempts := 0
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("locked_orders", func(tx *gorm.DB) {
		if tx.Statement.Table == "orders" {
			attempts++
			tx.AddError(errors.New("database is locked"))
		}
	}))

	_, err := NewOrderEngine(db, nil).WithRetry(2, time.Millisecond).PlaceOrder(context.Background(), user.ID, addr, []LineItem{
		{ProductID: p.ID, Name: "kurta", Quantity: 1, Price: p.Price},
	})
	var txErr *TransactionFailedError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 5, stockOf(t, db, p.ID))
}
