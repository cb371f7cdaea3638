package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
	"github.com/shashiranjanraj/kashvi-shop/app/repositories"
)

// CartView is a cart plus its total, computed at read time.
type CartView struct {
	Cart  *models.Cart    `json:"cart"`
	Total decimal.Decimal `json:"total"`
}

func newCartView(c *models.Cart) *CartView {
	return &CartView{Cart: c, Total: c.Total()}
}

type CartService struct {
	carts    *repositories.CartRepository
	products *repositories.ProductRepository
}

func NewCartService(db *gorm.DB) *CartService {
	return &CartService{
		carts:    repositories.NewCartRepository(db),
		products: repositories.NewProductRepository(db),
	}
}

// Get returns the user's cart, creating it if needed. Snapshots are shown
// as stored; viewing never refreshes them.
func (s *CartService) Get(ctx context.Context, userID uint) (*CartView, error) {
	cart, err := s.carts.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return newCartView(cart), nil
}

// AddItem adds qty of a product. If the product is already in the cart the
// quantities are summed and the snapshots refreshed from the catalog.
func (s *CartService) AddItem(ctx context.Context, userID, productID uint, qty int) (*CartView, error) {
	if err := validateCartLine(productID, qty); err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, productID)
	if repositories.IsNotFound(err) {
		return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}

	cart, err := s.carts.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	err = s.carts.AddItem(ctx, cart.ID, product, qty, MaxLineQuantity)
	if errors.Is(err, repositories.ErrQuantityLimit) {
		return nil, &ValidationError{Fields: map[string]string{
			"quantity": fmt.Sprintf("cart total for this product must be at most %d", MaxLineQuantity),
		}}
	}
	if err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	return s.Get(ctx, userID)
}

// UpdateItem sets the quantity of a line already in the cart.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID uint, qty int) (*CartView, error) {
	if err := validateCartLine(productID, qty); err != nil {
		return nil, err
	}

	cart, err := s.carts.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	ok, err := s.carts.SetItemQuantity(ctx, cart.ID, productID, qty)
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("cart item %d: %w", productID, ErrNotFound)
	}
	return s.Get(ctx, userID)
}

// RemoveItem deletes a line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID uint) (*CartView, error) {
	cart, err := s.carts.FindOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	ok, err := s.carts.RemoveItem(ctx, cart.ID, productID)
	if err != nil {
		return nil, fmt.Errorf("remove cart item: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("cart item %d: %w", productID, ErrNotFound)
	}
	return s.Get(ctx, userID)
}

func validateCartLine(productID uint, qty int) error {
	v := &ValidationError{}
	if productID == 0 {
		v.add("productId", "is required")
	}
	if qty < 1 {
		v.add("quantity", "must be at least 1")
	} else if qty > MaxLineQuantity {
		v.add("quantity", fmt.Sprintf("must be at most %d", MaxLineQuantity))
	}
	return v.orNil()
}
