package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
)

type CartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

func itemsInOrder(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }

// FindOrCreate returns the user's cart with its items, creating an empty
// cart on first access.
func (r *CartRepository) FindOrCreate(ctx context.Context, userID uint) (*models.Cart, error) {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.Cart{UserID: userID}).Error
	if err != nil {
		return nil, err
	}
	return r.FindByUser(ctx, userID)
}

// FindByUser returns gorm.ErrRecordNotFound when the user has no cart yet.
func (r *CartRepository) FindByUser(ctx context.Context, userID uint) (*models.Cart, error) {
	var c models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", itemsInOrder).
		Where("user_id = ?", userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ErrQuantityLimit is returned by AddItem when the summed line quantity
// would exceed the caller's limit.
var ErrQuantityLimit = errors.New("cart line quantity limit exceeded")

// forUpdate adds a row lock to the next query. SQLite ignores the clause
// and SQL Server has no FOR UPDATE, so it is skipped there.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlserver" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// lockCart serializes writers of one cart's lines. Must run inside a
// transaction.
func lockCart(tx *gorm.DB, cartID uint) error {
	return forUpdate(tx).Select("id").Where("id = ?", cartID).Take(&models.Cart{}).Error
}

// FindByUserForUpdate is FindByUser with the cart row locked until the
// surrounding transaction ends, so cart writers wait for checkout.
func (r *CartRepository) FindByUserForUpdate(ctx context.Context, userID uint) (*models.Cart, error) {
	db := r.db.WithContext(ctx)
	var c models.Cart
	if err := forUpdate(db).Where("user_id = ?", userID).Take(&c).Error; err != nil {
		return nil, err
	}
	if err := db.Where("cart_id = ?", c.ID).Order("id ASC").Find(&c.Items).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// AddItem adds qty to the line for product, or creates the line. Either way
// the snapshots are set from product. The summed quantity may not exceed
// limit; ErrQuantityLimit is returned otherwise.
func (r *CartRepository) AddItem(ctx context.Context, cartID uint, product *models.Product, qty, limit int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCart(tx, cartID); err != nil {
			return err
		}

		var line models.CartItem
		res := tx.Where("cart_id = ? AND product_id = ?", cartID, product.ID).Limit(1).Find(&line)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if qty > limit {
				return ErrQuantityLimit
			}
			return tx.Create(&models.CartItem{
				CartID:        cartID,
				ProductID:     product.ID,
				Quantity:      qty,
				PriceSnapshot: product.Price,
				NameSnapshot:  product.Name,
			}).Error
		}

		if qty > limit-line.Quantity {
			return ErrQuantityLimit
		}
		return tx.Model(&line).Updates(map[string]any{
			"quantity":       line.Quantity + qty,
			"price_snapshot": product.Price,
			"name_snapshot":  product.Name,
		}).Error
	})
}

// SetItemQuantity reports false when the cart has no line for productID.
func (r *CartRepository) SetItemQuantity(ctx context.Context, cartID, productID uint, qty int) (bool, error) {
	var found bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCart(tx, cartID); err != nil {
			return err
		}
		res := tx.Model(&models.CartItem{}).
			Where("cart_id = ? AND product_id = ?", cartID, productID).
			Update("quantity", qty)
		found = res.RowsAffected > 0
		return res.Error
	})
	return found, err
}

// RemoveItem reports false when the cart has no line for productID.
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, productID uint) (bool, error) {
	var found bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCart(tx, cartID); err != nil {
			return err
		}
		res := tx.Where("cart_id = ? AND product_id = ?", cartID, productID).
			Delete(&models.CartItem{})
		found = res.RowsAffected > 0
		return res.Error
	})
	return found, err
}

// ClearItems deletes the lines that were loaded into cart. A line written
// after the read stays; the cart row stays too.
func (r *CartRepository) ClearItems(ctx context.Context, cart *models.Cart) error {
	if len(cart.Items) == 0 {
		return nil
	}
	ids := make([]uint, len(cart.Items))
	for i, it := range cart.Items {
		ids[i] = it.ID
	}
	return r.db.WithContext(ctx).
		Where("cart_id = ? AND id IN ?", cart.ID, ids).
		Delete(&models.CartItem{}).Error
}

// IsNotFound reports whether err is gorm's record-not-found.
func IsNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }
