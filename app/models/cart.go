package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cart belongs to exactly one user and is created on first access. Checkout
// deletes its items but keeps the cart row.
type Cart struct {
	gorm.Model
	UserID uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	Items  []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
}

// CartItem has no soft delete: removing an item removes the row.
// PriceSnapshot and NameSnapshot are refreshed on every add, never on read.
type CartItem struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	CartID        uint            `gorm:"not null;uniqueIndex:idx_cart_product" json:"cart_id"`
	ProductID     uint            `gorm:"not null;uniqueIndex:idx_cart_product" json:"product_id"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	PriceSnapshot decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price_snapshot"`
	NameSnapshot  string          `gorm:"size:255;not null" json:"name_snapshot"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Subtotal is PriceSnapshot × Quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.PriceSnapshot.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Total is computed on every call and never stored.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}
