package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	// Money renders as a JSON number, not a quoted string.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product is a catalog entry. Stock only ever moves through
// ProductRepository.DecrementStock.
type Product struct {
	gorm.Model
	Name        string          `gorm:"size:255;not null;index"      json:"name"`
	Slug        string          `gorm:"size:255;uniqueIndex"         json:"slug"`
	Description string          `gorm:"type:text"                    json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null"  json:"price"`
	Stock       int             `gorm:"not null;default:0"           json:"stock"`
}
