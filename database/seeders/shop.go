package seeders

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
	"github.com/shashiranjanraj/kashvi-shop/pkg/auth"
)

func init() {
	Register("users", SeedUsers)
	Register("products", SeedProducts)
}

// Seed credentials for local development.
const (
	AdminEmail      = "admin@kashvi.shop"
	CustomerEmail   = "customer@kashvi.shop"
	DefaultPassword = "password"
)

// SeedUsers creates one admin and one customer. Existing emails are skipped.
func SeedUsers(ctx context.Context, db *gorm.DB) error {
	hash, err := auth.HashPassword(DefaultPassword)
	if err != nil {
		return err
	}
	users := []models.User{
		{Name: "Admin", Email: AdminEmail, Password: hash, Role: models.RoleAdmin},
		{Name: "Customer", Email: CustomerEmail, Password: hash, Role: models.RoleCustomer},
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&users).Error
}

// SeedProducts loads a small catalog. Existing slugs are skipped.
func SeedProducts(ctx context.Context, db *gorm.DB) error {
	products := []models.Product{
		{Name: "Cotton Kurta", Slug: "cotton-kurta", Description: "Hand-block printed cotton kurta.", Price: decimal.RequireFromString("24.99"), Stock: 50},
		{Name: "Silk Saree", Slug: "silk-saree", Description: "Banarasi silk with zari border.", Price: decimal.RequireFromString("129.00"), Stock: 10},
		{Name: "Leather Juttis", Slug: "leather-juttis", Description: "Embroidered leather flats.", Price: decimal.RequireFromString("39.50"), Stock: 25},
		{Name: "Brass Diya Set", Slug: "brass-diya-set", Description: "Set of four brass oil lamps.", Price: decimal.RequireFromString("18.75"), Stock: 3},
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "slug"}}, DoNothing: true}).
		Create(&products).Error
}
