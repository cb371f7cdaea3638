package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order and its items.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

// FindByID returns gorm.ErrRecordNotFound when the order does not exist.
func (r *OrderRepository) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).Preload("Items", itemsInOrder).First(&o, id).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByUser returns one page of the user's orders, newest first, and the
// total count.
func (r *OrderRepository) ListByUser(ctx context.Context, userID uint, page, limit int) ([]models.Order, int64, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB { return db.Where("user_id = ?", userID) }, page, limit)
}

// List returns one page of all orders, optionally filtered by status.
func (r *OrderRepository) List(ctx context.Context, status models.OrderStatus, page, limit int) ([]models.Order, int64, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB {
		if status != "" {
			return db.Where("status = ?", status)
		}
		return db
	}, page, limit)
}

func (r *OrderRepository) list(ctx context.Context, filter func(*gorm.DB) *gorm.DB, page, limit int) ([]models.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := r.db.WithContext(ctx).
		Scopes(filter).
		Preload("Items", itemsInOrder).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&orders).Error
	return orders, total, err
}

// UpdateStatus reports false when the order does not exist.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uint, status models.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	return res.RowsAffected > 0, res.Error
}
