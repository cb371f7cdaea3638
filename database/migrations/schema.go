package migrations

import (
	"gorm.io/gorm"

	"github.com/shashiranjanraj/kashvi-shop/app/models"
	"github.com/shashiranjanraj/kashvi-shop/pkg/migration"
	"github.com/shashiranjanraj/kashvi-shop/pkg/queue"
)

func init() {
	migration.Register("2026_10_01_000001_create_users_table", table{&models.User{}})
	migration.Register("2026_10_01_000002_create_products_table", table{&models.Product{}})
	migration.Register("2026_10_01_000003_create_carts_table", table{&models.Cart{}})
	migration.Register("2026_10_01_000004_create_cart_items_table", table{&models.CartItem{}})
	migration.Register("2026_10_01_000005_create_orders_table", table{&models.Order{}})
	migration.Register("2026_10_01_000006_create_order_items_table", table{&models.OrderItem{}})
	migration.Register("2026_10_01_000007_create_failed_jobs_table", table{&queue.FailedJobRecord{}})
}

// table creates and drops the table behind one model.
type table struct {
	model any
}

func (t table) Up(db *gorm.DB) error {
	return db.AutoMigrate(t.model)
}

func (t table) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(t.model)
}
