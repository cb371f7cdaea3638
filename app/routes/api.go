// Package routes maps the shop's HTTP surface onto controllers.
package routes

import (
	"github.com/shashiranjanraj/kashvi-shop/app/controllers"
	"github.com/shashiranjanraj/kashvi-shop/app/models"
	"github.com/shashiranjanraj/kashvi-shop/pkg/ctx"
	"github.com/shashiranjanraj/kashvi-shop/pkg/metrics"
	"github.com/shashiranjanraj/kashvi-shop/pkg/middleware"
	"github.com/shashiranjanraj/kashvi-shop/pkg/rbac"
	"github.com/shashiranjanraj/kashvi-shop/pkg/router"
)

// Controllers is everything RegisterAPI mounts.
type Controllers struct {
	Auth   *controllers.AuthController
	Cart   *controllers.CartController
	Orders *controllers.OrderController
	Health *controllers.HealthController
}

func RegisterAPI(r *router.Router, c Controllers) {
	r.Get("/health", "health", ctx.Wrap(c.Health.Show))
	r.HandleFunc("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Post("/auth/login", "auth.login", ctx.Wrap(c.Auth.Login))

	user := api.Group("", middleware.AuthMiddleware)

	cart := user.Group("/cart")
	cart.Get("", "cart.show", ctx.Wrap(c.Cart.Show))
	cart.Post("/items", "cart.items.add", ctx.Wrap(c.Cart.AddItem))
	cart.Patch("/items/{productId}", "cart.items.update", ctx.Wrap(c.Cart.UpdateItem))
	cart.Delete("/items/{productId}", "cart.items.remove", ctx.Wrap(c.Cart.RemoveItem))
	cart.Post("/checkout", "cart.checkout", ctx.Wrap(c.Orders.Checkout))

	orders := user.Group("/orders")
	orders.Post("", "orders.store", ctx.Wrap(c.Orders.Place))
	orders.Get("", "orders.index", ctx.Wrap(c.Orders.Mine))
	orders.Get("/admin/list", "orders.admin.index", ctx.Wrap(c.Orders.All), rbac.HasRole(models.RoleAdmin))
	orders.Get("/{id}", "orders.show", ctx.Wrap(c.Orders.Show))
	orders.Patch("/{id}/status", "orders.status", ctx.Wrap(c.Orders.UpdateStatus), rbac.HasRole(models.RoleAdmin))
}
