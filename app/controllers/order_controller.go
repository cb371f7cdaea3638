package controllers

import (
	"github.com/shashiranjanraj/kashvi-shop/app/models"
	"github.com/shashiranjanraj/kashvi-shop/app/services"
	"github.com/shashiranjanraj/kashvi-shop/pkg/ctx"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
)

type OrderController struct {
	orders *services.OrderService
}

func NewOrderController(s *services.OrderService) *OrderController {
	return &OrderController{orders: s}
}

// Address and item rules are enforced by the order engine so both call
// sites report them the same way.
type checkoutRequest struct {
	ShippingAddress string `json:"shippingAddress"`
}

type placeOrderRequest struct {
	ShippingAddress string              `json:"shippingAddress"`
	Items           []services.LineItem `json:"items"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (oc *OrderController) Checkout(c *ctx.Context) {
	var body checkoutRequest
	if !c.BindJSON(&body) {
		return
	}
	order, replayed, err := oc.orders.Checkout(c.Context(), c.UserID(), c.Header(headerIdempotencyKey), body.ShippingAddress)
	if err != nil {
		fail(c, err)
		return
	}
	placed(c, order, replayed)
}

func (oc *OrderController) Place(c *ctx.Context) {
	var body placeOrderRequest
	if !c.BindJSON(&body) {
		return
	}
	order, replayed, err := oc.orders.Place(c.Context(), c.UserID(), c.Header(headerIdempotencyKey), body.ShippingAddress, body.Items)
	if err != nil {
		fail(c, err)
		return
	}
	placed(c, order, replayed)
}

func placed(c *ctx.Context, order *models.Order, replayed bool) {
	if replayed {
		c.SetHeader(headerReplayed, "true")
		c.Success(order)
		return
	}
	c.Created(order)
}

func (oc *OrderController) Mine(c *ctx.Context) {
	orders, page, err := oc.orders.ListMine(c.Context(), c.UserID(), c.QueryInt("page", 1), c.QueryInt("limit", 0))
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(orders, page)
}

func (oc *OrderController) All(c *ctx.Context) {
	orders, page, err := oc.orders.ListAll(c.Context(), c.Query("status"), c.QueryInt("page", 1), c.QueryInt("limit", 0))
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(orders, page)
}

func (oc *OrderController) Show(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		badParam(c, "id")
		return
	}
	p, _ := c.Principal()
	order, err := oc.orders.Get(c.Context(), services.Viewer{UserID: p.UserID, Admin: p.Role == models.RoleAdmin}, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(order)
}

func (oc *OrderController) UpdateStatus(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		badParam(c, "id")
		return
	}
	var body statusRequest
	if !c.BindJSON(&body) {
		return
	}
	order, err := oc.orders.UpdateStatus(c.Context(), id, body.Status)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(order)
}
