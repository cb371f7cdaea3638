package controllers

import (
	"github.com/shashiranjanraj/kashvi-shop/app/services"
	"github.com/shashiranjanraj/kashvi-shop/pkg/ctx"
)

type CartController struct {
	carts *services.CartService
}

func NewCartController(s *services.CartService) *CartController {
	return &CartController{carts: s}
}

type addItemRequest struct {
	ProductID uint `json:"productId" validate:"required"`
	Quantity  int  `json:"quantity" validate:"required,gt=0,lte=10000"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0,lte=10000"`
}

func (cc *CartController) Show(c *ctx.Context) {
	view, err := cc.carts.Get(c.Context(), c.UserID())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(view)
}

func (cc *CartController) AddItem(c *ctx.Context) {
	var body addItemRequest
	if !c.BindJSON(&body) {
		return
	}
	view, err := cc.carts.AddItem(c.Context(), c.UserID(), body.ProductID, body.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(view)
}

func (cc *CartController) UpdateItem(c *ctx.Context) {
	productID, ok := c.ParamUint("productId")
	if !ok {
		badParam(c, "productId")
		return
	}
	var body updateItemRequest
	if !c.BindJSON(&body) {
		return
	}
	view, err := cc.carts.UpdateItem(c.Context(), c.UserID(), productID, body.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(view)
}

func (cc *CartController) RemoveItem(c *ctx.Context) {
	productID, ok := c.ParamUint("productId")
	if !ok {
		badParam(c, "productId")
		return
	}
	view, err := cc.carts.RemoveItem(c.Context(), c.UserID(), productID)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(view)
}
