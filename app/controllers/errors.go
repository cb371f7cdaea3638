package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/shashiranjanraj/kashvi-shop/app/services"
	"github.com/shashiranjanraj/kashvi-shop/pkg/ctx"
)

// fail writes the HTTP rendition of a service error.
func fail(c *ctx.Context, err error) {
	var (
		verr  *services.ValidationError
		stock *services.InsufficientStockError
		txErr *services.TransactionFailedError
	)
	switch {
	case errors.As(err, &verr):
		c.ValidationError(verr.Fields)
	case errors.As(err, &stock):
		c.ErrorWith(http.StatusBadRequest, stock.Error(), map[string]string{
			"productId": strconv.FormatUint(uint64(stock.ProductID), 10),
		})
	case errors.Is(err, services.ErrEmptyCart):
		c.Error(http.StatusBadRequest, "Cart is empty")
	case errors.Is(err, services.ErrNotFound):
		c.NotFound(err.Error())
	case errors.Is(err, services.ErrForbidden):
		c.Forbidden()
	case errors.Is(err, services.ErrDuplicateRequest):
		c.Error(http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidLogin):
		c.Error(http.StatusUnauthorized, "Invalid email or password")
	case errors.As(err, &txErr):
		c.Logger().Error("checkout transaction failed", "error", txErr.Err)
		c.Error(http.StatusInternalServerError, "Checkout failed, please try again")
	default:
		c.Logger().Error("request failed", "error", err)
		c.Error(http.StatusInternalServerError, "Internal server error")
	}
}

func badParam(c *ctx.Context, name string) {
	c.ValidationError(map[string]string{name: "must be a positive integer"})
}
