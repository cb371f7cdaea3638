// Package ctx gives handlers a single *Context instead of (w, r):
//
//	func (c *OrderController) Show(cx *ctx.Context) {
//	    id, ok := cx.ParamUint("id")
//	    ...
//	    cx.Success(order)
//	}
//
//	g.Get("/orders/{id}", "orders.show", ctx.Wrap(c.Show))
package ctx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/kashvi-shop/pkg/bind"
	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
	"github.com/shashiranjanraj/kashvi-shop/pkg/middleware"
	"github.com/shashiranjanraj/kashvi-shop/pkg/response"
)

type HandlerFunc func(c *Context)

// Wrap adapts a HandlerFunc to net/http.
func Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := acquire(w, r)
		defer release(c)
		h(c)
	}
}

// Context wraps a request/response pair. It is pooled; never retain it after
// the handler returns.
type Context struct {
	W      http.ResponseWriter
	R      *http.Request
	status int
}

var pool = sync.Pool{
	New: func() any { return &Context{} },
}

func acquire(w http.ResponseWriter, r *http.Request) *Context {
	c := pool.Get().(*Context)
	c.W = w
	c.R = r
	c.status = 0
	return c
}

func release(c *Context) {
	c.W = nil
	c.R = nil
	pool.Put(c)
}

// ─── Request ──────────────────────────────────────────────────────────────────

func (c *Context) Param(key string) string { return chi.URLParam(c.R, key) }

// ParamUint parses a positive integer path parameter.
func (c *Context) ParamUint(key string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(key), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

func (c *Context) Query(key string) string { return c.R.URL.Query().Get(key) }

// QueryInt returns the integer query value or def when absent or malformed.
func (c *Context) QueryInt(key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return n
}

func (c *Context) Header(key string) string { return c.R.Header.Get(key) }

func (c *Context) Context() context.Context { return c.R.Context() }

// Principal returns the authenticated caller.
func (c *Context) Principal() (middleware.Principal, bool) {
	return middleware.PrincipalFromContext(c.R.Context())
}

// UserID is the authenticated caller's id, or 0.
func (c *Context) UserID() uint {
	p, _ := c.Principal()
	return p.UserID
}

// Logger is the request-scoped logger.
func (c *Context) Logger() *slog.Logger {
	return logger.WithCtx(c.R.Context())
}

// ─── Binding ──────────────────────────────────────────────────────────────────

// BindJSON decodes and validates the body into dest. On failure it writes a
// 400 (malformed body or field errors) and returns false.
func (c *Context) BindJSON(dest any) bool {
	errs, err := bind.JSON(c.R, dest)
	if err != nil {
		c.Error(http.StatusBadRequest, err.Error())
		return false
	}
	if len(errs) > 0 {
		c.ValidationError(errs)
		return false
	}
	return true
}

// ─── Response ─────────────────────────────────────────────────────────────────

func (c *Context) SetHeader(key, value string) { c.W.Header().Set(key, value) }

func (c *Context) JSON(code int, v any) {
	c.W.Header().Set("Content-Type", "application/json")
	c.W.WriteHeader(code)
	c.status = code
	json.NewEncoder(c.W).Encode(v) //nolint:errcheck
}

func (c *Context) Success(data any) {
	c.JSON(http.StatusOK, response.Envelope{Status: http.StatusOK, Data: data})
}

func (c *Context) Created(data any) {
	c.JSON(http.StatusCreated, response.Envelope{Status: http.StatusCreated, Data: data})
}

func (c *Context) Paginated(items any, p response.Pagination) {
	c.Success(map[string]any{"items": items, "pagination": p})
}

func (c *Context) Error(code int, message string) {
	c.JSON(code, response.Envelope{Status: code, Message: message})
}

// ErrorWith sends an error envelope that also carries a field map.
func (c *Context) ErrorWith(code int, message string, errs map[string]string) {
	c.JSON(code, response.Envelope{Status: code, Message: message, Errors: errs})
}

// ValidationError sends a 400 with field-level errors.
func (c *Context) ValidationError(errs map[string]string) {
	c.ErrorWith(http.StatusBadRequest, "Validation failed", errs)
}

func (c *Context) Unauthorized() { c.Error(http.StatusUnauthorized, "Unauthorized") }
func (c *Context) Forbidden()    { c.Error(http.StatusForbidden, "Forbidden") }

func (c *Context) NotFound(message ...string) {
	msg := "Not found"
	if len(message) > 0 {
		msg = message[0]
	}
	c.Error(http.StatusNotFound, msg)
}

// WrittenStatus is the status code written so far, or 0.
func (c *Context) WrittenStatus() int { return c.status }
