package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/shashiranjanraj/kashvi-shop/pkg/ctx"
)

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) error

type HealthController struct {
	db Probe
}

func NewHealthController(db Probe) *HealthController {
	return &HealthController{db: db}
}

func (h *HealthController) Show(c *ctx.Context) {
	pingCtx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	if err := h.db(pingCtx); err != nil {
		c.Logger().Warn("health: database unreachable", "error", err)
		c.ErrorWith(http.StatusServiceUnavailable, "Service unavailable", map[string]string{"database": "down"})
		return
	}
	c.Success(map[string]string{"status": "ok", "database": "up"})
}
