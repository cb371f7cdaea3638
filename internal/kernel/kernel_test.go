package kernel

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/kashvi-shop/config"
	_ "github.com/shashiranjanraj/kashvi-shop/database/migrations"
	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
	"github.com/shashiranjanraj/kashvi-shop/pkg/migration"
)

func TestBootBuildsGraphAndRouter(t *testing.T) {
	config.Set("DB_DRIVER", "sqlite")
	config.Set("DATABASE_DSN", "file:kernel_boot?mode=memory&cache=shared")
	config.Set("STORAGE_LOCAL_ROOT", t.TempDir())
	config.Set("QUEUE_DRIVER", "memory")
	config.Set("CACHE_DRIVER", "memory")

	ctx := context.Background()
	k, err := Boot(ctx)
	require.NoError(t, err)
	t.Cleanup(k.Close)

	_, err = migration.New(k.DB).Run(ctx)
	require.NoError(t, err)

	assert.False(t, k.Events.Enabled())
	assert.Equal(t, []string{"failed-jobs:prune  [every 24h0m0s]"}, k.Schedule.List())
	require.NoError(t, k.PingDB(ctx))

	r := k.Router()
	var names []string
	for _, ri := range r.Routes() {
		names = append(names, ri.Method+" "+ri.Path)
	}
	assert.Contains(t, names, "POST /api/v1/cart/checkout")
	assert.Contains(t, names, "PATCH /api/v1/orders/{id}/status")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var logs bytes.Buffer
	prev := logger.L
	logger.L = slog.New(slog.NewJSONHandler(&logs, nil))
	t.Cleanup(func() { logger.L = prev })
	r.Get("/boom", "boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec = httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	id := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)
	assert.Contains(t, logs.String(), `"msg":"panic recovered"`)
	assert.Contains(t, logs.String(), `"request_id":"`+id+`"`, "panic log carries the request id")

	rec = httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":404`)
}
