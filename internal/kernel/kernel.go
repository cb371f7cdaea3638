// Package kernel builds the shop's object graph once at boot: storage,
// cache, queue, transports, services and the HTTP router.
package kernel

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/kashvi-shop/app/controllers"
	"github.com/shashiranjanraj/kashvi-shop/app/jobs"
	"github.com/shashiranjanraj/kashvi-shop/app/repositories"
	"github.com/shashiranjanraj/kashvi-shop/app/routes"
	"github.com/shashiranjanraj/kashvi-shop/app/services"
	"github.com/shashiranjanraj/kashvi-shop/config"
	"github.com/shashiranjanraj/kashvi-shop/pkg/cache"
	"github.com/shashiranjanraj/kashvi-shop/pkg/database"
	"github.com/shashiranjanraj/kashvi-shop/pkg/kafka"
	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
	"github.com/shashiranjanraj/kashvi-shop/pkg/mail"
	"github.com/shashiranjanraj/kashvi-shop/pkg/metrics"
	"github.com/shashiranjanraj/kashvi-shop/pkg/middleware"
	"github.com/shashiranjanraj/kashvi-shop/pkg/notification"
	"github.com/shashiranjanraj/kashvi-shop/pkg/queue"
	"github.com/shashiranjanraj/kashvi-shop/pkg/reqid"
	"github.com/shashiranjanraj/kashvi-shop/pkg/response"
	"github.com/shashiranjanraj/kashvi-shop/pkg/router"
	"github.com/shashiranjanraj/kashvi-shop/pkg/schedule"
	"github.com/shashiranjanraj/kashvi-shop/pkg/storage"
)

// Kernel owns every long-lived dependency. Close releases them.
type Kernel struct {
	DB       *gorm.DB
	Cache    cache.Store
	Queue    *queue.Manager
	Events   *kafka.Publisher
	Storage  *storage.Manager
	Schedule *schedule.Scheduler

	Auth   *services.AuthService
	Carts  *services.CartService
	Orders *services.OrderService

	closers []func()
}

// Boot connects to the database and builds the rest of the graph. Optional
// backends (Redis, Kafka, SMTP, S3) degrade to in-process or logging
// fallbacks when unconfigured.
func Boot(ctx context.Context) (*Kernel, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	k := &Kernel{}

	if err := database.Connect(); err != nil {
		return nil, err
	}
	k.DB = database.DB
	k.onClose(func() {
		if sqlDB, err := k.DB.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store, rdb := cache.New(ctx)
	k.Cache = store
	if rdb != nil {
		k.onClose(func() { rdb.Close() })
	}

	k.Queue = queue.NewManager(k.queueDriver(ctx, rdb))
	failed := queue.GormFailedJobStore{DB: k.DB}
	k.Queue.UseStore(failed)

	k.Events = kafka.NewPublisher(kafka.NewClient(config.KafkaBrokers()))
	k.onClose(func() { k.Events.Close() })

	k.Storage = storage.NewFromConfig(ctx)

	var events notification.EventPublisher
	if k.Events.Enabled() {
		events = k.Events
	}
	dispatcher := notification.NewDispatcher(mail.NewFromConfig(), events, config.KafkaOrderTopic())

	jobs.Register(k.Queue, &jobs.Deps{
		Orders:   repositories.NewOrderRepository(k.DB),
		Users:    repositories.NewUserRepository(k.DB),
		Sender:   dispatcher,
		Receipts: k.Storage.Default(),
	})
	notifier := jobs.NewQueueNotifier(k.Queue)

	engine := services.NewOrderEngine(k.DB, notifier)
	idem := services.NewIdempotency(k.Cache, config.IdempotencyTTL())
	k.Auth = services.NewAuthService(k.DB)
	k.Carts = services.NewCartService(k.DB)
	k.Orders = services.NewOrderService(k.DB, engine, notifier, idem)

	k.Schedule = schedule.New()
	k.Schedule.Daily().Name("failed-jobs:prune").WithoutOverlapping().Run(func(ctx context.Context) error {
		n, err := failed.Prune(ctx, time.Now().Add(-config.FailedJobRetention()))
		if n > 0 {
			logger.Info("pruned failed jobs", "count", n)
		}
		return err
	})
	return k, nil
}

func (k *Kernel) queueDriver(ctx context.Context, rdb *redis.Client) queue.Driver {
	if config.QueueDriver() != "redis" {
		return queue.NewMemoryDriver()
	}
	if rdb == nil {
		rdb = redis.NewClient(&redis.Options{Addr: config.RedisAddr(), Password: config.RedisPassword()})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("queue: redis unavailable, using memory driver", "error", err)
			rdb.Close()
			return queue.NewMemoryDriver()
		}
		k.onClose(func() { rdb.Close() })
	}
	return queue.NewRedisDriver(rdb)
}

// PingDB is the readiness probe shared by /health and the gRPC health
// service.
func (k *Kernel) PingDB(ctx context.Context) error {
	sqlDB, err := k.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Router builds the HTTP router with the global middleware stack.
func (k *Kernel) Router() *router.Router {
	r := router.New()

	// Outermost first. Recovery runs inside the logger so panic logs carry
	// the request id.
	r.Use(metrics.Middleware())
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions()))
	if n := config.RateLimitPerMinute(); n > 0 {
		r.Use(middleware.RateLimit(n, time.Minute))
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { response.NotFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	routes.RegisterAPI(r, Controllers(k))
	return r
}

// Controllers wires the HTTP controllers to k's services.
func Controllers(k *Kernel) routes.Controllers {
	return routes.Controllers{
		Auth:   controllers.NewAuthController(k.Auth),
		Cart:   controllers.NewCartController(k.Carts),
		Orders: controllers.NewOrderController(k.Orders),
		Health: controllers.NewHealthController(k.PingDB),
	}
}

func (k *Kernel) onClose(fn func()) { k.closers = append(k.closers, fn) }

// Close releases resources in reverse order of acquisition.
func (k *Kernel) Close() {
	for i := len(k.closers) - 1; i >= 0; i-- {
		k.closers[i]()
	}
	k.closers = nil
}
