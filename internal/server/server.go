// Package server runs the HTTP API, the optional gRPC health endpoint and
// the in-process queue workers and scheduler until the context is cancelled.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/shashiranjanraj/kashvi-shop/config"
	"github.com/shashiranjanraj/kashvi-shop/internal/kernel"
	"github.com/shashiranjanraj/kashvi-shop/pkg/grpc"
	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// New builds the HTTP server for handler on addr.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Run serves k until ctx is done, then drains HTTP and gRPC.
func Run(ctx context.Context, k *kernel.Kernel) error {
	k.Schedule.Start(ctx)
	if n := config.QueueWorkers(); n > 0 {
		k.Queue.StartWorkers(ctx, n)
	}

	var health *grpc.Server
	if port := config.GRPCPort(); port != "" {
		health = grpc.New(k.PingDB)
		if _, err := health.Start(ctx, port); err != nil {
			return err
		}
	}
	defer health.Stop()

	addr := ":" + config.AppPort()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http: listen on %s: %w", addr, err)
	}
	return Serve(ctx, lis, New(addr, k.Router().Handler()))
}

// Serve runs srv on lis and shuts it down gracefully when ctx is done.
func Serve(ctx context.Context, lis net.Listener, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "addr", lis.Addr().String(), "env", config.AppEnv())
		errCh <- srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http: shutdown: %w", err)
	}
	return nil
}
