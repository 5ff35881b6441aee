package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ecomsagas/fulfillment/internal/config"
	"github.com/ecomsagas/fulfillment/internal/ingress/httpx"
	"github.com/ecomsagas/fulfillment/internal/inventory"
	"github.com/ecomsagas/fulfillment/internal/order"
	"github.com/ecomsagas/fulfillment/internal/pkg/telemetry"
	"github.com/ecomsagas/fulfillment/internal/saga"
	"github.com/ecomsagas/fulfillment/internal/saga/dispatch"
	"github.com/ecomsagas/fulfillment/internal/saga/store"
	"github.com/ecomsagas/fulfillment/internal/saga/store/sqlite"
	"github.com/ecomsagas/fulfillment/internal/status"
)

func main() {
	telemetry.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	shutdown, err := telemetry.SetupTracer(ctx, cfg.ServiceName)
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	logger := slog.Default()

	sagaStore, closeStore, err := openSagaStore(cfg)
	if err != nil {
		slog.Error("failed to open saga store", "path", cfg.SagaDBPath, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	var orders order.Repository
	if cfg.RedisAddr != "" {
		repo := order.NewRedisRepository(cfg.RedisAddr)
		defer repo.Close()
		orders = repo
	} else {
		orders = order.NewMemoryRepository()
	}

	orchestrator := saga.NewOrchestrator(
		sagaStore,
		inventory.NewClient(cfg.InventoryURL, logger),
		status.NewSync(orders, logger),
		logger,
		saga.WithReservationTimeout(cfg.ReservationTimeout),
	)

	// Sagas left non-terminal by a previous run resume when the transport
	// redelivers their in-flight events; surface them for the operator.
	if unfinished, err := sagaStore.ListUnfinished(ctx); err != nil {
		slog.Warn("could not list unfinished sagas", "error", err)
	} else if len(unfinished) > 0 {
		slog.Info("sagas awaiting event redelivery", "count", len(unfinished))
	}

	dispatcher := dispatch.New(orchestrator, logger)
	defer dispatcher.Close()

	handler := httpx.NewHandler(dispatcher, sagaStore, orders, logger)
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpx.NewRouter(handler),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown error", "error", err)
		}
	}()

	slog.Info("saga orchestrator running", "addr", cfg.HTTPAddr, "inventory_url", cfg.InventoryURL)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func openSagaStore(cfg config.Config) (saga.Store, func(), error) {
	if cfg.SagaDBPath == "" {
		return store.NewMemory(), func() {}, nil
	}
	if dir := filepath.Dir(cfg.SagaDBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	repo, err := sqlite.Open(cfg.SagaDBPath)
	if err != nil {
		return nil, nil, err
	}
	return repo, func() { _ = repo.Close() }, nil
}
