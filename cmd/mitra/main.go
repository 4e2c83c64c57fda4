package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mitra-erp/mitra-erp/internal/app"
	"github.com/mitra-erp/mitra-erp/internal/auth"
	"github.com/mitra-erp/mitra-erp/internal/imports"
	"github.com/mitra-erp/mitra-erp/internal/inventory"
	"github.com/mitra-erp/mitra-erp/internal/invoices"
	"github.com/mitra-erp/mitra-erp/internal/masterdata/products"
	"github.com/mitra-erp/mitra-erp/internal/notify"
	"github.com/mitra-erp/mitra-erp/internal/observability"
	"github.com/mitra-erp/mitra-erp/internal/platform/cache"
	"github.com/mitra-erp/mitra-erp/internal/platform/db"
	"github.com/mitra-erp/mitra-erp/internal/rbac"
	"github.com/mitra-erp/mitra-erp/internal/sales/customers"
	"github.com/mitra-erp/mitra-erp/internal/sales/quotations"
	"github.com/mitra-erp/mitra-erp/internal/shared"
	"github.com/mitra-erp/mitra-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "mitra_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	viewCache := cache.NewViewCache(redisClient)

	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	dispatcher := notify.NewDispatcher(asynqClient, logger)

	authService := auth.NewService(auth.NewRepository(pool))
	authHandler := auth.NewHandler(authService, sessionManager, logger)

	rbacService := rbac.NewService(pool)
	guard := rbac.Middleware{Service: rbacService, Logger: logger}
	adminHandler := rbac.NewHandler(rbac.NewDirectory(pool))

	customerRepo := customers.NewRepository(pool)
	customerService := customers.NewService(customerRepo)
	customerHandler := customers.NewHandler(customerService)

	quotationService := quotations.NewService(
		quotations.NewRepository(pool),
		customerService,
		dispatcher,
		approvalRecorder,
		auditLogger,
		idempotencyStore,
		viewCache,
		quotations.Config{InvoiceDueTermDays: cfg.InvoiceDueTermDays},
		logger,
	)
	quotationHandler := quotations.NewHandler(quotationService)

	importService := imports.NewService(imports.NewRepository(pool), approvalRecorder, auditLogger, viewCache, logger)
	importHandler := imports.NewHandler(importService)

	invoiceHandler := invoices.NewHandler(invoices.NewRepository(pool))
	productHandler := products.NewHandler(products.NewService(products.NewRepository(pool)))
	inventoryHandler := inventory.NewHandler(inventory.NewService(inventory.NewRepository(pool), auditLogger, logger))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Middleware: app.MiddlewareConfig{
			Logger:         logger,
			Config:         cfg,
			SessionManager: sessionManager,
			Metrics:        metrics,
		},
		Guard:            guard,
		AuthHandler:      authHandler,
		QuotationHandler: quotationHandler,
		ImportHandler:    importHandler,
		InvoiceHandler:   invoiceHandler,
		ProductHandler:   productHandler,
		InventoryHandler: inventoryHandler,
		CustomerHandler:  customerHandler,
		AdminHandler:     adminHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
