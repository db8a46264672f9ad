package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jk-autos/storefront/internal/auth"
	"github.com/jk-autos/storefront/internal/catalog"
	"github.com/jk-autos/storefront/internal/funnel"
	"github.com/jk-autos/storefront/internal/handlers"
	"github.com/jk-autos/storefront/internal/orders"
	"github.com/jk-autos/storefront/internal/payments"
	"github.com/jk-autos/storefront/internal/platform/config"
	"github.com/jk-autos/storefront/internal/platform/observability"
	"github.com/jk-autos/storefront/internal/platform/secrets"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("storefront")
	ctx = observability.WithLogger(ctx, logger)

	resolverOpts := []secrets.Option{secrets.WithLogger(logger.Named("secrets"))}
	if path := os.Getenv("STOREFRONT_SECRETS_FILE"); path != "" {
		resolverOpts = append(resolverOpts, secrets.WithPath(path))
	}
	resolver := secrets.NewFileResolver(resolverOpts...)

	cfg, err := config.Load(ctx, config.WithSecretResolver(resolver))
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	catalogClient, err := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout)
	if err != nil {
		logger.Fatal("failed to initialise catalog client", zap.Error(err))
	}

	catalogStore, err := catalog.NewStore(catalog.StoreDeps{
		Client: catalogClient,
		Clock:  time.Now,
		Logger: observability.EventLogger(logger.Named("catalog")),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog store", zap.Error(err))
	}

	loadCtx, loadCancel := context.WithTimeout(ctx, cfg.Catalog.Timeout)
	if err := catalogStore.Load(loadCtx); err != nil {
		logger.Warn("initial catalog load failed; serving empty until refresh", zap.Error(err))
	}
	loadCancel()

	var authClient *auth.Client
	if cfg.Auth.BaseURL != "" {
		authClient, err = auth.NewClient(auth.ClientDeps{
			BaseURL: cfg.Auth.BaseURL,
			HTTP:    &http.Client{Timeout: cfg.Auth.Timeout},
			Clock:   time.Now,
			Logger:  observability.EventLogger(logger.Named("auth")),
		})
		if err != nil {
			logger.Fatal("failed to initialise auth client", zap.Error(err))
		}
	} else {
		logger.Warn("auth base url not configured; checkout will reject all sessions")
	}

	token := func() string { return "" }
	if authClient != nil {
		token = authClient.Token
	}

	submitter, err := orders.NewSubmitter(orders.SubmitterDeps{
		BaseURL: cfg.Orders.BaseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: cfg.Orders.Timeout},
		Logger:  observability.EventLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order submitter", zap.Error(err))
	}

	providers := make(map[string]payments.Provider)
	if cfg.Gateway.PaystackSecretKey != "" {
		paystack, err := payments.NewPaystackProvider(payments.PaystackProviderConfig{
			BaseURL:   cfg.Gateway.PaystackBaseURL,
			SecretKey: cfg.Gateway.PaystackSecretKey,
			PublicKey: cfg.Gateway.PaystackPublicKey,
			Logger:    observability.EventLogger(logger.Named("payments")),
			Clock:     time.Now,
		})
		if err != nil {
			logger.Fatal("failed to initialise paystack provider", zap.Error(err))
		}
		providers["paystack"] = paystack
	}
	if cfg.Gateway.StripeAPIKey != "" {
		stripe, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: cfg.Gateway.StripeAPIKey,
			Logger: observability.EventLogger(logger.Named("payments")),
			Clock:  time.Now,
		})
		if err != nil {
			logger.Fatal("failed to initialise stripe provider", zap.Error(err))
		}
		providers["stripe"] = stripe
	}

	paymentManager, err := payments.NewManager(providers,
		payments.WithDefaultProvider(cfg.Gateway.DefaultProvider),
	)
	if err != nil {
		logger.Fatal("failed to initialise payment manager", zap.Error(err))
	}

	coordinator, err := funnel.NewCoordinator(funnel.CoordinatorDeps{
		Catalog:    catalogStore,
		Gateway:    paymentManager,
		Submitter:  submitter,
		Token:      token,
		Currency:   cfg.Gateway.Currency,
		SuccessURL: cfg.Gateway.SuccessURL,
		CancelURL:  cfg.Gateway.CancelURL,
		Clock:      time.Now,
		Logger:     observability.EventLogger(logger.Named("funnel")),
	})
	if err != nil {
		logger.Fatal("failed to initialise funnel coordinator", zap.Error(err))
	}

	catalogHandlers := handlers.NewCatalogHandlers(catalogStore, cfg.Gateway.Currency)
	funnelHandlers := handlers.NewFunnelHandlers(coordinator)
	inspectionHandlers := handlers.NewInspectionHandlers(submitter)
	healthHandlers := handlers.NewHealthHandlers(func() bool {
		return catalogStore.Size() > 0
	})

	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithFunnelRoutes(funnelHandlers.Routes),
		handlers.WithInspectionRoutes(inspectionHandlers.Routes),
	}
	if authClient != nil {
		authHandlers := handlers.NewAuthHandlers(authClient)
		opts = append(opts, handlers.WithAuthRoutes(authHandlers.Routes))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("storefront api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
