package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/discount"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/domain/product"
	"github.com/xenking/kart-pricing/internal/handler"
	"github.com/xenking/kart-pricing/internal/storage/postgres"
	"github.com/xenking/kart-pricing/pkg/health"
	"github.com/xenking/kart-pricing/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	productRepo := postgres.NewProductRepository(pool)
	discountRepo := postgres.NewDiscountRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)

	catalog := product.NewCatalog()
	if err := catalog.Warm(ctx, productRepo); err != nil {
		return errors.Wrap(err, "warm catalog")
	}
	codes, err := discount.LoadCodeFilter(ctx, discountRepo, cfg.Discounts.FilterFPR)
	if err != nil {
		return errors.Wrap(err, "load discount codes")
	}
	lg.Info("Catalog loaded", zap.Int("products", catalog.Len()))

	taxes, err := cfg.Tax.Resolver()
	if err != nil {
		return errors.Wrap(err, "tax rates")
	}

	healthSvc := health.New(lg.Named("health"))
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("catalog", time.Second, health.NotEmptyCheck("catalog", catalog.Len))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	go refresh(ctx, lg, cfg.Catalog.RefreshInterval, func(ctx context.Context) error {
		if err := catalog.Warm(ctx, productRepo); err != nil {
			return err
		}
		list, err := discountRepo.ListCodes(ctx)
		if err != nil {
			return err
		}
		for _, code := range list {
			codes.Add(code)
		}
		return nil
	})

	h := handler.NewHandler(
		handler.Config{
			SessionHeader: cfg.Session.Header,
			Cart:          cfg.Store.CartSettings(),
			Tax:           cfg.Tax.Settings(),
		},
		product.NewResolver(catalog),
		sessionRepo,
		discount.NewRepoValidator(discountRepo, discount.WithCodeFilter(codes)),
		taxes,
		pricing.NewMetrics(m.MeterProvider().Meter("kart-pricing"), lg),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:  cfg.CORS.Origins,
				AllowHeaders:  []string{"Content-Type", cfg.Session.Header, httpmiddleware.RequestIDHeader},
				ExposeHeaders: []string{cfg.Session.Header, httpmiddleware.RequestIDHeader},
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: httpmiddleware.SessionKey(cfg.Session.Header),
			}),
			httpmiddleware.Instrument("kart-pricing", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// refresh runs reload every interval until ctx is done. Failures keep the
// previous data and are retried on the next tick.
func refresh(ctx context.Context, lg *zap.Logger, interval time.Duration, reload func(context.Context) error) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := reload(ctx); err != nil {
				lg.Warn("Catalog refresh failed", zap.Error(err))
			}
		}
	}
}
