package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"jsonwidget.org/internal/auth"
	"jsonwidget.org/internal/config"
	"jsonwidget.org/internal/documents"
	"jsonwidget.org/internal/httpapi"
	"jsonwidget.org/internal/obs"
	"jsonwidget.org/internal/store/pg"
	"jsonwidget.org/internal/stream"
	"jsonwidget.org/internal/tenant"
	"jsonwidget.org/internal/widget"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("WIDGET_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := obs.Configure(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()
	checks := map[string]httpapi.Checker{}

	var (
		tenants tenant.Store
		docs    documents.Service
	)
	if cfg.PostgresDSN != "" {
		store, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		tenants, docs = store, store
		checks["postgres"] = store
		logger.Info("using postgres store")
	} else {
		mem := tenant.NewMemoryStore()
		if err := seedTenants(ctx, mem, cfg.Seed); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		tenants, docs = mem, documents.NewInMemory(nil)
		logger.Info("using in-memory store", zap.Int("seed_widgets", len(cfg.Seed.Widgets)))
	}

	var sessions auth.SessionStore
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		rs := auth.NewRedisSessions(rdb)
		sessions = rs
		checks["redis"] = rs
	} else {
		sessions = auth.NewMemorySessions(time.Now)
	}

	renderer, err := widget.NewRenderer(widget.RendererConfig{
		FallbackBase: cfg.PublicBaseURL,
		Locales:      cfg.Locales,
	})
	if err != nil {
		return fmt.Errorf("render scripts: %w", err)
	}

	widgets := tenants.Widgets(ctx)
	st := stream.New()
	ready := httpapi.ReadyChecks{Checks: checks}
	api := httpapi.New(httpapi.Deps{
		Resolver: widget.NewResolver(
			tenant.NewCachedWidgets(widgets, cfg.WidgetCache.Size, cfg.WidgetCache.TTL),
			widget.ResolverConfig{
				BaseURL:       cfg.PublicBaseURL,
				BuildNumber:   cfg.BuildNumber,
				DefaultLocale: cfg.DefaultLocale,
				Locales:       cfg.Locales,
			},
		),
		Renderer:  renderer,
		Auth:      auth.NewService(widgets, tenants.Users(ctx), sessions),
		Documents: documents.NewObserved(docs, st),
		Stream:    st,
		Ready:     ready,
		Version:   version,
	}, httpapi.Options{
		CORSOrigins:   cfg.CORSOrigins,
		RateBurst:     cfg.RateLimit.Burst,
		RatePerSecond: cfg.RateLimit.PerSecond,
		MaxBodyBytes:  cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// no WriteTimeout: /api/events is long-lived
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcSrv = grpc.NewServer()
		healthpb.RegisterHealthServer(grpcSrv, httpapi.NewGRPCHealth(ready))
		go func() {
			logger.Info("grpc health listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownAfter)
	defer cancel()
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("stopped")
	return nil
}
