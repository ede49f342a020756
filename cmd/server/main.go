package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ogurasousui/site-roster/internal/adapters/repository/filecache"
	"github.com/ogurasousui/site-roster/internal/adapters/repository/httpdoc"
	"github.com/ogurasousui/site-roster/internal/adapters/repository/natskv"
	"github.com/ogurasousui/site-roster/internal/adapters/repository/postgres"
	"github.com/ogurasousui/site-roster/internal/core/persist"
	"github.com/ogurasousui/site-roster/internal/core/roster"
	"github.com/ogurasousui/site-roster/internal/platform/config"
	pg "github.com/ogurasousui/site-roster/internal/platform/db/postgres"
	"github.com/ogurasousui/site-roster/internal/platform/logging"
	"github.com/ogurasousui/site-roster/internal/platform/metrics"
	"github.com/ogurasousui/site-roster/internal/platform/server"
)

const (
	shutdownTimeout     = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	registry := prometheus.NewRegistry()
	collector, err := newCollector(cfg.Metrics, registry)
	if err != nil {
		return err
	}

	remote, closeRemote, err := openRemote(ctx, cfg)
	if err != nil {
		logger.Warn("remote store unavailable, continuing with the local cache only", "remote", cfg.Sync.Remote, "error", err)
	}
	defer closeRemote()

	cache := filecache.New(cfg.Sync.CachePath)

	loaded := persist.Loader{
		Key:    cfg.Sync.DocumentKey,
		Remote: remote,
		Cache:  cache,
		Logger: logger,
	}.Load(ctx)

	targets := []persist.Target{{Name: "cache", Store: cache}}
	if remote != nil {
		targets = append(targets, persist.Target{Name: cfg.Sync.Remote, Store: remote})
	}
	coordinator := persist.NewCoordinator(persist.CoordinatorConfig{
		Key:          cfg.Sync.DocumentKey,
		Debounce:     cfg.Sync.Debounce,
		WriteTimeout: writeTimeout(cfg.Sync),
		Targets:      targets,
		Logger:       logger,
		Metrics:      collector,
	})

	svc := roster.NewService(roster.NewStore(loaded.Snapshot, coordinator), nil, collector)
	grpcServer := server.New(cfg.Server.ListenAddr, svc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gRPC server listening", "addr", cfg.Server.ListenAddr)
		return grpcServer.Run(gctx)
	})
	if cfg.Metrics.ListenAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics.ListenAddr, registry, logger)
		})
	}
	runErr := g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := coordinator.Close(flushCtx); err != nil {
		logger.Warn("pending snapshot was not flushed", "error", err)
	}

	return runErr
}

func writeTimeout(cfg config.SyncConfig) time.Duration {
	if cfg.HTTP.Timeout > 0 {
		return cfg.HTTP.Timeout
	}
	return defaultWriteTimeout
}

func newCollector(cfg config.MetricsConfig, reg prometheus.Registerer) (metrics.Collector, error) {
	if cfg.ListenAddr == "" {
		return metrics.NewNop(), nil
	}
	collector, err := metrics.NewPrometheus(reg, "")
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return collector, nil
}

// openRemote は sync.remote に応じた保存先を開きます。none の場合は nil を返します。
func openRemote(ctx context.Context, cfg *config.Config) (persist.DocumentStore, func(), error) {
	noop := func() {}

	switch cfg.Sync.Remote {
	case config.RemoteHTTP:
		client, err := httpdoc.NewClient(cfg.Sync.HTTP.Endpoint, cfg.Sync.HTTP.Timeout)
		if err != nil {
			return nil, noop, err
		}
		return client, noop, nil
	case config.RemotePostgres:
		pool, err := pg.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, noop, fmt.Errorf("initialize database pool: %w", err)
		}
		repo := postgres.NewDocumentRepository(pool, pg.NewTransactionManager(pool), cfg.Database.HistoryLimit)
		return repo, pool.Close, nil
	case config.RemoteNATS:
		store, closeFn, err := natskv.Dial(ctx, cfg.Sync.NATS.URL, cfg.Sync.NATS.Bucket)
		if err != nil {
			return nil, noop, err
		}
		return store, closeFn, nil
	default:
		return nil, noop, nil
	}
}

func serveMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
