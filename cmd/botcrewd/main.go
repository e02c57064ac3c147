// Command botcrewd is the orchestrator daemon: it wires the Durable Store,
// Pub/Sub Bus, Delivery Queue, Worker-Runtime Adapter, Session Registry,
// Reconciler, Communication Hub, Boot-Config Provider, and Gateway together
// and serves the REST + WebSocket API until terminated.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/botcrew/orchestrator/internal/agents"
	"github.com/botcrew/orchestrator/internal/bootconfig"
	"github.com/botcrew/orchestrator/internal/bus"
	"github.com/botcrew/orchestrator/internal/channels"
	"github.com/botcrew/orchestrator/internal/config"
	"github.com/botcrew/orchestrator/internal/gateway"
	"github.com/botcrew/orchestrator/internal/hub"
	"github.com/botcrew/orchestrator/internal/messages"
	otelpkg "github.com/botcrew/orchestrator/internal/otel"
	"github.com/botcrew/orchestrator/internal/providers"
	"github.com/botcrew/orchestrator/internal/queue"
	"github.com/botcrew/orchestrator/internal/reconcile"
	"github.com/botcrew/orchestrator/internal/runtime"
	"github.com/botcrew/orchestrator/internal/session"
	"github.com/botcrew/orchestrator/internal/store"
	"github.com/botcrew/orchestrator/internal/telemetry"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=...".
var Version = "v0.1-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fatalStartup(nil, "E_CONFIG_LOAD", err)
	}

	logger, closer, err := telemetry.NewLogger(cfg.HomeDir, "botcrewd", cfg.LogLevel)
	if err != nil {
		fatalStartup(nil, "E_LOGGER_INIT", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)
	logger.Info("startup phase", "phase", "config_loaded", "version", Version)

	otelProvider, err := otelpkg.Init(ctx, otelpkg.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		SampleRate:     cfg.Telemetry.SampleRate,
		MetricsEnabled: cfg.Telemetry.MetricsEnabled,
	})
	if err != nil {
		fatalStartup(logger, "E_OTEL_INIT", err)
	}
	defer otelProvider.Shutdown(ctx)

	metrics, err := otelpkg.NewMetrics(otelProvider.Meter)
	if err != nil {
		fatalStartup(logger, "E_METRICS_INIT", err)
	}

	pool, err := dialPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fatalStartup(logger, "E_DB_DIAL", err)
	}
	defer pool.Close()

	db := store.New(pool)
	if err := db.Init(ctx); err != nil {
		fatalStartup(logger, "E_DB_SCHEMA", err)
	}
	logger.Info("startup phase", "phase", "schema_migrated")

	if kv, err := config.LoadSecretsFile(cfg.HomeDir); err != nil {
		logger.Warn("startup: read secrets.yaml failed", "error", err)
	} else if len(kv) > 0 {
		if err := db.UpsertSecrets(ctx, kv); err != nil {
			logger.Warn("startup: seed secrets failed", "error", err)
		}
	}

	secretsWatcher := config.NewWatcher(cfg.HomeDir, logger)
	if err := secretsWatcher.Start(ctx); err != nil {
		logger.Warn("startup: config watcher failed to start", "error", err)
	} else {
		go reloadSecretsOnChange(ctx, secretsWatcher, db, cfg.HomeDir, logger)
	}

	channelBus, err := bus.Dial(ctx, cfg.BusURL)
	if err != nil {
		fatalStartup(logger, "E_BUS_DIAL", err)
	}

	workerRuntime, err := newRuntimeAdapter(cfg.Runtime)
	if err != nil {
		fatalStartup(logger, "E_RUNTIME_INIT", err)
	}

	creds := providers.NewCredentialChecker(db)
	agentSvc := agents.New(db, workerRuntime, creds)
	channelSvc := channels.New(db)
	messageSvc := messages.New(db)
	bootConfig := bootconfig.New(agentSvc, db, logger)

	deliveryQueue := queue.New(pool)
	deliveryPool := queue.NewPool(deliveryQueue, logger, cfg.DeliveryQueueWorkers)

	commHub := hub.New(messageSvc, channelSvc, db, channelBus, deliveryQueue).WithMetrics(metrics)

	sessions := session.New()
	listener := session.NewListener(channelBus, logger, func(ctx context.Context, channelID string, payload []byte) {
		sessions.Broadcast(ctx, channelID, payload, "")
	})

	reconciler := reconcile.New(db, workerRuntime, logger)
	if cfg.ReconcileSchedule != "" {
		reconciler = reconciler.WithSchedule(cfg.ReconcileSchedule)
	}
	reconciler = reconciler.WithMetrics(metrics)

	gw := gateway.New(gateway.Config{
		Store:      db,
		Agents:     agentSvc,
		Channels:   channelSvc,
		Messages:   messageSvc,
		Hub:        commHub,
		BootConfig: bootConfig,
		Sessions:   sessions,
		Bus:        channelBus,
		Auth:       cfg.Auth,
		CORS:       cfg.CORS,
		RateLimit:  cfg.RateLimit,
		MaxBytes:   cfg.RequestMaxBytes,
		Metrics:    metrics,
		Log:        logger,
	})

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: gw.Handler(),
	}

	var wg errgroup.Group
	wg.Go(func() error { return reconciler.Start(ctx) })
	wg.Go(func() error { return listener.Run(ctx) })
	wg.Go(func() error { deliveryPool.Run(ctx); return nil })
	wg.Go(func() error {
		logger.Info("startup phase", "phase", "listening", "bind_addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway: listen: %w", err)
		}
		return nil
	})

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown order: Reconciler -> Pub/Sub Listener -> Worker-Runtime
	// Adapter -> Bus -> Database. The gateway's own HTTP server stops
	// first so no new request races the teardown below.
	_ = httpServer.Shutdown(shutdownCtx)
	reconciler.Stop()
	// listener.Run and deliveryPool.Run both observe ctx.Done() above and
	// return on their own; wg.Wait below blocks until they do.
	if err := wg.Wait(); err != nil {
		logger.Error("shutdown: component returned error", "error", err)
	}
	if err := workerRuntime.Close(); err != nil {
		logger.Warn("shutdown: runtime adapter close failed", "error", err)
	}
	if err := channelBus.Close(); err != nil {
		logger.Warn("shutdown: bus close failed", "error", err)
	}
	logger.Info("shutdown complete")
}

func dialPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pgCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	// Bounded pool: size 10, overflow to 20 (MaxConns=30), pre-ping
	// enabled via HealthCheckPeriod.
	pgCfg.MinConns = 10
	pgCfg.MaxConns = 30
	pgCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

func newRuntimeAdapter(cfg config.RuntimeConfig) (runtime.Adapter, error) {
	switch cfg.Kind {
	case "", "docker":
		return runtime.NewDockerAdapter(runtime.Config{
			Image:       cfg.Image,
			NetworkMode: cfg.Network,
		})
	case "fake":
		return runtime.NewFakeAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown runtime kind %q", cfg.Kind)
	}
}

// reloadSecretsOnChange applies secrets.yaml hot-reloads as fsnotify events
// arrive, keeping the flat secrets table in sync without a restart.
func reloadSecretsOnChange(ctx context.Context, w *config.Watcher, db *store.Store, homeDir string, logger *slog.Logger) {
	secretsPath := config.SecretsPath(homeDir)
	for ev := range w.Events() {
		if ev.Path != secretsPath {
			continue
		}
		kv, err := config.LoadSecretsFile(homeDir)
		if err != nil {
			logger.Warn("secrets reload: read failed", "error", err)
			continue
		}
		if err := db.UpsertSecrets(ctx, kv); err != nil {
			logger.Warn("secrets reload: apply failed", "error", err)
			continue
		}
		logger.Info("secrets reloaded", "path", ev.Path)
	}
}

func fatalStartup(logger *slog.Logger, reasonCode string, err error) {
	if logger != nil {
		logger.Error("startup failure", "reason_code", reasonCode, "error", err)
	} else {
		fmt.Fprintf(os.Stderr, "startup failure: %s: %v\n", reasonCode, err)
	}
	os.Exit(1)
}
