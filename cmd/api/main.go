package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angelmondragon/purchase-configurator/api"
	"github.com/angelmondragon/purchase-configurator/api/controllers"
	"github.com/angelmondragon/purchase-configurator/api/routes"
	"github.com/angelmondragon/purchase-configurator/internal/backend"
	"github.com/angelmondragon/purchase-configurator/internal/configurator"
	"github.com/angelmondragon/purchase-configurator/internal/locks"
	"github.com/angelmondragon/purchase-configurator/internal/markup"
	"github.com/angelmondragon/purchase-configurator/internal/orderline"
	"github.com/angelmondragon/purchase-configurator/internal/sessions"
	"github.com/angelmondragon/purchase-configurator/internal/variants"
	"github.com/angelmondragon/purchase-configurator/pkg/config"
	"github.com/angelmondragon/purchase-configurator/pkg/logger"
	"github.com/angelmondragon/purchase-configurator/pkg/metrics"
	"github.com/angelmondragon/purchase-configurator/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewConfiguratorMetrics(reg)

	erp, err := backend.NewClient(cfg.Backend.BaseURL,
		backend.WithDatabase(cfg.Backend.Database),
		backend.WithAPIKey(cfg.Backend.APIKey),
		backend.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create erp client", err)
		os.Exit(1)
	}

	var (
		creator configurator.VariantCreator = erp
		locker  configurator.LineLocker     = configurator.NewLocalLocker()
		pinger  controllers.Pinger
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		pinger = redisClient

		lineLocker, err := locks.NewRedisLineLocker(redisClient, cfg.Configurator.LockTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to create line locker", err)
			os.Exit(1)
		}
		locker = lineLocker

		cache, err := variants.NewCache(erp, redisClient, 0, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create variant cache", err)
			os.Exit(1)
		}
		creator = cache
	}

	selector, err := configurator.NewVariantSelector(creator)
	if err != nil {
		logg.Error(context.Background(), "failed to create variant selector", err)
		os.Exit(1)
	}
	registry, err := sessions.NewRegistry(selector, erp, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create dialog registry", err)
		os.Exit(1)
	}
	reconciler, err := configurator.NewReconciler(erp, logg, m)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler", err)
		os.Exit(1)
	}
	bridge, err := configurator.NewGridBridge(registry, reconciler, logg, m)
	if err != nil {
		logg.Error(context.Background(), "failed to create grid bridge", err)
		os.Exit(1)
	}
	controller, err := configurator.NewController(configurator.ControllerParams{
		Configure:  erp,
		Extractor:  markup.NewExtractor(),
		Selector:   selector,
		Modals:     registry,
		Focus:      registry,
		Locker:     locker,
		Reconciler: reconciler,
		Grid:       bridge,
		Logger:     logg,
		Metrics:    m,
		Labels: configurator.Labels{
			Confirm: cfg.Configurator.ConfirmLabel,
			Back:    cfg.Configurator.BackLabel,
			Title:   cfg.Configurator.TitleLabel,
		},
		IdleTTL: cfg.Configurator.SessionIdleTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dialog controller", err)
		os.Exit(1)
	}
	resolver, err := configurator.NewResolver(erp, cfg.Configurator.MatrixEnabled, m)
	if err != nil {
		logg.Error(context.Background(), "failed to create resolver", err)
		os.Exit(1)
	}
	editor, err := configurator.NewConfigurable(configurator.NewBaseEditor(bridge), resolver, controller, bridge, reconciler, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create line editor", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(cfg, logg, routes.Deps{
		Orders:   orderline.NewStore(),
		Editor:   editor,
		Dialogs:  registry,
		Tracker:  controller,
		Grids:    registry,
		Guard:    controller,
		Redis:    pinger,
		Gatherer: reg,
	})
	server := api.NewServer(cfg, handler)

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":           cfg.App.Env,
		"addr":          server.Addr,
		"redis_enabled": cfg.Redis.Enabled,
	})
	logg.Info(ctx, "starting api server")

	stop, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
		return
	case <-stop.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "error shutting down http server", err)
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "error closing open dialogs", err)
	}
	if err := controller.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "error draining configurator sessions", err)
	}
}
