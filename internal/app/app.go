package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fxconverter/internal/adapters"
	"fxconverter/internal/adapters/httpclient"
	"fxconverter/internal/adapters/memory"
	"fxconverter/internal/adapters/postgres"
	fxredis "fxconverter/internal/adapters/redis"
	"fxconverter/internal/api"
	"fxconverter/internal/config"
	"fxconverter/internal/history"
	"fxconverter/internal/metrics"
	"fxconverter/internal/platform/db"
	httpserver "fxconverter/internal/platform/http"
	"fxconverter/internal/rate"
	"fxconverter/internal/rate/handler"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// storage bundles the persistence backends chosen by config.
type storage struct {
	rates   adapters.RateStore
	history adapters.HistoryRepository
	close   func()
}

// Run wires the application components, starts HTTP server and scheduler
func Run() error {
	appCfg, err := config.Init()
	if err != nil {
		return err
	}
	// Logger
	logrus.SetOutput(os.Stdout)
	if parsedLvl, parseErr := logrus.ParseLevel(appCfg.Logging.Level); parseErr != nil {
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetLevel(parsedLvl)
	}
	logrus.Info("✅ Config initialization successful")

	// Root context bound to OS signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Bounded context for startup operations (connect, migrate, cache load)
	startupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	store, err := openStorage(startupCtx, appCfg)
	if err != nil {
		logrus.WithError(err).WithField("backend", appCfg.Storage.Backend).Error("Error opening storage")
		return err
	}
	defer store.close()
	logrus.WithField("backend", appCfg.Storage.Backend).Info("✅ Storage ready")

	// External client
	httpClient := httpclient.NewHTTPClient(
		time.Duration(appCfg.HTTPClient.ConnectTimeoutSeconds)*time.Second,
		time.Duration(appCfg.HTTPClient.ReadTimeoutSeconds)*time.Second,
	)
	rateClient := httpclient.NewExchangeRateClient(httpClient, strings.TrimSuffix(appCfg.ExchangeRateAPI.BaseURL, "/"))

	appMetrics := metrics.New(prometheus.DefaultRegisterer)

	controller := rate.NewSyncController(store.rates, rateClient, rate.SyncConfig{
		WorkingBase:     appCfg.Rates.WorkingBase,
		SourceBase:      appCfg.Rates.SourceBase,
		StalenessWindow: appCfg.Rates.StalenessWindow,
	}, appMetrics)
	rateValidator := rate.NewValidator(appCfg.Rates.SupportedCurrencies)

	hadCached, err := controller.LoadCached(startupCtx)
	if err != nil {
		logrus.WithError(err).Error("Failed to load cached rates")
		return err
	}
	logrus.WithField("had_cached", hadCached).Info("✅ Cached rates loaded")

	// Initial sync runs in the background, the server starts regardless
	go initialSync(ctx, controller, rateValidator, hadCached)

	scheduler := rate.NewScheduler(controller, time.Duration(appCfg.Scheduler.RecheckIntervalSec)*time.Second)
	// Ensure scheduler stops before storage closes
	defer func() {
		if shutDownErr := scheduler.Shutdown(); shutDownErr != nil {
			logrus.Errorf("Scheduler shutdown error: %v", shutDownErr)
		}
	}()
	if startErr := scheduler.Start(ctx); startErr != nil {
		logrus.WithError(startErr).Error("Failed to start scheduler")
		return startErr
	}

	recorder := history.NewRecorder(store.history, appCfg.History.Limit)
	converter := rate.NewConverter(controller, recorder, appMetrics)

	// Handlers and router
	rateHandler := handler.NewRateHandler(rateValidator, controller, converter, recorder)
	router := api.NewRouter(rateHandler, promhttp.Handler())

	logrus.Info("Starting http server")
	// Block until context is canceled, then perform graceful shutdown.
	if serverErr := httpserver.Start(ctx, appCfg.HTTPServer, router); serverErr != nil {
		stop()
		logrus.Errorf("HTTP server error: %v", serverErr)
		return serverErr
	}
	return nil
}

func initialSync(ctx context.Context, controller *rate.SyncController, validator *rate.CurrencyValidator, hadCached bool) {
	outcome, err := controller.Sync(ctx, false, hadCached)
	if err != nil {
		logrus.WithError(err).Error("Initial sync failed to persist rates")
		return
	}
	entry := logrus.WithFields(logrus.Fields{
		"status":     outcome.Status,
		"rates":      len(outcome.Table),
		"updated_at": outcome.UpdatedAt,
	})
	if outcome.Status == rate.StatusRefreshFailed {
		entry.Error("Initial sync failed, no rates available")
		return
	}
	entry.Info("✅ Initial sync finished")

	if missing := validator.Missing(controller.Table()); len(missing) > 0 {
		logrus.WithField("missing", missing).Warn("Supported currencies absent from rate table")
	}
}

func openStorage(ctx context.Context, cfg *config.AppConfig) (*storage, error) {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		pool, err := db.CreatePoolAndPing(ctx, cfg.DbServer)
		if err != nil {
			return nil, fmt.Errorf("error connecting to db: %w", err)
		}
		if err = db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &storage{
			rates:   postgres.NewRateStore(pool),
			history: postgres.NewHistoryRepository(pool),
			close:   pool.Close,
		}, nil
	case config.StorageRedis:
		client, err := fxredis.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Pass, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		return &storage{
			rates:   fxredis.NewRateStore(client),
			history: fxredis.NewHistoryRepository(client),
			close: func() {
				if closeErr := client.Close(); closeErr != nil {
					logrus.WithError(closeErr).Warn("Redis close error")
				}
			},
		}, nil
	default:
		return &storage{
			rates:   memory.NewRateStore(),
			history: memory.NewHistoryRepository(),
			close:   func() {},
		}, nil
	}
}
