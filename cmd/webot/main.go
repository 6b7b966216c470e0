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

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"

	"github.com/gusfragger/webot/internal/application"
	"github.com/gusfragger/webot/internal/config"
	"github.com/gusfragger/webot/internal/datetime"
	httptransport "github.com/gusfragger/webot/internal/http"
	"github.com/gusfragger/webot/internal/logging"
	"github.com/gusfragger/webot/internal/notification"
	"github.com/gusfragger/webot/internal/persistence/sqlite"
	"github.com/gusfragger/webot/internal/persistence/sqlite/migration"
	"github.com/gusfragger/webot/internal/timezone"
)

func main() {
	bootstrap := logging.New(os.Stderr, "info", "json")
	if err := config.LoadDotEnv(".env"); err != nil {
		bootstrap.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("webot stopped", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger, deliveryChannel(cfg, logger), time.Now)
	if err != nil {
		return err
	}
	defer a.close(logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.runner.Start()
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("webot API listening", "addr", server.Addr, "delivery_channel", cfg.DeliveryChannel)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http: %w", err))
		}
		if err := a.runner.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop reminder runner: %w", err))
		}
		logger.Info("webot stopped accepting work")
		return errors.Join(errs...)
	})
	return group.Wait()
}

// app is the assembled process: storage, services, reminder pipeline and
// the HTTP handler.
type app struct {
	pool       *sqlite.ConnectionPool
	handler    http.Handler
	dispatcher *notification.Dispatcher
	runner     *notification.Runner
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, channel notification.Channel, now func() time.Time) (_ *app, err error) {
	pool, err := sqlite.Open(ctx, migration.DefaultSQLiteConfig(cfg.SQLitePath), logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err != nil {
			_ = pool.Close()
		}
	}()

	zones, err := timezone.NewResolver(cfg.ZoneCacheSize)
	if err != nil {
		return nil, err
	}
	converter := datetime.NewConverter(zones)
	idGenerator := uuid.NewString

	profileRepo := newProfileRepositoryAdapter(sqlite.NewProfileRepository(pool))
	intervalRepo := newIntervalRepositoryAdapter(sqlite.NewAvailabilityRepository(pool))
	meetingRepo := newMeetingRepositoryAdapter(sqlite.NewMeetingRepository(pool))
	jobStore := sqlite.NewNotificationJobRepository(pool)
	jobRepo := newJobRepositoryAdapter(jobStore)

	profileService := application.NewProfileService(profileRepo, zones, now, logger)
	availabilityService := application.NewAvailabilityService(intervalRepo, profileRepo, zones, idGenerator, now, logger)
	searchService := application.NewSearchService(intervalRepo, profileRepo, meetingRepo, zones, now, logger)
	notificationService := application.NewNotificationService(jobRepo, meetingRepo, profileRepo, converter, idGenerator, now, logger)
	meetingService := application.NewMeetingService(meetingRepo, availabilityService, notificationService, zones, converter, idGenerator, now, logger)
	composer := application.NewReminderComposer(meetingRepo, profileRepo, converter)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := notification.NewMetrics(registry)
	if err != nil {
		return nil, err
	}
	dispatcher, err := notification.NewDispatcher(newReminderStoreAdapter(jobStore), composer, channel, notification.DispatcherConfig{
		BatchSize:   cfg.DispatchBatchSize,
		SendTimeout: cfg.DeliveryTimeout,
		ClaimLease:  cfg.ClaimLease,
		Retention:   cfg.Retention,
		RatePerSec:  cfg.DeliveryRate,
	}, metrics, now, logger)
	if err != nil {
		return nil, err
	}
	runner, err := notification.NewRunner(dispatcher, cfg.DispatchInterval, cfg.PurgeSchedule, logger)
	if err != nil {
		return nil, err
	}

	requestMetrics, err := httptransport.RequestMetrics(registry)
	if err != nil {
		return nil, err
	}
	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Profiles:     httptransport.NewProfileHandler(profileService, zones, logger),
		Availability: httptransport.NewAvailabilityHandler(availabilityService, logger),
		Search:       httptransport.NewSearchHandler(searchService, logger),
		Meetings:     httptransport.NewMeetingHandler(meetingService, notificationService, logger),
		Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Health:       httptransport.Healthz(pool),
		Middleware:   []func(http.Handler) http.Handler{httptransport.RequireActor(logger)},
		Outer:        []func(http.Handler) http.Handler{httptransport.RequestLogger(logger), requestMetrics},
	})

	return &app{
		pool:       pool,
		handler:    handler,
		dispatcher: dispatcher,
		runner:     runner,
	}, nil
}

func (a *app) close(logger *slog.Logger) {
	if err := a.pool.Close(); err != nil {
		logger.Error("failed to close storage", "error", err)
	}
}

func deliveryChannel(cfg config.Config, logger *slog.Logger) notification.Channel {
	if cfg.DeliveryChannel == config.ChannelSlack {
		return notification.NewSlackChannel(slack.New(cfg.SlackBotToken))
	}
	return notification.NewLogChannel(logger)
}
