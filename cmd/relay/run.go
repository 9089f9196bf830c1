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

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"feed-relay/internal/config"
	"feed-relay/internal/infra/adapter/persistence/flatfile"
	"feed-relay/internal/infra/adapter/persistence/itemstore"
	"feed-relay/internal/infra/adapter/persistence/sqlite"
	"feed-relay/internal/infra/db"
	"feed-relay/internal/infra/linkresolver"
	"feed-relay/internal/infra/publisher"
	"feed-relay/internal/infra/scraper"
	"feed-relay/internal/infra/worker"
	"feed-relay/internal/observability/logging"
	"feed-relay/internal/observability/metrics"
	pkgconfig "feed-relay/internal/pkg/config"
	"feed-relay/internal/usecase/deliver"
	"feed-relay/internal/usecase/history"
	"feed-relay/internal/usecase/poll"
	"feed-relay/internal/usecase/relay"
)

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the relay until interrupted (default)",
		Description: `Loads the store, reconciles it with the feed and, for
		Bluesky, with the account's own recent posts, then starts the poll
		loop and the sender. Metrics and health endpoints are served on
		METRICS_PORT and WORKER_HEALTH_PORT.`,
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	logger := initLogger()

	cfg, err := config.Load(c.String("config"), logger, pkgconfig.NewConfigMetrics("relay"))
	if err != nil {
		return err
	}
	logger.Info("relay configuration loaded",
		slog.String("feed_url", cfg.Feed.URL),
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("store_path", cfg.Store.Path),
		slog.String("publisher", cfg.Publisher.Kind),
		slog.String("cleanup_schedule", cfg.Cleanup.Schedule),
		slog.Bool("fallback_applied", cfg.FallbackApplied))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	queue := deliver.NewQueue(metrics.DeliveryObserver{}.ObserveQueueDepth)
	fetcher := scraper.NewRSSFetcher(&http.Client{Timeout: cfg.Feed.Timeout})
	poller := poll.NewPoller(fetcher, cfg.Feed.URL,
		poll.WithRetryDelay(cfg.Feed.RetryDelay),
		poll.WithObserver(metrics.PollObserver{}),
		poll.WithLogger(logger))

	pub, provider, err := buildPublisher(cfg, os.Stdout)
	if err != nil {
		return err
	}
	guarded := publisher.NewGuarded(pub)

	opts := []relay.Option{
		relay.WithObserver(metrics.CycleObserver{}),
		relay.WithLogger(logger),
	}
	if provider != nil && cfg.History.Enabled {
		syncer := history.NewSyncer(provider,
			linkresolver.New(&http.Client{Timeout: cfg.Feed.Timeout}, cfg.History.ShortenerHosts),
			history.Config{Limit: cfg.History.Limit, LinkPattern: cfg.LinkRegexp()},
			logger)
		opts = append(opts, relay.WithHistory(syncer))
	}
	svc := relay.NewService(store, poller, queue, relay.Config{
		FloodThreshold:    cfg.Schedule.FloodThreshold,
		FloodDelayPerItem: cfg.Schedule.FloodDelay,
		CycleDelay:        cfg.Schedule.CycleDelay,
		CleanupKeep:       cfg.Cleanup.Keep,
	}, opts...)

	sender := deliver.NewSender(queue, store, guarded, deliver.Config{
		MaxRetries: cfg.Delivery.MaxRetries,
		RetryDelay: cfg.Delivery.RetryDelay,
		Pause:      cfg.Delivery.Pause,
		Budget: deliver.Budget{
			Max:        cfg.Delivery.MessageBudget,
			LinkWeight: cfg.Delivery.LinkWeight,
			Weigh:      cfg.Weigher(),
			Separator:  " ",
		},
	}, deliver.WithObserver(metrics.DeliveryObserver{}), deliver.WithLogger(logger))

	jobs := worker.NewJobMetrics(nil)
	pipeline := &pipelineStatus{
		queue:    queue,
		store:    store,
		breakers: []breaker{fetcher, guarded},
	}
	health := worker.NewHealthServer(fmt.Sprintf(":%d", cfg.Server.HealthPort), logger, pipeline.check)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serveMetrics(gctx, cfg.Server.MetricsPort, pipeline, logger) })
	g.Go(func() error { return health.Start(gctx) })

	g.Go(func() error {
		if err := jobs.Track("startup", func() error { return svc.Startup(gctx) }); err != nil {
			if gctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("startup: %w", err)
		}
		health.SetReady(true)

		if cfg.Cleanup.Schedule != "" {
			scheduler := cron.New()
			if _, err := scheduler.AddFunc(cfg.Cleanup.Schedule, func() {
				_ = jobs.Track("cleanup_request", func() error {
					svc.RequestCleanup()
					return nil
				})
				logger.Info("cleanup requested", slog.Int("keep", cfg.Cleanup.Keep))
			}); err != nil {
				return fmt.Errorf("cleanup schedule: %w", err)
			}
			scheduler.Start()
			defer scheduler.Stop()
		}

		inner, ictx := errgroup.WithContext(gctx)
		inner.Go(func() error { return svc.Run(ictx) })
		inner.Go(func() error { return sender.Run(ictx) })
		err := inner.Wait()
		health.SetReady(false)
		return err
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		logger.Error("relay stopped with error", slog.Any("error", err))
		return err
	}
	logger.Info("relay stopped")
	return nil
}

func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// openStore builds the item store for the configured backend. The returned
// func releases backend resources.
func openStore(ctx context.Context, cfg *config.RelayConfig, logger *slog.Logger) (*itemstore.Store, func(), error) {
	storeOpts := []itemstore.Option{
		itemstore.WithObserver(metrics.StoreObserver{}),
		itemstore.WithLogger(logger),
	}

	switch cfg.Store.Backend {
	case config.BackendSQLite:
		database, err := db.Open(ctx, cfg.Store.Path, db.DefaultConnectionConfig())
		if err != nil {
			return nil, nil, err
		}
		if err := db.MigrateUp(ctx, database); err != nil {
			_ = database.Close()
			return nil, nil, err
		}
		closeFn := func() {
			if err := database.Close(); err != nil {
				logger.Error("failed to close database", slog.Any("error", err))
			}
		}
		return itemstore.New(sqlite.NewItemBackend(database), storeOpts...), closeFn, nil
	default:
		backend := flatfile.New(cfg.Store.Path)
		logger.Info("using flat file store", slog.String("path", backend.Path()))
		return itemstore.New(backend, storeOpts...), func() {}, nil
	}
}
