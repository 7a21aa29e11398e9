// Package server assembles the application from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/aggregate"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/api"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/archive"
	gcsartifact "github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/artifact/gcs"
	memoryartifact "github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/artifact/memory"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/clock/system"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/config"
	collyfetcher "github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/fetcher/colly"
	headlessfetcher "github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/fetcher/headless"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/hash/sha256"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/id/uuid"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/logging"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/metrics"
	gcpnotify "github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/notify/pubsub"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/producer/openrouter"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/progress"
	progresssinks "github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/progress/sinks"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/ratelimit"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/sources"
	memorystore "github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/store/memory"
	pgstore "github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/store/postgres"
	"github.com/Sjdjdiejdrirhdkjej/YouTube-video-summariser-sub000/internal/summary"
)

// App owns every component with a lifecycle: the HTTP server, the archive
// pool, the progress hub, and the clients that hold connections.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	apiServer *api.Server
	hub       *progress.Hub
	pool      *archive.Pool
	poolStop  context.CancelFunc
	poolDone  chan struct{}

	headless  *headlessfetcher.Fetcher
	summaryPG *pgstore.Store
	gcsClient *storage.Client
	notifier  *gcpnotify.Notifier
}

// Build creates the application's dependencies from the validated config.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("store_driver", cfg.Store.Driver),
		zap.Bool("producer_enabled", cfg.Producer.Enabled),
		zap.Bool("archive_enabled", cfg.Archive.Enabled),
	)

	gatherer := setupGatherer(app)

	store, err := setupStore(ctx, app)
	if err != nil {
		return nil, err
	}

	producer := setupProducer(app)

	notifier, err := setupNotifier(ctx, app)
	if err != nil {
		return nil, err
	}

	emitter, err := setupProgress(ctx, app)
	if err != nil {
		return nil, err
	}

	pool, err := setupArchive(ctx, app, store, notifier, emitter)
	if err != nil {
		return nil, err
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.Config{
			RPS:   cfg.RateLimit.RPS,
			Burst: cfg.RateLimit.Burst,
		})
		logger.Info("rate limiter enabled",
			zap.Float64("rps", cfg.RateLimit.RPS),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
	}

	app.apiServer = api.NewServer(
		gatherer,
		store,
		producer,
		pool,
		emitter,
		limiter,
		uuid.New(),
		system.New(),
		cfg,
		logger,
	)

	return app, nil
}

// Run starts the archive pool and the HTTP server and blocks until a signal
// or the context ends, then shuts everything down in order.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.pool != nil {
		// Workers get their own context so queued archives can drain after
		// the signal context ends; drainArchive cancels it on timeout.
		poolCtx, poolStop := context.WithCancel(context.Background())
		a.poolStop = poolStop
		a.poolDone = make(chan struct{})
		go func() {
			a.logger.Info("archive pool started", zap.Int("workers", a.cfg.Archive.Workers))
			a.pool.Run(poolCtx)
			close(a.poolDone)
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close releases infrastructure in dependency order: stop accepting archive
// jobs and drain them, flush the progress hub, then close the clients the
// workers were using.
func (a *App) Close(ctx context.Context) error {
	a.drainArchive(ctx)

	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			a.logger.Warn("pubsub notifier close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.summaryPG != nil {
		a.summaryPG.Close()
	}
	if a.headless != nil {
		a.headless.Close()
	}

	a.logger.Info("shutdown complete")
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
	return nil
}

// drainArchive closes job intake and waits for queued archives to finish,
// bounded by the shutdown context.
func (a *App) drainArchive(ctx context.Context) {
	if a.pool == nil {
		return
	}
	a.pool.Close()
	if a.poolDone == nil {
		return
	}
	select {
	case <-a.poolDone:
		a.logger.Info("archive queue drained")
	case <-ctx.Done():
		a.logger.Warn("archive drain timed out, stopping workers")
		if a.poolStop != nil {
			a.poolStop()
		}
		<-a.poolDone
	}
}

// setupGatherer builds the fetch stack and the signal gatherer over it.
func setupGatherer(app *App) *aggregate.Gatherer {
	cfg := app.cfg
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:      cfg.HTTP.UserAgent,
		AcceptLanguage: cfg.HTTP.AcceptLanguage,
		Timeout:        cfg.HTTP.Timeout,
		HostRPS:        cfg.Sources.HostRPS,
		HostBurst:      cfg.Sources.HostBurst,
	})
	app.logger.Info("colly fetcher initialized", zap.String("user_agent", cfg.HTTP.UserAgent))

	var renderer summary.Fetcher = headlessfetcher.NewNoop()
	if cfg.Headless.Enabled {
		chrome, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: cfg.Headless.NavTimeout,
		})
		if err != nil {
			app.logger.Warn("headless fetcher init failed, rendering unavailable", zap.Error(err))
		} else {
			app.headless = chrome
			renderer = chrome
			app.logger.Info("headless fetcher initialized", zap.Int("max_parallel", cfg.Headless.MaxParallel))
		}
	}

	client := sources.NewClient(fetcher, renderer, sources.Config{
		PageMaxBytes:      cfg.Sources.PageMaxBytes,
		InnertubeMaxBytes: cfg.Sources.InnertubeMaxBytes,
		CaptionMaxBytes:   cfg.Sources.CaptionMaxBytes,
		CommentLimit:      cfg.Sources.CommentLimit,
		Language:          cfg.HTTP.AcceptLanguage,
	}, app.logger)

	resolver := sources.NewResolver(
		client,
		cfg.Sources.Transcript.ProviderTimeout,
		cfg.Sources.Transcript.RaceTimeout,
		app.logger,
	)

	return aggregate.New(client, resolver, aggregate.Config{
		Timeout:            cfg.Sources.GatherTimeout,
		TranscriptMaxChars: cfg.Sources.Transcript.MaxChars,
	}, app.logger)
}

func setupStore(ctx context.Context, app *App) (summary.SummaryStore, error) {
	switch app.cfg.Store.Driver {
	case "postgres":
		st, err := pgstore.New(ctx, pgstore.Config{
			DSN:   app.cfg.Store.Postgres.DSN,
			Table: app.cfg.Store.Postgres.Table,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		app.summaryPG = st
		app.logger.Info("using postgres summary store", zap.String("table", app.cfg.Store.Postgres.Table))
		return st, nil
	default:
		app.logger.Info("using in-memory summary store")
		return memorystore.New(), nil
	}
}

func setupProducer(app *App) summary.TextProducer {
	if !app.cfg.Producer.Enabled {
		app.logger.Info("text producer disabled, sessions end after the prompt")
		return nil
	}
	p := openrouter.New(openrouter.Config{
		APIKey:  app.cfg.Producer.APIKey,
		BaseURL: app.cfg.Producer.BaseURL,
		Model:   app.cfg.Producer.Model,
		Referer: app.cfg.Producer.Referer,
		Title:   app.cfg.Producer.Title,
		Timeout: app.cfg.Producer.Timeout,
	})
	app.logger.Info("openrouter producer initialized", zap.String("model", app.cfg.Producer.Model))
	return p
}

func setupNotifier(ctx context.Context, app *App) (summary.Notifier, error) {
	if !app.cfg.Notify.Enabled {
		return nil, nil
	}
	n, err := gcpnotify.New(ctx, app.cfg.Notify.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub notifier init failed: %w", err)
	}
	if err := n.VerifyTopic(ctx, app.cfg.Notify.Topic); err != nil {
		return nil, fmt.Errorf("pubsub topic check failed: %w", err)
	}
	app.notifier = n
	app.logger.Info("pubsub notifier initialized",
		zap.String("project", app.cfg.Notify.ProjectID),
		zap.String("topic", app.cfg.Notify.Topic),
	)
	return n, nil
}

func setupProgress(ctx context.Context, app *App) (progress.Emitter, error) {
	promSink, err := progresssinks.NewPrometheusSink(nil)
	if err != nil {
		return nil, fmt.Errorf("progress metrics init failed: %w", err)
	}
	sinkList := []progress.Sink{
		progresssinks.NewLogSink(app.logger.Named("progress_log")),
		promSink,
	}

	hubCfg := progress.Config{
		BufferSize:     app.cfg.Progress.BufferSize,
		MaxBatchEvents: app.cfg.Progress.MaxBatch,
		MaxBatchWait:   app.cfg.Progress.MaxWait,
		SinkTimeout:    app.cfg.Progress.SinkTimeout,
		BaseContext:    ctx,
		Logger:         app.logger.Named("progress_hub"),
	}
	app.hub = progress.NewHub(hubCfg, sinkList...)
	app.logger.Info("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return app.hub, nil
}

func setupArchive(
	ctx context.Context,
	app *App,
	store summary.SummaryStore,
	notifier summary.Notifier,
	emitter progress.Emitter,
) (*archive.Pool, error) {
	if !app.cfg.Archive.Enabled {
		app.logger.Info("archive disabled, prompt and summary artifacts are not persisted")
		return nil, nil
	}

	artifacts, err := setupArtifacts(ctx, app)
	if err != nil {
		return nil, err
	}

	queue := archive.NewQueue(app.cfg.Archive.QueueDepth)
	workerCfg := archive.Config{
		ContentType: app.cfg.Archive.ContentType,
		Prefix:      app.cfg.Archive.Prefix,
		Topic:       app.cfg.Notify.Topic,
	}
	var workers []*archive.Worker
	for i := 0; i < app.cfg.Archive.Workers; i++ {
		workers = append(workers, archive.NewWorker(
			queue,
			store,
			artifacts,
			notifier,
			sha256.New(),
			system.New(),
			emitter,
			workerCfg,
			app.logger.Named("archive").With(zap.Int("index", i)),
		))
	}

	pool := archive.NewPool(queue, workers, app.logger.Named("archive"))
	app.pool = pool
	app.logger.Info("archive pool initialized",
		zap.Int("workers", app.cfg.Archive.Workers),
		zap.Int("queue_depth", app.cfg.Archive.QueueDepth),
		zap.String("driver", app.cfg.Archive.Driver),
	)
	return pool, nil
}

func setupArtifacts(ctx context.Context, app *App) (summary.ArtifactStore, error) {
	switch app.cfg.Archive.Driver {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.gcsClient = client
		blob, err := gcsartifact.New(client, gcsartifact.Config{Bucket: app.cfg.Archive.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Info("using gcs artifact store", zap.String("bucket", app.cfg.Archive.Bucket))
		return blob, nil
	default:
		app.logger.Info("using in-memory artifact store")
		return memoryartifact.NewBlobStore(), nil
	}
}
