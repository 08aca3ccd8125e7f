// Package app builds the OpenFeeder service from configuration and owns its
// lifecycle: the HTTP server, background sweepers and the notification hub.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/openfeeder/internal/api"
	"github.com/JakeFAU/openfeeder/internal/cache"
	cachememory "github.com/JakeFAU/openfeeder/internal/cache/memory"
	cacheredis "github.com/JakeFAU/openfeeder/internal/cache/redis"
	"github.com/JakeFAU/openfeeder/internal/chunker"
	"github.com/JakeFAU/openfeeder/internal/clock/system"
	"github.com/JakeFAU/openfeeder/internal/config"
	"github.com/JakeFAU/openfeeder/internal/content"
	"github.com/JakeFAU/openfeeder/internal/diffsync"
	"github.com/JakeFAU/openfeeder/internal/feed"
	"github.com/JakeFAU/openfeeder/internal/gateway"
	"github.com/JakeFAU/openfeeder/internal/gateway/redisstore"
	"github.com/JakeFAU/openfeeder/internal/hash/sha256"
	"github.com/JakeFAU/openfeeder/internal/id/uuid"
	"github.com/JakeFAU/openfeeder/internal/metrics"
	"github.com/JakeFAU/openfeeder/internal/notify"
	"github.com/JakeFAU/openfeeder/internal/notify/sinks"
	memorypublisher "github.com/JakeFAU/openfeeder/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/openfeeder/internal/publisher/pubsub"
	"github.com/JakeFAU/openfeeder/internal/search"
	sourcememory "github.com/JakeFAU/openfeeder/internal/source/memory"
	sourcepostgres "github.com/JakeFAU/openfeeder/internal/source/postgres"
	sourcesqlite "github.com/JakeFAU/openfeeder/internal/source/sqlite"
	"github.com/JakeFAU/openfeeder/internal/storage"
	gcsstorage "github.com/JakeFAU/openfeeder/internal/storage/gcs"
	localstorage "github.com/JakeFAU/openfeeder/internal/storage/local"
	memorystorage "github.com/JakeFAU/openfeeder/internal/storage/memory"
	tombmemory "github.com/JakeFAU/openfeeder/internal/tombstone/memory"
	tombpostgres "github.com/JakeFAU/openfeeder/internal/tombstone/postgres"
)

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  feed.Clock
	ids    feed.IDGenerator

	apiServer *api.Server
	content   *content.Service

	source     feed.Source
	tombstones feed.TombstoneLog
	memTombs   *tombmemory.Log
	memCache   *cachememory.Store
	sessions   *gateway.MemoryStore
	index      *search.Index
	hub        *notify.Hub

	redis           *goredis.Client
	pubsubClient    *pubsub.Client
	pubsubPublisher *gcppublisher.Publisher
	memPublisher    *memorypublisher.Publisher
	gcs             *gcstorage.Client
	closers         []func()
}

// Build creates the application's dependencies. On error, everything opened
// so far is released.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		ids:    uuid.New(),
	}
	defer func() {
		if err != nil {
			if app.hub != nil {
				_ = app.hub.Close(context.Background())
			}
			app.closeInfrastructure(context.Background())
		}
	}()

	app.logger.Info("building application dependencies",
		zap.String("source", cfg.Source.Backend),
		zap.String("cache", cfg.Cache.Backend),
		zap.String("tombstones", cfg.Tombstones.Backend),
		zap.Bool("gateway", cfg.Gateway.Enabled),
	)
	metrics.Init()

	if cfg.UsesRedis() {
		app.redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	if err = app.setupSource(ctx); err != nil {
		return nil, err
	}
	if err = app.setupTombstones(ctx); err != nil {
		return nil, err
	}
	store, err := app.setupCache()
	if err != nil {
		return nil, err
	}
	if err = app.setupSearch(ctx); err != nil {
		return nil, err
	}
	emitter, err := app.setupNotify(ctx)
	if err != nil {
		return nil, err
	}

	deps := content.Deps{
		Source:     app.source,
		Cache:      store,
		Chunker:    chunker.New(cfg.Chunker, sha256.New()),
		Tombstones: app.tombstones,
		Events:     emitter,
		Observer:   metrics.CacheObserver{},
		Clock:      app.clock,
		Logger:     logger.Named("content"),
	}
	if w, ok := app.source.(feed.Writer); ok {
		deps.Writer = w
	}
	if app.index != nil {
		deps.Searcher = app.index
		if cfg.Search.RankChunks {
			deps.Ranker = search.ChunkRanker{}
		}
	}
	app.content, err = content.New(deps)
	if err != nil {
		return nil, fmt.Errorf("content service init failed: %w", err)
	}

	var dialogue api.Dialogue
	if cfg.Gateway.Enabled {
		gw, err := app.setupGateway(emitter)
		if err != nil {
			return nil, err
		}
		dialogue = gw
	}

	var upstream http.Handler
	if cfg.Upstream.URL != "" {
		upstream, err = api.NewUpstream(cfg.Upstream.URL, logger.Named("upstream"))
		if err != nil {
			return nil, fmt.Errorf("upstream init failed: %w", err)
		}
	}

	apiKey := ""
	if cfg.Auth.Enabled {
		apiKey = cfg.Auth.APIKey
	}
	app.apiServer = api.NewServer(api.Deps{
		Content: app.content,
		Sync: diffsync.New(app.source, app.tombstones, app.clock,
			diffsync.WithLogger(logger.Named("sync"))),
		Gateway:        dialogue,
		Site:           cfg.Site,
		APIKey:         apiKey,
		RequestTimeout: cfg.Server.RequestTimeout,
		Upstream:       upstream,
		Ready:          app.ready,
		Logger:         logger.Named("api"),
	})

	return app, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

func (a *App) setupSource(ctx context.Context) error {
	switch a.cfg.Source.Backend {
	case config.BackendPostgres:
		src, err := sourcepostgres.New(ctx, a.cfg.Source.Postgres, a.cfg.Source.Table)
		if err != nil {
			return fmt.Errorf("postgres source init failed: %w", err)
		}
		a.closers = append(a.closers, src.Close)
		a.source = src
		a.logger.Info("using postgres content source", zap.String("table", a.cfg.Source.Table))
	case config.BackendSQLite:
		src, err := sourcesqlite.Open(ctx, a.cfg.Source.SQLitePath)
		if err != nil {
			return fmt.Errorf("sqlite source init failed: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := src.Close(); err != nil {
				a.logger.Warn("sqlite close failed", zap.Error(err))
			}
		})
		a.source = src
		a.logger.Info("using sqlite content source", zap.String("path", a.cfg.Source.SQLitePath))
	default:
		if a.cfg.Source.SeedFile == "" {
			a.source = sourcememory.New()
			a.logger.Warn("using empty in-memory content source")
			return nil
		}
		src, err := sourcememory.LoadFile(a.cfg.Source.SeedFile)
		if err != nil {
			return fmt.Errorf("memory source init failed: %w", err)
		}
		a.source = src
		a.logger.Info("using in-memory content source", zap.String("seed_file", a.cfg.Source.SeedFile))
	}
	return nil
}

func (a *App) setupTombstones(ctx context.Context) error {
	if a.cfg.Tombstones.Backend == config.BackendPostgres {
		pgCfg := a.cfg.Tombstones.Postgres
		if pgCfg.DSN == "" {
			pgCfg = a.cfg.Source.Postgres
		}
		log, err := tombpostgres.New(ctx, pgCfg, a.cfg.Tombstones.Table, a.cfg.Tombstones.Limit)
		if err != nil {
			return fmt.Errorf("postgres tombstone log init failed: %w", err)
		}
		a.closers = append(a.closers, log.Close)
		a.tombstones = log
		a.logger.Info("using postgres tombstone log", zap.Int("limit", a.cfg.Tombstones.Limit))
		return nil
	}

	opts := []tombmemory.Option{tombmemory.WithLogger(a.logger.Named("tombstones"))}
	blobs, err := a.setupSnapshotStorage(ctx)
	if err != nil {
		return err
	}
	if blobs != nil {
		opts = append(opts, tombmemory.WithSnapshots(blobs, a.cfg.Snapshot.Path))
	}
	a.memTombs = tombmemory.New(a.cfg.Tombstones.Limit, opts...)
	if blobs != nil {
		if err := a.memTombs.Restore(ctx); err != nil {
			return fmt.Errorf("tombstone restore failed: %w", err)
		}
		a.logger.Info("tombstone log restored", zap.Int("entries", a.memTombs.Len()))
	}
	a.tombstones = a.memTombs
	return nil
}

func (a *App) setupSnapshotStorage(ctx context.Context) (storage.BlobStore, error) {
	switch a.cfg.Snapshot.Backend {
	case config.BackendGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.gcs = client
		store, err := gcsstorage.New(client, a.cfg.Snapshot.GCS)
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("using GCS tombstone snapshots", zap.String("bucket", a.cfg.Snapshot.GCS.Bucket))
		return store, nil
	case config.BackendLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Snapshot.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local tombstone snapshots", zap.String("dir", a.cfg.Snapshot.LocalDir))
		return store, nil
	case config.BackendMemory:
		return memorystorage.NewBlobStore(), nil
	default:
		return nil, nil
	}
}

func (a *App) setupCache() (cache.Store, error) {
	if a.cfg.Cache.Backend == config.BackendRedis {
		store, err := cacheredis.New(a.redis, cacheredis.Config{Prefix: a.cfg.Cache.Prefix, TTL: a.cfg.Cache.TTL}, a.clock)
		if err != nil {
			return nil, fmt.Errorf("redis cache init failed: %w", err)
		}
		a.logger.Info("using redis response cache", zap.String("addr", a.cfg.Redis.Addr))
		return store, nil
	}
	a.memCache = cachememory.New(a.cfg.Cache.TTL, a.clock)
	return a.memCache, nil
}

func (a *App) setupSearch(ctx context.Context) error {
	if !a.cfg.Search.Enabled {
		return nil
	}
	idx, err := search.New(a.logger.Named("search"))
	if err != nil {
		return fmt.Errorf("search index init failed: %w", err)
	}
	a.index = idx
	n, err := idx.Rebuild(ctx, a.source)
	if err != nil {
		return fmt.Errorf("search index rebuild failed: %w", err)
	}
	a.logger.Info("search index built", zap.Int("documents", n))
	return nil
}

func (a *App) setupNotify(ctx context.Context) (notify.Emitter, error) {
	var sinkList []notify.Sink
	if a.cfg.Notify.Log {
		sinkList = append(sinkList, sinks.NewLogSink(a.logger.Named("notify_log")))
	}
	if a.cfg.Notify.Prometheus {
		ps, err := sinks.NewPrometheusSink(nil)
		if err != nil {
			return nil, fmt.Errorf("prometheus sink init failed: %w", err)
		}
		sinkList = append(sinkList, ps)
	}
	if a.cfg.Notify.PubSub.Enabled {
		pub, err := a.setupPublisher(ctx)
		if err != nil {
			return nil, err
		}
		ps, err := sinks.NewPublisherSink(pub, a.cfg.Notify.PubSub.TopicID, a.cfg.Notify.PubSub.AllEvents)
		if err != nil {
			return nil, fmt.Errorf("publisher sink init failed: %w", err)
		}
		sinkList = append(sinkList, ps)
	}
	if a.cfg.Notify.Webhook.Enabled {
		ws, err := sinks.NewWebhookSink(a.cfg.Notify.Webhook.WebhookConfig, nil)
		if err != nil {
			return nil, fmt.Errorf("webhook sink init failed: %w", err)
		}
		sinkList = append(sinkList, ws)
	}
	if len(sinkList) == 0 {
		a.logger.Info("notifications disabled")
		return notify.Discard{}, nil
	}
	a.hub = notify.NewHub(a.cfg.Notify.Hub, a.logger.Named("notify"), a.ids, sinkList...)
	a.logger.Info("notification hub initialized", zap.Int("sinks", len(sinkList)))
	return a.hub, nil
}

func (a *App) setupPublisher(ctx context.Context) (sinks.Publisher, error) {
	cfg := a.cfg.Notify.PubSub
	if cfg.Backend == config.BackendMemory {
		a.memPublisher = memorypublisher.New(cfg.MemoryLimit)
		a.logger.Info("using in-memory change publisher", zap.Int("limit", cfg.MemoryLimit))
		return a.memPublisher, nil
	}
	pub, client, err := gcppublisher.Dial(ctx, cfg.ProjectID, cfg.TopicID)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.pubsubClient, a.pubsubPublisher = client, pub
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", cfg.ProjectID),
		zap.String("topic", cfg.TopicID),
	)
	return pub, nil
}

func (a *App) setupGateway(emitter notify.Emitter) (*gateway.Gateway, error) {
	var sessions gateway.SessionStore
	if a.cfg.Gateway.SessionStore == config.BackendRedis {
		rs, err := redisstore.New(a.redis, "", a.cfg.Gateway.SessionTTL, a.clock, a.ids)
		if err != nil {
			return nil, fmt.Errorf("redis session store init failed: %w", err)
		}
		sessions = rs
	} else {
		a.sessions = gateway.NewMemoryStore(a.cfg.Gateway.SessionTTL, a.clock, a.ids, a.logger.Named("sessions"))
		a.sessions.OnSweep(metrics.ObserveSessionsSwept)
		sessions = a.sessions
	}
	gw, err := gateway.New(gateway.Deps{
		Detector:   gateway.NewDetector(a.cfg.Gateway.Signatures, a.cfg.Gateway.StaticExtensions, a.cfg.Gateway.StaticPrefixes),
		Sessions:   sessions,
		Site:       a.cfg.Site,
		SessionTTL: a.cfg.Gateway.SessionTTL,
		Clock:      a.clock,
		Events:     emitter,
		Logger:     a.logger.Named("gateway"),
	})
	if err != nil {
		return nil, fmt.Errorf("gateway init failed: %w", err)
	}
	return gw, nil
}

func (a *App) ready(ctx context.Context) error {
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}
	return nil
}

// Run serves HTTP and runs the background sweepers until ctx is canceled,
// then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
	}

	if a.sessions != nil {
		a.sessions.Start(ctx, a.cfg.Gateway.SweepInterval)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.maintain(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", zap.Error(err))
		}
		return nil
	})

	runErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// maintain sweeps the memory cache and reports dropped notifications until
// ctx ends.
func (a *App) maintain(ctx context.Context) {
	interval := a.cfg.Cache.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var reported int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.memCache != nil {
				if n := a.memCache.Sweep(); n > 0 {
					a.logger.Debug("swept expired cache entries", zap.Int("removed", n))
				}
			}
			if a.hub != nil {
				dropped := a.hub.Dropped()
				metrics.ObserveNotifyDropped(dropped - reported)
				reported = dropped
			}
		}
	}
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	if a.sessions != nil {
		a.sessions.Stop()
	}
	var err error
	if a.hub != nil {
		if cerr := a.hub.Close(ctx); cerr != nil {
			a.logger.Warn("notification hub close failed", zap.Error(cerr))
			err = cerr
		}
	}
	if a.memTombs != nil && a.cfg.Snapshot.Backend != "" {
		if serr := a.memTombs.Snapshot(ctx); serr != nil {
			a.logger.Warn("final tombstone snapshot failed", zap.Error(serr))
		}
	}
	a.closeInfrastructure(ctx)
	if serr := a.logger.Sync(); serr != nil {
		a.logger.Debug("logger sync failed", zap.Error(serr))
	}
	a.logger.Info("shutdown complete")
	return err
}

func (a *App) closeInfrastructure(_ context.Context) {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("search index close failed", zap.Error(err))
		}
		a.index = nil
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
		a.pubsubPublisher = nil
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
		a.pubsubClient = nil
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.gcs = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
		a.redis = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
