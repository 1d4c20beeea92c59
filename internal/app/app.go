// Package app wires configuration, storage and services into the runnable
// server and the one-shot maintenance commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stash/internal/auth"
	"github.com/MrSnakeDoc/stash/internal/config"
	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/httpserver"
	"github.com/MrSnakeDoc/stash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/metrics"
	"github.com/MrSnakeDoc/stash/internal/redis"
	"github.com/MrSnakeDoc/stash/internal/scheduler"
	"github.com/MrSnakeDoc/stash/internal/scoring"
	"github.com/MrSnakeDoc/stash/internal/scraper"
	"github.com/MrSnakeDoc/stash/internal/service"
	"github.com/MrSnakeDoc/stash/internal/store"
	"github.com/MrSnakeDoc/stash/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/stash/internal/store/redis"
	"github.com/MrSnakeDoc/stash/internal/store/sqlite"
	"github.com/MrSnakeDoc/stash/internal/utils"
	"github.com/MrSnakeDoc/stash/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	factory     domain.Factory
	store       store.Store
	redisClient *goredis.Client
	runs        *redisstore.Store
	metrics     *metrics.Metrics
	bookmarks   *service.BookmarkService
	recomputer  *service.Recomputer
}

// New opens the store and, when configured, Redis, then builds the services.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	log.Info("store opened",
		logger.String("kind", cfg.Store),
		logger.String("path", cfg.DBPath))

	a := &App{
		cfg:     cfg,
		logger:  log,
		factory: domain.DefaultFactory(),
		store:   st,
		metrics: metrics.New(nil),
	}

	var throttle service.Throttle = service.NewLocalThrottle(cfg.RecomputeThrottle, a.factory.Clock)
	var recorder service.RunRecorder
	if cfg.RedisEnabled() {
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.Connect(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, log)
		if err != nil {
			utils.CloseLogged(st, "store", log)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redisClient = client
		a.runs = redisstore.NewStore(client, cfg.RecomputeThrottle)
		throttle, recorder = a.runs, a.runs
		log.Info("Redis initialized successfully")
	} else {
		log.Info("redis not configured, recompute throttle kept in process")
	}

	policy := scoring.SkipMalformed
	if cfg.StrictScoring {
		policy = scoring.AbortOnMalformed
	}

	a.bookmarks = service.NewBookmarkService(a.factory, st, scraper.New(cfg.ScrapeTimeout, log), log, a.metrics)
	a.recomputer = service.NewRecomputer(
		service.NewScoringService(st, scoring.New(policy), a.factory.Clock, log),
		log,
		service.RecomputerOptions{
			Throttle: throttle,
			Runs:     recorder,
			Timeout:  cfg.RecomputeTimeout,
			Metrics:  a.metrics,
		},
	)
	return a, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewIndex(), nil
	case config.StoreSQLite:
		st, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// Run serves HTTP and runs the schedulers until SIGINT or SIGTERM.
func (a *App) Run() error {
	defer a.Close()

	a.logger.Infof("🚀 Starting stash v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("stash %s", version.String())

	users, err := auth.LoadUsers(a.cfg.UsersFile)
	if err != nil {
		return err
	}
	if users.Len() == 0 {
		a.logger.Warn("users file lists nobody, every request will be rejected",
			logger.String("file", a.cfg.UsersFile))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rescoreTrigger := make(chan struct{}, 1)
	var stops []func()
	defer func() {
		for _, s := range stops {
			s()
		}
	}()

	if a.cfg.RescoreInterval > 0 {
		refresher := scheduler.NewScoreRefresher(a.store, a.recomputer, a.logger, a.metrics,
			a.cfg.RescoreInterval, a.cfg.RescoreWorkers, rescoreTrigger)
		if err := refresher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start score refresher: %w", err)
		}
		stops = append(stops, refresher.Stop)
		a.logger.Info("score refresher started",
			logger.Duration("interval", a.cfg.RescoreInterval),
			logger.Int("workers", a.cfg.RescoreWorkers))
	} else {
		rescoreTrigger = nil
		a.logger.Info("periodic rescore disabled")
	}

	if a.cfg.VisitRetention > 0 {
		pruner := scheduler.NewVisitLogPruner(a.store, a.factory.Clock, a.logger, a.metrics,
			a.cfg.PruneInterval, a.cfg.VisitRetention)
		if err := pruner.Start(ctx); err != nil {
			return fmt.Errorf("failed to start visit log pruner: %w", err)
		}
		stops = append(stops, pruner.Stop)
		a.logger.Info("visit log pruner started",
			logger.Duration("retention", a.cfg.VisitRetention),
			logger.Duration("interval", a.cfg.PruneInterval))
	}

	var importTrigger chan struct{}
	if a.cfg.BookmarkFile != "" {
		importTrigger = make(chan struct{}, 1)
		importer := scheduler.NewBookmarkImporter(a.cfg.BookmarkFile, a.cfg.ImportUser, a.bookmarks,
			a.logger, a.metrics, a.cfg.ImportInterval, importTrigger)
		if err := importer.Start(ctx); err != nil {
			// A broken bookmarks.yaml must not keep the server down.
			a.logger.Error("bookmark importer not started", logger.Error(err))
			importTrigger = nil
		} else {
			stops = append(stops, importer.Stop)
			a.logger.Info("bookmark importer started",
				logger.String("file", a.cfg.BookmarkFile),
				logger.Duration("interval", a.cfg.ImportInterval))
		}
	} else {
		a.logger.Info("bookmark file not configured, import disabled")
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:         a.logger,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedHosts:   a.cfg.AllowedHosts,
		AllowedCIDRS:   a.cfg.AllowedCIDRS,
		TrustProxy:     a.cfg.TrustProxy,
		RateLimitBurst: a.cfg.RateLimitBurst,
		RateLimitRate:  a.cfg.RateLimitPerMin,
		Users:          users,
		Bookmarks:      a.bookmarks,
		Recomputer:     a.recomputer,
		Store:          a.store,
		StoreKind:      a.cfg.Store,
		RedisClient:    a.redisClient,
		Runs:           a.runs,
		Metrics:        a.metrics,
		RescoreTrigger: rescoreTrigger,
		ImportTrigger:  importTrigger,
	}
	server := httpserver.New(a.cfg, a.logger, d)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	// Let in-flight recomputes finish before the store closes.
	a.recomputer.Wait()

	a.logger.Info("✅ stash stopped cleanly")
	return nil
}

// Rescore recomputes the scores of user, or of every user when user is empty.
// It returns how many users were rescored.
func (a *App) Rescore(ctx context.Context, user string) (int, error) {
	if user != "" {
		run, err := a.recomputer.Run(ctx, user)
		if err != nil {
			return 0, err
		}
		a.logger.Info("rescored user",
			logger.String("user", user),
			logger.Int("visits", run.Visits),
			logger.Int("scored", run.Scored),
			logger.Int("skipped", run.Skipped))
		return 1, nil
	}

	refresher := scheduler.NewScoreRefresher(a.store, a.recomputer, a.logger, a.metrics,
		a.cfg.RescoreInterval, a.cfg.RescoreWorkers, nil)
	return refresher.RefreshAll(ctx)
}

// Import adds the bookmarks of a Homepage bookmarks.yaml to user.
func (a *App) Import(ctx context.Context, user, file string) (service.ImportResult, error) {
	if user == "" || file == "" {
		return service.ImportResult{}, errors.New("both a user and a bookmarks file are required")
	}
	importer := scheduler.NewBookmarkImporter(file, user, a.bookmarks, a.logger, a.metrics, a.cfg.ImportInterval, nil)
	return importer.Import(ctx)
}

// Close releases the store and the Redis client.
func (a *App) Close() {
	utils.CloseLogged(a.store, "store", a.logger)
	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, "redis", a.logger)
	}
}
