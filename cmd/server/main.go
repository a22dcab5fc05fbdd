// Command server is the top-level wiring module: it constructs every
// subsystem singleton explicitly and hands each its narrow collaborator
// dependencies, rather than relying on package-level globals and
// import-time initialization. Exit codes follow the spec: 0 on a graceful
// shutdown, non-zero on any fatal startup failure (missing env, database
// unreachable, reference tables missing).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rts-ladder/ranked-core/internal/api"
	"github.com/rts-ladder/ranked-core/internal/cache"
	"github.com/rts-ladder/ranked-core/internal/catalog"
	"github.com/rts-ladder/ranked-core/internal/config"
	"github.com/rts-ladder/ranked-core/internal/datalayer"
	"github.com/rts-ladder/ranked-core/internal/leaderboard"
	"github.com/rts-ladder/ranked-core/internal/lifecycle"
	"github.com/rts-ladder/ranked-core/internal/matchmaker"
	"github.com/rts-ladder/ranked-core/internal/notify"
	"github.com/rts-ladder/ranked-core/internal/objectstore"
	"github.com/rts-ladder/ranked-core/internal/replay"
	"github.com/rts-ladder/ranked-core/internal/store"
	"github.com/rts-ladder/ranked-core/internal/workerpool"
)

func main() {
	if err := run(); err != nil {
		// A bare fmt.Fprintln here (not the structured logger) covers the
		// window before the logger itself is constructed.
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		return fmt.Errorf("constructing logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.ReferenceDataDir)
	if err != nil {
		return fmt.Errorf("loading reference catalogs: %w", err)
	}

	dbStore, dialect, err := store.Open(ctx, string(cfg.DatabaseType), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening persistent store: %w", err)
	}
	defer dbStore.Close()

	var mirror datalayer.AnalyticsSink
	if cfg.ClickHouseURL != "" {
		sink, err := datalayer.NewClickHouseSink(ctx, cfg.ClickHouseURL)
		if err != nil {
			// The analytics mirror is optional infrastructure (spec §7:
			// analytics-grade rows favor availability over correctness);
			// an unreachable ClickHouse never blocks startup.
			sugar.Warnw("clickhouse analytics mirror unavailable, continuing without it", "error", err)
		} else {
			mirror = sink
			defer sink.Close()
		}
	}

	bus := notify.New(sugar)

	var snapshotCache leaderboard.SnapshotCache
	var pinger api.RedisPinger
	if cfg.RedisURL != "" {
		rc, err := cache.New(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("constructing redis client: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		pingErr := rc.Ping(pingCtx)
		cancel()
		if pingErr != nil {
			sugar.Warnw("redis unreachable at startup, continuing without cross-process leaderboard cache", "error", pingErr)
		} else {
			snapshotCache = rc
			pinger = rc
		}
		defer rc.Close() //nolint:errcheck
	}

	var invalidate datalayer.InvalidationHook // wired below, after the Engine exists
	data, err := datalayer.Open(ctx, datalayer.Options{
		Store:            dbStore,
		Dialect:          dialect,
		QueueSize:        cfg.WriteQueueSize,
		FailedWritesPath: "./failed_writes.log",
		Logger:           sugar,
		Mirror:           mirror,
		OnInvalidate:     func() {
			if invalidate != nil {
				invalidate()
			}
		},
	})
	if err != nil {
		return fmt.Errorf("opening data layer: %w", err)
	}
	defer data.Shutdown(10 * time.Second)

	refreshPool := workerpool.New(cfg.WorkerProcesses)
	board := leaderboard.New(leaderboard.Options{
		Source:          data,
		Pool:            refreshPool,
		Cache:           snapshotCache,
		Logger:          sugar,
		RefreshInterval: cfg.LeaderboardRefreshInterval,
	})
	invalidate = board.Invalidate
	board.WarmFromCache(ctx)
	if err := board.Refresh(ctx); err != nil {
		sugar.Warnw("initial leaderboard refresh failed, serving empty view until next cycle", "error", err)
	}
	board.Start(ctx)
	defer board.Close()

	coordinator := lifecycle.New(lifecycle.Options{
		Data:         data,
		Bus:          bus,
		Logger:       sugar,
		MatchTimeout: cfg.MatchTimeout,
	})

	mm := matchmaker.New(matchmaker.Options{
		Catalog:    cat,
		Creator:    data,
		Bus:        bus,
		Logger:     sugar,
		WavePeriod: cfg.WavePeriod,
		Seed:       time.Now().UnixNano(),
	})
	mm.Start(ctx)
	defer mm.Close()

	objStore, err := objectstore.New(objectstore.Options{
		Endpoint:  cfg.ObjectStoreEndpoint,
		Bucket:    cfg.ObjectStoreBucket,
		AccessKey: cfg.ObjectStoreAccessKey,
		SecretKey: cfg.ObjectStoreSecretKey,
		Region:    cfg.ObjectStoreRegion,
		LocalDir:  cfg.ObjectStoreLocalDir,
		Logger:    sugar,
	})
	if err != nil {
		return fmt.Errorf("constructing object store: %w", err)
	}

	replayPool := workerpool.New(cfg.ReplayWorkerSize)
	ingestor := replay.New(replay.Options{
		Pool:        replayPool,
		Store:       objStore,
		Data:        data,
		Coordinator: coordinator,
		Bus:         bus,
		Logger:      sugar,
	})

	go runTimeoutSweeper(ctx, coordinator, data, sugar)

	handler := api.New(api.Config{
		Data:          data,
		Catalog:       cat,
		Matchmaker:    mm,
		Coordinator:   coordinator,
		Leaderboard:   board,
		Bus:           bus,
		Ingestor:      ingestor,
		Store:         dbStore,
		Redis:         pinger,
		Logger:        logger,
		International: cfg.InternationalNames,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		sugar.Infow("listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	select {
	case <-ctx.Done():
		sugar.Info("shutdown signal received")
	case err := <-serveErrCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("graceful http shutdown failed", "error", err)
	}
	return nil
}

// runTimeoutSweeper periodically expires awaiting_reports matches that
// have exceeded the match timeout. The Lifecycle Coordinator only exposes
// the transition (ExpireTimeouts); this wiring-level goroutine is what
// decides when to drive it, per the package's own doc comment.
func runTimeoutSweeper(ctx context.Context, coordinator *lifecycle.Coordinator, data *datalayer.Layer, logger *zap.SugaredLogger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ids := data.PendingMatchIDs()
			coordinator.ExpireTimeouts(ctx, ids, time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
