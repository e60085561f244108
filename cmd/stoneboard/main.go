package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/stoneboard/internal/app"
	"github.com/park285/stoneboard/internal/archive"
	appcfg "github.com/park285/stoneboard/internal/config"
	"github.com/park285/stoneboard/internal/msgcat"
	"github.com/park285/stoneboard/internal/obslog"
	"github.com/park285/stoneboard/internal/relay"
	"github.com/park285/stoneboard/internal/render"
	"github.com/park285/stoneboard/internal/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.LoadPeer()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv("stoneboard.log"); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		log.Fatalf("messages init error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis-backed sessions are optional
	var store session.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url error: %v", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = rdb.Ping(pctx).Err()
		cancel()
		if err != nil {
			log.Fatalf("redis ping error: %v", err)
		}
		store = session.NewRedisStore(rdb, cfg.SessionTTL)
	}

	var archiver app.Archiver
	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive repo init error: %v", err)
		}
		defer repo.Close()
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("archive schema error: %v", err)
		}
		archiver = repo
	}

	var renderers []render.Renderer
	if cfg.BoardPNGPath != "" {
		renderers = append(renderers, render.NewFileRenderer(cfg.BoardPNGPath, cfg.BoardPNGSize, logger.Named("render")))
	}

	ids := relay.NewIDClient(cfg.RelayURL, relay.WithTimeout(cfg.HTTPTimeout), relay.WithRetry(cfg.HTTPRetries))
	peer := relay.NewPeer(ids, cfg.RelayWSURL, relay.WithLogger(logger.Named("relay")))

	a, err := app.New(app.Deps{
		Peer:      peer,
		Store:     store,
		Archiver:  archiver,
		Catalog:   catalog,
		Out:       os.Stdout,
		Renderers: renderers,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("app init error: %v", err)
	}

	logger.Info("stoneboard_start", zap.String("relay", cfg.RelayURL), zap.Bool("redis", store != nil), zap.Bool("archive", archiver != nil))
	if err := a.Run(ctx, os.Stdin); err != nil {
		logger.Warn("stoneboard_shutdown_error", zap.Error(err))
	}
}
