package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	appcfg "github.com/park285/stoneboard/internal/config"
	"github.com/park285/stoneboard/internal/obslog"
	"github.com/park285/stoneboard/internal/relay"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.LoadRelay()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv("relayd.log"); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var presence relay.Presence = relay.NewMemoryPresence()
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
		presence = relay.NewRedisPresence(rdb)
	}

	opts := []relay.ServerOption{
		relay.WithPeerTTL(cfg.PeerTTL),
		relay.WithServerLogger(logger.Named("relay")),
	}
	if cfg.MetricsEnabled {
		opts = append(opts, relay.WithMetrics(relay.NewMetrics("stoneboard_relay")))
	}
	srv := relay.NewServer(presence, opts...)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("relay_listen", zap.String("addr", cfg.Addr), zap.Bool("metrics", cfg.MetricsEnabled))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("relay_serve_error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("relay_shutdown_error", zap.Error(err))
	}
	logger.Info("relay_stopped", zap.Int("peers", srv.Peers()))
}
