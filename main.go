package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"BProject/global"
	"BProject/logger"
	"BProject/service/hub"
	"BProject/service/relay"
	"BProject/service/storage"
	"BProject/tools"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := global.LoadAppConfig()
	defer logger.Sync()

	var opts []hub.Option

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Errorf("redis unavailable at %s: %v", cfg.RedisAddr, err)
		} else {
			logger.Infof("redis fanout enabled addr=%s", cfg.RedisAddr)
			opts = append(opts, hub.WithRedis(rdb))
		}
		cancel()
	}

	if cfg.NatsServers != "" {
		r, err := relay.New(relay.Conf{
			Servers: tools.SplitList(cfg.NatsServers),
			Name:    cfg.NodeID,
		})
		if err != nil {
			logger.Errorf("nats relay unavailable: %v", err)
		} else {
			logger.Infof("nats relay enabled servers=%s", cfg.NatsServers)
			opts = append(opts, hub.WithRelay(r))
			defer r.Close()
		}
	}

	if cfg.PostgresURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err := storage.NewPgStore(ctx, cfg.PostgresURL)
		cancel()
		if err != nil {
			logger.Errorf("postgres unavailable: %v", err)
		} else {
			logger.Infof("durable snapshots enabled")
			opts = append(opts, hub.WithStore(store))
			defer store.Close()
		}
	}

	h := hub.NewHub(hub.HubConf{
		NodeID:     cfg.NodeID,
		MemberTTL:  cfg.MemberTTL,
		SweepEvery: cfg.SweepEvery,
	}, cfg.NodeNum, opts...)
	defer h.Close()

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	hub.NewServer(h).Register(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logger.Infof("board sync hub %s listening on :%d", cfg.NodeID, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("serve: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Infof("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutCtx)
}
