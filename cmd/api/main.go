package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kyc-flow/kyc_flow/internal/config"
	"github.com/kyc-flow/kyc_flow/internal/infra"
	"github.com/kyc-flow/kyc_flow/internal/logging"
	"github.com/kyc-flow/kyc_flow/internal/routes"
	"github.com/kyc-flow/kyc_flow/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deps := routes.Deps{Cfg: cfg, Logger: logger}

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := infra.EnsurePostgresSchema(ctx, db); err != nil {
			logger.Error("postgres schema", "error", err)
			os.Exit(1)
		}
		deps.DB = db
	case config.StoreDriverMongo:
		client, err := infra.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			logger.Error("connect mongo", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("disconnect mongo", "error", err)
			}
		}()
		db := client.Database(cfg.MongoDatabase)
		if err := infra.EnsureMongoIndexes(ctx, db); err != nil {
			logger.Error("mongo indexes", "error", err)
			os.Exit(1)
		}
		deps.Mongo = db
	default:
		logger.Warn("using in-memory store; data is lost on restart")
	}

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}()
	deps.Cache = cache

	if cfg.NSQAddr != "" {
		producer, err := infra.NewNSQProducer(cfg.NSQAddr, logger)
		if err != nil {
			logger.Error("connect nsq", "error", err)
			os.Exit(1)
		}
		defer producer.Stop()
		deps.Producer = producer
	} else {
		logger.Info("NSQ_ADDR not set; OTP delivery is logged only")
	}

	srv, err := server.New(deps)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
