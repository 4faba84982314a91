package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"warehousematch/auth"
	"warehousematch/config"
	"warehousematch/db"
	"warehousematch/engagement"
	"warehousematch/httpapi"
	"warehousematch/logging"
	"warehousematch/notify"
	"warehousematch/payment"
	"warehousematch/sweeper"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.AppMode)
	if err != nil {
		log.Fatalf("bootstrap logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("bootstrap database pool", zap.Error(err))
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	authService := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret, time.Duration(cfg.JWTExpiryMin)*time.Minute)

	repo := engagement.NewRepository(pool)
	engine := engagement.NewEngine(repo, engagement.DefaultDeadlinePolicy()).
		WithNotifier(notify.NewDispatcher(redisClient, logger)).
		WithLogger(logger)
	engagements := engagement.NewService(repo, engine).
		WithSettlements(payment.NewSettlementReader(pool))

	router := httpapi.NewRouter(cfg.AppMode, logger, authService, engagements)
	server := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: router,
	}

	expiry := sweeper.New(repo, engine, cfg.SweepInterval, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("port", cfg.AppPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return expiry.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("service exited", zap.Error(err))
	}
	logger.Info("service stopped")
}
