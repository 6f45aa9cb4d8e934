package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storyvote/internal/auth"
	"storyvote/internal/config"
	"storyvote/internal/db"
	"storyvote/internal/events"
	httpx "storyvote/internal/http"
	"storyvote/internal/jobs"
	"storyvote/internal/ledger"
	"storyvote/internal/logger"
	"storyvote/internal/payment"
	"storyvote/internal/story"
	"storyvote/internal/voting"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup() (config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return cfg, log, gdb, nil
}

func migrate() error {
	_, log, _, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log.Info("Schema is up to date")
	return nil
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, log, gdb, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cache payment.IntentCache = payment.NopIntentCache{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("Redis unavailable, intent cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			cache = payment.NewRedisIntentCache(rdb, log)
		}
	}

	var publisher events.Publisher = events.NewLogPublisher(log)
	if cfg.RabbitMQURL != "" {
		conn, err := events.Dial(cfg.RabbitMQURL, log)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer conn.Close()
		rp, err := events.NewRabbitPublisher(conn, cfg.EventsExchange)
		if err != nil {
			return err
		}
		defer rp.Close()
		publisher = rp
	}

	gateway := payment.NewYooKassaClient(cfg.Payment, log)
	ledgerSvc := ledger.NewService(gdb, log)

	r := httpx.NewRouter(cfg, httpx.Deps{
		DB:         gdb,
		JWT:        auth.NewJWT(cfg.JWTSecret),
		Log:        log,
		Stories:    story.NewService(gdb, cfg.Voting, log),
		Ledger:     ledgerSvc,
		Recorder:   voting.NewRecorder(gdb, log),
		Redeemer:   voting.NewRedeemer(gdb, cfg.Voting, log),
		Intents:    payment.NewIntentService(gateway, cache, cfg.Payment, cfg.IntentCacheTTL, log),
		Reconciler: payment.NewReconciler(gdb, gateway, cfg.VerifyWebhooks, log),
	})

	worker := &jobs.Worker{
		ID:        cfg.OutboxWorkerID,
		Repo:      &jobs.Repo{DB: gdb},
		Publisher: publisher,
		Interval:  cfg.OutboxPoll,
		Log:       log.Named("Outbox"),
	}
	go worker.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
