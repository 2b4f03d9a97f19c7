package main

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	authhdl "github.com/aliskhannn/pix-erase/internal/api/handlers/auth"
	domainhdl "github.com/aliskhannn/pix-erase/internal/api/handlers/domain"
	imagehdl "github.com/aliskhannn/pix-erase/internal/api/handlers/image"
	taskhdl "github.com/aliskhannn/pix-erase/internal/api/handlers/task"
	userhdl "github.com/aliskhannn/pix-erase/internal/api/handlers/user"
	"github.com/aliskhannn/pix-erase/internal/api/router"
	"github.com/aliskhannn/pix-erase/internal/api/server"
	"github.com/aliskhannn/pix-erase/internal/auth"
	"github.com/aliskhannn/pix-erase/internal/config"
	"github.com/aliskhannn/pix-erase/internal/converter"
	"github.com/aliskhannn/pix-erase/internal/infra/kafka/consumer"
	"github.com/aliskhannn/pix-erase/internal/infra/kafka/producer"
	taskmsg "github.com/aliskhannn/pix-erase/internal/kafka/handlers/task"
	"github.com/aliskhannn/pix-erase/internal/middleware"
	"github.com/aliskhannn/pix-erase/internal/netinfo"
	imagerepo "github.com/aliskhannn/pix-erase/internal/repository/image"
	userrepo "github.com/aliskhannn/pix-erase/internal/repository/user"
	imagesvc "github.com/aliskhannn/pix-erase/internal/service/image"
	netinfosvc "github.com/aliskhannn/pix-erase/internal/service/netinfo"
	usersvc "github.com/aliskhannn/pix-erase/internal/service/user"
	"github.com/aliskhannn/pix-erase/internal/storage/file"
	"github.com/aliskhannn/pix-erase/internal/task"
	"github.com/aliskhannn/pix-erase/internal/worker"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config")

	// Connect to PostgreSQL (master and slaves).
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}
	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Redis backs the task status store and the scheduler.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	// Retry strategy for Kafka and other external calls.
	strategy := retry.Strategy{
		Attempts: cfg.Worker.MaxAttempts,
		Delay:    cfg.Worker.RetryDelay,
		Backoff:  cfg.Worker.Backoff,
	}

	// Initialize file storage (MinIO).
	storage, err := file.NewStorage(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.BucketName, cfg.Storage.UseSSL)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
	}

	// Converter registry: a missing binding here is a deployment bug, so the
	// process refuses to start rather than failing tasks at runtime.
	registry := converter.NewRegistry(converter.NewAIUpscaler(cfg.Converter.AIUpscaleEndpoint, cfg.Converter.AIUpscaleTimeout))
	if err := registry.Validate(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("converter registry is incomplete")
	}

	// Task plumbing: status store, producer, dispatcher, scheduler.
	store := task.NewRedisStore(rdb, cfg.Redis.TaskTTL)
	p := producer.New(&cfg.Kafka, strategy)
	dispatcher := task.NewDispatcher(p, store)
	scheduler := task.NewScheduler(rdb, dispatcher, cfg.Scheduler.PollInterval)

	// Repositories and domain analysis.
	images := imagerepo.NewRepository(db)
	users := userrepo.NewRepository(db)
	analyzer := netinfo.NewAnalyzer(cfg.Converter.CertLogURL, 30*time.Second)

	// Task executor and its Kafka consumer.
	executor := worker.NewExecutor(store, registry, images, storage, analyzer, worker.Config{
		MaxAttempts:    cfg.Worker.MaxAttempts,
		RetryDelay:     cfg.Worker.RetryDelay,
		Backoff:        cfg.Worker.Backoff,
		DefaultTimeout: cfg.Worker.DefaultTimeout,
		KindTimeouts:   cfg.Worker.KindTimeouts,
	})
	queuedHandler := taskmsg.NewQueuedHandler(executor)
	c := consumer.New(&cfg.Kafka, strategy, queuedHandler)

	// Services and HTTP handlers.
	hierarchy := auth.DefaultHierarchy()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	userService := usersvc.NewService(users, tokens, hierarchy, cfg.Auth.BcryptCost)
	if err := userService.Bootstrap(ctx, cfg.Auth.SeedEmail, cfg.Auth.SeedName, cfg.Auth.SeedPassword); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to seed super admin account")
	}

	imageService := imagesvc.NewService(images, users, storage, dispatcher, hierarchy)
	netinfoService := netinfosvc.NewService(dispatcher, scheduler, hierarchy)

	handlers := router.Handlers{
		Auth:   authhdl.NewHandler(userService),
		Users:  userhdl.NewHandler(userService),
		Images: imagehdl.NewHandler(imageService),
		Tasks:  taskhdl.NewHandler(dispatcher),
		Domain: domainhdl.NewHandler(netinfoService),
	}

	// Start Kafka consumer and scheduler in separate goroutines.
	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)
	go scheduler.Run(ctx)

	// Start HTTP server.
	r := router.Setup(handlers, middleware.Auth(tokens, users))
	s := server.New(cfg.Server, r)
	go func() {
		if err := s.ListenAndServe(); err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Wait for Kafka consumer goroutine to finish.
	wg.Wait()

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Close master and slave databases.
	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}
	for i, s := range db.Slaves {
		if err := s.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}

	// Close Redis, Kafka producer and consumer clients.
	if err := rdb.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close redis client")
	}
	if err = p.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
	}
	if err = c.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
	}
}
