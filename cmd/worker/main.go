package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/schedadmin/schedadmin/internal/config"
	"github.com/schedadmin/schedadmin/internal/logger"
	"github.com/schedadmin/schedadmin/internal/store"
	"github.com/schedadmin/schedadmin/internal/tasks"
	"github.com/schedadmin/schedadmin/internal/workers"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	if !cfg.JobsEnabled() {
		log.Fatal().Msg("REDIS_ADDRESS is not set; the worker has nothing to do")
	}

	log.Info().Str("version", version).Msg("Starting schedadmin worker")

	db, err := store.Open(cfg.Database.URL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer store.Close(db)

	revocations := store.NewRevocations(db)
	accessLog := store.NewAccessLog(db)

	redis := asynq.RedisClientOpt{Addr: cfg.Redis.Address}

	asynqClient := asynq.NewClient(redis)
	defer asynqClient.Close()

	asynqServer := asynq.NewServer(redis, asynq.Config{
		Concurrency: 2,
		Queues: map[string]int{
			tasks.QueueMaintenance: 1,
		},
		Logger: logger.Asynq{Log: log},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypePurgeRevoked, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandlePurgeRevoked(ctx, t, revocations, log)
	})
	mux.HandleFunc(tasks.TypePruneAccessLog, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandlePruneAccessLog(ctx, t, accessLog, log)
	})

	scheduler, err := workers.NewScheduler(asynqClient, cfg.Jobs, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create maintenance scheduler")
	}
	scheduler.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Msg("Starting Asynq worker server...")
		if err := asynqServer.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("Asynq worker server failed")
		}
	}()

	<-sigChan
	log.Info().Msg("Received shutdown signal, shutting down gracefully...")

	scheduler.Stop()
	asynqServer.Shutdown()

	log.Info().Msg("Worker shutdown complete")
}
