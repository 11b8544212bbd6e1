package main

import (
	"fmt"
	"os"

	"github.com/schedadmin/schedadmin/internal/config"
	"github.com/schedadmin/schedadmin/internal/logger"
	"github.com/schedadmin/schedadmin/internal/server"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	srv, err := server.New(cfg, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	log.Info().
		Str("version", version).
		Str("backend", cfg.Backend.URL).
		Bool("jobs", cfg.JobsEnabled()).
		Msg("Starting schedadmin server...")

	// Start HTTP server (this blocks)
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}
