package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis"
	"github.com/xpanvictor/hearken/internal/app"
	"github.com/xpanvictor/hearken/internal/config"
	"github.com/xpanvictor/hearken/internal/database"
	"github.com/xpanvictor/hearken/internal/db"
	"github.com/xpanvictor/hearken/pkg/Logger"
	"gorm.io/gorm"
)

// Entry point: captures audio, segments it into utterances, transcribes and
// answers them until interrupted or told to quit.
func main() {
	// fetch cfg
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// load global logger
	logger := Logger.New(cfg.Debug)
	defer func() { _ = logger.Sync() }()
	logger.Info("Logger initialized")

	var gdb *gorm.DB
	if cfg.DB.Enabled {
		gdb, err = db.InitDB(cfg.DB)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		if err := database.MigrateDB(gdb); err != nil {
			logger.Fatalf("Failed to migrate database: %v", err)
		}
	}

	var rc *redis.Client
	if cfg.Redis.Enabled {
		rc, err = database.NewRedis(cfg.Redis)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rc.Close()
	}

	a, err := app.NewApp(cfg, logger, gdb, rc, app.Engines{})
	if err != nil {
		logger.Fatalf("Failed to build app: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// a second signal during shutdown kills the process
		<-ctx.Done()
		stop()
	}()

	if err := a.Run(ctx); err != nil {
		logger.Errorf("listener stopped: %v", err)
		os.Exit(1)
	}
	logger.Info("Shutdown system")
}
