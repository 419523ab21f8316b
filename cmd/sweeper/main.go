package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"studypace/application/commands"
	"studypace/infrastructure/config"
	"studypace/infrastructure/di"
)

// The sweeper closes out entries whose scheduled time passed without a
// completion. It runs as its own process so the API stays stateless.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.Sweeper.Enabled {
		log.Println("Sweeper is disabled, exiting")
		return
	}

	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	logger := container.Logger
	scheduler := gocron.NewScheduler(time.UTC)

	_, err = scheduler.Every(cfg.Sweeper.IntervalMinutes).Minutes().Do(func() {
		sweepCtx, sweepCancel := context.WithTimeout(ctx, 5*time.Minute)
		defer sweepCancel()

		if err := container.CommandBus.Send(sweepCtx, commands.SweepMissedCommand{}); err != nil {
			logger.Error("Sweep run failed", zap.Error(err))
			return
		}
		logger.Info("Sweep run completed")
	})
	if err != nil {
		logger.Fatal("Failed to schedule sweep job", zap.Error(err))
	}

	logger.Info("Starting sweeper",
		zap.Int("intervalMinutes", cfg.Sweeper.IntervalMinutes),
		zap.String("driver", cfg.PersistenceDriver),
	)
	scheduler.StartAsync()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down sweeper...")
	scheduler.Stop()

	if err := container.Shutdown(); err != nil {
		log.Printf("Failed to release container resources: %v", err)
	}
}
