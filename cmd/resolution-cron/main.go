package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/prediction-market-poc/internal/resolution-cron/trigger"
	"github.com/radieske/prediction-market-poc/internal/shared/config"
	"github.com/radieske/prediction-market-poc/internal/shared/logger"
)

// resolution-cron é executado pelo agendador externo (cron, k8s CronJob):
// dispara uma varredura e sai com código != 0 se ela falhar.
func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	if cfg.CronSecret == "" {
		log.Fatal("CRON_SECRET is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := trigger.New(trigger.Config{
		BaseURL: cfg.ResolverURL,
		Secret:  cfg.CronSecret,
		Retries: 3,
		Wait:    2 * time.Second,
	})

	start := time.Now()
	sum, err := client.ResolveAll(ctx)
	if err != nil {
		log.Error("resolve-all failed", zap.String("url", cfg.ResolverURL), zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
	log.Info("resolve-all finished",
		zap.Int("due", sum.Due),
		zap.Int("resolved", sum.Resolved),
		zap.Int("disputed", sum.Disputed),
		zap.Int("retried", sum.Retried),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Duration("took", time.Since(start)),
	)
}
