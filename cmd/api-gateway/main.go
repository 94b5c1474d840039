package main

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	gateway "github.com/radieske/prediction-market-poc/internal/api-gateway"
	"github.com/radieske/prediction-market-poc/internal/shared/config"
	"github.com/radieske/prediction-market-poc/internal/shared/logger"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	h, err := gateway.Handler(gateway.Targets{
		Market: cfg.MarketServiceURL,
		Stream: cfg.StreamServiceURL,
	}, log)
	if err != nil {
		log.Fatal("invalid gateway targets", zap.Error(err))
	}

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	log.Info("api-gateway listening",
		zap.String("addr", srv.Addr),
		zap.String("market", cfg.MarketServiceURL),
		zap.String("stream", cfg.StreamServiceURL),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("gateway failed", zap.Error(err))
	}
}
