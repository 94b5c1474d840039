package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/prediction-market-poc/internal/market-stream/consumer"
	"github.com/radieske/prediction-market-poc/internal/market-stream/ws"
	"github.com/radieske/prediction-market-poc/internal/shared/config"
	"github.com/radieske/prediction-market-poc/internal/shared/kafka"
	"github.com/radieske/prediction-market-poc/internal/shared/logger"
	"github.com/radieske/prediction-market-poc/internal/shared/metrics"
	ctopics "github.com/radieske/prediction-market-poc/pkg/contracts/topics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reader := kafka.NewReader(cfg.KafkaBrokers, "market-stream",
		cfg.TopicBetPlaced, cfg.TopicMarketResolved, cfg.TopicMarketDisputed)
	defer reader.Close()

	m := metrics.NewStream(prometheus.DefaultRegisterer)

	// origem liberada: o stream só publica dados públicos de mercado
	hub := ws.NewHub(func(r *http.Request) bool { return true }, log)
	hub.OnClients = func(n int) { m.Clients.Set(float64(n)) }
	hub.OnSubscriptions = func(n int) { m.Subscriptions.Set(float64(n)) }

	relay := &consumer.Relay{
		Log:    log,
		Reader: reader,
		Hub:    hub,
		Types: map[string]string{
			cfg.TopicBetPlaced:      ctopics.BetPlaced,
			cfg.TopicMarketResolved: ctopics.MarketResolved,
			cfg.TopicMarketDisputed: ctopics.MarketDisputed,
		},
		OnRelayed: func(topic string) { m.Relayed.WithLabelValues(topic).Inc() },
		OnError:   func(stage string) { m.Errors.WithLabelValues(stage).Inc() },
	}

	msrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Checks{}, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("market-stream-service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			cancel()
		}
	}()

	log.Info("market relay started")
	if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("relay stopped with error", zap.Error(err))
	}

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	_ = srv.Shutdown(sctx)
	if msrv != nil {
		_ = msrv.Shutdown(sctx)
	}
	log.Info("market-stream-service stopped")
}
