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

	"github.com/radieske/prediction-market-poc/internal/market"
	mcache "github.com/radieske/prediction-market-poc/internal/market-service/cache"
	httpapi "github.com/radieske/prediction-market-poc/internal/market-service/http"
	"github.com/radieske/prediction-market-poc/internal/market-service/lease"
	"github.com/radieske/prediction-market-poc/internal/market-service/producer"
	"github.com/radieske/prediction-market-poc/internal/market-service/repo"
	"github.com/radieske/prediction-market-poc/internal/oracle"
	"github.com/radieske/prediction-market-poc/internal/oracle/coingecko"
	"github.com/radieske/prediction-market-poc/internal/oracle/feed"
	"github.com/radieske/prediction-market-poc/internal/resolution"
	"github.com/radieske/prediction-market-poc/internal/settlement"
	"github.com/radieske/prediction-market-poc/internal/shared/cache"
	"github.com/radieske/prediction-market-poc/internal/shared/config"
	"github.com/radieske/prediction-market-poc/internal/shared/db"
	"github.com/radieske/prediction-market-poc/internal/shared/kafka"
	"github.com/radieske/prediction-market-poc/internal/shared/logger"
	"github.com/radieske/prediction-market-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	// cada worker da varredura segura uma transação durante a liquidação
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 10+2*cfg.SweepConcurrency)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	log.Info("postgres connected")

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()
	log.Info("redis connected")

	writer := kafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	m := metrics.NewResolution(prometheus.DefaultRegisterer)

	// Oráculo: histórico de preços (CoinGecko) e feed de valores autoritativos
	assets, err := oracle.LoadAssets(cfg.AssetsFile)
	if err != nil {
		log.Fatal("failed to load assets", zap.String("path", cfg.AssetsFile), zap.Error(err))
	}
	prices := coingecko.New(coingecko.Config{
		BaseURL:    cfg.CoinGeckoBaseURL,
		APIKey:     cfg.CoinGeckoAPIKey,
		RatePerSec: cfg.CoinGeckoRatePerSec,
		Timeout:    cfg.OracleTimeout,
	}, assets)
	var values oracle.ValueSource
	if cfg.ValueFeedURL != "" {
		values = feed.New(cfg.ValueFeedURL, cfg.OracleTimeout)
	} else {
		log.Warn("VALUE_FEED_URL not set; multiple_choice and date markets will be disputed")
	}
	registry := oracle.NewRegistry(prices, values, assets, log)
	registry.OnResolve(func(kind oracle.Kind, d time.Duration) {
		m.OracleSeconds.WithLabelValues(string(kind)).Observe(d.Seconds())
	})

	store := repo.NewPostgres(pg)
	views := mcache.New(rdb, cfg.OrderBookCacheTTL)

	if err := settlement.ValidateEdge(cfg.HouseEdgeBps); err != nil {
		log.Fatal("invalid HOUSE_EDGE_BPS", zap.Int64("bps", cfg.HouseEdgeBps), zap.Error(err))
	}
	engine := settlement.NewEngine(store, cfg.HouseEdgeBps, log)
	engine.OnSettled(func(res settlement.Result) {
		m.BetsSettled.Add(float64(res.SettledBets))
		m.DustUnits.Add(float64(res.Plan.Dust))
		if res.Plan.Refunded {
			m.RefundedMarket.Inc()
		}
		ictx, icancel := context.WithTimeout(context.Background(), time.Second)
		defer icancel()
		if err := views.Invalidate(ictx, res.MarketID); err != nil {
			log.Warn("failed to invalidate market views", zap.String("marketId", res.MarketID), zap.Error(err))
		}
	})

	pub := producer.NewKafkaPublisher(writer, producer.Topics{
		BetPlaced:      cfg.TopicBetPlaced,
		MarketResolved: cfg.TopicMarketResolved,
		MarketDisputed: cfg.TopicMarketDisputed,
	})

	sched := resolution.New(store, registry, engine, lease.NewRedis(rdb), pub, resolution.Config{
		LeaseTTL:      cfg.LeaseTTL,
		OracleTimeout: cfg.OracleTimeout,
		MaxAttempts:   cfg.MaxResolutionAttempts,
		RetryBase:     cfg.RetryBaseDelay,
		RetryMax:      cfg.RetryMaxDelay,
		Concurrency:   cfg.SweepConcurrency,
	}, log)
	sched.OnReport(func(r resolution.Report) { m.Markets.WithLabelValues(string(r.Result)).Inc() })
	sched.OnSweep(func(s resolution.Summary) {
		m.Sweeps.Inc()
		m.Markets.WithLabelValues(string(resolution.ResultFailed)).Add(float64(s.Failed))
	})

	// Servidor HTTP para métricas e health check
	msrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.Checks{
		"postgres": pg.PingContext,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}, log)

	if cfg.CronSecret == "" {
		log.Warn("CRON_SECRET not set; resolve-all will reject every call")
	}
	api := &httpapi.API{
		Resolver:    sched,
		Store:       store,
		Cache:       views,
		Publisher:   pub,
		Secret:      cfg.CronSecret,
		Depth:       cfg.OrderBookDepth,
		Log:         log,
		OnBetPlaced: func(market.Bet) { m.BetsPlaced.Inc() },
	}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.SweepInterval > 0 {
		go sched.Run(ctx, cfg.SweepInterval)
	}

	go func() {
		log.Info("market-service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	_ = srv.Shutdown(sctx)
	if msrv != nil {
		_ = msrv.Shutdown(sctx)
	}
	log.Info("market-service stopped")
}
