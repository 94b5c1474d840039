// Package coingecko implementa oracle.PriceSource sobre a API market_chart/range.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/radieske/prediction-market-poc/internal/market"
	"github.com/radieske/prediction-market-poc/internal/oracle"
)

const DefaultBaseURL = "https://api.coingecko.com/api/v3"

type Config struct {
	BaseURL    string
	APIKey     string
	RatePerSec float64
	Timeout    time.Duration
}

// Client busca séries históricas na CoinGecko.
// Retries ficam com o scheduler; aqui cada chamada é uma tentativa só.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	assets  oracle.Assets
}

func New(cfg Config, assets oracle.Assets) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if assets == nil {
		assets = oracle.DefaultAssets()
	}

	c := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		header := "x-cg-demo-api-key"
		if strings.Contains(base, "pro-api") {
			header = "x-cg-pro-api-key"
		}
		c.SetHeader(header, cfg.APIKey)
	}

	return &Client{
		http:    c,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		assets:  assets,
	}
}

type chartResponse struct {
	Prices       [][2]json.Number `json:"prices"`
	MarketCaps   [][2]json.Number `json:"market_caps"`
	TotalVolumes [][2]json.Number `json:"total_volumes"`
}

// Series retorna a série de metric do símbolo entre from e to (inclusive), em USD
func (c *Client) Series(ctx context.Context, symbol string, metric oracle.Metric, from, to time.Time) ([]oracle.Point, error) {
	id, ok := c.assets.ID(symbol)
	if !ok {
		return nil, fmt.Errorf("coingecko: unknown symbol %q: %w", symbol, oracle.ErrNoData)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, market.Transient(fmt.Errorf("coingecko: rate limiter: %w", err))
	}

	var out chartResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetQueryParams(map[string]string{
			"vs_currency": "usd",
			"from":        strconv.FormatInt(from.Unix(), 10),
			"to":          strconv.FormatInt(to.Unix(), 10),
		}).
		SetResult(&out).
		Get("/coins/{id}/market_chart/range")
	if err != nil {
		return nil, market.Transient(fmt.Errorf("coingecko: request %s: %w", id, err))
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusTooManyRequests || code >= 500:
		return nil, market.Transient(fmt.Errorf("coingecko: %s returned %d", id, code))
	case code == http.StatusNotFound:
		return nil, fmt.Errorf("coingecko: %s: %w", id, oracle.ErrNoData)
	case code >= 400:
		return nil, fmt.Errorf("coingecko: %s returned %d: %s", id, code, truncate(resp.String(), 200))
	}

	var raw [][2]json.Number
	switch metric {
	case oracle.MetricVolume:
		raw = out.TotalVolumes
	case oracle.MetricMarketCap:
		raw = out.MarketCaps
	default:
		raw = out.Prices
	}

	points := make([]oracle.Point, 0, len(raw))
	for _, r := range raw {
		ms, err := decimal.NewFromString(r[0].String())
		if err != nil {
			return nil, fmt.Errorf("coingecko: bad timestamp %q: %w", r[0], oracle.ErrNoData)
		}
		v, err := decimal.NewFromString(r[1].String())
		if err != nil {
			return nil, fmt.Errorf("coingecko: bad value %q: %w", r[1], oracle.ErrNoData)
		}
		points = append(points, oracle.Point{At: time.UnixMilli(ms.IntPart()).UTC(), Value: v})
	}
	return points, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
