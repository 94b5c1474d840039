// Package trigger chama o resolve-all do market-service em nome do agendador externo.
package trigger

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/radieske/prediction-market-poc/internal/resolution"
)

type Config struct {
	BaseURL string
	Secret  string
	Timeout time.Duration
	Retries int
	Wait    time.Duration
}

// Client dispara a varredura; tenta de novo apenas em erro de rede e 5xx
type Client struct {
	http *resty.Client
}

type response struct {
	Success bool               `json:"success"`
	Stats   resolution.Summary `json:"stats"`
	Error   string             `json:"error"`
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Wait <= 0 {
		cfg.Wait = time.Second
	}

	c := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.Secret).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.Wait).
		SetRetryMaxWaitTime(10 * cfg.Wait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{http: c}
}

// ResolveAll executa uma varredura e devolve o resumo
func (c *Client) ResolveAll(ctx context.Context) (resolution.Summary, error) {
	var out response
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&out).
		Post("/api/markets/resolve-all")
	if err != nil {
		return resolution.Summary{}, fmt.Errorf("resolve-all: %w", err)
	}
	if resp.StatusCode() != http.StatusOK || !out.Success {
		return resolution.Summary{}, fmt.Errorf("resolve-all http %d: %s", resp.StatusCode(), out.Error)
	}
	return out.Stats, nil
}
