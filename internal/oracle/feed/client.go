// Package feed implementa oracle.ValueSource sobre um serviço HTTP de valores oficiais.
//
//	GET {base}/values/{key}?asOf=<RFC3339>  ->  {"key": "...", "value": "...", "asOf": "..."}
package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/radieske/prediction-market-poc/internal/market"
	"github.com/radieske/prediction-market-poc/internal/oracle"
)

type Client struct {
	http *resty.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

type valueResponse struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

func (c *Client) Value(ctx context.Context, key string, asOf time.Time) (string, error) {
	var out valueResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("key", key).
		SetQueryParam("asOf", asOf.UTC().Format(time.RFC3339)).
		SetResult(&out).
		Get("/values/{key}")
	if err != nil {
		return "", market.Transient(fmt.Errorf("feed: request %s: %w", key, err))
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusTooManyRequests || code >= 500:
		return "", market.Transient(fmt.Errorf("feed: %s returned %d", key, code))
	case code == http.StatusNotFound:
		return "", fmt.Errorf("feed: %s: %w", key, oracle.ErrNoData)
	case code >= 400:
		return "", fmt.Errorf("feed: %s returned %d", key, code)
	}
	if out.Value == nil {
		return "", fmt.Errorf("feed: %s has no value as of %s: %w", key, asOf.Format(time.RFC3339), oracle.ErrNoData)
	}
	return *out.Value, nil
}
