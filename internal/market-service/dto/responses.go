package dto

import (
	"encoding/json"
	"time"

	"github.com/radieske/prediction-market-poc/internal/market"
	"github.com/radieske/prediction-market-poc/internal/resolution"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type ResolveAllResponse struct {
	Success bool               `json:"success"`
	Stats   resolution.Summary `json:"stats"`
}

type PendingOverviewResponse struct {
	Stats              market.ResolutionStats     `json:"stats"`
	PendingResolutions []market.PendingResolution `json:"pendingResolutions"`
}

type ResolveMarketResponse struct {
	Success    bool              `json:"success"`
	Resolution resolution.Report `json:"resolution"`
	Message    string            `json:"message"`
}

type ResolutionStatusResponse struct {
	MarketID       string          `json:"marketId"`
	Status         market.Status   `json:"status"`
	Resolution     *market.Side    `json:"resolution"`
	ResolutionData json.RawMessage `json:"resolutionData,omitempty"`
	ResolvedAt     *time.Time      `json:"resolvedAt"`
	DisputeReason  *string         `json:"disputeReason"`
	Attempts       int             `json:"attempts"`
	NextAttemptAt  *time.Time      `json:"nextAttemptAt,omitempty"`
	LastError      string          `json:"lastError,omitempty"`
}

type PlaceBetResponse struct {
	Success    bool        `json:"success"`
	BetID      string      `json:"betId"`
	Side       market.Side `json:"side"`
	EntryPrice float64     `json:"entryPrice"`
	PriceYes   float64     `json:"priceYes"`
	PriceNo    float64     `json:"priceNo"`
	Message    string      `json:"message"`
}
