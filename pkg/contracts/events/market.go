package events

import "time"

// Evento publicado no tópico "market_resolved" após a liquidação
type MarketResolved struct {
	MarketID    string    `json:"market_id"`
	Outcome     string    `json:"outcome"`
	TotalPool   int64     `json:"total_pool"`
	WinPool     int64     `json:"win_pool"`
	SettledBets int       `json:"settled_bets"`
	Refunded    bool      `json:"refunded"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// Evento publicado no tópico "market_disputed"
type MarketDisputed struct {
	MarketID string    `json:"market_id"`
	Reason   string    `json:"reason"`
	Ts       time.Time `json:"ts"`
}
