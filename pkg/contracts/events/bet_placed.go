package events

// Evento publicado no tópico "bet_placed" após a aposta ser gravada
type BetPlaced struct {
	BetID            string  `json:"bet_id"`
	MarketID         string  `json:"market_id"`
	UserID           string  `json:"user_id"`
	Side             string  `json:"side"`
	StakeAmount      int64   `json:"stake_amount"`
	StakeTokenAmount int64   `json:"stake_token_amount"`
	EntryPrice       float64 `json:"entry_price"`
	// Pools depois da aposta, para o front atualizar odds sem nova leitura
	YesPoolTotal int64   `json:"yes_pool_total"`
	NoPoolTotal  int64   `json:"no_pool_total"`
	PriceYes     float64 `json:"price_yes"`
	PriceNo      float64 `json:"price_no"`
	TsUnixMs     int64   `json:"ts_unix_ms"`
}
