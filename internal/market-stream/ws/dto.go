package ws

import "encoding/json"

// ClientMsg é uma mensagem recebida do cliente WebSocket
type ClientMsg struct {
	Type     string `json:"type"`     // subscribe | unsubscribe | ping
	MarketID string `json:"marketId"` // requerido em subscribe/unsubscribe
}

// Update é o que o hub envia aos inscritos de um mercado
type Update struct {
	Type     string          `json:"type"` // bet_placed | market_resolved | market_disputed
	MarketID string          `json:"marketId"`
	Payload  json.RawMessage `json:"payload"`
}
