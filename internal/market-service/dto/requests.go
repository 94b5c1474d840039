package dto

// PlaceBetRequest é o corpo de POST /api/markets/{id}/bets
type PlaceBetRequest struct {
	UserID           string `json:"userId"`
	WalletAddress    string `json:"walletAddress"`
	Side             string `json:"side"`        // "yes" | "no" | opção do mercado
	StakeAmount      int64  `json:"stakeAmount"` // menor unidade da moeda nativa
	StakeTokenAmount int64  `json:"stakeTokenAmount"`
}
