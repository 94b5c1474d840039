package topics

const (
	// Bets
	BetPlaced = "bet_placed"

	// Markets
	MarketResolved = "market_resolved"
	MarketDisputed = "market_disputed"
)
