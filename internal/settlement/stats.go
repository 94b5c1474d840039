package settlement

import "github.com/radieske/prediction-market-poc/internal/market"

// RecomputeStats deriva as estatísticas de um usuário a partir de todas as suas apostas.
// WinRate é percentual (0-100) sobre apostas ganhas+perdidas; reembolsos não contam.
func RecomputeStats(userID string, bets []market.Bet) market.UserStats {
	s := market.UserStats{UserID: userID}
	for _, b := range bets {
		s = Placed(s, b)
		if b.Status == market.BetSettled {
			s = Settled(s, b)
		}
	}
	return s
}

// Placed aplica a colocação de uma aposta às estatísticas
func Placed(s market.UserStats, b market.Bet) market.UserStats {
	s.TotalBetsPlaced++
	s.TotalVolumeTraded += b.StakeAmount
	s.ActivePositions++
	return s
}

// Settled aplica a liquidação de uma aposta já contada por Placed
func Settled(s market.UserStats, b market.Bet) market.UserStats {
	s.ActivePositions--
	s.TotalPnL += b.PnL
	switch b.Outcome {
	case market.OutcomeWon:
		s.Wins++
	case market.OutcomeLost:
		s.Losses++
	}
	s.WinRate = winRate(s.Wins, s.Losses)
	return s
}

func winRate(wins, losses int64) float64 {
	if wins+losses == 0 {
		return 0
	}
	return float64(wins) * 100 / float64(wins+losses)
}
