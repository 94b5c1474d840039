// Package settlement implementa a liquidação pari-mutuel de um mercado resolvido.
package settlement

import (
	"fmt"
	"math"
	"math/bits"
	"sort"

	"github.com/radieske/prediction-market-poc/internal/market"
)

// MaxEdgeBps é o limite da taxa da casa (100% em basis points, exclusivo)
const MaxEdgeBps = 10_000

// Settlement é o resultado calculado para uma aposta
type Settlement struct {
	BetID   string            `json:"betId"`
	UserID  string            `json:"userId"`
	Side    market.Side       `json:"side"`
	Stake   int64             `json:"stake"`
	Outcome market.BetOutcome `json:"outcome"`
	Payout  int64             `json:"payout"`
	PnL     int64             `json:"pnl"`
}

// Plan é a liquidação completa de um mercado, calculada sobre todas as suas apostas
type Plan struct {
	Outcome       market.Side  `json:"outcome"`
	WinPool       int64        `json:"winPool"`
	LosePool      int64        `json:"losePool"`
	TotalPool     int64        `json:"totalPool"`
	Fee           int64        `json:"fee"`
	Distributable int64        `json:"distributable"`
	Dust          int64        `json:"dust"`
	DustBetID     string       `json:"dustBetId,omitempty"`
	Refunded      bool         `json:"refunded"`
	Settlements   []Settlement `json:"-"`
}

// TotalPayout soma os pagamentos do plano
func (p Plan) TotalPayout() int64 {
	var sum int64
	for _, s := range p.Settlements {
		sum += s.Payout
	}
	return sum
}

// ValidateEdge rejeita house edge fora de [0, MaxEdgeBps)
func ValidateEdge(edgeBps int64) error {
	if edgeBps < 0 || edgeBps >= MaxEdgeBps {
		return fmt.Errorf("%w: house edge %d bps out of range", market.ErrValidation, edgeBps)
	}
	return nil
}

// Compute calcula os pagamentos pari-mutuel para outcome.
//
// Os totais saem de todas as apostas recebidas (ativas ou já liquidadas), então
// recalcular depois de uma aplicação parcial produz exatamente os mesmos valores.
// Vencedores recebem floor(stake * distributable / winPool); o resto da divisão
// (dust) vai para a maior aposta vencedora (empate: mais antiga, depois menor id).
// Se ninguém apostou no lado vencedor, todos recebem o stake de volta.
func Compute(bets []market.Bet, outcome market.Side, edgeBps int64) (Plan, error) {
	if err := ValidateEdge(edgeBps); err != nil {
		return Plan{}, err
	}

	plan := Plan{Outcome: outcome, Settlements: make([]Settlement, len(bets))}
	for _, b := range bets {
		if b.StakeAmount <= 0 {
			return Plan{}, fmt.Errorf("bet %s: %w", b.ID, market.ErrInvalidStake)
		}
		if plan.TotalPool > math.MaxInt64-b.StakeAmount {
			return Plan{}, fmt.Errorf("%w: pool overflow at bet %s", market.ErrInternal, b.ID)
		}
		plan.TotalPool += b.StakeAmount
		if b.Side == outcome {
			plan.WinPool += b.StakeAmount
		} else {
			plan.LosePool += b.StakeAmount
		}
	}

	if plan.WinPool == 0 {
		plan.Refunded = len(bets) > 0
		plan.Distributable = plan.TotalPool
		for i, b := range bets {
			plan.Settlements[i] = Settlement{
				BetID:   b.ID,
				UserID:  b.UserID,
				Side:    b.Side,
				Stake:   b.StakeAmount,
				Outcome: market.OutcomeRefunded,
				Payout:  b.StakeAmount,
			}
		}
		return plan, nil
	}

	plan.Fee = mulDiv(plan.TotalPool, edgeBps, MaxEdgeBps)
	plan.Distributable = plan.TotalPool - plan.Fee

	var paid int64
	dustIdx := -1
	for i, b := range bets {
		s := Settlement{
			BetID:  b.ID,
			UserID: b.UserID,
			Side:   b.Side,
			Stake:  b.StakeAmount,
		}
		if b.Side == outcome {
			s.Outcome = market.OutcomeWon
			s.Payout = mulDiv(b.StakeAmount, plan.Distributable, plan.WinPool)
			paid += s.Payout
			if dustIdx < 0 || largerBet(b, bets[dustIdx]) {
				dustIdx = i
			}
		} else {
			s.Outcome = market.OutcomeLost
		}
		plan.Settlements[i] = s
	}

	plan.Dust = plan.Distributable - paid
	if plan.Dust > 0 {
		plan.Settlements[dustIdx].Payout += plan.Dust
		plan.DustBetID = bets[dustIdx].ID
	}
	for i := range plan.Settlements {
		plan.Settlements[i].PnL = plan.Settlements[i].Payout - plan.Settlements[i].Stake
	}
	return plan, nil
}

// largerBet ordena candidatos a receber o dust
func largerBet(a, b market.Bet) bool {
	if a.StakeAmount != b.StakeAmount {
		return a.StakeAmount > b.StakeAmount
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// mulDiv calcula floor(a*b/c) sem overflow intermediário; a, b >= 0, c > 0 e a*b/c cabe em int64
func mulDiv(a, b, c int64) int64 {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	q, _ := bits.Div64(hi, lo, uint64(c))
	return int64(q)
}

// affectedUsers retorna os usuários das liquidações, ordenados e sem repetição
func affectedUsers(ss []Settlement) []string {
	seen := make(map[string]struct{}, len(ss))
	var out []string
	for _, s := range ss {
		if _, ok := seen[s.UserID]; ok {
			continue
		}
		seen[s.UserID] = struct{}{}
		out = append(out, s.UserID)
	}
	sort.Strings(out)
	return out
}
