package producer

import (
	"context"
	"time"

	"github.com/radieske/prediction-market-poc/internal/market"
	"github.com/radieske/prediction-market-poc/internal/pool"
	"github.com/radieske/prediction-market-poc/internal/settlement"
	"github.com/radieske/prediction-market-poc/internal/shared/kafka"
	"github.com/radieske/prediction-market-poc/pkg/contracts/events"
)

// Topics define o tópico de cada evento
type Topics struct {
	BetPlaced      string
	MarketResolved string
	MarketDisputed string
}

// KafkaPublisher publica eventos de mercado; a chave é sempre o marketId
type KafkaPublisher struct {
	Writer *kafka.Writer
	Topics Topics
	now    func() time.Time
}

func NewKafkaPublisher(w *kafka.Writer, t Topics) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topics: t, now: time.Now}
}

func (p *KafkaPublisher) BetPlaced(ctx context.Context, b market.Bet, m market.Market) error {
	yes, no := pool.Odds(m.YesPoolTotal, m.NoPoolTotal)
	e := events.BetPlaced{
		BetID:            b.ID,
		MarketID:         b.MarketID,
		UserID:           b.UserID,
		Side:             string(b.Side),
		StakeAmount:      b.StakeAmount,
		StakeTokenAmount: b.StakeTokenAmount,
		EntryPrice:       b.EntryPrice,
		YesPoolTotal:     m.YesPoolTotal,
		NoPoolTotal:      m.NoPoolTotal,
		PriceYes:         yes,
		PriceNo:          no,
		TsUnixMs:         p.now().UnixMilli(),
	}
	return kafka.WriteJSON(ctx, p.Writer, p.Topics.BetPlaced, b.MarketID, e)
}

func (p *KafkaPublisher) MarketResolved(ctx context.Context, res settlement.Result) error {
	e := events.MarketResolved{
		MarketID:    res.MarketID,
		Outcome:     string(res.Outcome),
		TotalPool:   res.Plan.TotalPool,
		WinPool:     res.Plan.WinPool,
		SettledBets: res.SettledBets,
		Refunded:    res.Plan.Refunded,
		ResolvedAt:  res.ResolvedAt,
	}
	return kafka.WriteJSON(ctx, p.Writer, p.Topics.MarketResolved, res.MarketID, e)
}

func (p *KafkaPublisher) MarketDisputed(ctx context.Context, marketID, reason string) error {
	e := events.MarketDisputed{MarketID: marketID, Reason: reason, Ts: p.now().UTC()}
	return kafka.WriteJSON(ctx, p.Writer, p.Topics.MarketDisputed, marketID, e)
}
