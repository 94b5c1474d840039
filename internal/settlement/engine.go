package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/prediction-market-poc/internal/market"
)

// Tx é a visão transacional de um único mercado, com a linha do mercado travada
type Tx interface {
	Market(ctx context.Context) (market.Market, error)
	// Bets retorna todas as apostas do mercado, ativas e liquidadas
	Bets(ctx context.Context) ([]market.Bet, error)
	// SettleBets grava as liquidações apenas em apostas ainda ativas e retorna quantas foram alteradas
	SettleBets(ctx context.Context, ss []Settlement, settledAt time.Time) (int, error)
	ResolveMarket(ctx context.Context, outcome market.Side, data json.RawMessage, resolvedAt time.Time) error
	RecomputeUserStats(ctx context.Context, userIDs []string) error
}

// Store executa fn dentro de uma transação; erro em fn desfaz tudo
type Store interface {
	WithMarket(ctx context.Context, marketID string, fn func(tx Tx) error) error
}

// Options ajusta uma liquidação
type Options struct {
	// Data é o payload do oráculo, guardado junto da auditoria da liquidação
	Data json.RawMessage
	// Override permite liquidar um mercado disputed (resolução manual)
	Override bool
}

// Result é o retorno de Settle
type Result struct {
	MarketID    string      `json:"marketId"`
	Outcome     market.Side `json:"outcome"`
	Plan        Plan        `json:"plan"`
	SettledBets int         `json:"settledBets"`
	SkippedBets int         `json:"skippedBets"`
	Noop        bool        `json:"noop"`
	ResolvedAt  time.Time   `json:"resolvedAt"`
}

// Engine aplica liquidações de forma atômica e idempotente
type Engine struct {
	store   Store
	edgeBps int64
	log     *zap.Logger
	now     func() time.Time

	onSettled func(Result)
}

func NewEngine(store Store, edgeBps int64, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, edgeBps: edgeBps, log: log, now: time.Now}
}

// OnSettled registra um callback chamado após cada liquidação efetivada (métricas, eventos)
func (e *Engine) OnSettled(fn func(Result)) { e.onSettled = fn }

type auditData struct {
	Oracle     json.RawMessage `json:"oracle,omitempty"`
	Settlement Plan            `json:"settlement"`
	Audit      bool            `json:"audit"`
}

// Settle resolve o mercado com outcome e liquida todas as apostas ativas.
// Repetir com o mesmo outcome é um no-op; outro outcome retorna ErrAlreadySettled.
func (e *Engine) Settle(ctx context.Context, marketID string, outcome market.Side, opts Options) (Result, error) {
	res := Result{MarketID: marketID}

	err := e.store.WithMarket(ctx, marketID, func(tx Tx) error {
		m, err := tx.Market(ctx)
		if err != nil {
			return err
		}
		side, ok := m.NormalizeSide(outcome)
		if !ok {
			return fmt.Errorf("%w: %q for market %s", market.ErrInvalidOutcome, outcome, marketID)
		}
		res.Outcome = side

		switch m.Status {
		case market.StatusResolved:
			if m.ResolutionOutcome != nil && *m.ResolutionOutcome == side {
				res.Noop = true
				if m.ResolvedAt != nil {
					res.ResolvedAt = *m.ResolvedAt
				}
				return nil
			}
			return market.ErrAlreadySettled
		case market.StatusDisputed:
			if !opts.Override {
				return market.ErrMarketDisputed
			}
		}

		bets, err := tx.Bets(ctx)
		if err != nil {
			return err
		}
		plan, err := Compute(bets, side, e.edgeBps)
		if err != nil {
			return err
		}
		res.Plan = plan

		pending := make([]Settlement, 0, len(bets))
		for i, b := range bets {
			if b.Status == market.BetActive {
				pending = append(pending, plan.Settlements[i])
			}
		}

		now := e.now().UTC()
		n, err := tx.SettleBets(ctx, pending, now)
		if err != nil {
			return fmt.Errorf("settle bets: %w", err)
		}
		res.SettledBets = n
		res.SkippedBets = len(bets) - n

		data, err := json.Marshal(auditData{Oracle: opts.Data, Settlement: plan, Audit: plan.Refunded})
		if err != nil {
			return fmt.Errorf("%w: marshal resolution data: %v", market.ErrInternal, err)
		}
		if err := tx.ResolveMarket(ctx, side, data, now); err != nil {
			return fmt.Errorf("resolve market: %w", err)
		}
		if err := tx.RecomputeUserStats(ctx, affectedUsers(plan.Settlements)); err != nil {
			return fmt.Errorf("recompute user stats: %w", err)
		}
		res.ResolvedAt = now
		return nil
	})
	if err != nil {
		return Result{MarketID: marketID, Outcome: res.Outcome}, err
	}

	if res.Noop {
		e.log.Info("market already settled with same outcome", zap.String("marketId", marketID), zap.String("outcome", string(res.Outcome)))
		return res, nil
	}
	e.log.Info("market settled",
		zap.String("marketId", marketID),
		zap.String("outcome", string(res.Outcome)),
		zap.Int("settledBets", res.SettledBets),
		zap.Int("skippedBets", res.SkippedBets),
		zap.Int64("totalPool", res.Plan.TotalPool),
		zap.Int64("dust", res.Plan.Dust),
		zap.Bool("refunded", res.Plan.Refunded),
	)
	if e.onSettled != nil {
		e.onSettled(res)
	}
	return res, nil
}
