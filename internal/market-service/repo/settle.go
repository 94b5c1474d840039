package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/radieske/prediction-market-poc/internal/market"
	"github.com/radieske/prediction-market-poc/internal/settlement"
)

// WithMarket abre uma transação com a linha do mercado travada (FOR UPDATE).
// A colocação de apostas trava a mesma linha, então nenhuma aposta entra durante a liquidação.
func (p *Postgres) WithMarket(ctx context.Context, marketID string, fn func(tx settlement.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m, err := getMarket(ctx, tx, marketID, true)
	if err != nil {
		return err
	}
	if err := fn(&marketTx{tx: tx, m: m}); err != nil {
		return err
	}
	return tx.Commit()
}

type marketTx struct {
	tx *sql.Tx
	m  market.Market
}

func (t *marketTx) Market(ctx context.Context) (market.Market, error) { return t.m, nil }

func (t *marketTx) Bets(ctx context.Context) ([]market.Bet, error) {
	return queryBets(ctx, t.tx, `WHERE market_id=$1 ORDER BY created_at, id`, t.m.ID)
}

// SettleBets só altera apostas ainda ativas
func (t *marketTx) SettleBets(ctx context.Context, ss []settlement.Settlement, settledAt time.Time) (int, error) {
	stmt, err := t.tx.PrepareContext(ctx, `
		UPDATE bets
		SET status='settled', outcome=$2, payout=$3, pnl=$4, settled_at=$5
		WHERE id=$1 AND market_id=$6 AND status='active'`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var n int
	for _, s := range ss {
		res, err := stmt.ExecContext(ctx, s.BetID, s.Outcome, s.Payout, s.PnL, settledAt, t.m.ID)
		if err != nil {
			return n, fmt.Errorf("settle bet %s: %w", s.BetID, err)
		}
		k, err := res.RowsAffected()
		if err != nil {
			return n, err
		}
		n += int(k)
	}
	return n, nil
}

func (t *marketTx) ResolveMarket(ctx context.Context, outcome market.Side, data json.RawMessage, resolvedAt time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE markets
		SET status='resolved', resolution_outcome=$2, resolution_data=$3::jsonb, resolved_at=$4,
		    dispute_reason=NULL, next_attempt_at=NULL, updated_at=now()
		WHERE id=$1`, t.m.ID, string(outcome), []byte(data), resolvedAt)
	return err
}

// RecomputeUserStats reconstrói as estatísticas a partir de todas as apostas de cada usuário.
// A linha de stats é travada antes da leitura das apostas: uma aposta concorrente
// em outro mercado ou já commitou (e entra na leitura) ou espera esta transação.
func (t *marketTx) RecomputeUserStats(ctx context.Context, userIDs []string) error {
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	for _, id := range slices.Compact(ids) {
		if _, err := statsForUpdate(ctx, t.tx, id); err != nil {
			return fmt.Errorf("lock stats of user %s: %w", id, err)
		}
		bets, err := queryBets(ctx, t.tx, `WHERE user_id=$1 ORDER BY created_at, id`, id)
		if err != nil {
			return fmt.Errorf("load bets of user %s: %w", id, err)
		}
		if err := upsertStats(ctx, t.tx, settlement.RecomputeStats(id, bets)); err != nil {
			return fmt.Errorf("store stats of user %s: %w", id, err)
		}
	}
	return nil
}
