package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/prediction-market-poc/internal/market"
	"github.com/radieske/prediction-market-poc/internal/pool"
	"github.com/radieske/prediction-market-poc/internal/settlement"
)

const betColumns = `
	id, market_id, user_id, wallet_address, side, stake_amount, stake_token_amount,
	entry_price, status, outcome, payout, pnl, created_at, settled_at`

func queryBets(ctx context.Context, q queryer, where string, args ...any) ([]market.Bet, error) {
	rows, err := q.QueryContext(ctx, `SELECT`+betColumns+` FROM bets `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Bet
	for rows.Next() {
		var (
			b       market.Bet
			settled sql.NullTime
		)
		if err := rows.Scan(&b.ID, &b.MarketID, &b.UserID, &b.WalletAddress, &b.Side,
			&b.StakeAmount, &b.StakeTokenAmount, &b.EntryPrice, &b.Status, &b.Outcome,
			&b.Payout, &b.PnL, &b.CreatedAt, &settled); err != nil {
			return nil, err
		}
		if settled.Valid {
			t := settled.Time
			b.SettledAt = &t
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// PlaceBet é a entrada de apostas do núcleo
type PlaceBet struct {
	MarketID         string
	UserID           string
	WalletAddress    string
	Side             market.Side
	StakeAmount      int64
	StakeTokenAmount int64
}

// PlaceBet grava a aposta e incrementa os pools na mesma transação.
// O status do mercado é verificado com a linha travada, então nenhuma aposta
// entra depois que a resolução começou.
func (p *Postgres) PlaceBet(ctx context.Context, in PlaceBet) (market.Bet, market.Market, error) {
	if in.StakeAmount <= 0 || in.StakeTokenAmount < 0 {
		return market.Bet{}, market.Market{}, market.ErrInvalidStake
	}
	if in.UserID == "" {
		return market.Bet{}, market.Market{}, fmt.Errorf("%w: userId is required", market.ErrValidation)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return market.Bet{}, market.Market{}, err
	}
	defer tx.Rollback()

	m, err := getMarket(ctx, tx, in.MarketID, true)
	if err != nil {
		return market.Bet{}, market.Market{}, err
	}
	now := p.now().UTC()
	if !m.AcceptsBets(now) {
		return market.Bet{}, market.Market{}, fmt.Errorf("%w: market %s is %s", market.ErrMarketClosed, m.ID, m.Status)
	}
	side, ok := m.NormalizeSide(in.Side)
	if !ok {
		return market.Bet{}, market.Market{}, fmt.Errorf("%w: %q", market.ErrInvalidSide, in.Side)
	}

	b := market.Bet{
		ID:               uuid.New().String(),
		MarketID:         m.ID,
		UserID:           in.UserID,
		WalletAddress:    in.WalletAddress,
		Side:             side,
		StakeAmount:      in.StakeAmount,
		StakeTokenAmount: in.StakeTokenAmount,
		EntryPrice:       pool.Prices(m)[side], // preço antes da própria aposta
		Status:           market.BetActive,
		Outcome:          market.OutcomePending,
		CreatedAt:        now,
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO users(id, wallet_address) VALUES($1, NULLIF($2,''))
		ON CONFLICT (id) DO NOTHING`, b.UserID, b.WalletAddress); err != nil {
		return market.Bet{}, market.Market{}, err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO bets(id, market_id, user_id, wallet_address, side, stake_amount, stake_token_amount,
		                 entry_price, status, outcome, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,'active','pending',$9)`,
		b.ID, b.MarketID, b.UserID, b.WalletAddress, string(b.Side), b.StakeAmount, b.StakeTokenAmount,
		b.EntryPrice, b.CreatedAt); err != nil {
		return market.Bet{}, market.Market{}, err
	}

	// incrementos atômicos; nunca reescreve o pool a partir do valor lido
	if len(m.Options) == 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE markets
			SET yes_pool_total = yes_pool_total + CASE WHEN $2::text='yes' THEN $3::bigint ELSE 0 END,
			    no_pool_total  = no_pool_total  + CASE WHEN $2::text='no'  THEN $3::bigint ELSE 0 END,
			    total_volume   = total_volume + $3::bigint,
			    updated_at     = now()
			WHERE id=$1`, m.ID, string(side), b.StakeAmount)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE markets
			SET pools = jsonb_set(pools, ARRAY[$2::text], to_jsonb(COALESCE((pools->>$2::text)::bigint, 0) + $3::bigint)),
			    total_volume = total_volume + $3::bigint,
			    updated_at   = now()
			WHERE id=$1`, m.ID, string(side), b.StakeAmount)
	}
	if err != nil {
		return market.Bet{}, market.Market{}, err
	}

	stats, err := statsForUpdate(ctx, tx, b.UserID)
	if err != nil {
		return market.Bet{}, market.Market{}, err
	}
	if err = upsertStats(ctx, tx, settlement.Placed(stats, b)); err != nil {
		return market.Bet{}, market.Market{}, err
	}

	if m, err = getMarket(ctx, tx, m.ID, false); err != nil {
		return market.Bet{}, market.Market{}, err
	}
	if err = tx.Commit(); err != nil {
		return market.Bet{}, market.Market{}, err
	}
	return b, m, nil
}

// Snapshot lê mercado, apostas recentes e contagens em uma única transação
// REPEATABLE READ somente-leitura: todas as projeções saem do mesmo estado.
func (p *Postgres) Snapshot(ctx context.Context, marketID string, recent int) (pool.Snapshot, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return pool.Snapshot{}, err
	}
	defer tx.Rollback()

	m, err := getMarket(ctx, tx, marketID, false)
	if err != nil {
		return pool.Snapshot{}, err
	}
	bets, err := queryBets(ctx, tx,
		`WHERE market_id=$1 AND status='active' ORDER BY created_at DESC, id DESC LIMIT $2`, marketID, recent)
	if err != nil {
		return pool.Snapshot{}, err
	}

	rows, err := tx.QueryContext(ctx, `SELECT side, COUNT(*) FROM bets WHERE market_id=$1 GROUP BY side`, marketID)
	if err != nil {
		return pool.Snapshot{}, err
	}
	defer rows.Close()
	counts := map[market.Side]int64{}
	for rows.Next() {
		var side string
		var n int64
		if err := rows.Scan(&side, &n); err != nil {
			return pool.Snapshot{}, err
		}
		counts[market.Side(side)] = n
	}
	if err := rows.Err(); err != nil {
		return pool.Snapshot{}, err
	}

	return pool.Snapshot{Market: m, Recent: bets, BetCounts: counts, ReadAt: p.now().UTC()}, tx.Commit()
}

// UserStats retorna estatísticas zeradas para usuários sem apostas
func (p *Postgres) UserStats(ctx context.Context, userID string) (market.UserStats, error) {
	return readStats(ctx, p.db, userID, false)
}

// statsForUpdate garante a linha de user_stats e a trava até o fim da transação.
// Colocação de apostas e liquidação passam por aqui antes de ler ou gravar as
// estatísticas do usuário, então a linha serializa os dois caminhos.
// Ordem de travas: mercado, depois usuários em ordem crescente de id.
func statsForUpdate(ctx context.Context, q queryer, userID string) (market.UserStats, error) {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO user_stats(user_id) VALUES($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return market.UserStats{}, err
	}
	return readStats(ctx, q, userID, true)
}

func readStats(ctx context.Context, q queryer, userID string, forUpdate bool) (market.UserStats, error) {
	query := `
		SELECT total_bets_placed, total_volume_traded, total_pnl, win_rate, wins, losses, active_positions
		FROM user_stats WHERE user_id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	s := market.UserStats{UserID: userID}
	err := q.QueryRowContext(ctx, query, userID).Scan(
		&s.TotalBetsPlaced, &s.TotalVolumeTraded, &s.TotalPnL, &s.WinRate, &s.Wins, &s.Losses, &s.ActivePositions)
	if errors.Is(err, sql.ErrNoRows) {
		return s, nil
	}
	return s, err
}

func upsertStats(ctx context.Context, q queryer, s market.UserStats) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO user_stats(user_id, total_bets_placed, total_volume_traded, total_pnl, win_rate,
		                       wins, losses, active_positions, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (user_id) DO UPDATE SET
			total_bets_placed   = EXCLUDED.total_bets_placed,
			total_volume_traded = EXCLUDED.total_volume_traded,
			total_pnl           = EXCLUDED.total_pnl,
			win_rate            = EXCLUDED.win_rate,
			wins                = EXCLUDED.wins,
			losses              = EXCLUDED.losses,
			active_positions    = EXCLUDED.active_positions,
			updated_at          = EXCLUDED.updated_at`,
		s.UserID, s.TotalBetsPlaced, s.TotalVolumeTraded, s.TotalPnL, s.WinRate,
		s.Wins, s.Losses, s.ActivePositions, time.Now().UTC())
	return err
}
