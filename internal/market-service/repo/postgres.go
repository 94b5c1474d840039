// Package repo implementa a persistência de mercados, apostas e estatísticas em Postgres.
package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/prediction-market-poc/internal/market"
)

// Postgres implementa resolution.Store, settlement.Store e as leituras da API
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db, now: time.Now} }

// queryer é satisfeito por *sql.DB e *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const marketColumns = `
	id, question, question_type, resolution_criteria, token_symbol, status,
	opened_at, closing_date, options, pools,
	yes_pool_total, no_pool_total, total_volume,
	resolution_outcome, resolution_data, dispute_reason, resolved_at,
	resolution_attempts, next_attempt_at, last_error`

type scanner interface {
	Scan(dest ...any) error
}

func scanMarket(s scanner) (market.Market, error) {
	var (
		m        market.Market
		options  []string
		pools    []byte
		outcome  sql.NullString
		data     []byte
		reason   sql.NullString
		resolved sql.NullTime
		next     sql.NullTime
	)
	err := s.Scan(
		&m.ID, &m.Question, &m.QuestionType, &m.ResolutionCriteria, &m.TokenSymbol, &m.Status,
		&m.OpenedAt, &m.ClosingDate, pq.Array(&options), &pools,
		&m.YesPoolTotal, &m.NoPoolTotal, &m.TotalVolume,
		&outcome, &data, &reason, &resolved,
		&m.ResolutionAttempts, &next, &m.LastError,
	)
	if err != nil {
		return market.Market{}, err
	}

	for _, o := range options {
		m.Options = append(m.Options, market.Side(o))
	}
	if len(pools) > 0 {
		raw := map[string]int64{}
		if err := json.Unmarshal(pools, &raw); err != nil {
			return market.Market{}, fmt.Errorf("decode pools of market %s: %w", m.ID, err)
		}
		m.Pools = make(map[market.Side]int64, len(raw))
		for k, v := range raw {
			m.Pools[market.Side(k)] = v
		}
	}
	if outcome.Valid {
		side := market.Side(outcome.String)
		m.ResolutionOutcome = &side
	}
	if len(data) > 0 {
		m.ResolutionData = json.RawMessage(data)
	}
	if reason.Valid {
		m.DisputeReason = &reason.String
	}
	if resolved.Valid {
		t := resolved.Time
		m.ResolvedAt = &t
	}
	if next.Valid {
		t := next.Time
		m.NextAttemptAt = &t
	}
	return m, nil
}

func getMarket(ctx context.Context, q queryer, id string, forUpdate bool) (market.Market, error) {
	query := `SELECT` + marketColumns + ` FROM markets WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	m, err := scanMarket(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return market.Market{}, fmt.Errorf("%w: market %s", market.ErrNotFound, id)
	}
	return m, err
}

func (p *Postgres) GetMarket(ctx context.Context, id string) (market.Market, error) {
	return getMarket(ctx, p.db, id, false)
}

// ListDue retorna mercados active/closing vencidos cujo retry (se houver) já venceu
func (p *Postgres) ListDue(ctx context.Context, now time.Time) ([]market.Market, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT`+marketColumns+`
		FROM markets
		WHERE status IN ('active','closing')
		  AND closing_date <= $1
		  AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		ORDER BY closing_date, id`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkClosing move active -> closing; idempotente
func (p *Postgres) MarkClosing(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE markets SET status='closing', updated_at=now() WHERE id=$1 AND status='active'`, id)
	return err
}

// MarkDisputed só altera mercados ainda não terminais; caso contrário retorna ErrMarketTerminal
func (p *Postgres) MarkDisputed(ctx context.Context, id, reason string, data json.RawMessage) error {
	var payload any
	if len(data) > 0 {
		payload = []byte(data)
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE markets
		SET status='disputed', dispute_reason=$2, resolution_data=$3::jsonb,
		    next_attempt_at=NULL, updated_at=now()
		WHERE id=$1 AND status IN ('active','closing')`, id, reason, payload)
	if err != nil {
		return err
	}
	return p.expectOne(ctx, res, id)
}

func (p *Postgres) ScheduleRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE markets
		SET resolution_attempts=$2, next_attempt_at=$3, last_error=$4, updated_at=now()
		WHERE id=$1 AND status IN ('active','closing')`, id, attempts, next, lastErr)
	if err != nil {
		return err
	}
	return p.expectOne(ctx, res, id)
}

// expectOne distingue mercado inexistente de mercado já terminal quando nenhuma linha mudou
func (p *Postgres) expectOne(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := p.GetMarket(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: market %s", market.ErrMarketTerminal, id)
}

func (p *Postgres) ResolutionStats(ctx context.Context, now time.Time) (market.ResolutionStats, error) {
	var s market.ResolutionStats
	err := p.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status='active'),
			COUNT(*) FILTER (WHERE status='closing'),
			COUNT(*) FILTER (WHERE status='resolved'),
			COUNT(*) FILTER (WHERE status='disputed'),
			COUNT(*) FILTER (WHERE status IN ('active','closing') AND closing_date <= $1),
			COUNT(*) FILTER (WHERE status='resolved' AND resolved_at >= date_trunc('day', $1::timestamptz))
		FROM markets`, now).Scan(
		&s.TotalMarkets, &s.ActiveMarkets, &s.ClosingMarkets,
		&s.ResolvedMarkets, &s.DisputedMarkets, &s.PendingResolutions, &s.ResolvedToday,
	)
	return s, err
}

// PendingResolutions lista todos os mercados vencidos, inclusive os com retry agendado
func (p *Postgres) PendingResolutions(ctx context.Context, now time.Time) ([]market.PendingResolution, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT`+marketColumns+`
		FROM markets
		WHERE status IN ('active','closing') AND closing_date <= $1
		ORDER BY closing_date, id`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []market.PendingResolution{}
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m.Pending())
	}
	return out, rows.Err()
}
