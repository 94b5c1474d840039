// Package resolution encontra mercados vencidos e conduz oráculo -> liquidação,
// serializando cada mercado por um lease com expiração.
package resolution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/prediction-market-poc/internal/market"
	"github.com/radieske/prediction-market-poc/internal/oracle"
	"github.com/radieske/prediction-market-poc/internal/settlement"
)

// Store é a persistência de mercados usada pelo scheduler
type Store interface {
	// ListDue retorna mercados active/closing com closingDate <= now e sem retry agendado para depois de now
	ListDue(ctx context.Context, now time.Time) ([]market.Market, error)
	GetMarket(ctx context.Context, id string) (market.Market, error)
	// MarkClosing move active -> closing; nos demais estados não faz nada
	MarkClosing(ctx context.Context, id string) error
	// MarkDisputed move active|closing -> disputed
	MarkDisputed(ctx context.Context, id, reason string, data json.RawMessage) error
	ScheduleRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error
	ResolutionStats(ctx context.Context, now time.Time) (market.ResolutionStats, error)
	PendingResolutions(ctx context.Context, now time.Time) ([]market.PendingResolution, error)
}

// Settler é o motor de liquidação
type Settler interface {
	Settle(ctx context.Context, marketID string, outcome market.Side, opts settlement.Options) (settlement.Result, error)
}

// Leaser concede exclusividade temporária sobre uma chave.
// Retorna market.ErrLeaseHeld quando outro processo já detém o lease.
type Leaser interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Publisher divulga transições de mercado; falhas são apenas logadas
type Publisher interface {
	MarketResolved(ctx context.Context, res settlement.Result) error
	MarketDisputed(ctx context.Context, marketID, reason string) error
}

type Config struct {
	LeaseTTL      time.Duration
	OracleTimeout time.Duration
	MaxAttempts   int
	RetryBase     time.Duration
	RetryMax      time.Duration
	Concurrency   int
}

func (c Config) withDefaults() Config {
	if c.OracleTimeout <= 0 {
		c.OracleTimeout = 15 * time.Second
	}
	// o lease precisa sobreviver à chamada ao oráculo e à liquidação
	if c.LeaseTTL <= c.OracleTimeout {
		c.LeaseTTL = 4 * c.OracleTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 30 * time.Second
	}
	if c.RetryMax < c.RetryBase {
		c.RetryMax = 30 * time.Minute
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}

// Result é o que aconteceu com um mercado em uma passada
type Result string

const (
	ResultResolved Result = "resolved"
	ResultDisputed Result = "disputed"
	ResultRetry    Result = "retry"
	ResultSkipped  Result = "skipped"
	ResultFailed   Result = "failed"
)

// Report descreve o processamento de um mercado
type Report struct {
	MarketID      string             `json:"marketId"`
	Result        Result             `json:"result"`
	Outcome       market.Side        `json:"outcome,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	Attempts      int                `json:"attempts,omitempty"`
	NextAttemptAt *time.Time         `json:"nextAttemptAt,omitempty"`
	Settlement    *settlement.Result `json:"settlement,omitempty"`
	Data          json.RawMessage    `json:"data,omitempty"`
}

// Summary é o resumo de uma varredura
type Summary struct {
	Due      int      `json:"due"`
	Resolved int      `json:"resolved"`
	Disputed int      `json:"disputed"`
	Retried  int      `json:"retried"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Markets  []Report `json:"markets"`
}

type Scheduler struct {
	store   Store
	oracle  oracle.Oracle
	settler Settler
	leaser  Leaser
	pub     Publisher
	cfg     Config
	log     *zap.Logger
	now     func() time.Time

	onReport func(Report)
	onSweep  func(Summary)
}

func New(store Store, o oracle.Oracle, settler Settler, leaser Leaser, pub Publisher, cfg Config, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		store:   store,
		oracle:  o,
		settler: settler,
		leaser:  leaser,
		pub:     pub,
		cfg:     cfg.withDefaults(),
		log:     log,
		now:     time.Now,
	}
}

// OnReport registra callback por mercado processado (métricas)
func (s *Scheduler) OnReport(fn func(Report)) { s.onReport = fn }

// OnSweep registra callback por varredura completa (métricas)
func (s *Scheduler) OnSweep(fn func(Summary)) { s.onSweep = fn }

// LeaseKey é a chave do lease de resolução de um mercado
func LeaseKey(marketID string) string { return "lease:market:resolve:" + marketID }

// ProcessAll processa todos os mercados vencidos em paralelo. A falha de um
// mercado não interrompe os outros; só a listagem inicial retorna erro.
func (s *Scheduler) ProcessAll(ctx context.Context) (Summary, error) {
	due, err := s.store.ListDue(ctx, s.now().UTC())
	if err != nil {
		return Summary{}, fmt.Errorf("list due markets: %w", err)
	}

	sum := Summary{Due: len(due), Markets: make([]Report, 0, len(due))}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for _, m := range due {
		id := m.ID
		g.Go(func() error {
			rep, err := s.ProcessMarket(ctx, id, false)
			if err != nil {
				switch {
				case errors.Is(err, market.ErrLeaseHeld), errors.Is(err, market.ErrMarketTerminal),
					errors.Is(err, market.ErrMarketNotDue), errors.Is(err, market.ErrAlreadySettled):
					rep = Report{MarketID: id, Result: ResultSkipped, Reason: err.Error()}
				default:
					rep = Report{MarketID: id, Result: ResultFailed, Reason: err.Error()}
					s.log.Error("market resolution failed", zap.String("marketId", id), zap.Error(err))
				}
			}
			mu.Lock()
			defer mu.Unlock()
			sum.Markets = append(sum.Markets, rep)
			switch rep.Result {
			case ResultResolved:
				sum.Resolved++
			case ResultDisputed:
				sum.Disputed++
			case ResultRetry:
				sum.Retried++
			case ResultSkipped:
				sum.Skipped++
			case ResultFailed:
				sum.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("resolution sweep finished",
		zap.Int("due", sum.Due),
		zap.Int("resolved", sum.Resolved),
		zap.Int("disputed", sum.Disputed),
		zap.Int("retried", sum.Retried),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
	)
	if s.onSweep != nil {
		s.onSweep(sum)
	}
	return sum, nil
}

// ProcessMarket resolve um mercado. manual ignora o backoff de retry agendado.
//
// Erros: ErrNotFound, ErrMarketTerminal, ErrMarketNotDue (validação),
// ErrLeaseHeld (outro processo está resolvendo) e falhas internas da liquidação.
// Falhas transitórias do oráculo não são erro: viram Report com ResultRetry
// ou, com o orçamento esgotado, ResultDisputed.
func (s *Scheduler) ProcessMarket(ctx context.Context, id string, manual bool) (Report, error) {
	release, err := s.leaser.Acquire(ctx, LeaseKey(id), s.cfg.LeaseTTL)
	if err != nil {
		return Report{MarketID: id, Result: ResultSkipped}, err
	}
	defer release()

	m, err := s.store.GetMarket(ctx, id)
	if err != nil {
		return Report{MarketID: id, Result: ResultFailed}, err
	}
	now := s.now().UTC()
	if m.Terminal() {
		return Report{MarketID: id, Result: ResultSkipped}, market.ErrMarketTerminal
	}
	if !m.IsDue(now) {
		return Report{MarketID: id, Result: ResultSkipped}, market.ErrMarketNotDue
	}
	if !manual && m.NextAttemptAt != nil && now.Before(*m.NextAttemptAt) {
		return s.report(Report{MarketID: id, Result: ResultSkipped, Attempts: m.ResolutionAttempts, NextAttemptAt: m.NextAttemptAt}), nil
	}

	log := s.log.With(zap.String("marketId", id))
	if m.Status == market.StatusActive {
		if err := s.store.MarkClosing(ctx, id); err != nil {
			return Report{MarketID: id, Result: ResultFailed}, fmt.Errorf("mark closing: %w", err)
		}
	}

	octx, cancel := context.WithTimeout(ctx, s.cfg.OracleTimeout)
	d, err := s.oracle.Resolve(octx, oracle.QuestionFor(m))
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return Report{MarketID: id, Result: ResultFailed}, ctx.Err()
		}
		return s.retry(ctx, log, m, err)
	}

	if !d.Determinate() {
		return s.dispute(ctx, log, m, d.Reason, d.Data)
	}

	res, err := s.settler.Settle(ctx, id, d.Outcome, settlement.Options{Data: d.Data})
	if err != nil {
		// outcome ou apostas que nunca vão liquidar: repetir não muda nada
		if market.Classify(err) == market.ClassValidation {
			return s.dispute(ctx, log, m, fmt.Sprintf("settlement rejected: %v", err), d.Data)
		}
		return Report{MarketID: id, Result: ResultFailed, Outcome: d.Outcome}, fmt.Errorf("settle: %w", err)
	}
	log.Info("market resolved", zap.String("outcome", string(res.Outcome)), zap.Bool("noop", res.Noop))
	if s.pub != nil && !res.Noop {
		if err := s.pub.MarketResolved(ctx, res); err != nil {
			log.Warn("failed to publish market resolved", zap.Error(err))
		}
	}
	return s.report(Report{MarketID: id, Result: ResultResolved, Outcome: res.Outcome, Settlement: &res, Data: d.Data}), nil
}

func (s *Scheduler) retry(ctx context.Context, log *zap.Logger, m market.Market, cause error) (Report, error) {
	attempts := m.ResolutionAttempts + 1
	if attempts >= s.cfg.MaxAttempts {
		log.Warn("oracle retry budget exhausted", zap.Int("attempts", attempts), zap.Error(cause))
		return s.dispute(ctx, log, m, fmt.Sprintf("retry budget exhausted after %d attempts: %v", attempts, cause), nil)
	}

	next := s.now().UTC().Add(Backoff(attempts, s.cfg.RetryBase, s.cfg.RetryMax))
	if err := s.store.ScheduleRetry(ctx, m.ID, attempts, next, cause.Error()); err != nil {
		return Report{MarketID: m.ID, Result: ResultFailed}, fmt.Errorf("schedule retry: %w", err)
	}
	log.Warn("oracle unavailable, retry scheduled",
		zap.Int("attempts", attempts), zap.Time("nextAttemptAt", next), zap.Error(cause))
	return s.report(Report{MarketID: m.ID, Result: ResultRetry, Reason: cause.Error(), Attempts: attempts, NextAttemptAt: &next}), nil
}

func (s *Scheduler) dispute(ctx context.Context, log *zap.Logger, m market.Market, reason string, data json.RawMessage) (Report, error) {
	if err := s.store.MarkDisputed(ctx, m.ID, reason, data); err != nil {
		return Report{MarketID: m.ID, Result: ResultFailed}, fmt.Errorf("mark disputed: %w", err)
	}
	log.Warn("market disputed", zap.String("reason", reason))
	if s.pub != nil {
		if err := s.pub.MarketDisputed(ctx, m.ID, reason); err != nil {
			log.Warn("failed to publish market disputed", zap.Error(err))
		}
	}
	return s.report(Report{MarketID: m.ID, Result: ResultDisputed, Reason: reason, Data: data}), nil
}

func (s *Scheduler) report(r Report) Report {
	if s.onReport != nil {
		s.onReport(r)
	}
	return r
}

// Pending é a prévia somente-leitura dos mercados aguardando resolução
func (s *Scheduler) Pending(ctx context.Context) ([]market.PendingResolution, error) {
	return s.store.PendingResolutions(ctx, s.now().UTC())
}

// Stats são os contadores derivados do estado atual dos mercados
func (s *Scheduler) Stats(ctx context.Context) (market.ResolutionStats, error) {
	return s.store.ResolutionStats(ctx, s.now().UTC())
}

// Backoff é min(base * 2^(attempts-1), max)
func Backoff(attempts int, base, max time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= max || d <= 0 {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Run varre periodicamente até ctx ser cancelado
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("resolution scheduler started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("resolution scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.ProcessAll(ctx); err != nil {
				s.log.Error("resolution sweep failed", zap.Error(err))
			}
		}
	}
}
