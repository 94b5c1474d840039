// Package oracle decide o resultado de um mercado a partir da pergunta e do
// critério de resolução. Cada tipo de pergunta mapeia para uma estratégia;
// fontes de dados externas ficam atrás de PriceSource e ValueSource.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/prediction-market-poc/internal/market"
)

// ErrNoData indica que a fonte respondeu, mas não tem o dado pedido.
// Vira Indeterminate, nunca retry.
var ErrNoData = errors.New("no data for the requested id")

// Kind é o tipo de pergunta suportado pelo oráculo
type Kind string

const (
	KindThresholdPrice Kind = "threshold_price"
	KindMultipleChoice Kind = "multiple_choice"
	KindNumericRange   Kind = "numeric_range"
	KindDate           Kind = "date"
)

// Metric é a série consultada na fonte de preços
type Metric string

const (
	MetricPrice     Metric = "price"
	MetricVolume    Metric = "volume"
	MetricMarketCap Metric = "market_cap"
)

// Question é tudo o que o oráculo recebe do mercado
type Question struct {
	MarketID    string
	Type        string
	Text        string
	Criteria    string
	TokenSymbol string
	Options     []market.Side
	OpenedAt    time.Time
	ClosingDate time.Time
}

// QuestionFor monta a Question de um mercado
func QuestionFor(m market.Market) Question {
	return Question{
		MarketID:    m.ID,
		Type:        m.QuestionType,
		Text:        m.Question,
		Criteria:    m.ResolutionCriteria,
		TokenSymbol: m.TokenSymbol,
		Options:     m.Options,
		OpenedAt:    m.OpenedAt,
		ClosingDate: m.ClosingDate,
	}
}

// Decision é o resultado do oráculo: um outcome ou Indeterminate com motivo
type Decision struct {
	Outcome market.Side
	Reason  string
	Data    json.RawMessage
}

// Determinate indica que há um outcome
func (d Decision) Determinate() bool { return d.Outcome != "" }

func resolved(outcome market.Side, data any) Decision {
	return Decision{Outcome: outcome, Data: mustJSON(data)}
}

func indeterminate(reason string, data any) Decision {
	return Decision{Reason: reason, Data: mustJSON(data)}
}

func mustJSON(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// Point é uma amostra de uma série temporal
type Point struct {
	At    time.Time       `json:"at"`
	Value decimal.Decimal `json:"value"`
}

// PriceSource fornece séries históricas de um ativo no intervalo [from, to]
type PriceSource interface {
	Series(ctx context.Context, asset string, metric Metric, from, to time.Time) ([]Point, error)
}

// ValueSource fornece o valor oficial de uma chave como estava em asOf
type ValueSource interface {
	Value(ctx context.Context, key string, asOf time.Time) (string, error)
}

// Oracle decide o resultado de uma pergunta.
// Erros retornados são sempre transitórios; o resto vira Indeterminate.
type Oracle interface {
	Resolve(ctx context.Context, q Question) (Decision, error)
}

// Strategy resolve um Kind específico com o critério já interpretado
type Strategy interface {
	Resolve(ctx context.Context, q Question, c Criteria) (Decision, error)
}

// Registry despacha cada pergunta para a estratégia do seu Kind
type Registry struct {
	strategies map[Kind]Strategy
	assets     Assets
	log        *zap.Logger
	observe    func(kind Kind, d time.Duration)
}

// NewRegistry registra as estratégias padrão sobre as fontes informadas.
// Fontes nil deixam os Kinds que dependem delas sem estratégia.
func NewRegistry(prices PriceSource, values ValueSource, assets Assets, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	if assets == nil {
		assets = DefaultAssets()
	}
	r := &Registry{strategies: map[Kind]Strategy{}, assets: assets, log: log}
	if prices != nil {
		r.Register(KindThresholdPrice, &Threshold{Prices: prices, Assets: assets, Confirmation: DefaultConfirmation})
	}
	if prices != nil || values != nil {
		r.Register(KindNumericRange, &Range{Prices: prices, Values: values})
	}
	if values != nil {
		r.Register(KindMultipleChoice, &Choice{Values: values})
		r.Register(KindDate, &Date{Values: values})
	}
	return r
}

// Register substitui a estratégia de um Kind
func (r *Registry) Register(k Kind, s Strategy) { r.strategies[k] = s }

// OnResolve registra um callback com a duração de cada resolução (métricas)
func (r *Registry) OnResolve(fn func(kind Kind, d time.Duration)) { r.observe = fn }

func (r *Registry) Resolve(ctx context.Context, q Question) (Decision, error) {
	kind, defaults, ok := lookupKind(q.Type)
	if !ok {
		return indeterminate(fmt.Sprintf("question type %q has no resolution strategy", q.Type), nil), nil
	}
	if len(q.Options) > 0 && kind != KindMultipleChoice {
		return indeterminate(fmt.Sprintf("%s questions resolve yes/no and cannot settle a market with options", kind), nil), nil
	}
	s, ok := r.strategies[kind]
	if !ok {
		return indeterminate(fmt.Sprintf("no data source configured for %s questions", kind), nil), nil
	}
	c, err := ParseCriteria(q, kind, defaults, r.assets)
	if err != nil {
		return indeterminate(err.Error(), nil), nil
	}

	start := time.Now()
	d, err := s.Resolve(ctx, q, c)
	if r.observe != nil {
		r.observe(kind, time.Since(start))
	}
	if err != nil {
		if errors.Is(err, market.ErrTransientOracle) || ctx.Err() != nil {
			return Decision{}, market.Transient(err)
		}
		r.log.Warn("oracle source returned permanent error",
			zap.String("marketId", q.MarketID), zap.String("kind", string(kind)), zap.Error(err))
		return indeterminate(err.Error(), nil), nil
	}
	return d, nil
}

type kindDef struct {
	kind     Kind
	defaults Criteria
}

// tipos de pergunta aceitos; os aliases vêm dos tipos usados na criação de mercados
var kinds = map[string]kindDef{
	string(KindThresholdPrice): {KindThresholdPrice, Criteria{Metric: MetricPrice, Mode: ModeTouch}},
	string(KindMultipleChoice): {KindMultipleChoice, Criteria{}},
	string(KindNumericRange):   {KindNumericRange, Criteria{Metric: MetricPrice}},
	string(KindDate):           {KindDate, Criteria{}},

	"price":              {KindThresholdPrice, Criteria{Metric: MetricPrice, Mode: ModeTouch}},
	"volume":             {KindThresholdPrice, Criteria{Metric: MetricVolume, Mode: ModeClose, Direction: DirectionAbove}},
	"market_cap":         {KindThresholdPrice, Criteria{Metric: MetricMarketCap, Mode: ModeClose, Direction: DirectionAbove}},
	"support_resistance": {KindThresholdPrice, Criteria{Metric: MetricPrice}},
}

func lookupKind(questionType string) (Kind, Criteria, bool) {
	d, ok := kinds[strings.ToLower(strings.TrimSpace(questionType))]
	return d.kind, d.defaults, ok
}
