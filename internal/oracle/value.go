package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/prediction-market-poc/internal/market"
)

// Choice compara o valor oficial da chave no fechamento com as opções do mercado
type Choice struct {
	Values ValueSource
}

type choiceData struct {
	Key      string    `json:"key"`
	AsOf     time.Time `json:"asOf"`
	Value    string    `json:"value"`
	Expected string    `json:"expected,omitempty"`
}

func (s *Choice) Resolve(ctx context.Context, q Question, c Criteria) (Decision, error) {
	v, err := s.Values.Value(ctx, c.Key, q.ClosingDate)
	if err != nil {
		return valueErr(err, c.Key)
	}
	data := choiceData{Key: c.Key, AsOf: q.ClosingDate, Value: v, Expected: c.Expected}

	if len(q.Options) > 0 {
		for _, o := range q.Options {
			if strings.EqualFold(strings.TrimSpace(v), string(o)) {
				return resolved(o, data), nil
			}
		}
		return indeterminate(fmt.Sprintf("value %q matches no market option", v), data), nil
	}
	if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(c.Expected)) {
		return resolved(market.SideYes, data), nil
	}
	return resolved(market.SideNo, data), nil
}

// Range responde yes quando min <= valor <= max. O valor vem da fonte oficial
// (Key) ou do último ponto da série do ativo até o fechamento.
type Range struct {
	Prices PriceSource
	Values ValueSource
}

type rangeData struct {
	Key   string           `json:"key,omitempty"`
	Asset string           `json:"asset,omitempty"`
	AsOf  time.Time        `json:"asOf"`
	Value decimal.Decimal  `json:"value"`
	Min   *decimal.Decimal `json:"min,omitempty"`
	Max   *decimal.Decimal `json:"max,omitempty"`
}

func (s *Range) Resolve(ctx context.Context, q Question, c Criteria) (Decision, error) {
	data := rangeData{Key: c.Key, Asset: c.Asset, AsOf: q.ClosingDate, Min: c.Min, Max: c.Max}

	switch {
	case c.Key != "" && s.Values != nil:
		raw, err := s.Values.Value(ctx, c.Key, q.ClosingDate)
		if err != nil {
			return valueErr(err, c.Key)
		}
		v, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return indeterminate(fmt.Sprintf("value %q for %s is not a number", raw, c.Key), nil), nil
		}
		data.Value = v
	case c.Asset != "" && s.Prices != nil:
		series, err := s.Prices.Series(ctx, c.Asset, c.Metric, q.ClosingDate.Add(-DefaultLookback), q.ClosingDate)
		if err != nil {
			return Decision{}, err
		}
		series = clip(series, q.ClosingDate.Add(-DefaultLookback), q.ClosingDate)
		if len(series) == 0 {
			return indeterminate("no price data in resolution window", data), nil
		}
		data.Value = series[len(series)-1].Value
	default:
		return indeterminate("no data source for numeric range", data), nil
	}

	in := (c.Min == nil || data.Value.GreaterThanOrEqual(*c.Min)) &&
		(c.Max == nil || data.Value.LessThanOrEqual(*c.Max))
	if in {
		return resolved(market.SideYes, data), nil
	}
	return resolved(market.SideNo, data), nil
}

// Date compara a data oficial de um evento com o prazo do critério.
// Sem After: yes se o evento ocorreu até o prazo; com After: yes se ocorreu a partir dele.
type Date struct {
	Values ValueSource
}

type dateData struct {
	Key      string    `json:"key"`
	AsOf     time.Time `json:"asOf"`
	Value    time.Time `json:"value"`
	Deadline time.Time `json:"deadline"`
	After    bool      `json:"after"`
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

func (s *Date) Resolve(ctx context.Context, q Question, c Criteria) (Decision, error) {
	raw, err := s.Values.Value(ctx, c.Key, q.ClosingDate)
	if err != nil {
		return valueErr(err, c.Key)
	}
	at, ok := parseDate(raw)
	if !ok {
		return indeterminate(fmt.Sprintf("value %q for %s is not a date", raw, c.Key), nil), nil
	}
	data := dateData{Key: c.Key, AsOf: q.ClosingDate, Value: at, Deadline: *c.Deadline, After: c.After}

	yes := !at.After(*c.Deadline)
	if c.After {
		yes = !at.Before(*c.Deadline)
	}
	if yes {
		return resolved(market.SideYes, data), nil
	}
	return resolved(market.SideNo, data), nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// valueErr separa "sem dado" (Indeterminate) de falha transitória
func valueErr(err error, key string) (Decision, error) {
	if errors.Is(err, ErrNoData) {
		return indeterminate(fmt.Sprintf("no authoritative value for %s", key), nil), nil
	}
	return Decision{}, err
}
