package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/prediction-market-poc/internal/market"
)

const (
	DefaultConfirmation = 2 * time.Minute
	// DefaultLookback é usado quando o mercado não tem data de abertura
	DefaultLookback = 24 * time.Hour

	holdRatio      = 0.8
	breakIntervals = 2
)

// Threshold resolve perguntas do tipo "o ativo vai atingir $X até a data".
// A série é sempre pedida no intervalo [abertura, fechamento], nunca até "agora".
type Threshold struct {
	Prices       PriceSource
	Assets       Assets
	Confirmation time.Duration
}

type thresholdData struct {
	Asset     string          `json:"asset"`
	Metric    Metric          `json:"metric"`
	Mode      Mode            `json:"mode"`
	Direction Direction       `json:"direction"`
	Target    decimal.Decimal `json:"target"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Samples   int             `json:"samples"`
	Final     *Point          `json:"final,omitempty"`
	Reached   bool            `json:"reached"`
}

func (t *Threshold) Resolve(ctx context.Context, q Question, c Criteria) (Decision, error) {
	from := q.OpenedAt
	if from.IsZero() || !from.Before(q.ClosingDate) {
		from = q.ClosingDate.Add(-DefaultLookback)
	}
	data := thresholdData{
		Asset:     c.Asset,
		Metric:    c.Metric,
		Mode:      c.Mode,
		Direction: c.Direction,
		Target:    *c.Target,
		From:      from,
		To:        q.ClosingDate,
	}

	assets := t.Assets
	if assets == nil {
		assets = DefaultAssets()
	}
	if _, ok := assets.ID(c.Asset); !ok {
		return indeterminate(fmt.Sprintf("unknown asset %q", c.Asset), data), nil
	}

	series, err := t.Prices.Series(ctx, c.Asset, c.Metric, from, q.ClosingDate)
	if err != nil {
		return Decision{}, err
	}
	series = clip(series, from, q.ClosingDate)
	data.Samples = len(series)
	if len(series) == 0 {
		return indeterminate("no price data in resolution window", data), nil
	}
	last := series[len(series)-1]
	data.Final = &last

	confirm := t.Confirmation
	if c.Confirmation != "" {
		confirm, _ = time.ParseDuration(c.Confirmation)
	}
	beyond := beyondFn(c.Direction, *c.Target)

	switch c.Mode {
	case ModeTouch:
		data.Reached = touched(series, beyond.inclusive, confirm)
	case ModeClose:
		data.Reached = beyond.inclusive(last.Value)
	case ModeHold:
		data.Reached = held(series, beyond.strict)
	case ModeBreak:
		data.Reached = broke(series, beyond.strict)
	default:
		return indeterminate(fmt.Sprintf("unknown threshold mode %q", c.Mode), data), nil
	}

	if data.Reached {
		return resolved(market.SideYes, data), nil
	}
	return resolved(market.SideNo, data), nil
}

type comparator struct {
	inclusive func(decimal.Decimal) bool
	strict    func(decimal.Decimal) bool
}

func beyondFn(dir Direction, target decimal.Decimal) comparator {
	if dir == DirectionBelow {
		return comparator{
			inclusive: func(v decimal.Decimal) bool { return v.LessThanOrEqual(target) },
			strict:    func(v decimal.Decimal) bool { return v.LessThan(target) },
		}
	}
	return comparator{
		inclusive: func(v decimal.Decimal) bool { return v.GreaterThanOrEqual(target) },
		strict:    func(v decimal.Decimal) bool { return v.GreaterThan(target) },
	}
}

// touched: o alvo precisa ser mantido por pelo menos confirm entre amostras
func touched(series []Point, ok func(decimal.Decimal) bool, confirm time.Duration) bool {
	var start *time.Time
	for i := range series {
		p := series[i]
		switch {
		case !ok(p.Value):
			start = nil
		case start == nil:
			at := p.At
			start = &at
			if confirm <= 0 {
				return true
			}
		case p.At.Sub(*start) >= confirm:
			return true
		}
	}
	return false
}

func held(series []Point, ok func(decimal.Decimal) bool) bool {
	n := 0
	for _, p := range series {
		if ok(p.Value) {
			n++
		}
	}
	return float64(n)/float64(len(series)) >= holdRatio
}

func broke(series []Point, ok func(decimal.Decimal) bool) bool {
	run := 0
	for i := 1; i < len(series); i++ {
		if ok(series[i].Value) && ok(series[i-1].Value) {
			run++
			if run >= breakIntervals {
				return true
			}
			continue
		}
		run = 0
	}
	return false
}

// clip descarta amostras fora da janela; a fonte pode devolver pontos vizinhos
func clip(series []Point, from, to time.Time) []Point {
	out := series[:0:0]
	for _, p := range series {
		if p.At.Before(from) || p.At.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}
