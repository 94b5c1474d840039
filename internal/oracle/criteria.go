package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Mode define como a série é comparada com o alvo
type Mode string

const (
	ModeTouch Mode = "touch" // alvo atingido e mantido pelo período de confirmação
	ModeClose Mode = "close" // último valor da janela
	ModeHold  Mode = "hold"  // 80% das amostras além do nível
	ModeBreak Mode = "break" // além do nível por dois intervalos seguidos
)

type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// Criteria é o critério de resolução interpretado. Vem do JSON em
// resolutionCriteria ou, na falta dele, do texto da pergunta.
type Criteria struct {
	Asset     string           `json:"asset,omitempty"`
	Metric    Metric           `json:"metric,omitempty"`
	Mode      Mode             `json:"mode,omitempty"`
	Direction Direction        `json:"direction,omitempty"`
	Target    *decimal.Decimal `json:"target,omitempty"`

	// Confirmation sobrescreve o período de confirmação do modo touch ("2m", "0s")
	Confirmation string `json:"confirmation,omitempty"`

	Min *decimal.Decimal `json:"min,omitempty"`
	Max *decimal.Decimal `json:"max,omitempty"`

	// Key é a chave consultada na fonte de valores oficiais
	Key      string     `json:"key,omitempty"`
	Expected string     `json:"expected,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
	After    bool       `json:"after,omitempty"`
}

var (
	errNoTarget = errors.New("could not extract target from question")
	errNoAsset  = errors.New("could not extract token symbol from question")
)

// $0.95, $1,200, $2.5M, $30B
var targetRe = regexp.MustCompile(`\$\s*([0-9][0-9,]*(?:\.[0-9]+)?|\.[0-9]+)\s*([KkMmBb])?\b`)

// ParseCriteria interpreta o critério de q para kind, partindo dos padrões do tipo de pergunta.
// assets define os símbolos reconhecidos no texto; nil usa DefaultAssets.
func ParseCriteria(q Question, kind Kind, defaults Criteria, assets Assets) (Criteria, error) {
	c := defaults
	raw := strings.TrimSpace(q.Criteria)
	fromJSON := strings.HasPrefix(raw, "{")
	if fromJSON {
		var parsed Criteria
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return Criteria{}, fmt.Errorf("invalid resolution criteria: %v", err)
		}
		c = merge(c, parsed)
	}

	switch kind {
	case KindThresholdPrice:
		return thresholdCriteria(q, c, assets)
	case KindNumericRange:
		if c.Min == nil && c.Max == nil {
			return Criteria{}, errors.New("numeric range needs min or max")
		}
		if c.Min != nil && c.Max != nil && c.Min.GreaterThan(*c.Max) {
			return Criteria{}, errors.New("numeric range min is greater than max")
		}
		if c.Key == "" && c.Asset == "" {
			c.Asset = q.TokenSymbol
		}
		if c.Key == "" && c.Asset == "" {
			return Criteria{}, errors.New("numeric range needs a key or an asset")
		}
	case KindMultipleChoice:
		if c.Key == "" {
			return Criteria{}, errors.New("multiple choice needs a key")
		}
		if c.Expected == "" && len(q.Options) == 0 {
			return Criteria{}, errors.New("multiple choice needs an expected value for binary markets")
		}
	case KindDate:
		if c.Key == "" {
			return Criteria{}, errors.New("date question needs a key")
		}
		if c.Deadline == nil {
			d := q.ClosingDate
			c.Deadline = &d
		}
	}
	return c, nil
}

func merge(base, over Criteria) Criteria {
	if over.Asset != "" {
		base.Asset = over.Asset
	}
	if over.Metric != "" {
		base.Metric = over.Metric
	}
	if over.Mode != "" {
		base.Mode = over.Mode
	}
	if over.Direction != "" {
		base.Direction = over.Direction
	}
	if over.Target != nil {
		base.Target = over.Target
	}
	if over.Confirmation != "" {
		base.Confirmation = over.Confirmation
	}
	if over.Min != nil {
		base.Min = over.Min
	}
	if over.Max != nil {
		base.Max = over.Max
	}
	if over.Key != "" {
		base.Key = over.Key
	}
	if over.Expected != "" {
		base.Expected = over.Expected
	}
	if over.Deadline != nil {
		base.Deadline = over.Deadline
	}
	base.After = base.After || over.After
	return base
}

func thresholdCriteria(q Question, c Criteria, assets Assets) (Criteria, error) {
	text := strings.ToLower(q.Text)

	if c.Target == nil {
		t, err := ParseTarget(q.Text)
		if err != nil {
			return Criteria{}, err
		}
		c.Target = &t
	}
	if c.Asset == "" {
		c.Asset = strings.ToUpper(strings.TrimSpace(q.TokenSymbol))
	}
	if c.Asset == "" {
		c.Asset = extractSymbol(q.Text, assets)
	}
	if c.Asset == "" {
		return Criteria{}, errNoAsset
	}
	if c.Direction == "" {
		c.Direction = DirectionAbove
		if containsAny(text, "below", "under", "drop", "fall", "dip", "lose") {
			c.Direction = DirectionBelow
		}
	}
	if c.Mode == "" {
		switch {
		case strings.Contains(text, "hold"):
			c.Mode = ModeHold
		case containsAny(text, "break", "above", "below"):
			c.Mode = ModeBreak
		default:
			return Criteria{}, errors.New("could not determine if this is a support or resistance question")
		}
	}
	if c.Metric == "" {
		c.Metric = MetricPrice
	}
	if c.Confirmation != "" {
		if _, err := time.ParseDuration(c.Confirmation); err != nil {
			return Criteria{}, fmt.Errorf("invalid confirmation period: %v", err)
		}
	}
	return c, nil
}

// ParseTarget extrai o primeiro valor em dólar do texto, com sufixos K, M e B
func ParseTarget(text string) (decimal.Decimal, error) {
	m := targetRe.FindStringSubmatch(text)
	if m == nil {
		return decimal.Decimal{}, errNoTarget
	}
	v, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Decimal{}, errNoTarget
	}
	switch strings.ToUpper(m[2]) {
	case "K":
		v = v.Shift(3)
	case "M":
		v = v.Shift(6)
	case "B":
		v = v.Shift(9)
	}
	return v, nil
}

var symbolRe = regexp.MustCompile(`\$?\b[A-Z][A-Z0-9]{1,9}\b`)

// extractSymbol procura no texto o primeiro símbolo conhecido
func extractSymbol(text string, assets Assets) string {
	if assets == nil {
		assets = DefaultAssets()
	}
	for _, tok := range symbolRe.FindAllString(text, -1) {
		tok = strings.TrimPrefix(tok, "$")
		if _, ok := assets[tok]; ok {
			return tok
		}
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
