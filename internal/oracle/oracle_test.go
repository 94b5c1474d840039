package oracle_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/prediction-market-poc/internal/market"
	"github.com/radieske/prediction-market-poc/internal/oracle"
)

var closing = time.Date(2025, 3, 7, 18, 0, 0, 0, time.UTC)

type fakePrices struct {
	series []oracle.Point
	err    error

	calls  int
	asset  string
	metric oracle.Metric
	from   time.Time
	to     time.Time
}

func (f *fakePrices) Series(_ context.Context, asset string, metric oracle.Metric, from, to time.Time) ([]oracle.Point, error) {
	f.calls++
	f.asset, f.metric, f.from, f.to = asset, metric, from, to
	return f.series, f.err
}

type fakeValues map[string]string

func (f fakeValues) Value(_ context.Context, key string, _ time.Time) (string, error) {
	if v, ok := f[key]; ok {
		return v, nil
	}
	return "", oracle.ErrNoData
}

// series gera amostras a cada step terminando no fechamento
func series(step time.Duration, values ...string) []oracle.Point {
	out := make([]oracle.Point, len(values))
	start := closing.Add(-step * time.Duration(len(values)-1))
	for i, v := range values {
		out[i] = oracle.Point{At: start.Add(step * time.Duration(i)), Value: decimal.RequireFromString(v)}
	}
	return out
}

func question(typ, text string) oracle.Question {
	return oracle.Question{
		MarketID:    "m1",
		Type:        typ,
		Text:        text,
		OpenedAt:    closing.Add(-48 * time.Hour),
		ClosingDate: closing,
	}
}

func TestParseTarget(t *testing.T) {
	cases := map[string]string{
		"Will WIF reach $3 by Friday?":             "3",
		"Will PEPE drop below $0.00001 this week?": "0.00001",
		"Will SOL volume exceed $2.5M today?":      "2500000",
		"Will BTC market cap hit $1,300B?":         "1300000000000",
		"Will ETH trade above $3,200.50?":          "3200.5",
	}
	for text, want := range cases {
		got, err := oracle.ParseTarget(text)
		require.NoError(t, err, text)
		assert.True(t, decimal.RequireFromString(want).Equal(got), "%s: got %s", text, got)
	}

	_, err := oracle.ParseTarget("Will WIF go up?")
	assert.Error(t, err)
}

func TestThreshold_TouchNeedsConfirmation(t *testing.T) {
	prices := &fakePrices{series: series(time.Minute, "2.9", "3.0", "3.1", "3.05")}
	r := oracle.NewRegistry(prices, nil, nil, nil)

	d, err := r.Resolve(context.Background(), question("price", "Will WIF reach $3 by Friday?"))
	require.NoError(t, err)
	assert.Equal(t, market.SideYes, d.Outcome)
	assert.Equal(t, "WIF", prices.asset)
	assert.Equal(t, oracle.MetricPrice, prices.metric)
	assert.Equal(t, closing, prices.to)
	assert.Equal(t, closing.Add(-48*time.Hour), prices.from)

	var data map[string]any
	require.NoError(t, json.Unmarshal(d.Data, &data))
	assert.Equal(t, "touch", data["mode"])
	assert.Equal(t, true, data["reached"])

	// alvo tocado mas perdido antes dos 2 minutos
	prices.series = series(time.Minute, "3.1", "2.9", "3.2", "3.3")
	d, err = r.Resolve(context.Background(), question("price", "Will WIF reach $3 by Friday?"))
	require.NoError(t, err)
	assert.Equal(t, market.SideNo, d.Outcome)
}

func TestThreshold_Below(t *testing.T) {
	prices := &fakePrices{series: series(time.Minute, "0.5", "0.39", "0.38", "0.37")}
	r := oracle.NewRegistry(prices, nil, nil, nil)

	d, err := r.Resolve(context.Background(), question("price", "Will BONK drop below $0.4?"))
	require.NoError(t, err)
	assert.Equal(t, market.SideYes, d.Outcome)
}

func TestThreshold_IgnoresSamplesAfterClosing(t *testing.T) {
	pts := series(time.Minute, "2.0", "2.1")
	pts = append(pts,
		oracle.Point{At: closing.Add(time.Minute), Value: decimal.NewFromInt(5)},
		oracle.Point{At: closing.Add(5 * time.Minute), Value: decimal.NewFromInt(5)},
	)
	r := oracle.NewRegistry(&fakePrices{series: pts}, nil, nil, nil)

	d, err := r.Resolve(context.Background(), question("price", "Will WIF reach $3?"))
	require.NoError(t, err)
	assert.Equal(t, market.SideNo, d.Outcome)
}

func TestThreshold_SupportResistance(t *testing.T) {
	prices := &fakePrices{}
	r := oracle.NewRegistry(prices, nil, nil, nil)
	q := question("support_resistance", "Will SOL break above $200 resistance?")

	prices.series = series(time.Hour, "199", "201", "202", "203")
	d, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, market.SideYes, d.Outcome)

	prices.series = series(time.Hour, "201", "199", "201", "202", "199")
	d, err = r.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, market.SideNo, d.Outcome)

	hold := question("support_resistance", "Will SOL hold the $150 support?")
	prices.series = series(time.Hour, "151", "152", "149", "155", "160")
	d, err = r.Resolve(context.Background(), hold)
	require.NoError(t, err)
	assert.Equal(t, market.SideYes, d.Outcome)

	prices.series = series(time.Hour, "151", "149", "149", "155", "160")
	d, err = r.Resolve(context.Background(), hold)
	require.NoError(t, err)
	assert.Equal(t, market.SideNo, d.Outcome)
}

func TestThreshold_VolumeUsesClose(t *testing.T) {
	prices := &fakePrices{series: series(time.Hour, "300000000", "327800000")}
	r := oracle.NewRegistry(prices, nil, nil, nil)

	d, err := r.Resolve(context.Background(), question("volume", "Will WIF 24h volume exceed $300M?"))
	require.NoError(t, err)
	assert.Equal(t, market.SideYes, d.Outcome)
	assert.Equal(t, oracle.MetricVolume, prices.metric)
}

func TestThreshold_CriteriaJSONOverridesText(t *testing.T) {
	prices := &fakePrices{series: series(time.Minute, "10", "11")}
	r := oracle.NewRegistry(prices, nil, nil, nil)

	q := question("threshold_price", "Will it moon?")
	q.Criteria = `{"asset":"ETH","target":"10.5","mode":"close","direction":"above"}`
	d, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, market.SideYes, d.Outcome)
	assert.Equal(t, "ETH", prices.asset)
}

func TestRegistry_Indeterminate(t *testing.T) {
	prices := &fakePrices{}
	r := oracle.NewRegistry(prices, nil, nil, nil)

	tests := []struct {
		name string
		q    oracle.Question
	}{
		{"unsupported type", question("trend", "Will WIF trend up?")},
		{"no target", question("price", "Will WIF go up?")},
		{"no asset", question("price", "Will FOO reach $3?")},
		{"empty series", question("price", "Will WIF reach $3?")},
		{"no value source", question("multiple_choice", "Who wins?")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := r.Resolve(context.Background(), tt.q)
			require.NoError(t, err)
			assert.False(t, d.Determinate())
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestRegistry_YesNoKindOnOptionMarket(t *testing.T) {
	prices := &fakePrices{series: series(time.Minute, "3.1", "3.2", "3.3", "3.4")}
	r := oracle.NewRegistry(prices, fakeValues{"k": "2025-03-01"}, nil, nil)

	for _, typ := range []string{"price", "numeric_range", "date"} {
		t.Run(typ, func(t *testing.T) {
			q := question(typ, "Will WIF reach $3?")
			q.Options = []market.Side{"a", "b", "c"}
			d, err := r.Resolve(context.Background(), q)
			require.NoError(t, err)
			assert.False(t, d.Determinate())
			assert.Contains(t, d.Reason, "options")
		})
	}
	assert.Zero(t, prices.calls)
}

func TestThreshold_SymbolFromLoadedAssets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("assets:\n  MEW: cat-in-a-dogs-world\n"), 0o600))
	assets, err := oracle.LoadAssets(path)
	require.NoError(t, err)

	prices := &fakePrices{series: series(time.Minute, "0.01", "0.02", "0.02", "0.02")}
	r := oracle.NewRegistry(prices, nil, assets, nil)

	d, err := r.Resolve(context.Background(), question("price", "Will MEW break above $0.015?"))
	require.NoError(t, err)
	assert.True(t, d.Determinate())
	assert.Equal(t, "MEW", prices.asset)
}

func TestRegistry_TransientErrorsPropagate(t *testing.T) {
	prices := &fakePrices{err: market.Transient(errors.New("503 from upstream"))}
	r := oracle.NewRegistry(prices, nil, nil, nil)

	_, err := r.Resolve(context.Background(), question("price", "Will WIF reach $3?"))
	assert.ErrorIs(t, err, market.ErrTransientOracle)
}

func TestRegistry_PermanentErrorIsIndeterminate(t *testing.T) {
	prices := &fakePrices{err: errors.New("coingecko: dogwifcoin returned 400")}
	r := oracle.NewRegistry(prices, nil, nil, nil)

	var observed oracle.Kind
	r.OnResolve(func(k oracle.Kind, _ time.Duration) { observed = k })

	d, err := r.Resolve(context.Background(), question("price", "Will WIF reach $3?"))
	require.NoError(t, err)
	assert.False(t, d.Determinate())
	assert.Contains(t, d.Reason, "400")
	assert.Equal(t, oracle.KindThresholdPrice, observed)
}

func TestChoice(t *testing.T) {
	values := fakeValues{"winner": " Alice "}
	r := oracle.NewRegistry(nil, values, nil, nil)

	q := question("multiple_choice", "Will Alice win?")
	q.Criteria = `{"key":"winner","expected":"alice"}`
	d, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, market.SideYes, d.Outcome)

	q.Criteria = `{"key":"winner","expected":"bob"}`
	d, err = r.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, market.SideNo, d.Outcome)

	multi := question("multiple_choice", "Who wins?")
	multi.Options = []market.Side{"bob", "alice", "carol"}
	multi.Criteria = `{"key":"winner"}`
	d, err = r.Resolve(context.Background(), multi)
	require.NoError(t, err)
	assert.Equal(t, market.Side("alice"), d.Outcome)

	multi.Criteria = `{"key":"unknown"}`
	d, err = r.Resolve(context.Background(), multi)
	require.NoError(t, err)
	assert.False(t, d.Determinate())
}

func TestRange(t *testing.T) {
	values := fakeValues{"cpi": "3.2"}
	r := oracle.NewRegistry(nil, values, nil, nil)

	q := question("numeric_range", "Will CPI land between 3 and 3.5?")
	q.Criteria = `{"key":"cpi","min":"3","max":"3.5"}`
	d, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, market.SideYes, d.Outcome)

	q.Criteria = `{"key":"cpi","min":"3.3"}`
	d, err = r.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, market.SideNo, d.Outcome)

	q.Criteria = `{"key":"cpi","min":"4","max":"3"}`
	d, err = r.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, d.Determinate())
}

func TestRange_FromPriceSeries(t *testing.T) {
	prices := &fakePrices{series: series(time.Hour, "140", "175")}
	r := oracle.NewRegistry(prices, nil, nil, nil)

	q := question("numeric_range", "Will SOL close between $150 and $200?")
	q.TokenSymbol = "SOL"
	q.Criteria = `{"min":"150","max":"200"}`
	d, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, market.SideYes, d.Outcome)
	assert.Equal(t, "SOL", prices.asset)
}

func TestDate(t *testing.T) {
	values := fakeValues{"mainnet-launch": "2025-03-05"}
	r := oracle.NewRegistry(nil, values, nil, nil)

	q := question("date", "Will mainnet launch before closing?")
	q.Criteria = `{"key":"mainnet-launch"}`
	d, err := r.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, market.SideYes, d.Outcome)

	q.Criteria = `{"key":"mainnet-launch","deadline":"2025-03-01T00:00:00Z"}`
	d, err = r.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, market.SideNo, d.Outcome)

	q.Criteria = `{"key":"mainnet-launch","deadline":"2025-03-01T00:00:00Z","after":true}`
	d, err = r.Resolve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, market.SideYes, d.Outcome)
}

func TestLoadAssets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("assets:\n  jup: jupiter-exchange-solana\n  WIF: dogwifhat-override\n"), 0o600))

	a, err := oracle.LoadAssets(path)
	require.NoError(t, err)

	id, ok := a.ID("JUP")
	assert.True(t, ok)
	assert.Equal(t, "jupiter-exchange-solana", id)
	id, _ = a.ID("wif")
	assert.Equal(t, "dogwifhat-override", id)
	_, ok = a.ID("BTC")
	assert.True(t, ok)

	_, err = oracle.LoadAssets(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
