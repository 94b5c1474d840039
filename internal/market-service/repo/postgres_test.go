package repo

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/prediction-market-poc/internal/market"
)

// rowStub simula *sql.Row copiando valores brutos para os destinos, como o driver faria
type rowStub struct {
	vals []any
	err  error
}

func (r rowStub) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch dst := d.(type) {
		case *string:
			*dst = r.vals[i].(string)
		case *market.Status:
			*dst = market.Status(r.vals[i].(string))
		case *time.Time:
			*dst = r.vals[i].(time.Time)
		case *int64:
			*dst = r.vals[i].(int64)
		case *int:
			*dst = r.vals[i].(int)
		case *[]byte:
			if r.vals[i] != nil {
				*dst = r.vals[i].([]byte)
			}
		case sql.Scanner:
			if err := dst.Scan(r.vals[i]); err != nil {
				return err
			}
		default:
			return errors.New("unsupported destination")
		}
	}
	return nil
}

func TestScanMarket_MultiOptionResolved(t *testing.T) {
	closing := time.Date(2025, 3, 7, 18, 0, 0, 0, time.UTC)
	resolved := closing.Add(time.Minute)

	m, err := scanMarket(rowStub{vals: []any{
		"m1", "Who wins?", "multiple_choice", `{"key":"winner"}`, "", "resolved",
		closing.Add(-24 * time.Hour), closing, []byte("{alpha,beta}"), []byte(`{"alpha":300,"beta":700}`),
		int64(0), int64(0), int64(1000),
		"beta", []byte(`{"audit":false}`), nil, resolved,
		2, nil, "",
	}})
	require.NoError(t, err)

	assert.Equal(t, []market.Side{"alpha", "beta"}, m.Options)
	assert.Equal(t, int64(700), m.PoolOf("beta"))
	require.NotNil(t, m.ResolutionOutcome)
	assert.Equal(t, market.Side("beta"), *m.ResolutionOutcome)
	assert.Nil(t, m.DisputeReason)
	require.NotNil(t, m.ResolvedAt)
	assert.True(t, m.ResolvedAt.Equal(resolved))
	assert.Nil(t, m.NextAttemptAt)
	assert.JSONEq(t, `{"audit":false}`, string(m.ResolutionData))
	assert.Equal(t, 2, m.ResolutionAttempts)
}

func TestScanMarket_BinaryDisputed(t *testing.T) {
	closing := time.Date(2025, 3, 7, 18, 0, 0, 0, time.UTC)

	m, err := scanMarket(rowStub{vals: []any{
		"m2", "Will $WIF hit $5?", "price", "", "WIF", "disputed",
		closing.Add(-time.Hour), closing, []byte("{}"), []byte(`{}`),
		int64(300), int64(700), int64(1000),
		nil, nil, "no price data", nil,
		5, nil, "timeout",
	}})
	require.NoError(t, err)

	assert.Empty(t, m.Options)
	assert.Equal(t, []market.Side{market.SideYes, market.SideNo}, m.Sides())
	assert.Equal(t, int64(300), m.PoolOf(market.SideYes))
	assert.Nil(t, m.ResolutionOutcome)
	require.NotNil(t, m.DisputeReason)
	assert.Equal(t, "no price data", *m.DisputeReason)
	assert.Equal(t, "timeout", m.LastError)
}

func TestScanMarket_BadPools(t *testing.T) {
	closing := time.Now()
	_, err := scanMarket(rowStub{vals: []any{
		"m3", "q", "price", "", "", "active",
		closing, closing, []byte("{}"), []byte(`not json`),
		int64(0), int64(0), int64(0),
		nil, nil, nil, nil,
		0, nil, "",
	}})
	assert.Error(t, err)
}
