package repo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder é um driver mínimo que anota cada comando na ordem em que chega
type recorder struct {
	mu    sync.Mutex
	stmts []string
}

func (r *recorder) Connect(context.Context) (driver.Conn, error) { return &recConn{r: r}, nil }
func (r *recorder) Driver() driver.Driver                        { return nil }

func (r *recorder) add(query string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = append(r.stmts, strings.Join(strings.Fields(query), " "))
}

type recConn struct{ r *recorder }

func (c *recConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("prepare not supported") }
func (c *recConn) Close() error                        { return nil }
func (c *recConn) Begin() (driver.Tx, error)           { return recTx{}, nil }

func (c *recConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.r.add(query)
	return driver.RowsAffected(1), nil
}

func (c *recConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.r.add(query)
	if strings.Contains(query, "FROM user_stats") {
		return &recRows{cols: 7, rows: [][]driver.Value{{int64(1), int64(500), int64(0), float64(0), int64(0), int64(0), int64(1)}}}, nil
	}
	return &recRows{cols: 14}, nil
}

type recTx struct{}

func (recTx) Commit() error   { return nil }
func (recTx) Rollback() error { return nil }

type recRows struct {
	cols int
	rows [][]driver.Value
}

func (r *recRows) Columns() []string { return make([]string, r.cols) }
func (r *recRows) Close() error      { return nil }
func (r *recRows) Next(dest []driver.Value) error {
	if len(r.rows) == 0 {
		return io.EOF
	}
	copy(dest, r.rows[0])
	r.rows = r.rows[1:]
	return nil
}

func TestRecomputeUserStats_LocksStatsBeforeReadingBets(t *testing.T) {
	rec := &recorder{}
	db := sql.OpenDB(rec)
	defer db.Close()

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	mt := &marketTx{tx: tx}
	require.NoError(t, mt.RecomputeUserStats(ctx, []string{"u2", "u1", "u2"}))

	kinds := make([]string, 0, len(rec.stmts))
	for _, s := range rec.stmts {
		switch {
		case strings.Contains(s, "INSERT INTO user_stats(user_id) VALUES($1) ON CONFLICT (user_id) DO NOTHING"):
			kinds = append(kinds, "ensure")
		case strings.Contains(s, "FROM user_stats") && strings.HasSuffix(s, "FOR UPDATE"):
			kinds = append(kinds, "lock")
		case strings.Contains(s, "FROM bets WHERE user_id"):
			kinds = append(kinds, "bets")
		case strings.Contains(s, "ON CONFLICT (user_id) DO UPDATE"):
			kinds = append(kinds, "store")
		default:
			kinds = append(kinds, "other:"+s)
		}
	}

	// usuários em ordem crescente, cada um travado antes da leitura das apostas
	assert.Equal(t, []string{
		"ensure", "lock", "bets", "store",
		"ensure", "lock", "bets", "store",
	}, kinds)
}

func TestStatsForUpdate_CreatesRowThenLocks(t *testing.T) {
	rec := &recorder{}
	db := sql.OpenDB(rec)
	defer db.Close()

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	s, err := statsForUpdate(ctx, tx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	assert.EqualValues(t, 1, s.TotalBetsPlaced)
	assert.EqualValues(t, 500, s.TotalVolumeTraded)

	require.Len(t, rec.stmts, 2)
	assert.True(t, strings.HasPrefix(rec.stmts[0], "INSERT INTO user_stats(user_id)"))
	assert.True(t, strings.HasSuffix(rec.stmts[1], "FOR UPDATE"))
}
