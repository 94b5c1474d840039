// Package pool deriva preços e projeções de order book a partir dos
// acumuladores de stake de um mercado. Funções puras, sem I/O.
package pool

import "github.com/radieske/prediction-market-poc/internal/market"

// Odds retorna os preços implícitos de yes/no a partir dos pools.
// Pools vazios retornam (0.5, 0.5).
func Odds(yesPool, noPool int64) (priceYes, priceNo float64) {
	if yesPool < 0 {
		yesPool = 0
	}
	if noPool < 0 {
		noPool = 0
	}
	total := yesPool + noPool
	if total == 0 {
		return 0.5, 0.5
	}
	priceYes = float64(yesPool) / float64(total)
	return priceYes, 1 - priceYes
}

// Prices generaliza Odds para qualquer mercado (binário ou multi-opção).
// Sem apostas, cada opção recebe 1/n.
func Prices(m market.Market) map[market.Side]float64 {
	sides := m.Sides()
	out := make(map[market.Side]float64, len(sides))

	if len(m.Options) == 0 {
		y, n := Odds(m.YesPoolTotal, m.NoPoolTotal)
		out[market.SideYes] = y
		out[market.SideNo] = n
		return out
	}

	var total int64
	for _, s := range sides {
		if p := m.PoolOf(s); p > 0 {
			total += p
		}
	}
	for _, s := range sides {
		if total == 0 {
			out[s] = 1 / float64(len(sides))
			continue
		}
		p := m.PoolOf(s)
		if p < 0 {
			p = 0
		}
		out[s] = float64(p) / float64(total)
	}
	return out
}
