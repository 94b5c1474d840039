package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Resolution agrupa os coletores do núcleo de resolução/liquidação
type Resolution struct {
	Markets        *prometheus.CounterVec
	Sweeps         prometheus.Counter
	BetsSettled    prometheus.Counter
	DustUnits      prometheus.Counter
	RefundedMarket prometheus.Counter
	OracleSeconds  *prometheus.HistogramVec
	BetsPlaced     prometheus.Counter
}

// NewResolution cria e registra os coletores em reg
func NewResolution(reg prometheus.Registerer) *Resolution {
	m := &Resolution{
		Markets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resolution_markets_total",
			Help: "Mercados processados pelo scheduler, por resultado",
		}, []string{"result"}),
		Sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resolution_sweeps_total",
			Help: "Varreduras completas de resolução",
		}),
		BetsSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_bets_settled_total",
			Help: "Apostas liquidadas",
		}),
		DustUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_dust_units_total",
			Help: "Unidades de resto de divisão atribuídas na liquidação",
		}),
		RefundedMarket: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "settlement_refunded_markets_total",
			Help: "Mercados liquidados com reembolso (pool vencedor vazio)",
		}),
		OracleSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oracle_resolve_seconds",
			Help:    "Duração das consultas do oráculo por tipo de pergunta",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		BetsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "market_bets_placed_total",
			Help: "Apostas aceitas",
		}),
	}
	reg.MustRegister(m.Markets, m.Sweeps, m.BetsSettled, m.DustUnits, m.RefundedMarket, m.OracleSeconds, m.BetsPlaced)
	return m
}
