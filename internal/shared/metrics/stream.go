package metrics

import "github.com/prometheus/client_golang/prometheus"

// Stream agrupa os coletores do market-stream-service
type Stream struct {
	Clients       prometheus.Gauge
	Subscriptions prometheus.Gauge
	Relayed       *prometheus.CounterVec
	Errors        *prometheus.CounterVec
}

func NewStream(reg prometheus.Registerer) *Stream {
	m := &Stream{
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_ws_clients",
			Help: "Conexões websocket abertas",
		}),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_ws_subscriptions",
			Help: "Assinaturas ativas (conexão x mercado)",
		}),
		Relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_events_relayed_total",
			Help: "Eventos repassados aos clientes, por tópico",
		}, []string{"topic"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_errors_total",
			Help: "Erros por estágio",
		}, []string{"stage"}),
	}
	reg.MustRegister(m.Clients, m.Subscriptions, m.Relayed, m.Errors)
	return m
}
