package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/prediction-market-poc/internal/market-stream/ws"
)

// MessageReader é satisfeito por *kafka.Reader
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type Broadcaster interface {
	Broadcast(u ws.Update) int
}

// Relay consome eventos de mercado do Kafka e repassa aos clientes websocket
type Relay struct {
	Log    *zap.Logger
	Reader MessageReader
	Hub    Broadcaster
	// Types mapeia nome do tópico -> tipo do evento enviado ao cliente
	Types map[string]string

	OnRelayed func(topic string) // métricas
	OnError   func(stage string)
}

type envelope struct {
	MarketID string `json:"market_id"`
}

// Run consome até ctx ser cancelado
func (r *Relay) Run(ctx context.Context) error {
	for {
		m, err := r.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.Log.Warn("kafka read failed", zap.Error(err))
			r.fail("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		r.handle(m)
	}
}

func (r *Relay) handle(m kafka.Message) {
	typ, ok := r.Types[m.Topic]
	if !ok {
		r.Log.Debug("ignoring message from unknown topic", zap.String("topic", m.Topic))
		return
	}

	var env envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		r.Log.Warn("invalid message", zap.String("topic", m.Topic), zap.Error(err))
		r.fail("decode")
		return
	}
	if env.MarketID == "" {
		env.MarketID = string(m.Key)
	}
	if env.MarketID == "" {
		r.Log.Warn("message without market id", zap.String("topic", m.Topic))
		r.fail("decode")
		return
	}

	r.Hub.Broadcast(ws.Update{Type: typ, MarketID: env.MarketID, Payload: json.RawMessage(m.Value)})
	if r.OnRelayed != nil {
		r.OnRelayed(m.Topic)
	}
}

func (r *Relay) fail(stage string) {
	if r.OnError != nil {
		r.OnError(stage)
	}
}
