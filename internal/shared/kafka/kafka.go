package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type (
	Writer = kafka.Writer
	Reader = kafka.Reader
)

func brokerList(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// NewWriter cria um writer sem tópico fixo; o tópico vai em cada mensagem
func NewWriter(brokers string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokerList(brokers)...),
		Balancer:               &kafka.Hash{}, // mesma chave (marketId) -> mesma partição
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
	}
}

// NewReader cria um reader de consumer group sobre vários tópicos
func NewReader(brokers string, groupID string, topics ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokerList(brokers),
		GroupTopics:    topics,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
}

// WriteJSON serializa payload e publica em topic com a chave informada
func WriteJSON(ctx context.Context, w *kafka.Writer, topic, key string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: b,
		Time:  time.Now(),
	}

	return w.WriteMessages(ctx, msg)
}

// ReadNext lê a próxima mensagem e devolve também o tópico de origem
func ReadNext(ctx context.Context, r *kafka.Reader) (topic string, key []byte, value []byte, err error) {
	m, err := r.ReadMessage(ctx)
	if err != nil {
		return "", nil, nil, fmt.Errorf("read kafka message: %w", err)
	}
	return m.Topic, m.Key, m.Value, nil
}
