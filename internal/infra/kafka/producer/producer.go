package producer

import (
	"context"
	"fmt"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/pix-erase/internal/config"
)

// Producer represents a Kafka producer for task envelopes.
type Producer struct {
	Client   *wbfkafka.Producer
	strategy retry.Strategy
	cfg      *config.Kafka
}

// New creates a new Producer.
// - cfg: Kafka configuration struct
// - s: retry strategy
func New(cfg *config.Kafka, s retry.Strategy) *Producer {
	producer := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)

	return &Producer{
		Client:   producer,
		cfg:      cfg,
		strategy: s,
	}
}

// Produce sends a message to Kafka with retries. The task id is used as the
// message key for partitioning and ordering.
func (p *Producer) Produce(ctx context.Context, key, value []byte) error {
	if err := p.Client.SendWithRetry(ctx, p.strategy, key, value); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}
