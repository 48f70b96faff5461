package kafkax

import (
	"time"

	"github.com/segmentio/kafka-go"
)

type ReaderConfig struct {
	Brokers string
	GroupID string
	Topic   string
}

// NewReader returns a group reader. Callers fetch with FetchMessage and commit explicitly;
// CommitInterval only batches those commits.
func NewReader(cfg ReaderConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        SplitBrokers(cfg.Brokers),
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
}

// NewWriter returns a writer that routes by message key so events for one key stay ordered.
func NewWriter(brokers string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(SplitBrokers(brokers)...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}
