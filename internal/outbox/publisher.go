package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Publisher writes entry events to Kafka, keeping one writer per topic.
// Events with the same key (the exercise name) land on the same partition.
type Publisher struct {
	brokers []string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewPublisher creates a Publisher for brokers. Writers are opened on first use.
func NewPublisher(brokers []string) *Publisher {
	return &Publisher{brokers: brokers, writers: map[string]*kafka.Writer{}}
}

// WriteMessages writes msgs to topic and waits for every in-sync replica.
func (p *Publisher) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return p.writer(topic).WriteMessages(ctx, msgs...)
}

func (p *Publisher) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}
	logger := log.WithFields(log.Fields{"component": "publisher", "topic": topic})
	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: 10 * time.Millisecond,
		ErrorLogger:  kafka.LoggerFunc(logger.Errorf),
	}
	p.writers[topic] = w
	logger.Debug("opened topic writer")
	return w
}

// Close flushes and closes every writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	for topic, w := range p.writers {
		if closeErr := w.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s writer: %w", topic, closeErr))
		}
	}
	p.writers = map[string]*kafka.Writer{}
	return err
}
