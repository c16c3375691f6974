package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/David567rs/LoginAna/internal/infra/config"
)

// Producer sends audit events asynchronously. Delivery failures are logged and counted;
// they never reach the flow that emitted the event.
type Producer struct {
	async    sarama.AsyncProducer
	logger   *zap.Logger
	prefix   string
	failures atomic.Int64
	drained  sync.WaitGroup
}

func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_5_0_0
	sc.ClientID = "login-ana"

	// Audit events tolerate leader-only acks.
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Flush.Frequency = 100 * time.Millisecond
	sc.Producer.Flush.Messages = 100
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Errors = true
	sc.Metadata.Retry.Max = 3
	sc.Metadata.Retry.Backoff = 250 * time.Millisecond

	async, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)
	return newProducer(async, cfg.TopicPrefix, logger), nil
}

func newProducer(async sarama.AsyncProducer, prefix string, logger *zap.Logger) *Producer {
	p := &Producer{
		async:  async,
		logger: logger,
		prefix: strings.Trim(strings.TrimSpace(prefix), "."),
	}
	p.drained.Add(1)
	go p.drainErrors()
	return p
}

// drainErrors runs until the sarama error channel is closed by Close.
func (p *Producer) drainErrors() {
	defer p.drained.Done()
	for perr := range p.async.Errors() {
		if perr == nil {
			continue
		}
		p.failures.Add(1)
		topic := ""
		if perr.Msg != nil {
			topic = perr.Msg.Topic
		}
		p.logger.Error("kafka delivery failed", zap.String("topic", topic), zap.Error(perr.Err))
	}
}

// Enqueue hands msg to sarama, giving up when ctx ends first.
func (p *Producer) Enqueue(ctx context.Context, msg *sarama.ProducerMessage) error {
	select {
	case p.async.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failures reports how many messages sarama gave up on since start.
func (p *Producer) Failures() int64 {
	return p.failures.Load()
}

// Close flushes pending messages and waits for the error loop to finish.
func (p *Producer) Close() error {
	p.logger.Info("closing kafka producer")
	err := p.async.Close()
	p.drained.Wait()
	if err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

// TopicName returns <prefix>.<eventType>, or eventType when no prefix is set.
func (p *Producer) TopicName(eventType string) string {
	if p.prefix == "" || strings.HasPrefix(eventType, p.prefix+".") {
		return eventType
	}
	return p.prefix + "." + eventType
}
