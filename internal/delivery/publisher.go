package delivery

import (
	"context"
	"fmt"
	"time"

	"seatflow/internal/shared/config"
	"seatflow/pkg/logger"
	"seatflow/pkg/metrics"

	"github.com/IBM/sarama"
)

// Publisher hands delivery requests to the delivery worker
type Publisher interface {
	Publish(ctx context.Context, req *Request) error
	Close() error
}

// KafkaPublisher publishes delivery requests to a Kafka topic
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher creates an idempotent sync producer for the delivery topic
func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Retry.Max = cfg.MaxRetries
	saramaConfig.Producer.Timeout = 10 * time.Second
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	// Same order always lands on the same partition
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.GetDefault().Info("kafka delivery producer created", "brokers", cfg.Brokers, "topic", cfg.DeliveryTopic)
	return NewKafkaPublisherWithProducer(producer, cfg.DeliveryTopic), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, req *Request) error {
	payload, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal delivery request: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(req.PartitionKey()),
		Value:     sarama.ByteEncoder(payload),
		Headers:   p.headers(req),
		Timestamp: req.RequestedAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		metrics.RecordDelivery("publish", "error")
		return fmt.Errorf("failed to send delivery request to Kafka: %w", err)
	}

	metrics.RecordDelivery("publish", "ok")
	logger.GetDefault().InfoWithContext(ctx, "delivery request published", map[string]interface{}{
		"order_id":  req.OrderID.String(),
		"topic":     p.topic,
		"partition": partition,
		"offset":    offset,
	})
	return nil
}

func (p *KafkaPublisher) headers(req *Request) []sarama.RecordHeader {
	return []sarama.RecordHeader{
		{Key: []byte("order_id"), Value: []byte(req.OrderID.String())},
		{Key: []byte("order_reference"), Value: []byte(req.Reference)},
		{Key: []byte("occurrence_id"), Value: []byte(req.OccurrenceID.String())},
		{Key: []byte("version"), Value: []byte("1")},
		{Key: []byte("producer"), Value: []byte("seatflow-reconciler")},
	}
}

func (p *KafkaPublisher) Close() error {
	if p.producer == nil {
		return nil
	}
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	logger.GetDefault().Info("kafka delivery producer closed")
	return nil
}

// InlinePublisher hands requests straight to the delivery handler; used when
// Kafka is disabled
type InlinePublisher struct {
	handler requestHandler
}

func NewInlinePublisher(handler requestHandler) *InlinePublisher {
	return &InlinePublisher{handler: handler}
}

func (p *InlinePublisher) Publish(ctx context.Context, req *Request) error {
	if err := p.handler.Handle(ctx, req); err != nil {
		metrics.RecordDelivery("publish", "error")
		return fmt.Errorf("inline delivery failed: %w", err)
	}
	metrics.RecordDelivery("publish", "inline")
	logger.GetDefault().InfoWithContext(ctx, "delivery handled inline", map[string]interface{}{
		"order_id":  req.OrderID.String(),
		"reference": req.Reference,
		"tickets":   len(req.Tickets),
	})
	return nil
}

func (p *InlinePublisher) Close() error { return nil }
