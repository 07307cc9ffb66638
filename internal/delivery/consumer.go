package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"seatflow/internal/shared/config"
	"seatflow/pkg/logger"
	"seatflow/pkg/metrics"

	"github.com/IBM/sarama"
)

// requestHandler is satisfied by *Handler
type requestHandler interface {
	Handle(ctx context.Context, req *Request) error
}

// Consumer runs a pool of consumer group members reading delivery requests
type Consumer struct {
	groups  []sarama.ConsumerGroup
	topics  []string
	handler requestHandler
	config  config.KafkaConfig
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewConsumer joins cfg.Workers members to the delivery consumer group
func NewConsumer(cfg config.KafkaConfig, handler requestHandler) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Session.Timeout = 30 * time.Second
	saramaConfig.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	saramaConfig.Consumer.Retry.Backoff = 100 * time.Millisecond
	saramaConfig.Consumer.MaxProcessingTime = 5 * time.Minute
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = time.Second

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	groups := make([]sarama.ConsumerGroup, 0, workers)
	for i := 0; i < workers; i++ {
		group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
		if err != nil {
			for _, g := range groups {
				g.Close()
			}
			return nil, fmt.Errorf("failed to create consumer group: %w", err)
		}
		groups = append(groups, group)
	}

	return &Consumer{
		groups:  groups,
		topics:  []string{cfg.DeliveryTopic},
		handler: handler,
		config:  cfg,
	}, nil
}

// Start launches one consume loop per group member
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	logger.GetDefault().Info("starting delivery consumers", "workers", len(c.groups), "topics", c.topics)

	for i, group := range c.groups {
		c.wg.Add(2)
		go func(group sarama.ConsumerGroup) {
			defer c.wg.Done()
			for err := range group.Errors() {
				logger.GetDefault().WithError(err).Error("delivery consumer group error")
			}
		}(group)
		go func(workerID int, group sarama.ConsumerGroup) {
			defer c.wg.Done()
			c.runWorker(ctx, workerID, group)
		}(i, group)
	}
}

func (c *Consumer) runWorker(ctx context.Context, workerID int, group sarama.ConsumerGroup) {
	handler := newGroupHandler(workerID, c.handler, c.config.MaxRetries, c.config.RetryBackoff)
	for {
		if err := group.Consume(ctx, c.topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			logger.GetDefault().WithError(err).Error("delivery consume failed", "worker", workerID)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			logger.GetDefault().Info("delivery worker shutting down", "worker", workerID)
			return
		}
	}
}

// Stop leaves the group and waits for the workers
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	var firstErr error
	for _, group := range c.groups {
		if err := group.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close consumer group: %w", err)
		}
	}
	c.wg.Wait()
	logger.GetDefault().Info("delivery consumers stopped")
	return firstErr
}

// groupHandler implements sarama.ConsumerGroupHandler
type groupHandler struct {
	workerID   int
	handler    requestHandler
	maxRetries int
	backoff    time.Duration
}

func newGroupHandler(workerID int, handler requestHandler, maxRetries int, backoff time.Duration) *groupHandler {
	return &groupHandler{
		workerID:   workerID,
		handler:    handler,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	logger.GetDefault().Debug("delivery consumer session started", "worker", h.workerID)
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	logger.GetDefault().Debug("delivery consumer session ended", "worker", h.workerID)
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			if err := h.processMessage(session.Context(), message); err != nil {
				logger.GetDefault().WithError(err).Error("delivery message failed",
					"worker", h.workerID, "partition", message.Partition, "offset", message.Offset)
				continue
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// processMessage returns nil when the message can be committed
func (h *groupHandler) processMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	req, err := ParseRequest(message.Value)
	if err != nil {
		// poison message; retrying cannot fix it
		metrics.RecordDelivery("consume", "malformed")
		logger.GetDefault().WithError(err).Error("dropping malformed delivery message",
			"partition", message.Partition, "offset", message.Offset)
		return nil
	}
	return h.executeWithRetry(ctx, req)
}

func (h *groupHandler) executeWithRetry(ctx context.Context, req *Request) error {
	var err error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if err = h.handler.Handle(ctx, req); err == nil {
			return nil
		}
		if attempt == h.maxRetries {
			break
		}

		delay := h.backoff * time.Duration(1<<attempt)
		logger.GetDefault().Warn("retrying delivery", "order_id", req.OrderID.String(), "attempt", attempt+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("delivery of order %s failed after %d attempts: %w", req.Reference, h.maxRetries+1, err)
}
