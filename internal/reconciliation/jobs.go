package reconciliation

import (
	"context"
	"errors"
	"time"

	"seatflow/internal/shared/config"
	"seatflow/internal/shared/constants"
	"seatflow/pkg/logger"
	"seatflow/pkg/redislock"
)

type settler interface {
	ReconcileStale(ctx context.Context, maxAge time.Duration, limit int) (int, error)
	RetryDeliveries(ctx context.Context, limit int) (int, error)
}

// JobProcessor runs the stale order reconciler and the delivery outbox retry
type JobProcessor struct {
	service settler
	locker  redislock.Locker
	config  config.JobsConfig
	done    chan struct{}
}

func NewJobProcessor(service settler, locker redislock.Locker, cfg config.JobsConfig) *JobProcessor {
	return &JobProcessor{
		service: service,
		locker:  locker,
		config:  cfg.WithDefaults(),
		done:    make(chan struct{}),
	}
}

// Start launches both job loops
func (jp *JobProcessor) Start(ctx context.Context) {
	go jp.loop(ctx, jp.config.PendingOrderInterval, jp.ReconcileStaleOnce)
	go jp.loop(ctx, jp.config.DeliveryRetryInterval, jp.RetryDeliveriesOnce)

	logger.GetDefault().Info("Order jobs started",
		"pending_order_interval", jp.config.PendingOrderInterval.String(),
		"delivery_retry_interval", jp.config.DeliveryRetryInterval.String())
}

// Stop stops both loops
func (jp *JobProcessor) Stop() {
	close(jp.done)
	logger.GetDefault().Info("Order jobs stopped")
}

func (jp *JobProcessor) loop(ctx context.Context, interval time.Duration, run func(context.Context) int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			run(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ReconcileStaleOnce settles abandoned PENDING_PAYMENT orders
func (jp *JobProcessor) ReconcileStaleOnce(ctx context.Context) int {
	return jp.withLock(ctx, constants.LOCK_KEY_PENDING_ORDERS, func() (int, error) {
		return jp.service.ReconcileStale(ctx, jp.config.PendingOrderMaxAge, jp.config.BatchSize)
	}, "Reconciled stale orders")
}

// RetryDeliveriesOnce republishes paid orders stuck in the outbox
func (jp *JobProcessor) RetryDeliveriesOnce(ctx context.Context) int {
	return jp.withLock(ctx, constants.LOCK_KEY_DELIVERY_RETRIES, func() (int, error) {
		return jp.service.RetryDeliveries(ctx, jp.config.BatchSize)
	}, "Republished delivery requests")
}

func (jp *JobProcessor) withLock(ctx context.Context, key string, run func() (int, error), doneMsg string) int {
	lock, err := jp.locker.Obtain(ctx, key, jp.config.LockTTL)
	if err != nil {
		if !errors.Is(err, redislock.ErrNotObtained) {
			logger.GetDefault().ErrorWithContext(ctx, "failed to obtain job lock", err, map[string]interface{}{"key": key})
		}
		return 0
	}
	defer lock.Release(ctx)

	n, err := run()
	if err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "order job failed", err, map[string]interface{}{"key": key})
	}
	if n > 0 {
		logger.GetDefault().InfoWithContext(ctx, doneMsg, map[string]interface{}{"count": n})
	}
	return n
}

// GetJobStatus returns the status of the order jobs
func (jp *JobProcessor) GetJobStatus() map[string]interface{} {
	return map[string]interface{}{
		"pending_order_interval":  jp.config.PendingOrderInterval.String(),
		"pending_order_max_age":   jp.config.PendingOrderMaxAge.String(),
		"delivery_retry_interval": jp.config.DeliveryRetryInterval.String(),
		"batch_size":              jp.config.BatchSize,
		"status":                  "running",
	}
}
