package holds

import (
	"context"
	"errors"
	"time"

	"seatflow/internal/shared/constants"
	"seatflow/pkg/logger"
	"seatflow/pkg/redislock"
)

type sweeper interface {
	SweepExpired(ctx context.Context, limit int) (int, error)
}

// JobProcessor runs the expired hold sweeper
type JobProcessor struct {
	service sweeper
	locker  redislock.Locker
	config  *JobConfig
	done    chan struct{}
}

// JobConfig contains configuration for the sweeper
type JobConfig struct {
	SweepInterval time.Duration
	BatchSize     int
	LockTTL       time.Duration
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		SweepInterval: 1 * time.Minute,
		BatchSize:     100,
		LockTTL:       55 * time.Second,
	}
}

func NewJobProcessor(service sweeper, locker redislock.Locker, config *JobConfig) *JobProcessor {
	def := DefaultJobConfig()
	if config == nil {
		config = def
	}
	cfg := *config
	config = &cfg
	if config.SweepInterval <= 0 {
		config.SweepInterval = def.SweepInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.LockTTL <= 0 {
		config.LockTTL = def.LockTTL
	}
	return &JobProcessor{
		service: service,
		locker:  locker,
		config:  config,
		done:    make(chan struct{}),
	}
}

// Start launches the sweeper loop
func (jp *JobProcessor) Start(ctx context.Context) {
	go jp.startSweeper(ctx)
	logger.GetDefault().Info("Hold sweeper started", "interval", jp.config.SweepInterval.String())
}

// Stop stops the sweeper loop
func (jp *JobProcessor) Stop() {
	close(jp.done)
	logger.GetDefault().Info("Hold sweeper stopped")
}

func (jp *JobProcessor) startSweeper(ctx context.Context) {
	ticker := time.NewTicker(jp.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			jp.RunOnce(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce sweeps expired holds in batches until none are left, under the
// cluster-wide sweep lock. Returns the number of holds freed.
func (jp *JobProcessor) RunOnce(ctx context.Context) int {
	lock, err := jp.locker.Obtain(ctx, constants.LOCK_KEY_HOLD_SWEEP, jp.config.LockTTL)
	if err != nil {
		if !errors.Is(err, redislock.ErrNotObtained) {
			logger.GetDefault().ErrorWithContext(ctx, "failed to obtain hold sweep lock", err, nil)
		}
		return 0
	}
	defer lock.Release(ctx)

	total := 0
	for ctx.Err() == nil {
		n, err := jp.service.SweepExpired(ctx, jp.config.BatchSize)
		if err != nil {
			logger.GetDefault().ErrorWithContext(ctx, "Error sweeping expired holds", err, nil)
			break
		}
		total += n
		if n < jp.config.BatchSize {
			break
		}
	}

	if total > 0 {
		logger.GetDefault().InfoWithContext(ctx, "Swept expired holds", map[string]interface{}{"count": total})
	}
	return total
}

// GetJobStatus returns the status of the sweeper
func (jp *JobProcessor) GetJobStatus() map[string]interface{} {
	return map[string]interface{}{
		"sweep_interval": jp.config.SweepInterval.String(),
		"batch_size":     jp.config.BatchSize,
		"status":         "running",
	}
}
