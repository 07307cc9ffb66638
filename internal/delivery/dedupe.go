package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"seatflow/internal/shared/constants"

	"github.com/redis/go-redis/v9"
)

// ClaimState is the outcome of trying to claim an order for delivery
type ClaimState int

const (
	ClaimAcquired ClaimState = iota
	ClaimInFlight
	ClaimDone
)

const (
	markerInFlight = "in_flight"
	markerDone     = "done"
)

// Deduper makes delivery of one order happen once across redeliveries
type Deduper interface {
	Claim(ctx context.Context, orderID string) (ClaimState, error)
	Complete(ctx context.Context, orderID string) error
	Abort(ctx context.Context, orderID string) error
}

// RedisDeduper keeps delivery markers in Redis
type RedisDeduper struct {
	client  *redis.Client
	doneTTL time.Duration
}

// NewRedisDeduper remembers finished deliveries for doneTTL (30 days when zero)
func NewRedisDeduper(client *redis.Client, doneTTL time.Duration) *RedisDeduper {
	if doneTTL <= 0 {
		doneTTL = constants.TTL_DELIVERY_DONE
	}
	return &RedisDeduper{client: client, doneTTL: doneTTL}
}

func (d *RedisDeduper) Claim(ctx context.Context, orderID string) (ClaimState, error) {
	key := constants.BuildDeliveryDoneKey(orderID)
	ok, err := d.client.SetNX(ctx, key, markerInFlight, constants.TTL_DELIVERY_IN_FLIGHT).Result()
	if err != nil {
		return ClaimInFlight, fmt.Errorf("delivery claim failed: %w", err)
	}
	if ok {
		return ClaimAcquired, nil
	}

	marker, err := d.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls; let the redelivery pick it up
		return ClaimInFlight, nil
	}
	if err != nil {
		return ClaimInFlight, fmt.Errorf("delivery marker read failed: %w", err)
	}
	if marker == markerDone {
		return ClaimDone, nil
	}
	return ClaimInFlight, nil
}

func (d *RedisDeduper) Complete(ctx context.Context, orderID string) error {
	key := constants.BuildDeliveryDoneKey(orderID)
	return d.client.Set(ctx, key, markerDone, d.doneTTL).Err()
}

func (d *RedisDeduper) Abort(ctx context.Context, orderID string) error {
	return d.client.Del(ctx, constants.BuildDeliveryDoneKey(orderID)).Err()
}

// LocalDeduper keeps markers in process memory
type LocalDeduper struct {
	mu      sync.Mutex
	markers map[string]string
}

func NewLocalDeduper() *LocalDeduper {
	return &LocalDeduper{markers: make(map[string]string)}
}

func (d *LocalDeduper) Claim(_ context.Context, orderID string) (ClaimState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.markers[orderID] {
	case markerDone:
		return ClaimDone, nil
	case markerInFlight:
		return ClaimInFlight, nil
	}
	d.markers[orderID] = markerInFlight
	return ClaimAcquired, nil
}

func (d *LocalDeduper) Complete(_ context.Context, orderID string) error {
	d.mu.Lock()
	d.markers[orderID] = markerDone
	d.mu.Unlock()
	return nil
}

func (d *LocalDeduper) Abort(_ context.Context, orderID string) error {
	d.mu.Lock()
	delete(d.markers, orderID)
	d.mu.Unlock()
	return nil
}
