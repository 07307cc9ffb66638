package constants

import (
	"strconv"
	"time"
)

// Redis key and TTL configuration
// Pattern: seatflow:{module}:{operation}:{identifier}

// ================== CACHE TTL DURATIONS ==================

// Semi-Static Data (changes occasionally)
const (
	TTL_SEMI_STATIC_QUICK = 15 * time.Minute // 15 minutes - for promocode lookups
)

// Highly Dynamic (real-time sensitive)
const (
	TTL_REALTIME_SHORT = 30 * time.Second // 30 seconds - for seat availability snapshots
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "seatflow"
)

// ================== SEATS MODULE ==================

const (
	CACHE_KEY_SEATS_AVAILABILITY         = CACHE_PREFIX + ":seats:availability:"         // + occurrence-id + ":v" + version
	CACHE_KEY_SEATS_AVAILABILITY_VERSION = CACHE_PREFIX + ":seats:availability-version:" // + occurrence-id
)

const (
	TTL_SEATS_AVAILABILITY         = TTL_REALTIME_SHORT
	TTL_SEATS_AVAILABILITY_VERSION = 24 * time.Hour
)

// ================== PROMOCODES MODULE ==================

const (
	CACHE_KEY_PROMOCODE = CACHE_PREFIX + ":promocodes:code:" // + CODE
)

const (
	TTL_PROMOCODE = TTL_SEMI_STATIC_QUICK
)

// ================== JOBS MODULE ==================

// Distributed locks so only one replica runs each sweep
const (
	LOCK_KEY_HOLD_SWEEP       = CACHE_PREFIX + ":jobs:lock:hold_sweep"
	LOCK_KEY_PENDING_ORDERS   = CACHE_PREFIX + ":jobs:lock:pending_orders"
	LOCK_KEY_DELIVERY_RETRIES = CACHE_PREFIX + ":jobs:lock:delivery_retries"
)

// ================== DELIVERY MODULE ==================

const (
	KEY_DELIVERY_DONE = CACHE_PREFIX + ":delivery:done:" // + order-id
)

const (
	TTL_DELIVERY_IN_FLIGHT = 10 * time.Minute
	TTL_DELIVERY_DONE      = 30 * 24 * time.Hour
)

// ================== RATE LIMIT ==================

const (
	KEY_RATE_LIMIT_PREFIX = CACHE_PREFIX + ":ratelimit"
)

// ================== KEY BUILDERS ==================

func BuildSeatAvailabilityKey(occurrenceID string, version int64) string {
	return CACHE_KEY_SEATS_AVAILABILITY + occurrenceID + ":v" + strconv.FormatInt(version, 10)
}

// BuildSeatAvailabilityPattern matches every snapshot version of an occurrence
func BuildSeatAvailabilityPattern(occurrenceID string) string {
	return CACHE_KEY_SEATS_AVAILABILITY + occurrenceID + ":v*"
}

func BuildSeatAvailabilityVersionKey(occurrenceID string) string {
	return CACHE_KEY_SEATS_AVAILABILITY_VERSION + occurrenceID
}

func BuildPromocodeKey(code string) string {
	return CACHE_KEY_PROMOCODE + code
}

func BuildDeliveryDoneKey(orderID string) string {
	return KEY_DELIVERY_DONE + orderID
}

/*
INVALIDATION:

1. When any ticket of an occurrence changes status (hold, release, order, reconcile, sweep):
   - Delete: seatflow:seats:availability:<occurrence-id>

2. When a promocode is upserted:
   - Delete: seatflow:promocodes:code:<CODE>
*/
