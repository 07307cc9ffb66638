package realtime

import (
	"context"
	"fmt"
	"time"

	"seatflow/pkg/logger"

	pubnub "github.com/pubnub/go"
)

// SeatUpdate is one seat status change pushed to seat map viewers
type SeatUpdate struct {
	Seat   string `json:"seat"`
	Status string `json:"status"`
}

// Broadcaster pushes seat status changes to connected clients
type Broadcaster interface {
	SeatsChanged(ctx context.Context, occurrenceID string, updates []SeatUpdate) error
}

// ChannelForOccurrence is the channel clients subscribe to for a seat map
func ChannelForOccurrence(occurrenceID string) string {
	return "seats-" + occurrenceID
}

type publishFunc func(channel string, message interface{}) error

// PubNubBroadcaster publishes seat updates over PubNub
type PubNubBroadcaster struct {
	publish publishFunc
	now     func() time.Time
}

// NewPubNubBroadcaster wraps a configured PubNub client
func NewPubNubBroadcaster(pn *pubnub.PubNub) *PubNubBroadcaster {
	return &PubNubBroadcaster{
		publish: func(channel string, message interface{}) error {
			_, _, err := pn.Publish().
				Channel(channel).
				Message(message).
				Execute()
			return err
		},
		now: time.Now,
	}
}

// NewPubNubClient builds a PubNub client from keys
func NewPubNubClient(publishKey, subscribeKey, secretKey, userID string) *pubnub.PubNub {
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = publishKey
	pnConfig.SubscribeKey = subscribeKey
	pnConfig.SecretKey = secretKey
	pnConfig.UUID = userID
	return pubnub.NewPubNub(pnConfig)
}

func (b *PubNubBroadcaster) SeatsChanged(ctx context.Context, occurrenceID string, updates []SeatUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	msg := map[string]interface{}{
		"type":          "seat_status",
		"occurrence_id": occurrenceID,
		"seats":         updates,
		"at":            b.now().UTC().Format(time.RFC3339),
	}
	if err := b.publish(ChannelForOccurrence(occurrenceID), msg); err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "seat broadcast failed", err, map[string]interface{}{
			"occurrence_id": occurrenceID,
		})
		return fmt.Errorf("publish seat update: %w", err)
	}
	return nil
}

// Nop discards updates
type Nop struct{}

func (Nop) SeatsChanged(context.Context, string, []SeatUpdate) error { return nil }
