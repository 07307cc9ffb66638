package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	channel string
	message interface{}
	calls   int
	err     error
}

func (c *capture) publish(channel string, message interface{}) error {
	c.calls++
	c.channel = channel
	c.message = message
	return c.err
}

func TestSeatsChangedPublishesToOccurrenceChannel(t *testing.T) {
	pub := &capture{}
	b := &PubNubBroadcaster{publish: pub.publish, now: func() time.Time { return time.Unix(0, 0) }}

	err := b.SeatsChanged(context.Background(), "occ-1", []SeatUpdate{{Seat: "h1/A/1/1", Status: "HELD"}})
	require.NoError(t, err)

	assert.Equal(t, "seats-occ-1", pub.channel)
	msg := pub.message.(map[string]interface{})
	assert.Equal(t, "occ-1", msg["occurrence_id"])
	assert.Equal(t, []SeatUpdate{{Seat: "h1/A/1/1", Status: "HELD"}}, msg["seats"])
}

func TestSeatsChangedSkipsEmpty(t *testing.T) {
	pub := &capture{}
	b := &PubNubBroadcaster{publish: pub.publish, now: time.Now}

	require.NoError(t, b.SeatsChanged(context.Background(), "occ-1", nil))
	assert.Zero(t, pub.calls)
}

func TestSeatsChangedReturnsPublishError(t *testing.T) {
	pub := &capture{err: errors.New("403 forbidden")}
	b := &PubNubBroadcaster{publish: pub.publish, now: time.Now}

	err := b.SeatsChanged(context.Background(), "occ-1", []SeatUpdate{{Seat: "x", Status: "FREE"}})
	assert.Error(t, err)
}
