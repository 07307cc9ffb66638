package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"seatflow/internal/orders"
	"seatflow/internal/shared/config"
	"seatflow/internal/shared/constants"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() *Request {
	paidAt := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	order := &orders.Order{
		ID:           uuid.New(),
		Reference:    "ORD-20260301-ABC123",
		Email:        "buyer@example.com",
		OccurrenceID: uuid.New(),
		Currency:     "EUR",
		Total:        decimal.RequireFromString("45.00"),
		PaidAt:       &paidAt,
		Items: []orders.OrderItem{
			{TicketID: uuid.New(), Seat: "A-1", Category: "Standard", Price: decimal.RequireFromString("20.00")},
			{TicketID: uuid.New(), Seat: "A-2", Category: "Premium", Price: decimal.RequireFromString("25.00")},
		},
	}
	return NewRequest(order, paidAt.Add(time.Second))
}

func TestNewRequestCopiesOrder(t *testing.T) {
	req := sampleRequest()

	assert.Equal(t, "buyer@example.com", req.Email)
	require.Len(t, req.Tickets, 2)
	assert.Equal(t, "A-2", req.Tickets[1].Seat)
	assert.Equal(t, req.OrderID.String(), req.PartitionKey())
	assert.False(t, req.PaidAt.IsZero())
}

func TestKafkaPublisherSendsRequest(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	req := sampleRequest()

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var decoded Request
		if err := json.Unmarshal(value, &decoded); err != nil {
			return err
		}
		if decoded.OrderID != req.OrderID || len(decoded.Tickets) != 2 {
			return errors.New("unexpected payload")
		}
		return nil
	})

	p := NewKafkaPublisherWithProducer(producer, "ticket-delivery")
	require.NoError(t, p.Publish(context.Background(), req))
	require.NoError(t, p.Close())
}

func TestKafkaPublisherSurfacesSendError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisherWithProducer(producer, "ticket-delivery")
	err := p.Publish(context.Background(), sampleRequest())

	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestRenderTicketsPDF(t *testing.T) {
	pdf, err := RenderTicketsPDF(sampleRequest())

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestRenderTicketsPDFWithoutTickets(t *testing.T) {
	req := sampleRequest()
	req.Tickets = nil

	_, err := RenderTicketsPDF(req)
	assert.Error(t, err)
}

func TestTicketEmail(t *testing.T) {
	req := sampleRequest()
	msg, err := TicketEmail(req, []byte("%PDF-1.3"))

	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", msg.To)
	assert.Contains(t, msg.Subject, req.Reference)
	assert.Contains(t, msg.HTMLBody, "A-1")
	assert.Contains(t, msg.HTMLBody, "45.00 EUR")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "application/pdf", msg.Attachments[0].MimeType)
}

func TestSMTPMailerBuildMessage(t *testing.T) {
	m := NewSMTPMailer(config.EmailConfig{FromEmail: "tickets@seatflow.local", FromName: "Seatflow"})
	m.now = func() time.Time { return time.Unix(1700000000, 0) }

	raw := string(m.buildMessage(&Message{
		To:          "buyer@example.com",
		Subject:     "Your tickets",
		HTMLBody:    "<p>hi</p>",
		Attachments: []Attachment{{Filename: "t.pdf", MimeType: "application/pdf", Data: bytes.Repeat([]byte("x"), 200)}},
	}))

	assert.Contains(t, raw, "From: Seatflow <tickets@seatflow.local>\r\n")
	assert.Contains(t, raw, "multipart/mixed; boundary=boundary_1700000000000000000")
	assert.Contains(t, raw, "Content-Disposition: attachment; filename=\"t.pdf\"")
	assert.True(t, strings.HasSuffix(raw, "--boundary_1700000000000000000--\r\n"))
	for _, line := range strings.Split(raw, "\r\n") {
		assert.LessOrEqual(t, len(line), 998)
	}
}

func TestNewMailerFallsBackToLog(t *testing.T) {
	assert.IsType(t, &LogMailer{}, NewMailer(config.EmailConfig{}))
	assert.IsType(t, &SMTPMailer{}, NewMailer(config.EmailConfig{SMTPHost: "smtp.example.com"}))
}

func TestRedisDeduper(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	d := NewRedisDeduper(rdb, 0)
	ctx := context.Background()
	key := constants.BuildDeliveryDoneKey("order-1")

	mock.ExpectSetNX(key, markerInFlight, constants.TTL_DELIVERY_IN_FLIGHT).SetVal(true)
	mock.ExpectSet(key, markerDone, constants.TTL_DELIVERY_DONE).SetVal("OK")
	mock.ExpectSetNX(key, markerInFlight, constants.TTL_DELIVERY_IN_FLIGHT).SetVal(false)
	mock.ExpectGet(key).SetVal(markerDone)

	state, err := d.Claim(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, ClaimAcquired, state)
	require.NoError(t, d.Complete(ctx, "order-1"))

	state, err = d.Claim(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, ClaimDone, state)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisDeduperInFlight(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	d := NewRedisDeduper(rdb, 0)
	key := constants.BuildDeliveryDoneKey("order-2")

	mock.ExpectSetNX(key, markerInFlight, constants.TTL_DELIVERY_IN_FLIGHT).SetVal(false)
	mock.ExpectGet(key).SetVal(markerInFlight)
	mock.ExpectDel(key).SetVal(1)

	state, err := d.Claim(context.Background(), "order-2")
	require.NoError(t, err)
	assert.Equal(t, ClaimInFlight, state)
	require.NoError(t, d.Abort(context.Background(), "order-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

type recordingMailer struct {
	sent []*Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg *Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestHandlerDeliversOnce(t *testing.T) {
	mailer := &recordingMailer{}
	h := NewHandler(NewLocalDeduper(), mailer)
	req := sampleRequest()

	require.NoError(t, h.Handle(context.Background(), req))
	require.NoError(t, h.Handle(context.Background(), req))

	assert.Len(t, mailer.sent, 1)
}

func TestHandlerReleasesClaimOnFailure(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp down")}
	h := NewHandler(NewLocalDeduper(), mailer)
	req := sampleRequest()

	require.Error(t, h.Handle(context.Background(), req))

	mailer.err = nil
	require.NoError(t, h.Handle(context.Background(), req))
	assert.Len(t, mailer.sent, 1)
}

func TestHandlerInFlight(t *testing.T) {
	dedupe := NewLocalDeduper()
	req := sampleRequest()
	_, err := dedupe.Claim(context.Background(), req.OrderID.String())
	require.NoError(t, err)

	h := NewHandler(dedupe, &recordingMailer{})
	assert.ErrorIs(t, h.Handle(context.Background(), req), ErrInFlight)
}

type flakyHandler struct {
	failures int
	calls    int
}

func (f *flakyHandler) Handle(context.Context, *Request) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("temporary")
	}
	return nil
}

func TestGroupHandlerRetries(t *testing.T) {
	inner := &flakyHandler{failures: 2}
	h := newGroupHandler(0, inner, 3, time.Millisecond)
	payload, err := sampleRequest().ToJSON()
	require.NoError(t, err)

	err = h.processMessage(context.Background(), &sarama.ConsumerMessage{Value: payload})

	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestGroupHandlerGivesUp(t *testing.T) {
	inner := &flakyHandler{failures: 10}
	h := newGroupHandler(0, inner, 1, time.Millisecond)
	payload, err := sampleRequest().ToJSON()
	require.NoError(t, err)

	err = h.processMessage(context.Background(), &sarama.ConsumerMessage{Value: payload})

	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestGroupHandlerDropsMalformed(t *testing.T) {
	inner := &flakyHandler{}
	h := newGroupHandler(0, inner, 3, time.Millisecond)

	err := h.processMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte("{not json")})

	assert.NoError(t, err)
	assert.Zero(t, inner.calls)
}
