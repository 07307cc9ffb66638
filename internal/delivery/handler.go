package delivery

import (
	"context"
	"errors"
	"fmt"

	"seatflow/pkg/logger"
	"seatflow/pkg/metrics"
)

// ErrInFlight means another worker is delivering the same order right now
var ErrInFlight = errors.New("delivery already in flight")

// Handler renders the tickets of a request and mails them to the buyer
type Handler struct {
	dedupe Deduper
	mailer Mailer
	render func(*Request) ([]byte, error)
}

func NewHandler(dedupe Deduper, mailer Mailer) *Handler {
	return &Handler{
		dedupe: dedupe,
		mailer: mailer,
		render: RenderTicketsPDF,
	}
}

// Handle delivers req at most once per order id. Redelivered requests for an
// order that already went out are acknowledged without sending again.
func (h *Handler) Handle(ctx context.Context, req *Request) error {
	orderID := req.OrderID.String()

	state, err := h.dedupe.Claim(ctx, orderID)
	if err != nil {
		return err
	}
	switch state {
	case ClaimDone:
		metrics.RecordDelivery("consume", "duplicate")
		logger.GetDefault().DebugWithContext(ctx, "delivery already done, skipping", map[string]interface{}{
			"order_id": orderID,
		})
		return nil
	case ClaimInFlight:
		return ErrInFlight
	}

	if err := h.deliver(ctx, req); err != nil {
		if abortErr := h.dedupe.Abort(ctx, orderID); abortErr != nil {
			logger.GetDefault().ErrorWithContext(ctx, "failed to release delivery claim", abortErr, map[string]interface{}{
				"order_id": orderID,
			})
		}
		metrics.RecordDelivery("consume", "error")
		return err
	}

	if err := h.dedupe.Complete(ctx, orderID); err != nil {
		// mail is out; a missing marker only risks a duplicate email
		logger.GetDefault().ErrorWithContext(ctx, "failed to mark delivery done", err, map[string]interface{}{
			"order_id": orderID,
		})
	}
	metrics.RecordDelivery("consume", "sent")
	return nil
}

func (h *Handler) deliver(ctx context.Context, req *Request) error {
	if req.Email == "" {
		return fmt.Errorf("order %s has no contact email", req.Reference)
	}
	pdf, err := h.render(req)
	if err != nil {
		return err
	}
	msg, err := TicketEmail(req, pdf)
	if err != nil {
		return err
	}
	return h.mailer.Send(ctx, msg)
}
