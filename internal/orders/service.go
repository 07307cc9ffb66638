package orders

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"seatflow/internal/holds"
	"seatflow/internal/payments"
	"seatflow/internal/promocodes"
	"seatflow/internal/seats"
	"seatflow/internal/shared/apperr"
	"seatflow/internal/shared/clock"
	"seatflow/internal/shared/config"
	"seatflow/internal/users"
	"seatflow/pkg/logger"
	"seatflow/pkg/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const abandonTimeout = 10 * time.Second

type ticketResolver interface {
	ResolveTickets(ctx context.Context, occurrenceID uuid.UUID, keys []seats.SeatKey) ([]seats.Ticket, error)
}

type changeNotifier interface {
	SeatsChanged(ctx context.Context, occurrenceID uuid.UUID, status seats.Status, keys ...seats.SeatKey)
}

type holdTransferrer interface {
	Transfer(ctx context.Context, from, to string) (*holds.TransferResult, error)
}

type promoValidator interface {
	Validate(ctx context.Context, code string, ticketCount int, occurrenceID uuid.UUID) (*promocodes.Validation, error)
}

type accountResolver interface {
	Resolve(ctx context.Context, email string) (*users.User, error)
}

// CreateOrderInput is a validated order request
type CreateOrderInput struct {
	OccurrenceID uuid.UUID
	Seats        []seats.SeatKey
	PromoCode    string
	Email        string
}

// Service converts hold sets into priced orders
type Service struct {
	repo      Repository
	inventory ticketResolver
	notifier  changeNotifier
	holds     holdTransferrer
	promos    promoValidator
	accounts  accountResolver
	payments  payments.Authority
	clock     clock.Clock
	config    *config.Config
}

func NewService(
	repo Repository,
	inventory ticketResolver,
	notifier changeNotifier,
	holdManager holdTransferrer,
	promos promoValidator,
	accounts accountResolver,
	authority payments.Authority,
	clk clock.Clock,
	cfg *config.Config,
) *Service {
	return &Service{
		repo:      repo,
		inventory: inventory,
		notifier:  notifier,
		holds:     holdManager,
		promos:    promos,
		accounts:  accounts,
		payments:  authority,
		clock:     clk,
		config:    cfg,
	}
}

// CreateOrder claims the seats for the account behind input.Email, prices
// them and opens a payment session. Either every seat ends ORDERED under the
// new order with a reachable payment session, or nothing changes.
func (s *Service) CreateOrder(ctx context.Context, identity string, input CreateOrderInput) (*OrderResponse, error) {
	// Step 1: resolve the durable account
	account, err := s.accounts.Resolve(ctx, input.Email)
	if err != nil {
		metrics.RecordOrder("identity_unresolved")
		return nil, err
	}
	accountID := account.ID.String()

	// Step 2: validate seats and read prices
	if len(input.Seats) == 0 {
		return nil, apperr.Validation(apperr.CodeInvalidSeat, "at least one seat is required")
	}
	if limit := s.config.Booking.MaxSeatsPerOrder; limit > 0 && len(input.Seats) > limit {
		return nil, apperr.Validation(apperr.CodeInvalidSeat, fmt.Sprintf("at most %d seats per order", limit))
	}
	tickets, err := s.inventory.ResolveTickets(ctx, input.OccurrenceID, input.Seats)
	if err != nil {
		return nil, err
	}

	// Step 3: price
	discount := decimal.Zero
	var promoCode *string
	if input.PromoCode != "" {
		validation, err := s.promos.Validate(ctx, input.PromoCode, len(tickets), input.OccurrenceID)
		if err != nil {
			metrics.RecordOrder("promo_rejected")
			return nil, err
		}
		discount = validation.DiscountPercent
		promoCode = &validation.Code
	}
	quote, err := Price(tickets, discount, s.config.Booking.ServiceFeePercent)
	if err != nil {
		return nil, err
	}

	// Step 4: claim and persist atomically
	now := s.clock.Now()
	reference, err := generateOrderReference(now)
	if err != nil {
		return nil, apperr.Fatal("failed to generate order reference", err)
	}
	order := &Order{
		ID:              uuid.New(),
		Reference:       reference,
		AccountID:       account.ID,
		Email:           account.Email,
		OccurrenceID:    input.OccurrenceID,
		Currency:        quote.Currency,
		Subtotal:        quote.Subtotal,
		DiscountPercent: quote.DiscountPercent,
		DiscountAmount:  quote.DiscountAmount,
		ServiceFee:      quote.ServiceFee,
		Total:           quote.Total,
		PromoCode:       promoCode,
		Status:          StatusPendingPayment,
		DeliveryStatus:  DeliveryNone,
	}
	for _, t := range tickets {
		order.Items = append(order.Items, OrderItem{
			ID:           uuid.New(),
			OrderID:      order.ID,
			TicketID:     t.ID,
			OccurrenceID: t.OccurrenceID,
			Seat:         t.Key().String(),
			Category:     t.Category,
			Price:        t.Price,
		})
	}

	// holds of the caller's session count as the account's own until the
	// order exists; the cart moves only once nothing can be rejected
	holders := []string{accountID}
	if identity != "" && identity != accountID {
		holders = append(holders, identity)
	}
	if err := s.repo.CreateWithClaims(ctx, order, tickets, holders, now); err != nil {
		if errors.Is(err, ErrSeatUnavailable) {
			metrics.RecordOrder("seat_unavailable")
			return nil, err
		}
		metrics.RecordOrder("error")
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to create order", err)
	}
	s.notifier.SeatsChanged(ctx, input.OccurrenceID, seats.StatusOrdered, input.Seats...)
	if len(holders) > 1 {
		if _, err := s.holds.Transfer(ctx, identity, accountID); err != nil {
			logger.GetDefault().ErrorWithContext(ctx, "failed to move remaining holds to account", err, map[string]interface{}{
				"order_id": order.ID.String(),
			})
		}
	}

	// Step 5: open the payment session, or undo the order
	session, err := s.payments.CreateSession(ctx, payments.SessionRequest{
		OrderID:     order.ID,
		OrderRef:    order.Reference,
		Amount:      order.Total,
		Currency:    order.Currency,
		Email:       order.Email,
		Description: fmt.Sprintf("%d tickets", len(order.Items)),
	})
	if err == nil {
		err = s.repo.AttachPaymentSession(ctx, order.ID, session.ID, session.URL)
	}
	if err != nil {
		s.abandon(ctx, order)
		metrics.RecordOrder("payment_unavailable")
		return nil, apperr.Transient(apperr.CodePaymentUnavailable, "payment provider unavailable, please retry", err)
	}
	order.PaymentSessionID = &session.ID
	order.PaymentURL = session.URL

	metrics.RecordOrder("created")
	logger.GetDefault().LogOrderCreated(ctx, order.ID.String(), input.OccurrenceID.String(), accountID, len(order.Items))

	return toOrderResponse(order, quote), nil
}

// abandon cancels an order that never got a usable payment session. It
// outlives the request context, which is often why the session failed.
func (s *Service) abandon(ctx context.Context, order *Order) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abandonTimeout)
	defer cancel()

	freed, _, err := s.repo.MarkCanceled(ctx, order.ID, CancelPaymentSessionFailed, s.clock.Now())
	if err != nil {
		// left PENDING_PAYMENT for the stale order job to reconcile
		logger.GetDefault().ErrorWithContext(ctx, "failed to cancel order without payment session", err, map[string]interface{}{
			"order_id": order.ID.String(),
		})
		return
	}
	keys := make([]seats.SeatKey, len(freed))
	for i, t := range freed {
		keys[i] = t.Key()
	}
	s.notifier.SeatsChanged(ctx, order.OccurrenceID, seats.StatusFree, keys...)
}

// GetOrder returns an order owned by accountID
func (s *Service) GetOrder(ctx context.Context, accountID, orderID uuid.UUID) (*Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to load order", err)
	}
	if order.AccountID != accountID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders pages the orders of an account, newest first
func (s *Service) ListOrders(ctx context.Context, accountID uuid.UUID, query ListQuery) (*OrderListResponse, error) {
	query = query.WithDefaults()
	orders, total, err := s.repo.ListByAccount(ctx, accountID, query)
	if err != nil {
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to list orders", err)
	}
	return &OrderListResponse{Orders: orders, TotalCount: total, Page: query.Page, Limit: query.Limit}, nil
}

func toOrderResponse(order *Order, quote Quote) *OrderResponse {
	seatList := make([]string, len(order.Items))
	for i, item := range order.Items {
		seatList[i] = item.Seat
	}
	return &OrderResponse{
		OrderID:      order.ID.String(),
		Reference:    order.Reference,
		Status:       order.Status,
		OccurrenceID: order.OccurrenceID.String(),
		Seats:        seatList,
		Quote:        quote,
		PaymentURL:   order.PaymentURL,
		Total:        order.Total,
		CreatedAt:    order.CreatedAt,
	}
}

// generateOrderReference builds ORD-YYYYMMDD-XXXXXX
func generateOrderReference(now time.Time) (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	randomPart := make([]byte, 6)

	for i := range randomPart {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		randomPart[i] = letters[num.Int64()]
	}

	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), string(randomPart)), nil
}
