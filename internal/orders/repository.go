package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seatflow/internal/seats"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	// CreateWithClaims claims every ticket for the order and inserts it in one
	// transaction. A ticket is claimable when free, lapsed, or held by one of
	// holders. The first ticket that cannot be claimed aborts everything with
	// ErrSeatUnavailable.
	CreateWithClaims(ctx context.Context, order *Order, tickets []seats.Ticket, holders []string, now time.Time) error
	AttachPaymentSession(ctx context.Context, orderID uuid.UUID, sessionID, url string) error
	GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error)
	GetByReference(ctx context.Context, reference string) (*Order, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, query ListQuery) ([]Order, int64, error)

	// MarkPaid: PENDING_PAYMENT -> PAID, tickets ORDERED -> PAID, delivery PENDING.
	// Returns the tickets and whether this call made the transition.
	MarkPaid(ctx context.Context, orderID uuid.UUID, now time.Time) ([]seats.Ticket, bool, error)
	// MarkCanceled: PENDING_PAYMENT -> CANCELED, tickets ORDERED -> FREE
	MarkCanceled(ctx context.Context, orderID uuid.UUID, reason string, now time.Time) ([]seats.Ticket, bool, error)
	MarkDeliveryRequested(ctx context.Context, orderID uuid.UUID) error
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]Order, error)
	ListPendingDelivery(ctx context.Context, limit int) ([]Order, error)
}

type PostgresRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateWithClaims(ctx context.Context, order *Order, tickets []seats.Ticket, holders []string, now time.Time) error {
	if len(holders) == 0 {
		holders = []string{order.AccountID.String()}
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range tickets {
			res := tx.Model(&seats.Ticket{}).
				Where("id = ?", t.ID).
				Where("status = ? OR (status = ? AND (hold_expires_at <= ? OR held_by IN ?))",
					seats.StatusFree, seats.StatusHeld, now, holders).
				Updates(map[string]interface{}{
					"status":          seats.StatusOrdered,
					"order_id":        order.ID,
					"held_by":         nil,
					"hold_expires_at": nil,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to claim ticket: %w", res.Error)
			}
			if res.RowsAffected != 1 {
				return ErrSeatUnavailable.WithField("seat", t.Key().String())
			}
		}

		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) AttachPaymentSession(ctx context.Context, orderID uuid.UUID, sessionID, url string) error {
	res := r.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ?", orderID, StatusPendingPayment).
		Updates(map[string]interface{}{
			"payment_session_id": sessionID,
			"payment_url":        url,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to attach payment session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return r.first(ctx, "id = ?", orderID)
}

func (r *PostgresRepository) GetByReference(ctx context.Context, reference string) (*Order, error) {
	return r.first(ctx, "reference = ?", reference)
}

func (r *PostgresRepository) first(ctx context.Context, query string, args ...interface{}) (*Order, error) {
	var order Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("seat") }).
		Where(query, args...).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, query ListQuery) ([]Order, int64, error) {
	var orders []Order
	var totalCount int64

	query = query.WithDefaults()

	baseQuery := r.db.WithContext(ctx).Model(&Order{}).Where("account_id = ?", accountID)
	if query.Status != "" {
		baseQuery = baseQuery.Where("status = ?", query.Status)
	}

	if err := baseQuery.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	offset := (query.Page - 1) * query.Limit
	err := baseQuery.
		Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(query.Limit).
		Find(&orders).Error

	return orders, totalCount, err
}

func (r *PostgresRepository) MarkPaid(ctx context.Context, orderID uuid.UUID, now time.Time) ([]seats.Ticket, bool, error) {
	var paid []seats.Ticket
	transitioned := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Order{}).
			Where("id = ? AND status = ?", orderID, StatusPendingPayment).
			Updates(map[string]interface{}{
				"status":          StatusPaid,
				"paid_at":         now,
				"delivery_status": DeliveryPending,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var items int64
		if err := tx.Model(&OrderItem{}).Where("order_id = ?", orderID).Count(&items).Error; err != nil {
			return err
		}
		if err := tx.Model(&paid).
			Clauses(clause.Returning{}).
			Where("order_id = ? AND status = ?", orderID, seats.StatusOrdered).
			Update("status", seats.StatusPaid).Error; err != nil {
			return err
		}
		if int64(len(paid)) != items {
			return ErrTicketMismatch.WithField("order_id", orderID.String()).
				WithField("expected", items).WithField("updated", len(paid))
		}
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return paid, transitioned, nil
}

func (r *PostgresRepository) MarkCanceled(ctx context.Context, orderID uuid.UUID, reason string, now time.Time) ([]seats.Ticket, bool, error) {
	var freed []seats.Ticket
	transitioned := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Order{}).
			Where("id = ? AND status = ?", orderID, StatusPendingPayment).
			Updates(map[string]interface{}{
				"status":        StatusCanceled,
				"cancel_reason": reason,
				"canceled_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var items int64
		if err := tx.Model(&OrderItem{}).Where("order_id = ?", orderID).Count(&items).Error; err != nil {
			return err
		}
		if err := tx.Model(&freed).
			Clauses(clause.Returning{}).
			Where("order_id = ? AND status = ?", orderID, seats.StatusOrdered).
			Updates(map[string]interface{}{
				"status":   seats.StatusFree,
				"order_id": nil,
			}).Error; err != nil {
			return err
		}
		if int64(len(freed)) != items {
			return ErrTicketMismatch.WithField("order_id", orderID.String()).
				WithField("expected", items).WithField("updated", len(freed))
		}
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return freed, transitioned, nil
}

func (r *PostgresRepository) MarkDeliveryRequested(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ? AND delivery_status = ?", orderID, StatusPaid, DeliveryPending).
		Update("delivery_status", DeliveryRequested).Error
}

func (r *PostgresRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]Order, error) {
	var orders []Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", StatusPendingPayment, createdBefore).
		Order("created_at").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *PostgresRepository) ListPendingDelivery(ctx context.Context, limit int) ([]Order, error) {
	var orders []Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND delivery_status = ?", StatusPaid, DeliveryPending).
		Order("paid_at").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
