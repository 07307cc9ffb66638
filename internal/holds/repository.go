package holds

import (
	"context"
	"fmt"
	"time"

	"seatflow/internal/seats"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store performs conditional writes on the hold columns of ticket rows.
// Every method is a single compare-and-set keyed on (status, held_by, hold_expires_at).
type Store interface {
	// AcquireHold: FREE, lapsed HELD or HELD by identity -> HELD(identity, expiresAt)
	AcquireHold(ctx context.Context, ticketID uuid.UUID, identity string, now, expiresAt time.Time) (bool, error)
	// ExtendHold: unexpired HELD(identity) -> HELD(identity, expiresAt)
	ExtendHold(ctx context.Context, ticketID uuid.UUID, identity string, now, expiresAt time.Time) (bool, error)
	// ReleaseHold: HELD(identity) -> FREE
	ReleaseHold(ctx context.Context, ticketID uuid.UUID, identity string) (bool, error)
	ReleaseAllHolds(ctx context.Context, identity string) ([]seats.Ticket, error)
	// TransferHolds moves unexpired holds of from to to and frees the lapsed ones
	TransferHolds(ctx context.Context, from, to string, now time.Time) (moved, dropped []seats.Ticket, err error)
	ListActiveHolds(ctx context.Context, identity string, now time.Time) ([]seats.Ticket, error)
	SweepExpiredHolds(ctx context.Context, now time.Time, limit int) ([]seats.Ticket, error)
}

type PostgresStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var freeColumns = map[string]interface{}{
	"status":          seats.StatusFree,
	"held_by":         nil,
	"hold_expires_at": nil,
}

func (r *PostgresStore) AcquireHold(ctx context.Context, ticketID uuid.UUID, identity string, now, expiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&seats.Ticket{}).
		Where("id = ?", ticketID).
		Where("status = ? OR (status = ? AND (hold_expires_at <= ? OR held_by = ?))",
			seats.StatusFree, seats.StatusHeld, now, identity).
		Updates(map[string]interface{}{
			"status":          seats.StatusHeld,
			"held_by":         identity,
			"hold_expires_at": expiresAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to acquire hold: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *PostgresStore) ExtendHold(ctx context.Context, ticketID uuid.UUID, identity string, now, expiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&seats.Ticket{}).
		Where("id = ? AND status = ? AND held_by = ? AND hold_expires_at > ?", ticketID, seats.StatusHeld, identity, now).
		Update("hold_expires_at", expiresAt)
	if res.Error != nil {
		return false, fmt.Errorf("failed to extend hold: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *PostgresStore) ReleaseHold(ctx context.Context, ticketID uuid.UUID, identity string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&seats.Ticket{}).
		Where("id = ? AND status = ? AND held_by = ?", ticketID, seats.StatusHeld, identity).
		Updates(freeColumns)
	if res.Error != nil {
		return false, fmt.Errorf("failed to release hold: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *PostgresStore) ReleaseAllHolds(ctx context.Context, identity string) ([]seats.Ticket, error) {
	var released []seats.Ticket
	err := r.db.WithContext(ctx).Model(&released).
		Clauses(clause.Returning{}).
		Where("status = ? AND held_by = ?", seats.StatusHeld, identity).
		Updates(freeColumns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to release holds: %w", err)
	}
	return released, nil
}

func (r *PostgresStore) TransferHolds(ctx context.Context, from, to string, now time.Time) ([]seats.Ticket, []seats.Ticket, error) {
	var moved, dropped []seats.Ticket
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&dropped).
			Clauses(clause.Returning{}).
			Where("status = ? AND held_by = ? AND hold_expires_at <= ?", seats.StatusHeld, from, now).
			Updates(freeColumns).Error; err != nil {
			return err
		}
		return tx.Model(&moved).
			Clauses(clause.Returning{}).
			Where("status = ? AND held_by = ? AND hold_expires_at > ?", seats.StatusHeld, from, now).
			Update("held_by", to).Error
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to transfer holds: %w", err)
	}
	return moved, dropped, nil
}

func (r *PostgresStore) ListActiveHolds(ctx context.Context, identity string, now time.Time) ([]seats.Ticket, error) {
	var tickets []seats.Ticket
	err := r.db.WithContext(ctx).
		Where("status = ? AND held_by = ? AND hold_expires_at > ?", seats.StatusHeld, identity, now).
		Order("hold_expires_at").
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list holds: %w", err)
	}
	return tickets, nil
}

func (r *PostgresStore) SweepExpiredHolds(ctx context.Context, now time.Time, limit int) ([]seats.Ticket, error) {
	expired := r.db.Model(&seats.Ticket{}).
		Select("id").
		Where("status = ? AND hold_expires_at <= ?", seats.StatusHeld, now).
		Limit(limit)

	var swept []seats.Ticket
	err := r.db.WithContext(ctx).Model(&swept).
		Clauses(clause.Returning{}).
		Where("id IN (?)", expired).
		Where("status = ? AND hold_expires_at <= ?", seats.StatusHeld, now).
		Updates(freeColumns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sweep expired holds: %w", err)
	}
	return swept, nil
}
