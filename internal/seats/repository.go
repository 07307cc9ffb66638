package seats

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads the seat inventory and creates occurrences
type Repository interface {
	CreateOccurrence(ctx context.Context, occ *Occurrence, tickets []Ticket) error
	GetOccurrence(ctx context.Context, id uuid.UUID) (*Occurrence, error)
	ListTickets(ctx context.Context, occurrenceID uuid.UUID) ([]Ticket, error)
	FindTickets(ctx context.Context, occurrenceID uuid.UUID, keys []SeatKey) ([]Ticket, error)
}

type PostgresRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateOccurrence inserts the occurrence and its tickets atomically
func (r *PostgresRepository) CreateOccurrence(ctx context.Context, occ *Occurrence, tickets []Ticket) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(occ).Error; err != nil {
			return fmt.Errorf("failed to create occurrence: %w", err)
		}
		if len(tickets) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(tickets, 500).Error; err != nil {
			return fmt.Errorf("failed to create tickets: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) GetOccurrence(ctx context.Context, id uuid.UUID) (*Occurrence, error) {
	var occ Occurrence
	err := r.db.WithContext(ctx).First(&occ, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOccurrenceNotFound
		}
		return nil, fmt.Errorf("failed to get occurrence: %w", err)
	}
	return &occ, nil
}

func (r *PostgresRepository) ListTickets(ctx context.Context, occurrenceID uuid.UUID) ([]Ticket, error) {
	var tickets []Ticket
	err := r.db.WithContext(ctx).
		Where("occurrence_id = ?", occurrenceID).
		Order("category, position").
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

func (r *PostgresRepository) FindTickets(ctx context.Context, occurrenceID uuid.UUID, keys []SeatKey) ([]Ticket, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var tickets []Ticket
	err := r.db.WithContext(ctx).
		Where("occurrence_id = ?", occurrenceID).
		Where("(hall_id, category, seat_row, seat_number) IN ?", KeyTuples(keys)).
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find tickets: %w", err)
	}
	return tickets, nil
}

// KeyTuples renders seat keys for a row-value IN clause
func KeyTuples(keys []SeatKey) [][]interface{} {
	tuples := make([][]interface{}, len(keys))
	for i, k := range keys {
		tuples[i] = []interface{}{k.HallID, k.Category, k.Row, k.Number}
	}
	return tuples
}
