package promocodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrPromocodeNotFound = errors.New("promocode not found")

type Repository interface {
	GetByCode(ctx context.Context, code string) (*Promocode, error)
	Upsert(ctx context.Context, promo *Promocode) error
}

type PostgresRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByCode(ctx context.Context, code string) (*Promocode, error) {
	var promo Promocode
	err := r.db.WithContext(ctx).Preload("Scopes").Where("code = ?", code).First(&promo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromocodeNotFound
		}
		return nil, fmt.Errorf("failed to get promocode: %w", err)
	}
	return &promo, nil
}

// Upsert inserts or replaces a promocode by code, including its scope rows
func (r *PostgresRepository) Upsert(ctx context.Context, promo *Promocode) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scopes := promo.Scopes
		promo.Scopes = nil

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"discount_percent", "active", "expires_at", "max_tickets", "updated_at"}),
		}).Create(promo).Error; err != nil {
			return fmt.Errorf("failed to upsert promocode: %w", err)
		}

		// the conflict path keeps the existing id
		var stored Promocode
		if err := tx.Select("id").Where("code = ?", promo.Code).First(&stored).Error; err != nil {
			return fmt.Errorf("failed to reload promocode: %w", err)
		}
		promo.ID = stored.ID

		if err := tx.Where("promocode_id = ?", promo.ID).Delete(&PromocodeScope{}).Error; err != nil {
			return fmt.Errorf("failed to clear promocode scope: %w", err)
		}
		for i := range scopes {
			scopes[i].ID = uuid.New()
			scopes[i].PromocodeID = promo.ID
		}
		if len(scopes) > 0 {
			if err := tx.Create(&scopes).Error; err != nil {
				return fmt.Errorf("failed to save promocode scope: %w", err)
			}
		}
		promo.Scopes = scopes
		return nil
	})
}
