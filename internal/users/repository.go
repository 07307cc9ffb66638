package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUserNotFound = errors.New("user not found")

type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	// FindOrCreate inserts a passwordless account for email unless one exists,
	// then returns the stored row. Safe under concurrent callers.
	FindOrCreate(ctx context.Context, email string) (*User, error)
	// ClaimPassword sets the password of an account that has none
	ClaimPassword(ctx context.Context, id uuid.UUID, hashedPassword, firstName, lastName string) (bool, error)
	UpdateUserPassword(ctx context.Context, id uuid.UUID, hashedPassword string) error
}

type PostgresRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateUser(ctx context.Context, user *User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *PostgresRepository) FindOrCreate(ctx context.Context, email string) (*User, error) {
	candidate := &User{ID: uuid.New(), Email: email, Role: RoleUser}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(candidate).Error
	if err != nil {
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}
	return r.GetUserByEmail(ctx, email)
}

func (r *PostgresRepository) ClaimPassword(ctx context.Context, id uuid.UUID, hashedPassword, firstName, lastName string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND (password IS NULL OR password = '')", id).
		Updates(map[string]interface{}{
			"password":   hashedPassword,
			"first_name": firstName,
			"last_name":  lastName,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *PostgresRepository) UpdateUserPassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	result := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Update("password", hashedPassword)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}
