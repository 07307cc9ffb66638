package users

import (
	"context"

	"seatflow/internal/shared/apperr"

	"github.com/go-playground/validator/v10"
)

var ErrIdentityUnresolved = apperr.Validation(apperr.CodeIdentityUnresolved, "a valid contact email is required")

// Resolver maps a buyer contact email to a durable account, creating it on first use
type Resolver struct {
	repo     Repository
	validate *validator.Validate
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo, validate: validator.New()}
}

// Resolve is an idempotent find-or-create keyed by normalized email
func (r *Resolver) Resolve(ctx context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	if err := r.validate.Var(email, "required,email"); err != nil {
		return nil, ErrIdentityUnresolved
	}

	user, err := r.repo.FindOrCreate(ctx, email)
	if err != nil {
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to resolve account", err)
	}
	return user, nil
}
