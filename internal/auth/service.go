package auth

import (
	"context"
	"errors"

	"seatflow/internal/holds"
	"seatflow/internal/shared/apperr"
	"seatflow/internal/shared/authtoken"
	"seatflow/internal/shared/config"
	"seatflow/internal/shared/middleware"
	"seatflow/internal/users"
	"seatflow/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = apperr.Unauthorized("invalid email or password")
	ErrUserAlreadyExists  = apperr.Conflict(apperr.CodeAlreadyExists, "user with this email already exists")
	ErrInvalidToken       = apperr.Unauthorized("invalid or expired token")
	ErrUserNotFound       = apperr.NotFound(apperr.CodeInvalidInput, "user not found")
)

type holdTransferrer interface {
	Transfer(ctx context.Context, from, to string) (*holds.TransferResult, error)
}

type Service struct {
	repo   users.Repository
	issuer *authtoken.Issuer
	holds  holdTransferrer
	config *config.Config
}

func NewService(repo users.Repository, issuer *authtoken.Issuer, holdManager holdTransferrer, cfg *config.Config) *Service {
	return &Service{
		repo:   repo,
		issuer: issuer,
		holds:  holdManager,
		config: cfg,
	}
}

// Register creates an account, or sets the password of one created at
// checkout. guestToken, when valid, moves that session's holds to the account.
func (s *Service) Register(ctx context.Context, req *RegisterRequest, guestToken string) (*AuthResponse, error) {
	email := users.NormalizeEmail(req.Email)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Fatal("failed to hash password", err)
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		hashed := string(hashedPassword)
		user = &users.User{
			ID:        uuid.New(),
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     email,
			Password:  &hashed,
			Role:      users.RoleUser,
		}
		if err := s.repo.CreateUser(ctx, user); err != nil {
			return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to register user", err)
		}
	case err != nil:
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to register user", err)
	default:
		claimed, err := s.repo.ClaimPassword(ctx, user.ID, string(hashedPassword), req.FirstName, req.LastName)
		if err != nil {
			return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to register user", err)
		}
		if !claimed {
			return nil, ErrUserAlreadyExists
		}
		user.FirstName, user.LastName = req.FirstName, req.LastName
	}

	return s.authenticate(ctx, user, guestToken, "register")
}

func (s *Service) Login(ctx context.Context, req *LoginRequest, guestToken string) (*AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, users.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to login", err)
	}

	// Verify password
	if !user.HasPassword() || bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.authenticate(ctx, user, guestToken, "password")
}

func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.issuer.ParseType(refreshToken, authtoken.TypeRefresh)
	if err != nil {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	// Verify user still exists
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return s.generateTokenPair(user)
}

// GuestSession opens an anonymous checkout session
func (s *Service) GuestSession(ctx context.Context) (*GuestSessionResponse, error) {
	sessionID := uuid.NewString()
	token, expiresAt, err := s.issuer.Sign(authtoken.Claims{
		SessionID: sessionID,
		Role:      middleware.RoleGuest,
		Type:      authtoken.TypeGuest,
	}, s.config.JWT.GuestExpiresIn)
	if err != nil {
		return nil, apperr.Fatal("failed to sign guest token", err)
	}
	logger.GetDefault().InfoWithContext(ctx, "Guest Session Opened", map[string]interface{}{"session_id": sessionID})
	return &GuestSessionResponse{GuestToken: token, SessionID: sessionID, ExpiresAt: expiresAt}, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return ErrUserNotFound
	}
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return ErrUserNotFound
	}

	// Verify current password
	if !user.HasPassword() || bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(req.CurrentPassword)) != nil {
		return ErrInvalidCredentials
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Fatal("failed to hash password", err)
	}
	if err := s.repo.UpdateUserPassword(ctx, user.ID, string(hashedPassword)); err != nil {
		return apperr.Transient(apperr.CodeStoreUnavailable, "failed to change password", err)
	}
	return nil
}

// Me returns the account of the caller
func (s *Service) Me(ctx context.Context, userID string) (*UserResponse, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperr.Transient(apperr.CodeStoreUnavailable, "failed to load user", err)
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *Service) authenticate(ctx context.Context, user *users.User, guestToken, method string) (*AuthResponse, error) {
	tokenPair, err := s.generateTokenPair(user)
	if err != nil {
		return nil, err
	}
	logger.GetDefault().LogAuthSuccess(ctx, user.ID.String(), method)

	return &AuthResponse{
		User:         toUserResponse(user),
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
		MergedHolds:  s.mergeGuestHolds(ctx, guestToken, user.ID.String()),
	}, nil
}

// mergeGuestHolds never fails the sign in; a bad guest token just merges nothing
func (s *Service) mergeGuestHolds(ctx context.Context, guestToken, accountID string) int {
	if guestToken == "" || s.holds == nil {
		return 0
	}
	guest, err := s.issuer.ParseType(guestToken, authtoken.TypeGuest)
	if err != nil {
		logger.GetDefault().WarnContext(ctx, "ignoring invalid guest token on sign in", "user_id", accountID)
		return 0
	}
	result, err := s.holds.Transfer(ctx, guest.Identity(), accountID)
	if err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "failed to merge guest holds", err, map[string]interface{}{"user_id": accountID})
		return 0
	}
	return result.Moved
}

func (s *Service) generateTokenPair(user *users.User) (*TokenPair, error) {
	claims := authtoken.Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		Role:   string(user.Role),
	}

	claims.Type = authtoken.TypeAccess
	accessToken, _, err := s.issuer.Sign(claims, s.config.JWT.JWTExpiresIn)
	if err != nil {
		return nil, apperr.Fatal("failed to sign access token", err)
	}

	claims.Type = authtoken.TypeRefresh
	refreshToken, _, err := s.issuer.Sign(claims, s.config.JWT.RefreshExpiresIn)
	if err != nil {
		return nil, apperr.Fatal("failed to sign refresh token", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.JWT.JWTExpiresIn.Seconds()),
	}, nil
}
