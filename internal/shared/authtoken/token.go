package authtoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Token types
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
	TypeGuest   = "guest"
)

const issuer = "seatflow"

var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload for account and guest session tokens
type Claims struct {
	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid,omitempty"`
	Type      string `json:"type"`
	jwt.RegisteredClaims
}

// Identity is the hold owner key of the token bearer
func (c *Claims) Identity() string {
	if c.Type == TypeGuest {
		return GuestIdentity(c.SessionID)
	}
	return c.UserID
}

// GuestIdentity builds the identity of an anonymous checkout session
func GuestIdentity(sessionID string) string {
	return "guest:" + sessionID
}

// Issuer signs and verifies HS256 tokens
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// Sign issues a token valid for ttl and returns it with its expiry
func (i *Issuer) Sign(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(ttl)
	subject := claims.UserID
	if claims.Type == TypeGuest {
		subject = claims.SessionID
	}
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Issuer:    issuer,
		Subject:   subject,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse verifies a token and returns its claims
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	parser := jwt.Parser{}
	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type == TypeGuest && claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	if claims.Type != TypeGuest && claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseType verifies a token and requires one of the given types
func (i *Issuer) ParseType(tokenString string, types ...string) (*Claims, error) {
	claims, err := i.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	for _, t := range types {
		if claims.Type == t {
			return claims, nil
		}
	}
	return nil, ErrInvalidToken
}
