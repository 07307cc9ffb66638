package middleware

import (
	"net/http"
	"strings"
	"time"

	"seatflow/internal/shared/authtoken"
	"seatflow/internal/shared/utils/response"
	"seatflow/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Roles carried in tokens
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
	RoleGuest = "GUEST"
)

// gin context keys
const (
	ContextIdentity  = "identity"
	ContextUserID    = "user_id"
	ContextUserEmail = "user_email"
	ContextUserRole  = "user_role"
	ContextGuest     = "guest"
	ContextRequestID = "request_id"
)

// JWTAuth requires an account access token
func JWTAuth(issuer *authtoken.Issuer) gin.HandlerFunc {
	return authenticate(issuer, true, authtoken.TypeAccess)
}

// BuyerAuth accepts an account access token or a guest session token
func BuyerAuth(issuer *authtoken.Issuer) gin.HandlerFunc {
	return authenticate(issuer, true, authtoken.TypeAccess, authtoken.TypeGuest)
}

// OptionalAuth sets the identity when a valid token is present but never rejects
func OptionalAuth(issuer *authtoken.Issuer) gin.HandlerFunc {
	return authenticate(issuer, false, authtoken.TypeAccess, authtoken.TypeGuest)
}

func authenticate(issuer *authtoken.Issuer, required bool, types ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			if !required {
				c.Next()
				return
			}
			response.RespondJSON(c, "error", http.StatusUnauthorized, "authorization header format must be Bearer {token}", nil, nil)
			c.Abort()
			return
		}

		claims, err := issuer.ParseType(tokenString, types...)
		if err != nil {
			if !required {
				c.Next()
				return
			}
			logger.GetDefault().LogAuthFailure(c.Request.Context(), "invalid token", c.ClientIP())
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid or expired token", nil, nil)
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func setClaims(c *gin.Context, claims *authtoken.Claims) {
	c.Set(ContextIdentity, claims.Identity())
	c.Set(ContextGuest, claims.Type == authtoken.TypeGuest)
	c.Set(ContextUserRole, claims.Role)
	if claims.Type != authtoken.TypeGuest {
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
	}
}

// RequireRoles checks that the caller has any of the given roles
func RequireRoles(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString(ContextUserRole)
		if userRole == "" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "user role not found in context", nil, nil)
			c.Abort()
			return
		}

		for _, role := range requiredRoles {
			if userRole == role {
				c.Next()
				return
			}
		}

		response.RespondJSON(c, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
		c.Abort()
	}
}

// RequireAdmin requires the admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRoles(RoleAdmin)
}

// GetIdentity returns the hold owner key of the caller
func GetIdentity(c *gin.Context) (string, bool) {
	identity := c.GetString(ContextIdentity)
	return identity, identity != ""
}

// GetUserID returns the account id of an authenticated (non guest) caller
func GetUserID(c *gin.Context) (string, bool) {
	id := c.GetString(ContextUserID)
	return id, id != ""
}

// GetUserEmail returns the account email carried by the access token
func GetUserEmail(c *gin.Context) string {
	return c.GetString(ContextUserEmail)
}

// IsGuest reports whether the caller authenticated with a guest session token
func IsGuest(c *gin.Context) bool {
	return c.GetBool(ContextGuest)
}

// RequestID propagates X-Request-ID, generating one when absent
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger logs every request after it completes
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l := log
		if id := c.GetString(ContextRequestID); id != "" {
			l = l.WithRequestID(id)
		}
		if identity := c.GetString(ContextIdentity); identity != "" {
			l = l.WithUserID(identity)
		}
		l.LogHTTPRequest(c, time.Since(start))
	}
}
