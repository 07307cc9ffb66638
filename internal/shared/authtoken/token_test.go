package authtoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseAccessToken(t *testing.T) {
	iss := NewIssuer("secret")
	token, exp, err := iss.Sign(Claims{UserID: "acc-1", Email: "a@example.com", Role: "USER", Type: TypeAccess}, time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	claims, err := iss.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Identity())
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "acc-1", claims.Subject)
}

func TestGuestIdentity(t *testing.T) {
	iss := NewIssuer("secret")
	token, _, err := iss.Sign(Claims{SessionID: "s-1", Role: "GUEST", Type: TypeGuest}, time.Minute)
	require.NoError(t, err)

	claims, err := iss.ParseType(token, TypeGuest, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "guest:s-1", claims.Identity())

	_, err = iss.ParseType(token, TypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsForeignSecretAndExpiry(t *testing.T) {
	other := NewIssuer("other")
	token, _, err := other.Sign(Claims{UserID: "acc-1", Type: TypeAccess}, time.Minute)
	require.NoError(t, err)

	_, err = NewIssuer("secret").Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	past := NewIssuer("secret")
	past.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, err := past.Sign(Claims{UserID: "acc-1", Type: TypeAccess}, time.Minute)
	require.NoError(t, err)
	_, err = NewIssuer("secret").Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsGuestWithoutSession(t *testing.T) {
	iss := NewIssuer("secret")
	token, _, err := iss.Sign(Claims{Type: TypeGuest}, time.Minute)
	require.NoError(t, err)
	_, err = iss.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
