package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	token, err := m.GenerateToken("ops@finbot", "admin")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@finbot", claims.Operator)
	assert.Equal(t, "admin", claims.Role)
}

func TestJWTRejectsForeignSignature(t *testing.T) {
	token, err := NewJWTManager("other", time.Hour).GenerateToken("x", "admin")
	require.NoError(t, err)

	_, err = NewJWTManager("secret", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTExpired(t *testing.T) {
	m := NewJWTManager("secret", -time.Minute)
	token, err := m.GenerateToken("x", "admin")
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
