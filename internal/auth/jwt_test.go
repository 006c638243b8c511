package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager(JWTConfig{Issuer: "appwini", Secret: "s3cret", TTLMin: 10})

	tok, exp, err := m.Sign(42, "driver")
	require.NoError(t, err)
	assert.False(t, exp.IsZero())

	claims, err := m.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "driver", claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := NewJWTManager(JWTConfig{Issuer: "appwini", Secret: "s3cret", TTLMin: 10})
	tok, _, err := m.Sign(1, "user")
	require.NoError(t, err)

	other := NewJWTManager(JWTConfig{Issuer: "appwini", Secret: "different", TTLMin: 10})
	_, err = other.Parse(tok)
	assert.Error(t, err, "wrong secret")

	wrongIssuer := NewJWTManager(JWTConfig{Issuer: "someone-else", Secret: "s3cret", TTLMin: 10})
	_, err = wrongIssuer.Parse(tok)
	assert.Error(t, err, "wrong issuer")

	expired := NewJWTManager(JWTConfig{Issuer: "appwini", Secret: "s3cret", TTLMin: -1})
	old, _, err := expired.Sign(1, "user")
	require.NoError(t, err)
	_, err = m.Parse(old)
	assert.Error(t, err, "expired")
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("cacao123")
	require.NoError(t, err)
	assert.True(t, CheckPassword(h, "cacao123"))
	assert.False(t, CheckPassword(h, "cacao124"))
}
