package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/bcrypt"
)

func TestCheckSecretFromPlaintextFallback(t *testing.T) {
	v, err := NewVerifier("", "open-sesame", "token-secret")
	require.NoError(t, err)

	assert.True(t, v.CheckSecret("open-sesame"))
	assert.False(t, v.CheckSecret("wrong"))
	assert.False(t, v.CheckSecret(""))
}

func TestCheckSecretFromHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	require.NoError(t, err)

	v, err := NewVerifier(string(hash), "", "token-secret")
	require.NoError(t, err)

	assert.True(t, v.CheckSecret("open-sesame"))
	assert.False(t, v.CheckSecret("wrong"))
}

func TestTokenRoundTrip(t *testing.T) {
	v, err := NewVerifier("", "open-sesame", "token-secret")
	require.NoError(t, err)

	token, err := v.GenerateToken()
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, RoleOwnerSession, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	v, err := NewVerifier("", "open-sesame", "token-secret")
	require.NoError(t, err)

	_, err = v.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	issuer, err := NewVerifier("", "open-sesame", "issuer-secret")
	require.NoError(t, err)
	verifier, err := NewVerifier("", "open-sesame", "other-secret")
	require.NoError(t, err)

	token, err := issuer.GenerateToken()
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenJTIsAreUnique(t *testing.T) {
	v, err := NewVerifier("", "open-sesame", "token-secret")
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		token, err := v.GenerateToken()
		require.NoError(t, err)
		claims, err := v.ValidateToken(token)
		require.NoError(t, err)
		assert.False(t, seen[claims.ID])
		seen[claims.ID] = true
	}
}
