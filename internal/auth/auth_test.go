package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/gopherchat/internal/auth"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := auth.BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	assert.True(t, h.Compare(hash, "secret1"))
	assert.False(t, h.Compare(hash, "wrong"))
	assert.False(t, h.Compare("not-a-hash", "secret1"))
}

func TestSessionTokens_RoundTrip(t *testing.T) {
	tokens := auth.NewSessionTokens("test-secret", "gopherchat")

	signed, err := tokens.Sign("handle-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	handle, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "handle-1", handle)
}

func TestSessionTokens_Rejects(t *testing.T) {
	tokens := auth.NewSessionTokens("test-secret", "gopherchat")
	other := auth.NewSessionTokens("other-secret", "gopherchat")

	expired, err := tokens.Sign("handle-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	forged, err := other.Sign("handle-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"expired", expired},
		{"wrong secret", forged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.Parse(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}
