package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestReadUnverified(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("cognito username wins", func(t *testing.T) {
		tok := signed(t, jwt.MapClaims{"cognito:username": "alice", "sub": "uuid-1", "exp": now.Add(time.Hour).Unix()})
		s, err := ReadUnverified(tok, now)
		require.NoError(t, err)
		assert.Equal(t, Session{UserID: "alice", Token: tok}, s)
	})

	t.Run("falls back to sub", func(t *testing.T) {
		tok := signed(t, jwt.MapClaims{"sub": "uuid-1"})
		s, err := ReadUnverified(tok, now)
		require.NoError(t, err)
		assert.Equal(t, "uuid-1", s.UserID)
	})

	t.Run("expired", func(t *testing.T) {
		tok := signed(t, jwt.MapClaims{"sub": "uuid-1", "exp": now.Add(-time.Minute).Unix()})
		_, err := ReadUnverified(tok, now)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	for name, tok := range map[string]string{
		"empty":   "",
		"garbage": "not-a-jwt",
		"no user": signed(t, jwt.MapClaims{"email": "a@example.com"}),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadUnverified(tok, now)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestFromContextWithoutSession(t *testing.T) {
	_, ok := FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
