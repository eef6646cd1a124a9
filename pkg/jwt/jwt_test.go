package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewManager("secret", "bookmarker", time.Hour, 24*time.Hour)

	pair, err := m.IssuePair(42, "alice")
	require.NoError(t, err)

	claims, err := m.ValidateToken(pair.Access, AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	claims, err = m.ValidateToken(pair.Refresh, RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, RefreshToken, claims.Kind)
}

func TestTokenManager_WrongKind(t *testing.T) {
	m := NewManager("secret", "bookmarker", time.Hour, 24*time.Hour)
	pair, err := m.IssuePair(1, "alice")
	require.NoError(t, err)

	_, err = m.ValidateToken(pair.Refresh, AccessToken)
	assert.ErrorIs(t, err, ErrWrongKind)
	_, err = m.ValidateToken(pair.Access, RefreshToken)
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewManager("secret", "bookmarker", time.Hour, 24*time.Hour)
	other := NewManager("other-secret", "bookmarker", time.Hour, 24*time.Hour)

	token, err := other.GenerateToken(1, "alice", AccessToken)
	require.NoError(t, err)
	_, err = m.ValidateToken(token, AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateToken("not-a-token", AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_Expired(t *testing.T) {
	m := NewManager("secret", "bookmarker", time.Minute, time.Hour)
	issued := time.Now().Add(-2 * time.Minute)
	m.now = func() time.Time { return issued }

	token, err := m.GenerateToken(1, "alice", AccessToken)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateToken(token, AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
