package utils

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
    tok, err := NewAccessToken("s3cret", 42, "STAFF", 15, time.Now())
    require.NoError(t, err)

    claims, err := ParseAccessToken("s3cret", tok.Token)
    require.NoError(t, err)
    assert.Equal(t, uint64(42), claims.UserID)
    assert.Equal(t, "STAFF", claims.Role)
}

func TestParseAccessTokenRejects(t *testing.T) {
    tok, err := NewAccessToken("s3cret", 42, "MEMBER", 15, time.Now())
    require.NoError(t, err)
    _, err = ParseAccessToken("other", tok.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)

    expired, err := NewAccessToken("s3cret", 42, "MEMBER", 15, time.Now().Add(-time.Hour))
    require.NoError(t, err)
    _, err = ParseAccessToken("s3cret", expired.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)

    _, err = ParseAccessToken("s3cret", "not.a.jwt")
    assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshToken(t *testing.T) {
    now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
    a, err := NewRefreshToken(7, now)
    require.NoError(t, err)
    b, err := NewRefreshToken(7, now)
    require.NoError(t, err)

    assert.Len(t, a.Raw, 96)
    assert.NotEqual(t, a.Raw, b.Raw)
    assert.Equal(t, now.Add(7*24*time.Hour), a.Exp)
    assert.Len(t, HashRefreshRaw(a.Raw), 64)
    assert.Equal(t, HashRefreshRaw(a.Raw), HashRefreshRaw(a.Raw))
}

func TestPassword(t *testing.T) {
    hash, err := HashPassword("hunter22", bcrypt.MinCost)
    require.NoError(t, err)
    assert.True(t, VerifyPassword(hash, "hunter22"))
    assert.False(t, VerifyPassword(hash, "hunter23"))
}
