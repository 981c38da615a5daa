package utils

import (
    "strings"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
    tok, err := NewAccessToken("s3cret", 42, "USER", 5)
    require.NoError(t, err)

    c, err := ParseAccessToken("s3cret", tok.Token)
    require.NoError(t, err)
    assert.Equal(t, uint64(42), c.UserID)
    assert.Equal(t, "USER", c.Role)

    _, err = ParseAccessToken("other", tok.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredAccessToken(t *testing.T) {
    tok, err := NewAccessToken("s3cret", 1, "ADMIN", -1)
    require.NoError(t, err)
    _, err = ParseAccessToken("s3cret", tok.Token)
    assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshToken(t *testing.T) {
    rt, err := NewRefreshToken(7)
    require.NoError(t, err)
    assert.Len(t, rt.Raw, 96)
    assert.Len(t, HashRefreshRaw(rt.Raw), 64)
    assert.NotEqual(t, rt.Raw, HashRefreshRaw(rt.Raw))
}

func TestPassword(t *testing.T) {
    h, err := HashPassword("correct horse", 4)
    require.NoError(t, err)
    assert.True(t, VerifyPassword(h, "correct horse"))
    assert.False(t, VerifyPassword(h, "wrong"))
    assert.False(t, VerifyPassword("", ""))

    _, err = HashPassword(strings.Repeat("x", 73), 4)
    assert.Error(t, err)
}
