package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager("", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestGenerateAndParse(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m, err := NewManager("secret", 7*24*time.Hour, WithClock(clock))
	require.NoError(t, err)

	raw, err := m.Generate("user-1")
	require.NoError(t, err)

	claims, err := m.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, now.Add(7*24*time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func TestParseRejects(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m, err := NewManager("secret", time.Hour, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	raw, err := m.Generate("user-1")
	require.NoError(t, err)

	other, err := NewManager("other-secret", time.Hour, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	_, err = other.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	later, err := NewManager("secret", time.Hour, WithClock(func() time.Time { return now.Add(2 * time.Hour) }))
	require.NoError(t, err)
	_, err = later.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse("")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = m.Parse("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
