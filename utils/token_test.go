package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_SessionRoundTrip(t *testing.T) {
	s := NewSigner("secret")

	tok, err := s.GenerateToken("user-1")
	require.NoError(t, err)

	userID, err := s.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestSigner_PurposeIsChecked(t *testing.T) {
	s := NewSigner("secret")

	state, err := s.GenerateState("user-1")
	require.NoError(t, err)

	_, err = s.ParseToken(state)
	assert.ErrorIs(t, err, ErrInvalidToken, "a state token is not a session")

	userID, err := s.ParseState(state)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestSigner_RejectsForeignKeyAndExpiry(t *testing.T) {
	s := NewSigner("secret")
	other := NewSigner("other")

	tok, err := other.GenerateToken("user-1")
	require.NoError(t, err)
	_, err = s.ParseToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	s.now = func() time.Time { return time.Now().Add(-2 * OAuthStateTTL) }
	state, err := s.GenerateState("user-1")
	require.NoError(t, err)
	s.now = time.Now
	_, err = s.ParseState(state)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
