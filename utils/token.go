package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SessionTTL    = 24 * time.Hour
	OAuthStateTTL = 10 * time.Minute

	purposeSession = "session"
	purposeState   = "oauth_state"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID  string `json:"user_id"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 tokens for sessions and OAuth state.
type Signer struct {
	key []byte
	now func() time.Time
}

func NewSigner(secret string) *Signer {
	return &Signer{key: []byte(secret), now: time.Now}
}

func (s *Signer) GenerateToken(userID string) (string, error) {
	return s.sign(userID, purposeSession, SessionTTL)
}

func (s *Signer) ParseToken(tokenStr string) (string, error) {
	return s.parse(tokenStr, purposeSession)
}

// GenerateState returns a short-lived token used as the OAuth state parameter.
func (s *Signer) GenerateState(userID string) (string, error) {
	return s.sign(userID, purposeState, OAuthStateTTL)
}

func (s *Signer) ParseState(state string) (string, error) {
	return s.parse(state, purposeState)
}

func (s *Signer) sign(userID, purpose string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:  userID,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

func (s *Signer) parse(tokenStr, purpose string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Purpose != purpose || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
