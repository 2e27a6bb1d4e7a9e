package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/db"
	"github.com/Bekzhanizb/LifeQuestBackend/models"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

type TokenStore interface {
	GetToken(ctx context.Context, userID string) (models.OAuthToken, error)
	SaveToken(ctx context.Context, t models.OAuthToken) error
}

// Provider builds a per-user Gateway from the user's stored Google token.
type Provider interface {
	ForUser(ctx context.Context, userID string) (Gateway, error)
}

type GoogleProvider struct {
	oauth *oauth2.Config
	store TokenStore
	opts  []option.ClientOption
}

// NewGoogleProvider returns a provider for the given OAuth client. oauth may
// be nil when Google is not configured; every ForUser call then reports a
// missing credential.
func NewGoogleProvider(oauth *oauth2.Config, store TokenStore, opts ...option.ClientOption) *GoogleProvider {
	return &GoogleProvider{oauth: oauth, store: store, opts: opts}
}

func (p *GoogleProvider) ForUser(ctx context.Context, userID string) (Gateway, error) {
	const op = "calendar.for_user"
	if p.oauth == nil {
		return nil, apperr.MissingCredential(op, "Google Calendar is not configured on this server.")
	}

	stored, err := p.store.GetToken(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.MissingCredential(op, "Google Calendar is not connected. Sign in with Google first.")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	creds := &userCredentials{
		oauth:  p.oauth,
		store:  p.store,
		userID: userID,
		token:  toOAuth2(stored),
	}
	opts := append([]option.ClientOption{option.WithTokenSource(creds)}, p.opts...)
	up, err := NewGoogleUpstream(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return NewService(up, creds), nil
}

// userCredentials is the token source handed to the Google client. Refresh
// exchanges the refresh token for a new access token and persists it.
type userCredentials struct {
	mu     sync.Mutex
	oauth  *oauth2.Config
	store  TokenStore
	userID string
	token  *oauth2.Token
}

func (c *userCredentials) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	tok := c.token
	c.mu.Unlock()

	if tok.Valid() || tok.RefreshToken == "" {
		return tok, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

func (c *userCredentials) Refresh(ctx context.Context) error {
	const op = "calendar.refresh"
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.RefreshToken == "" {
		return apperr.Wrap(apperr.KindAuth, op, "calendar authorization expired, please reconnect Google Calendar", ErrAuth)
	}

	src := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: c.token.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		return apperr.Wrap(apperr.KindAuth, op, "calendar authorization expired, please reconnect Google Calendar", errors.Join(ErrAuth, err))
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = c.token.RefreshToken
	}
	c.token = fresh

	if err := c.store.SaveToken(ctx, TokenFromOAuth2(c.userID, fresh)); err != nil {
		utils.Logger.Warn("oauth_token_save_failed", zap.String("user_id", c.userID), zap.Error(err))
	}
	utils.Logger.Info("oauth_token_refreshed", zap.String("user_id", c.userID))
	return nil
}

func toOAuth2(t models.OAuthToken) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// TokenFromOAuth2 converts an oauth2 token for storage.
func TokenFromOAuth2(userID string, t *oauth2.Token) models.OAuthToken {
	return models.OAuthToken{
		UserID:       userID,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}
