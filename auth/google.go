// Package auth runs the Google OAuth web flow that connects a user's
// calendar and issues a session token.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/calendar"
	"github.com/Bekzhanizb/LifeQuestBackend/config"
	"github.com/Bekzhanizb/LifeQuestBackend/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// OAuthConfig returns the Google client config, or nil when the client id,
// secret or redirect URI is missing.
func OAuthConfig(cfg config.GoogleConfig) *oauth2.Config {
	if !cfg.Configured() {
		return nil
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Endpoint:     google.Endpoint,
		Scopes:       []string{goauth2.OpenIDScope, goauth2.UserinfoEmailScope, gcal.CalendarEventsScope},
	}
}

type Login struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

type Session struct {
	OK     bool   `json:"ok"`
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Token  string `json:"token"`
}

type GoogleAuth struct {
	oauth  *oauth2.Config
	signer *utils.Signer
	tokens calendar.TokenStore
	opts   []option.ClientOption
}

// NewGoogleAuth builds the flow. opts are passed to the userinfo client.
func NewGoogleAuth(oauth *oauth2.Config, signer *utils.Signer, tokens calendar.TokenStore, opts ...option.ClientOption) *GoogleAuth {
	return &GoogleAuth{oauth: oauth, signer: signer, tokens: tokens, opts: opts}
}

// LoginURL returns the consent URL. The state is a short-lived signed
// nonce, so the callback needs no server-side session.
func (a *GoogleAuth) LoginURL() (Login, error) {
	const op = "auth.login"
	if a.oauth == nil {
		return Login{}, apperr.MissingCredential(op, "Google sign-in is not configured on this server.")
	}

	state, err := a.signer.GenerateState(uuid.NewString())
	if err != nil {
		return Login{}, apperr.Wrap(apperr.KindInternal, op, "", err)
	}
	url := a.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	return Login{AuthURL: url, State: state}, nil
}

// Callback exchanges the code and resolves the Google account behind it.
// The account id is the user id: the token is stored under it and the
// session is issued for it.
func (a *GoogleAuth) Callback(ctx context.Context, code, state string) (Session, error) {
	const op = "auth.callback"
	if a.oauth == nil {
		return Session{}, apperr.MissingCredential(op, "Google sign-in is not configured on this server.")
	}
	if code == "" || state == "" {
		return Session{}, apperr.Validation(op, "code and state are required")
	}

	if _, err := a.signer.ParseState(state); err != nil {
		utils.Logger.Warn("oauth_state_rejected", zap.Error(err))
		return Session{}, apperr.Wrap(apperr.KindAuth, op, "invalid or expired state", err)
	}

	tok, err := a.oauth.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return Session{}, apperr.Wrap(apperr.KindAuth, op, "Google rejected the authorization code", err)
		}
		return Session{}, apperr.Upstream(op, err)
	}

	info, err := a.userinfo(ctx, tok)
	if err != nil {
		return Session{}, err
	}
	userID := info.Id

	if err := a.tokens.SaveToken(ctx, calendar.TokenFromOAuth2(userID, tok)); err != nil {
		return Session{}, apperr.Wrap(apperr.KindInternal, op, "", err)
	}

	session, err := a.signer.GenerateToken(userID)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.KindInternal, op, "", err)
	}

	utils.Logger.Info("google_account_connected",
		zap.String("user_id", userID),
		zap.Bool("has_refresh_token", tok.RefreshToken != ""),
	)
	return Session{OK: true, UserID: userID, Email: info.Email, Token: session}, nil
}

func (a *GoogleAuth) userinfo(ctx context.Context, tok *oauth2.Token) (*goauth2.Userinfo, error) {
	const op = "auth.userinfo"

	opts := append([]option.ClientOption{option.WithTokenSource(a.oauth.TokenSource(ctx, tok))}, a.opts...)
	svc, err := goauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, "", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
			return nil, apperr.Wrap(apperr.KindAuth, op, "Google rejected the access token", err)
		}
		return nil, apperr.Upstream(op, err)
	}
	if info.Id == "" {
		return nil, apperr.Upstream(op, errors.New("userinfo has no account id"))
	}
	return info, nil
}
