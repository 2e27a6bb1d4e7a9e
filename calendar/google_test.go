package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Bekzhanizb/LifeQuestBackend/apperr"
	"github.com/Bekzhanizb/LifeQuestBackend/db"
	"github.com/Bekzhanizb/LifeQuestBackend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

func newGoogleTestUpstream(t *testing.T, handler http.HandlerFunc) *GoogleUpstream {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	up, err := NewGoogleUpstream(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return up
}

func TestGoogleUpstream_List(t *testing.T) {
	up := newGoogleTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("maxResults"))
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{
				{
					"id":       "e1",
					"summary":  "CS Lecture",
					"htmlLink": "https://calendar.google.com/e1",
					"start":    map[string]string{"dateTime": "2025-09-29T10:00:00Z"},
					"end":      map[string]string{"dateTime": "2025-09-29T11:15:00Z"},
				},
				{
					"id":      "e2",
					"summary": "Holiday",
					"start":   map[string]string{"date": "2025-10-01"},
					"end":     map[string]string{"date": "2025-10-02"},
				},
			},
		})
	})

	events, err := up.List(context.Background(), base, 3)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "CS Lecture", events[0].Summary)
	assert.Equal(t, base, events[0].Start)
	assert.True(t, events[1].AllDay)
}

func TestGoogleUpstream_Insert(t *testing.T) {
	up := newGoogleTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Gym", body["summary"])

		body["id"] = "new1"
		body["htmlLink"] = "https://calendar.google.com/new1"
		json.NewEncoder(w).Encode(body)
	})

	ev, err := up.Insert(context.Background(), Event{Summary: "Gym", Start: base, End: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "new1", ev.ID)
	assert.Equal(t, base.Add(time.Hour), ev.End)
}

func TestGoogleUpstream_ErrorsBecomeProviderErrors(t *testing.T) {
	up := newGoogleTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGone)
		w.Write([]byte(`{"error":{"code":410,"message":"Resource has been deleted"}}`))
	})

	err := up.Delete(context.Background(), "e1")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusGone, pe.StatusCode)

	err = NewService(up, nil).DeleteEvent(context.Background(), "e1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGoogleUpstream_ForbiddenCarriesReason(t *testing.T) {
	up := newGoogleTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"Insufficient Permission","errors":[{"reason":"insufficientPermissions","message":"Insufficient Permission"}]}}`))
	})

	_, err := up.List(context.Background(), base, 5)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "insufficientPermissions", pe.Reason)

	_, err = NewService(up, nil).ListUpcoming(context.Background(), 5)
	assert.ErrorIs(t, err, ErrAuth)
}

type memTokens struct {
	tokens map[string]models.OAuthToken
}

func (m *memTokens) GetToken(_ context.Context, userID string) (models.OAuthToken, error) {
	t, ok := m.tokens[userID]
	if !ok {
		return t, db.ErrNotFound
	}
	return t, nil
}

func (m *memTokens) SaveToken(_ context.Context, t models.OAuthToken) error {
	m.tokens[t.UserID] = t
	return nil
}

func TestGoogleProvider_MissingCredential(t *testing.T) {
	store := &memTokens{tokens: map[string]models.OAuthToken{}}

	_, err := NewGoogleProvider(nil, store).ForUser(context.Background(), "u1")
	assert.Equal(t, apperr.KindMissingCredential, apperr.KindOf(err))

	_, err = NewGoogleProvider(&oauth2.Config{ClientID: "id"}, store).ForUser(context.Background(), "u1")
	assert.Equal(t, apperr.KindMissingCredential, apperr.KindOf(err))
}

func TestGoogleProvider_UsesStoredToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	store := &memTokens{tokens: map[string]models.OAuthToken{
		"u1": {UserID: "u1", AccessToken: "access-1", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)},
	}}
	provider := NewGoogleProvider(&oauth2.Config{ClientID: "id"}, store, option.WithEndpoint(srv.URL+"/"))

	gw, err := provider.ForUser(context.Background(), "u1")
	require.NoError(t, err)

	events, err := gw.ListUpcoming(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, "Bearer access-1", auth)
}
