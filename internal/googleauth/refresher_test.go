package googleauth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/piggy-devil/prompt-v1.0/internal/googleauth"
	"github.com/piggy-devil/prompt-v1.0/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeAccountStore struct {
	account *models.LinkedAccount
	saves   []googleauth.TokenUpdate
	upserts []models.LinkedAccount
}

func (s *fakeAccountStore) FindByUser(ctx context.Context, userID string) (*models.LinkedAccount, error) {
	if s.account == nil || s.account.UserID != userID {
		return nil, nil
	}
	account := *s.account
	return &account, nil
}

func (s *fakeAccountStore) SaveTokens(ctx context.Context, id primitive.ObjectID, upd googleauth.TokenUpdate) error {
	s.saves = append(s.saves, upd)
	return nil
}

func (s *fakeAccountStore) Upsert(ctx context.Context, account *models.LinkedAccount) error {
	s.upserts = append(s.upserts, *account)
	return nil
}

type tokenEndpoint struct {
	srv   *httptest.Server
	calls atomic.Int64
	forms chan url.Values
}

// newTokenEndpoint serves the given status and JSON body for every request,
// counting calls and capturing the submitted form.
func newTokenEndpoint(t *testing.T, status int, body map[string]any) *tokenEndpoint {
	t.Helper()
	ep := &tokenEndpoint{forms: make(chan url.Values, 16)}
	ep.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ep.calls.Add(1)
		require.NoError(t, r.ParseForm())
		ep.forms <- r.PostForm

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	t.Cleanup(ep.srv.Close)
	return ep
}

func newRefresher(store *fakeAccountStore, tokenURL string, now time.Time) *googleauth.Refresher {
	return googleauth.NewRefresher(store, googleauth.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost/callback",
	},
		googleauth.WithEndpoints(tokenURL, ""),
		googleauth.WithClock(func() time.Time { return now }),
	)
}

func linkedAccount(now time.Time, expiresIn time.Duration) *models.LinkedAccount {
	expiresAt := now.Add(expiresIn)
	return &models.LinkedAccount{
		ID:                   primitive.NewObjectID(),
		UserID:               "user-1",
		Provider:             models.ProviderGoogle,
		AccessToken:          "stored-access",
		RefreshToken:         "stored-refresh",
		AccessTokenExpiresAt: &expiresAt,
	}
}

func TestEnsureFreshAccessTokenSkipsRefreshWhenFresh(t *testing.T) {
	now := time.Now()
	ep := newTokenEndpoint(t, http.StatusOK, map[string]any{"access_token": "unused"})
	store := &fakeAccountStore{account: linkedAccount(now, 10*time.Minute)}

	r := newRefresher(store, ep.srv.URL, now)
	creds, err := r.EnsureFreshAccessToken(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "stored-access", creds.AccessToken)
	assert.Equal(t, "stored-refresh", creds.RefreshToken)
	assert.EqualValues(t, 0, ep.calls.Load(), "fresh token must not hit the token endpoint")
	assert.Empty(t, store.saves, "fresh token must not be re-persisted")
}

func TestEnsureFreshAccessTokenRefreshesWhenExpired(t *testing.T) {
	now := time.Now()
	ep := newTokenEndpoint(t, http.StatusOK, map[string]any{
		"access_token": "new-access",
		"expires_in":   3600,
		"token_type":   "Bearer",
	})
	store := &fakeAccountStore{account: linkedAccount(now, -time.Minute)}

	r := newRefresher(store, ep.srv.URL, now)
	creds, err := r.EnsureFreshAccessToken(context.Background(), "user-1")
	require.NoError(t, err)

	assert.EqualValues(t, 1, ep.calls.Load())
	assert.Equal(t, "new-access", creds.AccessToken)

	form := <-ep.forms
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "stored-refresh", form.Get("refresh_token"))
	assert.Equal(t, "client-id", form.Get("client_id"))

	require.Len(t, store.saves, 1)
	wantExpiry := now.Add(3600*time.Second - 60*time.Second)
	assert.WithinDuration(t, wantExpiry, store.saves[0].AccessTokenExpiresAt, time.Second)
}

func TestEnsureFreshAccessTokenRefreshesInsideSafetyMargin(t *testing.T) {
	now := time.Now()
	ep := newTokenEndpoint(t, http.StatusOK, map[string]any{
		"access_token": "new-access",
		"expires_in":   3600,
	})
	// Expires in one minute, inside the two-minute margin.
	store := &fakeAccountStore{account: linkedAccount(now, time.Minute)}

	r := newRefresher(store, ep.srv.URL, now)
	_, err := r.EnsureFreshAccessToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, ep.calls.Load())
}

func TestEnsureFreshAccessTokenRefreshesWhenExpiryMissing(t *testing.T) {
	now := time.Now()
	ep := newTokenEndpoint(t, http.StatusOK, map[string]any{
		"access_token": "new-access",
		"expires_in":   3600,
	})
	account := linkedAccount(now, time.Hour)
	account.AccessTokenExpiresAt = nil
	store := &fakeAccountStore{account: account}

	r := newRefresher(store, ep.srv.URL, now)
	_, err := r.EnsureFreshAccessToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, ep.calls.Load())
}

func TestRefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	now := time.Now()
	ep := newTokenEndpoint(t, http.StatusOK, map[string]any{
		"access_token": "new-access",
		"expires_in":   3600,
	})
	store := &fakeAccountStore{account: linkedAccount(now, -time.Minute)}

	r := newRefresher(store, ep.srv.URL, now)
	creds, err := r.EnsureFreshAccessToken(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "stored-refresh", creds.RefreshToken)
	require.Len(t, store.saves, 1)
	assert.Empty(t, store.saves[0].RefreshToken, "a non-rotated refresh token must not be rewritten")
}

func TestRefreshPersistsRotatedRefreshToken(t *testing.T) {
	now := time.Now()
	ep := newTokenEndpoint(t, http.StatusOK, map[string]any{
		"access_token":  "new-access",
		"expires_in":    3600,
		"refresh_token": "rotated-refresh",
	})
	store := &fakeAccountStore{account: linkedAccount(now, -time.Minute)}

	r := newRefresher(store, ep.srv.URL, now)
	creds, err := r.EnsureFreshAccessToken(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "rotated-refresh", creds.RefreshToken)
	require.Len(t, store.saves, 1)
	assert.Equal(t, "rotated-refresh", store.saves[0].RefreshToken)
}

func TestEnsureFreshAccessTokenNoAccount(t *testing.T) {
	now := time.Now()
	ep := newTokenEndpoint(t, http.StatusOK, map[string]any{})
	store := &fakeAccountStore{}

	r := newRefresher(store, ep.srv.URL, now)
	_, err := r.EnsureFreshAccessToken(context.Background(), "user-1")
	assert.ErrorIs(t, err, googleauth.ErrAccountNotLinked)
	assert.EqualValues(t, 0, ep.calls.Load())
}

func TestEnsureFreshAccessTokenNoRefreshToken(t *testing.T) {
	now := time.Now()
	ep := newTokenEndpoint(t, http.StatusOK, map[string]any{})
	account := linkedAccount(now, -time.Minute)
	account.RefreshToken = ""
	store := &fakeAccountStore{account: account}

	r := newRefresher(store, ep.srv.URL, now)
	_, err := r.EnsureFreshAccessToken(context.Background(), "user-1")
	assert.ErrorIs(t, err, googleauth.ErrReauthenticationRequired)
	assert.EqualValues(t, 0, ep.calls.Load())
}

func TestRefreshInvalidGrantRequiresReauthentication(t *testing.T) {
	now := time.Now()
	ep := newTokenEndpoint(t, http.StatusBadRequest, map[string]any{
		"error":             "invalid_grant",
		"error_description": "Token has been expired or revoked.",
	})
	store := &fakeAccountStore{account: linkedAccount(now, -time.Minute)}

	r := newRefresher(store, ep.srv.URL, now)
	_, err := r.EnsureFreshAccessToken(context.Background(), "user-1")
	assert.ErrorIs(t, err, googleauth.ErrReauthenticationRequired)
	assert.Empty(t, store.saves, "the stale account record must be left as-is")
}

func TestRefreshOtherErrorCarriesStatusAndBody(t *testing.T) {
	now := time.Now()
	ep := newTokenEndpoint(t, http.StatusServiceUnavailable, map[string]any{
		"error": "temporarily_unavailable",
	})
	store := &fakeAccountStore{account: linkedAccount(now, -time.Minute)}

	r := newRefresher(store, ep.srv.URL, now)
	_, err := r.EnsureFreshAccessToken(context.Background(), "user-1")

	var refreshErr *googleauth.TokenRefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.Equal(t, http.StatusServiceUnavailable, refreshErr.Status)
	assert.Contains(t, refreshErr.Body, "temporarily_unavailable")
	assert.Empty(t, store.saves)
}

func TestLinkAccountExchangesCodeAndUpserts(t *testing.T) {
	now := time.Now()
	ep := newTokenEndpoint(t, http.StatusOK, map[string]any{
		"access_token":  "linked-access",
		"refresh_token": "linked-refresh",
		"expires_in":    3599,
	})
	store := &fakeAccountStore{}

	r := newRefresher(store, ep.srv.URL, now)
	require.NoError(t, r.LinkAccount(context.Background(), "user-1", "auth-code"))

	form := <-ep.forms
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "auth-code", form.Get("code"))

	require.Len(t, store.upserts, 1)
	account := store.upserts[0]
	assert.Equal(t, "user-1", account.UserID)
	assert.Equal(t, models.ProviderGoogle, account.Provider)
	assert.Equal(t, "linked-access", account.AccessToken)
	assert.Equal(t, "linked-refresh", account.RefreshToken)
	require.NotNil(t, account.AccessTokenExpiresAt)
	assert.WithinDuration(t, now.Add(3599*time.Second-60*time.Second), *account.AccessTokenExpiresAt, time.Second)
}

func TestAuthCodeURL(t *testing.T) {
	store := &fakeAccountStore{}
	r := googleauth.NewRefresher(store, googleauth.Config{
		ClientID:    "client-id",
		RedirectURL: "http://localhost/callback",
	})

	raw := r.AuthCodeURL("state-123")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "state-123", q.Get("state"))
}
