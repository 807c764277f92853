package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/piggy-devil/prompt-v1.0/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	defaultAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"

	// freshnessMargin is how close to expiry a stored access token may get
	// before it is refreshed anyway, so it cannot expire mid-request.
	freshnessMargin = 2 * time.Minute

	// expirySlack is subtracted from the provider's expires_in when the new
	// expiry is persisted, absorbing clock skew between us and the provider.
	expirySlack = 60 * time.Second
)

var (
	// ErrAccountNotLinked means the user has no Google account record at all.
	ErrAccountNotLinked = errors.New("google account not linked")

	// ErrReauthenticationRequired means the stored credentials cannot be
	// refreshed (missing or revoked refresh token); the user must run the
	// authorization flow again. The stale account record is kept as-is.
	ErrReauthenticationRequired = errors.New("google re-authentication required")
)

// TokenRefreshError is any other non-2xx answer from the token endpoint.
type TokenRefreshError struct {
	Status int
	Body   string
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("google token refresh failed: status %d: %s", e.Status, e.Body)
}

// Credentials is a token pair known to be valid for at least freshnessMargin.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// TokenUpdate is the single persistence write performed after a successful
// refresh. An empty RefreshToken means the provider did not rotate it and the
// stored value must be kept.
type TokenUpdate struct {
	AccessToken          string
	AccessTokenExpiresAt time.Time
	RefreshToken         string
}

// AccountStore persists linked-account credentials. FindByUser returns
// (nil, nil) when no account exists for the user.
type AccountStore interface {
	FindByUser(ctx context.Context, userID string) (*models.LinkedAccount, error)
	SaveTokens(ctx context.Context, id primitive.ObjectID, upd TokenUpdate) error
	Upsert(ctx context.Context, account *models.LinkedAccount) error
}

// Config carries the OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Refresher keeps a user's Google access token fresh, exchanging the stored
// refresh token at the provider's token endpoint when needed. It performs no
// retries; callers may rerun the whole operation. Concurrent refreshes for
// the same account are last-writer-wins on the stored token pair.
type Refresher struct {
	store      AccountStore
	cfg        Config
	tokenURL   string
	authURL    string
	httpClient *http.Client
	now        func() time.Time
}

type Option func(*Refresher)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Refresher) { r.httpClient = c }
}

// WithEndpoints overrides the provider URLs; tests point them at httptest.
func WithEndpoints(tokenURL, authURL string) Option {
	return func(r *Refresher) {
		if tokenURL != "" {
			r.tokenURL = tokenURL
		}
		if authURL != "" {
			r.authURL = authURL
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Refresher) { r.now = now }
}

func NewRefresher(store AccountStore, cfg Config, opts ...Option) *Refresher {
	r := &Refresher{
		store:      store,
		cfg:        cfg,
		tokenURL:   defaultTokenURL,
		authURL:    defaultAuthURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureFreshAccessToken returns credentials valid for at least the freshness
// margin. A token already fresh enough is returned without any network call
// or write; otherwise exactly one refresh call and one persistence write
// happen.
func (r *Refresher) EnsureFreshAccessToken(ctx context.Context, userID string) (Credentials, error) {
	account, err := r.store.FindByUser(ctx, userID)
	if err != nil {
		return Credentials{}, fmt.Errorf("load linked account: %w", err)
	}
	if account == nil {
		return Credentials{}, ErrAccountNotLinked
	}

	threshold := r.now().Add(freshnessMargin)
	if account.AccessToken != "" && account.AccessTokenExpiresAt != nil && account.AccessTokenExpiresAt.After(threshold) {
		return Credentials{
			AccessToken:  account.AccessToken,
			RefreshToken: account.RefreshToken,
			ExpiresAt:    account.AccessTokenExpiresAt,
		}, nil
	}

	return r.refresh(ctx, account)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token"`
}

type tokenError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (r *Refresher) refresh(ctx context.Context, account *models.LinkedAccount) (Credentials, error) {
	if account.RefreshToken == "" {
		return Credentials{}, fmt.Errorf("missing refresh token: %w", ErrReauthenticationRequired)
	}

	form := url.Values{
		"client_id":     {r.cfg.ClientID},
		"client_secret": {r.cfg.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {account.RefreshToken},
	}

	token, err := r.postTokenForm(ctx, form)
	if err != nil {
		return Credentials{}, err
	}

	expiresAt := r.expiryFor(token.ExpiresIn)
	update := TokenUpdate{
		AccessToken:          token.AccessToken,
		AccessTokenExpiresAt: expiresAt,
		RefreshToken:         token.RefreshToken,
	}
	if err := r.store.SaveTokens(ctx, account.ID, update); err != nil {
		return Credentials{}, fmt.Errorf("persist refreshed tokens: %w", err)
	}

	refreshToken := account.RefreshToken
	if token.RefreshToken != "" {
		refreshToken = token.RefreshToken
	}

	return Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    &expiresAt,
	}, nil
}

func (r *Refresher) postTokenForm(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var terr tokenError
		if json.Unmarshal(body, &terr) == nil && terr.Code == "invalid_grant" {
			// Refresh token revoked or expired; only a new authorization
			// flow can recover.
			return nil, fmt.Errorf("%s: %s: %w", terr.Code, terr.Description, ErrReauthenticationRequired)
		}
		return nil, &TokenRefreshError{
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &token, nil
}

func (r *Refresher) expiryFor(expiresIn int64) time.Time {
	seconds := expiresIn - int64(expirySlack/time.Second)
	if seconds < 0 {
		seconds = 0
	}
	return r.now().Add(time.Duration(seconds) * time.Second)
}
