package googleauth

import (
	"context"
	"fmt"
	"net/url"

	"github.com/piggy-devil/prompt-v1.0/internal/models"
)

// driveScope grants access to files this application created, not the whole
// Drive.
const driveScope = "https://www.googleapis.com/auth/drive.file"

// AuthCodeURL builds the consent-screen URL that starts the authorization
// flow. access_type=offline with prompt=consent makes Google return a refresh
// token on every exchange, not only the first one.
func (r *Refresher) AuthCodeURL(state string) string {
	params := url.Values{
		"client_id":     {r.cfg.ClientID},
		"redirect_uri":  {r.cfg.RedirectURL},
		"response_type": {"code"},
		"scope":         {driveScope},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
		"state":         {state},
	}
	return r.authURL + "?" + params.Encode()
}

// LinkAccount exchanges an authorization code and upserts the linked-account
// record for the user, replacing any previous credential pair.
func (r *Refresher) LinkAccount(ctx context.Context, userID, code string) error {
	form := url.Values{
		"client_id":     {r.cfg.ClientID},
		"client_secret": {r.cfg.ClientSecret},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {r.cfg.RedirectURL},
		"code":          {code},
	}

	token, err := r.postTokenForm(ctx, form)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}

	expiresAt := r.expiryFor(token.ExpiresIn)
	account := &models.LinkedAccount{
		UserID:               userID,
		Provider:             models.ProviderGoogle,
		AccessToken:          token.AccessToken,
		RefreshToken:         token.RefreshToken,
		AccessTokenExpiresAt: &expiresAt,
	}
	if err := r.store.Upsert(ctx, account); err != nil {
		return fmt.Errorf("persist linked account: %w", err)
	}
	return nil
}
