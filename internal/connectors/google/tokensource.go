package google

import (
	"context"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// DriveScope grants read and write access to the collection.
const DriveScope = "https://www.googleapis.com/auth/drive"

// Credentials identify the account that owns the collection.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string

	// AccessToken is used as a static token when no refresh token is set.
	AccessToken string
}

// OAuthConfig returns the OAuth client configuration for Drive access.
// RedirectURL is left for the consent flow to fill in.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     googleoauth.Endpoint,
		Scopes:       []string{DriveScope},
	}
}

// NewTokenSource creates an oauth2.TokenSource from configured credentials.
// A refresh token with client credentials yields an auto-refreshing source;
// otherwise a static access token is used. Missing credentials are a
// configuration error.
func NewTokenSource(ctx context.Context, creds Credentials) (oauth2.TokenSource, error) {
	if creds.RefreshToken != "" {
		if creds.ClientID == "" || creds.ClientSecret == "" {
			return nil, domain.ConfigurationError("drive.client_id", "client id and secret are required with a refresh token")
		}
		cfg := OAuthConfig(creds.ClientID, creds.ClientSecret)
		return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken}), nil
	}

	if creds.AccessToken != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: creds.AccessToken,
			TokenType:   "Bearer",
		}), nil
	}

	return nil, domain.ConfigurationError("drive.refresh_token", "no drive credentials configured")
}
