package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/sercha-vision/internal/logger"
)

// DefaultTimeout bounds how long the flow waits for the user to consent.
const DefaultTimeout = 5 * time.Minute

// ErrNoRefreshToken is returned when the provider grants no refresh token.
var ErrNoRefreshToken = errors.New("oauth: provider returned no refresh token")

// Flow obtains an offline token through the browser.
type Flow struct {
	// Config carries the client credentials, endpoint and scopes.
	Config *oauth2.Config

	// Open is called with the consent URL; nil only prints it.
	Open func(url string) error

	// ListenAddr is the loopback callback address. Defaults to 127.0.0.1:0.
	ListenAddr string

	Timeout time.Duration
}

// Run prints the consent URL to out, waits for the callback and exchanges
// the code.
func (f *Flow) Run(ctx context.Context, out io.Writer) (*oauth2.Token, error) {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	addr := f.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	server := NewCallbackServer(state)
	if err := server.Start(addr); err != nil {
		return nil, err
	}
	defer func() {
		if err := server.Stop(); err != nil {
			logger.Debug("Stopping callback server: %v", err)
		}
	}()

	cfg := *f.Config
	cfg.RedirectURL = server.RedirectURI()
	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)

	fmt.Fprintf(out, "Open this URL to grant Drive access:\n\n  %s\n\n", authURL)
	if f.Open != nil {
		if err := f.Open(authURL); err != nil {
			logger.Debug("Could not open browser: %v", err)
		}
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	code, err := server.Wait(waitCtx)
	if err != nil {
		return nil, err
	}

	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	if token.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	return token, nil
}
