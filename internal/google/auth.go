// Package google handles non-interactive authentication against the
// Google APIs from a previously provisioned token file. The gateway
// never drives an interactive OAuth flow; the token is expected to be
// minted out of band and refreshed via its refresh token.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// DefaultScopes are the Gmail scopes required by the tool catalog.
// Full mailbox access is needed for trash, label and permanent-delete
// operations.
var DefaultScopes = []string{
	"https://mail.google.com/",
}

// Credentials locates the OAuth client credentials and user token on
// disk. Both files use the standard Google JSON formats.
type Credentials struct {
	// CredentialsPath points at the OAuth client secret JSON
	// (installed-application credentials).
	CredentialsPath string

	// TokenPath points at the cached user token JSON written by the
	// out-of-band authorization flow.
	TokenPath string

	// Scopes defaults to DefaultScopes when empty.
	Scopes []string
}

// HasToken reports whether a token file exists at the configured path.
func (c Credentials) HasToken() bool {
	_, err := os.Stat(c.TokenPath)
	return err == nil
}

// TokenSource builds a self-refreshing token source from the stored
// token and client credentials.
func (c Credentials) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	secret, err := os.ReadFile(c.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", c.CredentialsPath, err)
	}
	conf, err := google.ConfigFromJSON(secret, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", c.CredentialsPath, err)
	}

	raw, err := os.ReadFile(c.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file %s: %w", c.TokenPath, err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", c.TokenPath, err)
	}

	ts := conf.TokenSource(ctx, &token)

	// Validate early so an expired refresh token surfaces as a
	// structured failure instead of a crash on first downstream use.
	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("cached token is invalid: %w", err)
	}

	return ts, nil
}

// NewGmailService creates an authenticated Gmail service from the
// configured credentials.
func NewGmailService(ctx context.Context, creds Credentials) (*gmail.Service, error) {
	ts, err := creds.TokenSource(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}
