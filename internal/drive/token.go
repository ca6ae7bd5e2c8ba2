package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
)

// Scope grants access only to files created by this application.
const Scope = gdrive.DriveFileScope

var ErrTokenProviderUnavailable = errors.New("google client id is not configured")

// TokenProvider yields an access token for the Drive upload endpoint.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticToken is a token obtained elsewhere, typically by the client.
type StaticToken string

func (t StaticToken) AccessToken(context.Context) (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", errors.New("empty access token")
	}
	return string(t), nil
}

// OAuthConfig holds the OAuth client and the stored user token.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenFile    string
	TokenJSON    string
}

// OAuthTokenProvider refreshes a stored user token with the OAuth client.
type OAuthTokenProvider struct {
	mu  sync.Mutex
	src oauth2.TokenSource
}

// NewOAuthTokenProvider fails with ErrTokenProviderUnavailable when no client
// id is configured.
func NewOAuthTokenProvider(ctx context.Context, cfg OAuthConfig) (*OAuthTokenProvider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, ErrTokenProviderUnavailable
	}
	tok, err := loadToken(cfg)
	if err != nil {
		return nil, err
	}
	oc := OAuth2Config(cfg.ClientID, cfg.ClientSecret, "")
	return &OAuthTokenProvider{src: oauth2.ReuseTokenSource(tok, oc.TokenSource(ctx, tok))}, nil
}

// OAuth2Config is the Google OAuth client configuration with the Drive
// file scope.
func OAuth2Config(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{Scope},
	}
}

func (p *OAuthTokenProvider) AccessToken(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tok, err := p.src.Token()
	if err != nil {
		return "", fmt.Errorf("refresh google token: %w", err)
	}
	return tok.AccessToken, nil
}

func loadToken(cfg OAuthConfig) (*oauth2.Token, error) {
	var b []byte
	switch {
	case strings.TrimSpace(cfg.TokenJSON) != "":
		b = []byte(cfg.TokenJSON)
	case strings.TrimSpace(cfg.TokenFile) != "":
		var err error
		b, err = os.ReadFile(cfg.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("read token file: %w", err)
		}
	default:
		return nil, errors.New("missing google oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return &tok, nil
}
