package blogger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"

	"github.com/dafidxcode/tehsainesia/internal/domain"
)

// Scope grants read/write access to the user's blogs.
const Scope = "https://www.googleapis.com/auth/blogger"

// ErrCredentialsUnavailable means no usable token is stored; run `auth` first.
var ErrCredentialsUnavailable = domain.ErrCredentialsUnavailable

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
}

func (c OAuthConfig) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       []string{Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.AuthURL,
			TokenURL: c.TokenURL,
		},
	}
}

// TokenFile persists an OAuth2 token as JSON.
type TokenFile struct {
	path string
}

func NewTokenFile(path string) *TokenFile {
	return &TokenFile{path: path}
}

func (f *TokenFile) Path() string { return f.path }

func (f *TokenFile) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no token at %s", ErrCredentialsUnavailable, f.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("%w: decode token: %v", ErrCredentialsUnavailable, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: empty token", ErrCredentialsUnavailable)
	}
	return &tok, nil
}

func (f *TokenFile) Save(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".token-*.json")
	if err != nil {
		return fmt.Errorf("create temp token: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod token: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace token: %w", err)
	}
	return nil
}

// persistingTokenSource writes every newly issued token back to the file.
type persistingTokenSource struct {
	mu          sync.Mutex
	src         oauth2.TokenSource
	file        *TokenFile
	last        string
	refreshable bool
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.src.Token()
	if err != nil {
		// Only a rejection by the token endpoint, or an expired token that
		// cannot be refreshed, means the stored credential is unusable.
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) || !s.refreshable {
			return nil, fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
		}
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if tok.AccessToken != s.last {
		if err := s.file.Save(tok); err != nil {
			return nil, err
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

// HTTPClient returns a client that authorizes requests with the stored token,
// refreshing it when expired.
func HTTPClient(ctx context.Context, cfg *oauth2.Config, file *TokenFile) (*http.Client, error) {
	tok, err := file.Load()
	if err != nil {
		return nil, err
	}
	src := &persistingTokenSource{
		src:         cfg.TokenSource(ctx, tok),
		file:        file,
		last:        tok.AccessToken,
		refreshable: tok.RefreshToken != "",
	}
	return oauth2.NewClient(ctx, src), nil
}

// Exchange trades an authorization code for a token and stores it.
func Exchange(ctx context.Context, cfg *oauth2.Config, file *TokenFile, code string) (*oauth2.Token, error) {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	if err := file.Save(tok); err != nil {
		return nil, err
	}
	return tok, nil
}
