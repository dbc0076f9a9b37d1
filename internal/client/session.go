package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
)

// ErrSignedOut means there is no usable session: the user never signed
// in, signed out, or the server no longer accepts the refresh token.
var ErrSignedOut = errors.New("not signed in")

// refreshSkew is how long before expiry an access token is already
// treated as stale, covering clock drift and request latency.
const refreshSkew = 30 * time.Second

// Grant is the signed-in identity, persisted at SessionPath. The
// refresh token is single use: every refresh rewrites the file.
type Grant struct {
	UserID       string    `json:"user_id"`
	Login        string    `json:"login"`
	AccessToken  string    `json:"access_token"`
	AccessExpiry time.Time `json:"access_expiry"`
	RefreshToken string    `json:"refresh_token"`
}

// Session owns the grant lifecycle: loading it from disk, handing out
// a valid access token, refreshing behind the callers' backs, and
// signing out.
type Session struct {
	path      string
	serverURL string
	hc        *http.Client

	mu       sync.Mutex
	grant    *Grant
	onRotate []func(accessToken string)
}

// NewSession wires a session against the configured server. The grant
// is read from disk if present; a missing file just means signed out.
func NewSession(cfg *Config) (*Session, error) {
	s := &Session{
		path:      cfg.SessionPath(),
		serverURL: cfg.ServerURL,
		hc:        cfg.HTTPClient(),
	}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var g Grant
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", s.path, err)
	}
	s.grant = &g
	return s, nil
}

// SignedIn reports whether a grant is loaded.
func (s *Session) SignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grant != nil
}

// Grant returns a copy of the current grant, or nil when signed out.
func (s *Session) Grant() *Grant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grant == nil {
		return nil
	}
	g := *s.grant
	return &g
}

// OnRotate registers a callback invoked with the new access token
// after every refresh. Long-lived consumers (the event channel) use it
// to re-authenticate in place.
func (s *Session) OnRotate(fn func(accessToken string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRotate = append(s.onRotate, fn)
}

// Token returns an access token valid for at least refreshSkew,
// refreshing the session first when needed. Returns ErrSignedOut when
// no session exists or the server rejected the refresh token.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grant == nil {
		return "", ErrSignedOut
	}
	if time.Until(s.grant.AccessExpiry) > refreshSkew {
		return s.grant.AccessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.grant.AccessToken, nil
}

// ForceRefresh rotates the session now, regardless of how much life
// the access token has left. Used when the server rejects a token the
// client still believed in.
func (s *Session) ForceRefresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grant == nil {
		return ErrSignedOut
	}
	return s.refreshLocked(ctx)
}

// Save persists the grant with owner-only permissions and makes it the
// active session.
func (s *Session) Save(g *Grant) error {
	if err := s.persist(g); err != nil {
		return err
	}
	s.mu.Lock()
	s.grant = g
	s.mu.Unlock()
	return nil
}

func (s *Session) persist(g *Grant) error {
	raw, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// SignOut revokes the session server-side and forgets it locally. The
// local state is cleared even if the server call fails; a revoked or
// expired refresh token is not worth keeping.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	grant := s.grant
	s.grant = nil
	s.mu.Unlock()

	if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", rmErr)
	}
	if grant == nil {
		return nil
	}

	body, _ := json.Marshal(map[string]string{"refresh_token": grant.RefreshToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+"/auth/logout", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.hc.Do(req)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	defer resp.Body.Close()
	return nil
}

// refreshLocked trades the refresh token for a new grant. The caller
// holds s.mu, so concurrent Token calls collapse into one refresh.
func (s *Session) refreshLocked(ctx context.Context) error {
	body, _ := json.Marshal(map[string]string{"refresh_token": s.grant.RefreshToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+"/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.hc.Do(req)
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// The token was already spent or the session expired. Drop the
		// local session so the user gets a clean sign-in prompt.
		s.grant = nil
		_ = os.Remove(s.path)
		return ErrSignedOut
	}
	if resp.StatusCode != http.StatusOK {
		return readError(resp)
	}

	var g Grant
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	if err := s.persist(&g); err != nil {
		return err
	}
	s.grant = &g

	for _, fn := range s.onRotate {
		fn(g.AccessToken)
	}
	return nil
}
