package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// claimInterval is how often the CLI asks whether the browser flow has
// finished. Variable so tests can poll fast.
var claimInterval = 2 * time.Second

// errGrantPending means the claim endpoint has nothing parked under
// the nonce yet. Indistinguishable from a nonce that will never
// resolve, so callers bound the wait with a context deadline.
var errGrantPending = errors.New("grant pending")

// LoginHandoff is one browser sign-in attempt: the URL to open and the
// nonce the CLI polls with until the grant lands.
type LoginHandoff struct {
	Nonce   string
	AuthURL string
}

// NewLoginHandoff mints a fresh nonce bound to this terminal.
func NewLoginHandoff(serverURL string) LoginHandoff {
	nonce := uuid.NewString()
	return LoginHandoff{
		Nonce:   nonce,
		AuthURL: serverURL + "/auth/login?nonce=" + url.QueryEscape(nonce),
	}
}

// AwaitGrant polls the claim endpoint until the browser flow parks a
// grant under the nonce, then persists it as the active session.
func (s *Session) AwaitGrant(ctx context.Context, nonce string) (*Grant, error) {
	t := time.NewTicker(claimInterval)
	defer t.Stop()

	for {
		g, err := s.claim(ctx, nonce)
		if err == nil {
			if err := s.Save(g); err != nil {
				return nil, err
			}
			return g, nil
		}
		if !errors.Is(err, errGrantPending) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (s *Session) claim(ctx context.Context, nonce string) (*Grant, error) {
	body, _ := json.Marshal(map[string]string{"nonce": nonce})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+"/auth/claim", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("claim grant: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var g Grant
		if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
			return nil, fmt.Errorf("claim grant: %w", err)
		}
		return &g, nil
	case http.StatusNotFound:
		return nil, errGrantPending
	default:
		return nil, readError(resp)
	}
}

// OpenBrowser launches the system browser on a best-effort basis.
// Callers print the URL too, for headless terminals and SSH sessions.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	}
	if cmd == nil {
		return fmt.Errorf("no browser launcher for %s", runtime.GOOS)
	}
	return cmd.Start()
}
