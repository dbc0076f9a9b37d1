package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/satchelhq/satchel/internal/domain"
)

// API talks to satcheld's bookmark endpoints. It implements
// syncer.Store: every call is scoped server-side to the signed-in
// user, so the client never filters by owner itself.
type API struct {
	base    string
	hc      *http.Client
	session *Session
}

func NewAPI(cfg *Config, sess *Session) *API {
	return &API{
		base:    cfg.ServerURL,
		hc:      cfg.HTTPClient(),
		session: sess,
	}
}

// List fetches the full collection, newest first.
func (a *API) List(ctx context.Context) ([]domain.Bookmark, error) {
	resp, err := a.do(ctx, http.MethodGet, "/api/bookmarks", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}

	var items []domain.Bookmark
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, &domain.StoreError{Message: fmt.Sprintf("malformed server response: %v", err)}
	}
	return items, nil
}

// Create stores a bookmark and returns the row as the server persisted
// it, identifier and timestamp included.
func (a *API) Create(ctx context.Context, title, url string) (*domain.Bookmark, error) {
	payload := map[string]string{"title": title, "url": url}
	resp, err := a.do(ctx, http.MethodPost, "/api/bookmarks", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, readError(resp)
	}

	var b domain.Bookmark
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		return nil, &domain.StoreError{Message: fmt.Sprintf("malformed server response: %v", err)}
	}
	return &b, nil
}

// Delete removes a bookmark by id.
func (a *API) Delete(ctx context.Context, id string) error {
	resp, err := a.do(ctx, http.MethodDelete, "/api/bookmarks/"+id, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return readError(resp)
	}
	return nil
}

// do issues one authenticated request. A 401 forces a session refresh
// and a single retry, so a token invalidated mid-flight costs one
// round trip instead of an error surfaced to the user.
func (a *API) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}

	for attempt := 0; ; attempt++ {
		tok, err := a.session.Token(ctx)
		if err != nil {
			return nil, err
		}

		var rd io.Reader
		if raw != nil {
			rd = bytes.NewReader(raw)
		}
		req, err := http.NewRequestWithContext(ctx, method, a.base+path, rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		if raw != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := a.hc.Do(req)
		if err != nil {
			// No response at all: network, DNS, timeout.
			return nil, &domain.StoreError{Message: err.Error()}
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			if err := a.session.ForceRefresh(ctx); err != nil {
				return nil, err
			}
			continue
		}
		return resp, nil
	}
}

// readError turns a non-2xx response into a StoreError carrying the
// server's message verbatim; the UI shows it as-is.
func readError(resp *http.Response) *domain.StoreError {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)

	msg := body.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &domain.StoreError{Message: msg, Status: resp.StatusCode}
}
