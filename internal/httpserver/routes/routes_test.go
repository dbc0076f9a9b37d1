package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/satchelhq/satchel/internal/auth"
	"github.com/satchelhq/satchel/internal/domain"
	"github.com/satchelhq/satchel/internal/httpserver/deps"
	"github.com/satchelhq/satchel/internal/logger"
	"github.com/satchelhq/satchel/internal/notify"
	"github.com/satchelhq/satchel/internal/store/sqlite"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e notify.Event) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) all() []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.Event, len(p.events))
	copy(out, p.events)
	return out
}

func newTestRouter(t *testing.T) (chi.Router, deps.Deps, *recordingPublisher) {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "satchel.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	pub := &recordingPublisher{}
	d := deps.Deps{
		Logger:            logger.Nop(),
		StartTime:         time.Now(),
		TimeNow:           time.Now,
		Store:             store,
		Tokens:            auth.NewTokenIssuer(testSecret, 15*time.Minute),
		Hub:               notify.NewHub(logger.Nop()),
		Publisher:         pub,
		AuthRateBurst:     10,
		AuthRatePerMinute: 60,
	}

	r := chi.NewRouter()
	RegisterAll(r, d)
	return r, d, pub
}

func signIn(t *testing.T, d deps.Deps, login string) (userID, token string) {
	t.Helper()
	u, err := d.Store.UpsertUser(context.Background(), "github", "id-"+login, login)
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	tok, _, err := d.Tokens.Issue(u.ID, login)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return u.ID, tok
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestBookmarksRequireBearerToken(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/bookmarks", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := errBody(t, rec); got != "missing bearer token" {
		t.Errorf("error = %q", got)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	r, _, _ := newTestRouter(t)

	expired := auth.NewTokenIssuer(testSecret, -time.Minute)
	tok, _, err := expired.Issue("u1", "octocat")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	rec := doJSON(t, r, http.MethodGet, "/api/bookmarks", tok, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := errBody(t, rec); got != "invalid or expired token" {
		t.Errorf("error = %q", got)
	}
}

func TestBookmarkLifecycle(t *testing.T) {
	r, d, pub := newTestRouter(t)
	_, tok := signIn(t, d, "alice")

	// Create: the stored row comes back with id, owner, and the
	// normalized URL.
	rec := doJSON(t, r, http.MethodPost, "/api/bookmarks", tok,
		map[string]string{"title": "Docs", "url": "example.org/docs"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created domain.Bookmark
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("parse created: %v", err)
	}
	if created.ID == "" || created.URL != "https://example.org/docs" {
		t.Errorf("created = %+v, want an id and the normalized URL", created)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/bookmarks", tok,
		map[string]string{"title": "Issues", "url": "https://example.org/issues"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("second create status = %d", rec.Code)
	}

	// List: newest first.
	rec = doJSON(t, r, http.MethodGet, "/api/bookmarks", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var items []domain.Bookmark
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("parse list: %v", err)
	}
	if len(items) != 2 || items[0].Title != "Issues" || items[1].Title != "Docs" {
		t.Errorf("list = %+v, want [Issues Docs]", items)
	}

	// Delete: 204, then the same id is gone.
	rec = doJSON(t, r, http.MethodDelete, "/api/bookmarks/"+created.ID, tok, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, r, http.MethodDelete, "/api/bookmarks/"+created.ID, tok, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("repeat delete status = %d, want 404", rec.Code)
	}
	if got := errBody(t, rec); got != "bookmark not found" {
		t.Errorf("error = %q", got)
	}

	// Every committed write was announced.
	events := pub.all()
	if len(events) != 3 {
		t.Fatalf("published %d events, want 3", len(events))
	}
	if events[0].Op != notify.OpCreated || events[2].Op != notify.OpDeleted {
		t.Errorf("events = %+v, want created, created, deleted", events)
	}
	if events[2].BookmarkID != created.ID {
		t.Errorf("deleted event id = %q, want %q", events[2].BookmarkID, created.ID)
	}
}

func TestCreateValidation(t *testing.T) {
	r, d, _ := newTestRouter(t)
	_, tok := signIn(t, d, "alice")

	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{name: "missing title", body: map[string]string{"title": "  ", "url": "example.com"}, want: "missing title"},
		{name: "missing url", body: map[string]string{"title": "Docs", "url": ""}, want: "missing url"},
		{name: "invalid url", body: map[string]string{"title": "Docs", "url": "https://"}, want: "invalid url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, r, http.MethodPost, "/api/bookmarks", tok, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := errBody(t, rec); got != tt.want {
				t.Errorf("error = %q, want %q", got, tt.want)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/bookmarks", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("garbage body status = %d, want 400", rec.Code)
	}
	if got := errBody(t, rec); got != "malformed request body" {
		t.Errorf("error = %q", got)
	}
}

func TestCrossUserDeleteLooksLikeMissing(t *testing.T) {
	r, d, _ := newTestRouter(t)
	_, aliceTok := signIn(t, d, "alice")
	_, bobTok := signIn(t, d, "bob")

	rec := doJSON(t, r, http.MethodPost, "/api/bookmarks", aliceTok,
		map[string]string{"title": "Private", "url": "https://example.org/private"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var created domain.Bookmark
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("parse created: %v", err)
	}

	// Bob cannot tell alice's row from a nonexistent one.
	rec = doJSON(t, r, http.MethodDelete, "/api/bookmarks/"+created.ID, bobTok, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-user delete status = %d, want 404", rec.Code)
	}

	// Bob's list never leaks alice's rows.
	rec = doJSON(t, r, http.MethodGet, "/api/bookmarks", bobTok, nil)
	var items []domain.Bookmark
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("parse list: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("bob sees %d bookmarks, want 0", len(items))
	}

	rec = doJSON(t, r, http.MethodGet, "/api/bookmarks", aliceTok, nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("parse list: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("alice's bookmark vanished after bob's attempt")
	}
}

func TestHealthz(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}
