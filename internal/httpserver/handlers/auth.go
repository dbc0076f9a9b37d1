package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/satchelhq/satchel/internal/auth"
	"github.com/satchelhq/satchel/internal/httpserver/deps"
	"github.com/satchelhq/satchel/internal/logger"
)

// tokenResponse is what a finished sign-in, claim, or refresh hands
// back to the client.
type tokenResponse struct {
	UserID       string    `json:"user_id"`
	Login        string    `json:"login"`
	AccessToken  string    `json:"access_token"`
	AccessExpiry time.Time `json:"access_expiry"`
	RefreshToken string    `json:"refresh_token"`
}

// Login starts the provider round trip. The caller passes the nonce
// it will later claim the grant with; the nonce travels server-side,
// bound to the OAuth state, never through the provider.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nonce := strings.TrimSpace(r.URL.Query().Get("nonce"))
		if nonce == "" {
			writeError(w, http.StatusBadRequest, "missing nonce")
			return
		}

		state := uuid.NewString()
		if err := d.Sessions.SaveState(r.Context(), state, nonce); err != nil {
			d.Logger.Error("failed to save oauth state", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "could not start sign-in")
			return
		}

		http.Redirect(w, r, d.Provider.LoginURL(state), http.StatusFound)
	}
}

// Callback is where the provider sends the browser back. It finishes
// the code exchange, establishes the user, and parks a grant for the
// CLI that started the flow.
func Callback(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		state := r.URL.Query().Get("state")
		code := r.URL.Query().Get("code")
		if state == "" || code == "" {
			writeError(w, http.StatusBadRequest, "missing state or code")
			return
		}

		nonce, err := d.Sessions.ConsumeState(ctx, state)
		if errors.Is(err, auth.ErrStateNotFound) {
			writeError(w, http.StatusBadRequest, "unknown or expired state")
			return
		}
		if err != nil {
			d.Logger.Error("failed to consume oauth state", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "could not finish sign-in")
			return
		}

		tok, err := d.Provider.Exchange(ctx, code)
		if err != nil {
			d.Logger.Warn("code exchange failed", logger.Error(err))
			writeError(w, http.StatusBadGateway, "provider rejected the sign-in")
			return
		}

		identity, err := d.Provider.FetchIdentity(ctx, tok)
		if err != nil {
			d.Logger.Warn("userinfo fetch failed", logger.Error(err))
			writeError(w, http.StatusBadGateway, "could not read identity from provider")
			return
		}

		user, err := d.Store.UpsertUser(ctx, identity.Provider, identity.ProviderID, identity.Login)
		if err != nil {
			d.Logger.Error("failed to upsert user", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "could not establish account")
			return
		}

		access, expiry, err := d.Tokens.Issue(user.ID, user.Login)
		if err != nil {
			d.Logger.Error("failed to issue access token", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "could not establish session")
			return
		}
		refresh, err := d.Sessions.CreateSession(ctx, user.ID, user.Login)
		if err != nil {
			d.Logger.Error("failed to create session", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "could not establish session")
			return
		}

		grant := &auth.Grant{
			UserID:       user.ID,
			Login:        user.Login,
			AccessToken:  access,
			AccessExpiry: expiry,
			RefreshToken: refresh,
		}
		if err := d.Sessions.ParkGrant(ctx, nonce, grant); err != nil {
			d.Logger.Error("failed to park grant", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "could not hand session to client")
			return
		}

		d.Logger.Info("sign-in completed",
			logger.String("user_id", user.ID),
			logger.String("login", user.Login))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, signedInPage, user.Login)
	}
}

const signedInPage = `<!doctype html>
<title>satchel</title>
<style>body{font-family:sans-serif;margin:4rem auto;max-width:28rem;text-align:center}</style>
<h1>Signed in as %s</h1>
<p>You can close this tab and return to your terminal.</p>
`

type claimRequest struct {
	Nonce string `json:"nonce"`
}

// Claim is polled by the CLI after it opened the browser. It hands
// out the parked grant exactly once.
func Claim(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req claimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Nonce == "" {
			writeError(w, http.StatusBadRequest, "missing nonce")
			return
		}

		grant, err := d.Sessions.ClaimGrant(r.Context(), req.Nonce)
		if errors.Is(err, auth.ErrGrantNotFound) {
			writeError(w, http.StatusNotFound, "grant not ready")
			return
		}
		if err != nil {
			d.Logger.Error("failed to claim grant", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "could not claim grant")
			return
		}

		writeJSON(w, http.StatusOK, tokenResponse{
			UserID:       grant.UserID,
			Login:        grant.Login,
			AccessToken:  grant.AccessToken,
			AccessExpiry: grant.AccessExpiry,
			RefreshToken: grant.RefreshToken,
		})
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a refresh token and issues a fresh access token.
// The old refresh token is dead afterwards, even if the response is
// lost; the client signs in again in that case.
func Refresh(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "missing refresh_token")
			return
		}

		next, sess, err := d.Sessions.RotateSession(r.Context(), req.RefreshToken)
		if errors.Is(err, auth.ErrSessionNotFound) {
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		if err != nil {
			d.Logger.Error("failed to rotate session", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "could not refresh session")
			return
		}

		access, expiry, err := d.Tokens.Issue(sess.UserID, sess.Login)
		if err != nil {
			d.Logger.Error("failed to issue access token", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "could not refresh session")
			return
		}

		writeJSON(w, http.StatusOK, tokenResponse{
			UserID:       sess.UserID,
			Login:        sess.Login,
			AccessToken:  access,
			AccessExpiry: expiry,
			RefreshToken: next,
		})
	}
}

// Logout revokes a refresh token. Always succeeds; revoking a dead
// token changes nothing.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "missing refresh_token")
			return
		}

		if err := d.Sessions.RevokeSession(r.Context(), req.RefreshToken); err != nil {
			d.Logger.Error("failed to revoke session", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "could not revoke session")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
