package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/satchelhq/satchel/internal/domain"
	"github.com/satchelhq/satchel/internal/httpserver/deps"
	"github.com/satchelhq/satchel/internal/httpserver/mw"
	"github.com/satchelhq/satchel/internal/logger"
	"github.com/satchelhq/satchel/internal/notify"
	"github.com/satchelhq/satchel/internal/store/sqlite"
)

// ListBookmarks returns the caller's collection, newest first.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := mw.ClaimsFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		bookmarks, err := d.Store.ListBookmarks(r.Context(), claims.UserID())
		if err != nil {
			d.Logger.Error("failed to list bookmarks", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "could not load bookmarks")
			return
		}

		writeJSON(w, http.StatusOK, bookmarks)
	}
}

type createBookmarkRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// CreateBookmark validates and stores a new bookmark, then announces
// it. Clients validate before submitting; this is the authoritative
// check, with the same messages.
func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := mw.ClaimsFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		var req createBookmarkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}

		title, err := domain.ValidateTitle(req.Title)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		url, err := domain.NormalizeURL(req.URL)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		b, err := d.Store.InsertBookmark(r.Context(), claims.UserID(), title, url)
		if err != nil {
			d.Logger.Error("failed to insert bookmark", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "could not save bookmark")
			return
		}

		publish(r, d, notify.Event{
			UserID:     b.UserID,
			Op:         notify.OpCreated,
			BookmarkID: b.ID,
		})

		writeJSON(w, http.StatusCreated, b)
	}
}

// DeleteBookmark removes one of the caller's bookmarks and announces
// the removal.
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := mw.ClaimsFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		id := chi.URLParam(r, "id")
		err := d.Store.DeleteBookmark(r.Context(), claims.UserID(), id)
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bookmark not found")
			return
		}
		if err != nil {
			d.Logger.Error("failed to delete bookmark", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "could not delete bookmark")
			return
		}

		publish(r, d, notify.Event{
			UserID:     claims.UserID(),
			Op:         notify.OpDeleted,
			BookmarkID: id,
		})

		w.WriteHeader(http.StatusNoContent)
	}
}

// publish announces a change. The write already committed, so a
// fanout failure must not fail the request; subscribers resync on
// reconnect anyway.
func publish(r *http.Request, d deps.Deps, e notify.Event) {
	if err := d.Publisher.Publish(r.Context(), e); err != nil {
		d.Logger.Warn("failed to publish change event",
			logger.String("op", e.Op),
			logger.String("bookmark_id", e.BookmarkID),
			logger.Error(err))
	}
}
