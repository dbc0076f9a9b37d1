// Package syncer keeps an in-memory bookmark collection consistent
// with the remote store under concurrent local mutation and remote
// change notifications.
//
// The model is deliberately coarse: every reconciliation path ends in
// a full snapshot fetch that replaces the collection outright, and
// whichever fetch completes last wins. There is no per-record merge.
// For a personal bookmark list this buys a lot of simplicity for a
// negligible amount of refetching.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/satchelhq/satchel/internal/domain"
	"github.com/satchelhq/satchel/internal/logger"
)

// defaultNoticeTTL is how long a transient notice stays visible.
const defaultNoticeTTL = 2500 * time.Millisecond

// Store is the data-store boundary. Implementations are owner-scoped:
// List and Delete must only ever see the authenticated user's rows,
// and Create stamps the owner server-side.
type Store interface {
	List(ctx context.Context) ([]domain.Bookmark, error)
	Create(ctx context.Context, title, url string) (*domain.Bookmark, error)
	Delete(ctx context.Context, id string) error
}

// Notice is a transient status message. It clears itself.
type Notice struct {
	Text  string
	IsErr bool
}

// Snapshot is a copy of the synchronizer's visible state, safe to
// render from any goroutine.
type Snapshot struct {
	Collection    []domain.Bookmark
	Loading       bool
	Submitting    bool
	PendingDelete string
	Notice        *Notice
}

// Syncer holds one user's collection. All state lives behind one
// mutex; store calls happen outside it, so overlapping operations
// interleave at those await points exactly like callbacks on an
// event loop, and apply their results in completion order.
type Syncer struct {
	store  Store
	logger logger.Logger

	mu            sync.Mutex
	collection    []domain.Bookmark
	initialized   bool
	loading       bool
	submitting    bool
	pendingDelete string
	notice        *Notice
	noticeSeq     int

	noticeTTL time.Duration
	updates   chan struct{}
}

func New(store Store, log logger.Logger) *Syncer {
	return &Syncer{
		store:     store,
		logger:    log,
		noticeTTL: defaultNoticeTTL,
		updates:   make(chan struct{}, 1),
	}
}

// Updates signals that a Snapshot would render differently than
// before. Signals coalesce; consumers drain one and re-render.
func (s *Syncer) Updates() <-chan struct{} {
	return s.updates
}

// Snapshot returns a copy of the current state.
func (s *Syncer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Collection:    make([]domain.Bookmark, len(s.collection)),
		Loading:       s.loading,
		Submitting:    s.submitting,
		PendingDelete: s.pendingDelete,
	}
	copy(snap.Collection, s.collection)
	if s.notice != nil {
		n := *s.notice
		snap.Notice = &n
	}
	return snap
}

// Initialize acquires the first full snapshot. Calling it again is
// exactly a Refresh: only the first call flips the loading flag, so
// the operation is idempotent.
func (s *Syncer) Initialize(ctx context.Context) error {
	s.mu.Lock()
	first := !s.initialized
	s.initialized = true
	if first {
		s.loading = true
	}
	s.mu.Unlock()
	if first {
		s.signal()
	}

	err := s.fetch(ctx)

	if first {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		s.signal()
	}
	return err
}

// Refresh refetches the full snapshot and replaces the collection.
// Safe to call concurrently with itself or any mutation; the fetch
// whose response is applied last determines the visible state.
func (s *Syncer) Refresh(ctx context.Context) error {
	return s.fetch(ctx)
}

// ReconcileNotification handles a change event from the notification
// channel. Events carry no payload guarantee beyond "something
// changed", so reconciliation is a refresh, never a delta apply.
func (s *Syncer) ReconcileNotification(ctx context.Context) error {
	return s.Refresh(ctx)
}

func (s *Syncer) fetch(ctx context.Context) error {
	items, err := s.store.List(ctx)
	if err != nil {
		// Collection stays as last known good.
		s.logger.Warn("snapshot fetch failed", logger.Error(err))
		s.setNotice(err.Error(), true)
		return err
	}

	s.mu.Lock()
	s.collection = items
	s.mu.Unlock()
	s.signal()
	return nil
}

// Add validates the input, submits it, and prepends the stored record
// once the store acknowledges it. Nothing is shown speculatively: the
// entry appears only with its real identifier and timestamp.
func (s *Syncer) Add(ctx context.Context, title, rawURL string) error {
	t, err := domain.ValidateTitle(title)
	if err != nil {
		s.setNotice(err.Error(), true)
		return err
	}
	u, err := domain.NormalizeURL(rawURL)
	if err != nil {
		s.setNotice(err.Error(), true)
		return err
	}

	s.setSubmitting(true, "")

	b, err := s.store.Create(ctx, t, u)

	s.mu.Lock()
	s.submitting = false
	if err == nil && b != nil {
		// A refresh may have completed while the insert was in
		// flight and already carry the row; keep it single.
		s.collection = prepend(*b, removeByID(s.collection, b.ID))
	}
	s.mu.Unlock()
	s.signal()

	if err != nil {
		s.setNotice(err.Error(), true)
		return err
	}
	if b == nil {
		// Acknowledged without a row; resync instead of guessing.
		return s.Refresh(ctx)
	}
	return nil
}

// Remove deletes by identifier. The entry leaves the collection only
// after the store confirms; on failure the collection is untouched.
func (s *Syncer) Remove(ctx context.Context, id string) error {
	s.setSubmitting(true, id)

	err := s.store.Delete(ctx, id)

	s.mu.Lock()
	s.submitting = false
	s.pendingDelete = ""
	if err == nil {
		s.collection = removeByID(s.collection, id)
	}
	s.mu.Unlock()
	s.signal()

	if err != nil {
		s.setNotice(err.Error(), true)
		return err
	}
	return nil
}

// Notify posts a transient notice without touching the collection.
// The notification channel uses it to surface subscription trouble.
func (s *Syncer) Notify(text string, isErr bool) {
	s.setNotice(text, isErr)
}

func (s *Syncer) setSubmitting(v bool, pendingDelete string) {
	s.mu.Lock()
	s.submitting = v
	s.pendingDelete = pendingDelete
	s.mu.Unlock()
	s.signal()
}

// setNotice replaces the visible notice and schedules its clearing.
// The sequence number makes a superseded timer a no-op, so a fresh
// notice always gets its full time on screen.
func (s *Syncer) setNotice(text string, isErr bool) {
	s.mu.Lock()
	s.noticeSeq++
	seq := s.noticeSeq
	s.notice = &Notice{Text: text, IsErr: isErr}
	ttl := s.noticeTTL
	s.mu.Unlock()
	s.signal()

	time.AfterFunc(ttl, func() {
		s.mu.Lock()
		stale := s.noticeSeq != seq
		if !stale {
			s.notice = nil
		}
		s.mu.Unlock()
		if !stale {
			s.signal()
		}
	})
}

func (s *Syncer) signal() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func prepend(b domain.Bookmark, rest []domain.Bookmark) []domain.Bookmark {
	out := make([]domain.Bookmark, 0, len(rest)+1)
	out = append(out, b)
	return append(out, rest...)
}

func removeByID(items []domain.Bookmark, id string) []domain.Bookmark {
	out := items[:0]
	for _, b := range items {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}
