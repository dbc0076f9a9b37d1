package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/satchelhq/satchel/internal/domain"
	"github.com/satchelhq/satchel/internal/logger"
)

type fakeStore struct {
	mu          sync.Mutex
	listFn      func(ctx context.Context) ([]domain.Bookmark, error)
	createFn    func(ctx context.Context, title, url string) (*domain.Bookmark, error)
	deleteFn    func(ctx context.Context, id string) error
	listCalls   int
	createTitle string
	createURL   string
}

func (f *fakeStore) List(ctx context.Context) ([]domain.Bookmark, error) {
	f.mu.Lock()
	f.listCalls++
	fn := f.listFn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx)
}

func (f *fakeStore) Create(ctx context.Context, title, url string) (*domain.Bookmark, error) {
	f.mu.Lock()
	f.createTitle, f.createURL = title, url
	fn := f.createFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("unexpected create")
	}
	return fn(ctx, title, url)
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	fn := f.deleteFn
	f.mu.Unlock()
	if fn == nil {
		return errors.New("unexpected delete")
	}
	return fn(ctx, id)
}

func (f *fakeStore) lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func staticList(items ...domain.Bookmark) func(context.Context) ([]domain.Bookmark, error) {
	return func(context.Context) ([]domain.Bookmark, error) {
		out := make([]domain.Bookmark, len(items))
		copy(out, items)
		return out, nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestInitializeLoadsSnapshot(t *testing.T) {
	a := domain.Bookmark{ID: "1", Title: "A"}
	store := &fakeStore{listFn: staticList(a)}
	s := New(store, logger.Nop())

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	snap := s.Snapshot()
	if snap.Loading {
		t.Error("Loading still true after Initialize")
	}
	if len(snap.Collection) != 1 || snap.Collection[0].ID != "1" {
		t.Errorf("Collection = %+v, want [A(1)]", snap.Collection)
	}
}

func TestInitializeTwiceEqualsInitializeThenRefresh(t *testing.T) {
	store := &fakeStore{listFn: staticList(domain.Bookmark{ID: "1"})}
	s := New(store, logger.Nop())

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("first Initialize() error = %v", err)
	}
	store.mu.Lock()
	store.listFn = staticList(domain.Bookmark{ID: "2"})
	store.mu.Unlock()

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}

	snap := s.Snapshot()
	if snap.Loading {
		t.Error("second Initialize flipped Loading")
	}
	if len(snap.Collection) != 1 || snap.Collection[0].ID != "2" {
		t.Errorf("Collection = %+v, want the refetched snapshot", snap.Collection)
	}
	if got := store.lists(); got != 2 {
		t.Errorf("List called %d times, want 2", got)
	}
}

func TestRefreshFailureKeepsLastKnownGood(t *testing.T) {
	a := domain.Bookmark{ID: "1", Title: "A"}
	store := &fakeStore{listFn: staticList(a)}
	s := New(store, logger.Nop())

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	storeErr := &domain.StoreError{Message: "permission denied for table bookmarks", Status: 403}
	store.mu.Lock()
	store.listFn = func(context.Context) ([]domain.Bookmark, error) { return nil, storeErr }
	store.mu.Unlock()

	if err := s.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() should return the store error")
	}

	snap := s.Snapshot()
	if len(snap.Collection) != 1 || snap.Collection[0].ID != "1" {
		t.Errorf("Collection = %+v, want last known good", snap.Collection)
	}
	if snap.Notice == nil || !snap.Notice.IsErr {
		t.Fatal("expected an error notice")
	}
	if snap.Notice.Text != "permission denied for table bookmarks" {
		t.Errorf("Notice = %q, want the store message verbatim", snap.Notice.Text)
	}
}

func TestAddPrependsConfirmedRecord(t *testing.T) {
	stored := domain.Bookmark{ID: "9", Title: "Docs", URL: "https://example.org/x"}
	store := &fakeStore{
		listFn: staticList(domain.Bookmark{ID: "1", Title: "Old"}),
		createFn: func(_ context.Context, title, url string) (*domain.Bookmark, error) {
			b := stored
			return &b, nil
		},
	}
	s := New(store, logger.Nop())
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if err := s.Add(context.Background(), "Docs", "example.org/x"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// The store receives the coerced URL, not the raw input.
	if store.createURL != "https://example.org/x" {
		t.Errorf("store received URL %q, want coerced form", store.createURL)
	}

	snap := s.Snapshot()
	if snap.Submitting {
		t.Error("Submitting still true after Add")
	}
	if len(snap.Collection) != 2 {
		t.Fatalf("Collection length = %d, want 2", len(snap.Collection))
	}
	if snap.Collection[0] != stored {
		t.Errorf("head = %+v, want the stored record", snap.Collection[0])
	}
	count := 0
	for _, b := range snap.Collection {
		if b.ID == "9" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("record appears %d times, want exactly once", count)
	}
}

func TestAddRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		url    string
		notice string
	}{
		{name: "empty title", title: "   ", url: "example.com", notice: "missing title"},
		{name: "empty url", title: "Docs", url: "  ", notice: "missing url"},
		{name: "unparseable url", title: "Docs", url: "https://", notice: "invalid url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{listFn: staticList(domain.Bookmark{ID: "1"})}
			s := New(store, logger.Nop())
			if err := s.Initialize(context.Background()); err != nil {
				t.Fatalf("Initialize() error = %v", err)
			}

			err := s.Add(context.Background(), tt.title, tt.url)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Add() error = %v, want ValidationError", err)
			}

			snap := s.Snapshot()
			if len(snap.Collection) != 1 {
				t.Errorf("collection changed on invalid input: %+v", snap.Collection)
			}
			if snap.Notice == nil || snap.Notice.Text != tt.notice {
				t.Errorf("Notice = %+v, want %q", snap.Notice, tt.notice)
			}
			if store.createTitle != "" {
				t.Error("store was called despite validation failure")
			}
		})
	}
}

func TestAddStoreRejectionSurfacesMessageVerbatim(t *testing.T) {
	store := &fakeStore{
		listFn: staticList(),
		createFn: func(context.Context, string, string) (*domain.Bookmark, error) {
			return nil, &domain.StoreError{Message: "duplicate key value violates unique constraint", Status: 409}
		},
	}
	s := New(store, logger.Nop())
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if err := s.Add(context.Background(), "Docs", "example.com"); err == nil {
		t.Fatal("Add() should surface the store error")
	}

	snap := s.Snapshot()
	if len(snap.Collection) != 0 {
		t.Errorf("collection changed on store rejection: %+v", snap.Collection)
	}
	if snap.Notice == nil || snap.Notice.Text != "duplicate key value violates unique constraint" {
		t.Errorf("Notice = %+v, want the store message verbatim", snap.Notice)
	}
}

func TestAddWithoutReturnedRecordFallsBackToRefresh(t *testing.T) {
	refetched := domain.Bookmark{ID: "5", Title: "Docs"}
	store := &fakeStore{
		listFn: staticList(),
		createFn: func(context.Context, string, string) (*domain.Bookmark, error) {
			return nil, nil
		},
	}
	s := New(store, logger.Nop())
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	store.mu.Lock()
	store.listFn = staticList(refetched)
	store.mu.Unlock()

	if err := s.Add(context.Background(), "Docs", "example.com"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if got := store.lists(); got != 2 {
		t.Errorf("List called %d times, want a fallback refetch", got)
	}
	snap := s.Snapshot()
	if len(snap.Collection) != 1 || snap.Collection[0].ID != "5" {
		t.Errorf("Collection = %+v, want the refetched snapshot", snap.Collection)
	}
}

func TestRemovePresentID(t *testing.T) {
	a := domain.Bookmark{ID: "1", Title: "A"}
	b := domain.Bookmark{ID: "2", Title: "B"}
	store := &fakeStore{
		listFn:   staticList(a, b),
		deleteFn: func(context.Context, string) error { return nil },
	}
	s := New(store, logger.Nop())
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if err := s.Remove(context.Background(), "1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Collection) != 1 || snap.Collection[0].ID != "2" {
		t.Errorf("Collection = %+v, want [B(2)]", snap.Collection)
	}
	if snap.PendingDelete != "" {
		t.Errorf("PendingDelete = %q, want cleared", snap.PendingDelete)
	}
}

func TestRemoveFailureLeavesCollection(t *testing.T) {
	a := domain.Bookmark{ID: "1", Title: "A"}
	store := &fakeStore{
		listFn: staticList(a),
		deleteFn: func(context.Context, string) error {
			return &domain.StoreError{Message: "bookmark not found", Status: 404}
		},
	}
	s := New(store, logger.Nop())
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if err := s.Remove(context.Background(), "1"); err == nil {
		t.Fatal("Remove() should surface the store error")
	}

	snap := s.Snapshot()
	if len(snap.Collection) != 1 || snap.Collection[0].ID != "1" {
		t.Errorf("Collection = %+v, want unchanged", snap.Collection)
	}
	if snap.PendingDelete != "" {
		t.Errorf("PendingDelete = %q, want cleared after failure", snap.PendingDelete)
	}
	if snap.Notice == nil || snap.Notice.Text != "bookmark not found" {
		t.Errorf("Notice = %+v, want the store message verbatim", snap.Notice)
	}
}

func TestInterleavedRefreshesLastCompletedWins(t *testing.T) {
	results := make(chan []domain.Bookmark)
	store := &fakeStore{
		listFn: func(context.Context) ([]domain.Bookmark, error) {
			return <-results, nil
		},
	}
	s := New(store, logger.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Refresh(context.Background())
		}()
	}

	waitFor(t, "both fetches in flight", func() bool { return store.lists() == 2 })

	first := []domain.Bookmark{{ID: "x"}}
	second := []domain.Bookmark{{ID: "y"}, {ID: "z"}}

	results <- first
	waitFor(t, "first result applied", func() bool {
		snap := s.Snapshot()
		return len(snap.Collection) == 1 && snap.Collection[0].ID == "x"
	})

	results <- second
	wg.Wait()

	snap := s.Snapshot()
	if len(snap.Collection) != 2 || snap.Collection[0].ID != "y" {
		t.Errorf("Collection = %+v, want the later response, never a merge", snap.Collection)
	}
}

func TestReconcileNotificationRefreshes(t *testing.T) {
	store := &fakeStore{listFn: staticList(domain.Bookmark{ID: "7"})}
	s := New(store, logger.Nop())

	if err := s.ReconcileNotification(context.Background()); err != nil {
		t.Fatalf("ReconcileNotification() error = %v", err)
	}
	if got := store.lists(); got != 1 {
		t.Errorf("List called %d times, want 1", got)
	}
	snap := s.Snapshot()
	if len(snap.Collection) != 1 || snap.Collection[0].ID != "7" {
		t.Errorf("Collection = %+v, want the refetched snapshot", snap.Collection)
	}
}

func TestNoticeClearsItself(t *testing.T) {
	store := &fakeStore{listFn: staticList()}
	s := New(store, logger.Nop())
	s.noticeTTL = 40 * time.Millisecond

	_ = s.Add(context.Background(), "", "")

	if snap := s.Snapshot(); snap.Notice == nil {
		t.Fatal("expected a notice right after the failure")
	}
	waitFor(t, "notice to clear", func() bool { return s.Snapshot().Notice == nil })
}

func TestNewNoticeRestartsTheClock(t *testing.T) {
	store := &fakeStore{listFn: staticList()}
	s := New(store, logger.Nop())
	s.noticeTTL = 60 * time.Millisecond

	_ = s.Add(context.Background(), "", "x")          // "missing title"
	time.Sleep(35 * time.Millisecond)
	_ = s.Add(context.Background(), "t", "")          // "missing url"
	time.Sleep(35 * time.Millisecond)                 // first timer would have fired by now

	snap := s.Snapshot()
	if snap.Notice == nil || snap.Notice.Text != "missing url" {
		t.Errorf("Notice = %+v, want the newer notice still visible", snap.Notice)
	}
	waitFor(t, "second notice to clear", func() bool { return s.Snapshot().Notice == nil })
}

func TestUpdatesSignalCoalesces(t *testing.T) {
	store := &fakeStore{listFn: staticList(domain.Bookmark{ID: "1"})}
	s := New(store, logger.Nop())

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	// Several state changes, at most one pending signal.
	select {
	case <-s.Updates():
	default:
		t.Fatal("expected a pending update signal")
	}
	select {
	case <-s.Updates():
		t.Fatal("signals did not coalesce")
	default:
	}
}
