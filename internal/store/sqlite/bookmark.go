package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/satchelhq/satchel/internal/domain"
)

// ListBookmarks returns every bookmark owned by userID, newest first.
// The ID tiebreak keeps the order stable when two rows share a
// creation timestamp.
func (s *Store) ListBookmarks(ctx context.Context, userID string) ([]domain.Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, url, created_at
		FROM bookmarks
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := []domain.Bookmark{}
	for rows.Next() {
		var b domain.Bookmark
		if err := rows.Scan(&b.ID, &b.UserID, &b.Title, &b.URL, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// InsertBookmark creates a bookmark for userID and returns the stored
// row. The store assigns the ID and creation time.
func (s *Store) InsertBookmark(ctx context.Context, userID, title, url string) (*domain.Bookmark, error) {
	b := &domain.Bookmark{
		UserID:    userID,
		Title:     title,
		URL:       url,
		CreatedAt: time.Now().UTC(),
	}
	b.ID = s.newID(b.CreatedAt)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks (id, user_id, title, url, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Title, b.URL, b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert bookmark: %w", err)
	}

	return b, nil
}

// DeleteBookmark removes the bookmark if it exists and belongs to
// userID; otherwise it returns ErrNotFound.
func (s *Store) DeleteBookmark(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
