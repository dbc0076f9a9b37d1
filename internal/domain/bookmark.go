package domain

import "time"

// Bookmark is a saved URL owned by exactly one user.
type Bookmark struct {
	// ID is the canonical unique identifier, assigned by the store.
	// IDs are ULIDs, so lexicographic order follows creation order.
	ID string `json:"id"`

	// UserID is the owner. Every bookmark visible to a client belongs
	// to that client's authenticated user; the store enforces this on
	// every read and write.
	UserID string `json:"user_id"`

	// Title is free text, never empty.
	Title string `json:"title"`

	// URL is absolute, normalized to carry a scheme.
	URL string `json:"url"`

	// CreatedAt is assigned by the store and is non-decreasing per
	// owner, which makes it the display order key.
	CreatedAt time.Time `json:"created_at"`
}

// User is an account established through the OAuth provider.
type User struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"`
	ProviderID string    `json:"provider_id"`
	Login      string    `json:"login"`
	CreatedAt  time.Time `json:"created_at"`
}
