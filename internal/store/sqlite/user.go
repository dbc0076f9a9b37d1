package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/satchelhq/satchel/internal/domain"
)

// UpsertUser finds the user for a provider identity, creating it on
// first sign-in. The login is refreshed on every call since providers
// let people rename themselves.
func (s *Store) UpsertUser(ctx context.Context, provider, providerID, login string) (*domain.User, error) {
	u := &domain.User{
		Provider:   provider,
		ProviderID: providerID,
		Login:      login,
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at FROM users
		WHERE provider = ? AND provider_id = ?`,
		provider, providerID).Scan(&u.ID, &u.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		u.ID = uuid.NewString()
		u.CreatedAt = time.Now().UTC()
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO users (id, provider, provider_id, login, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			u.ID, u.Provider, u.ProviderID, u.Login, u.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert user: %w", err)
		}
		return u, nil
	case err != nil:
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET login = ? WHERE id = ?`, login, u.ID); err != nil {
		return nil, fmt.Errorf("failed to update user login: %w", err)
	}
	return u, nil
}

// GetUser returns the user with the given ID, or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, provider, provider_id, login, created_at
		FROM users WHERE id = ?`, id).Scan(
		&u.ID, &u.Provider, &u.ProviderID, &u.Login, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
