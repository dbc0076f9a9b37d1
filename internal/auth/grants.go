package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Grant is a completed sign-in waiting to be picked up by the CLI
// that started it. It is parked under the CLI's nonce and handed out
// exactly once.
type Grant struct {
	UserID       string    `json:"user_id"`
	Login        string    `json:"login"`
	AccessToken  string    `json:"access_token"`
	AccessExpiry time.Time `json:"access_expiry"`
	RefreshToken string    `json:"refresh_token"`
}

// ParkGrant stores a grant under the nonce for GrantTTL.
func (s *Store) ParkGrant(ctx context.Context, nonce string, g *Grant) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal grant: %w", err)
	}
	if err := s.client.Set(ctx, GrantKey(nonce), data, GrantTTL).Err(); err != nil {
		return fmt.Errorf("failed to park grant: %w", err)
	}
	return nil
}

// ClaimGrant consumes the grant parked under nonce. A grant can be
// claimed exactly once.
func (s *Store) ClaimGrant(ctx context.Context, nonce string) (*Grant, error) {
	data, err := s.client.GetDel(ctx, GrantKey(nonce)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim grant: %w", err)
	}

	var g Grant
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grant: %w", err)
	}
	return &g, nil
}

// SaveState records an in-flight OAuth state. The value carries the
// CLI nonce when the flow was started by a CLI, empty otherwise.
func (s *Store) SaveState(ctx context.Context, state, nonce string) error {
	if err := s.client.Set(ctx, StateKey(state), nonce, StateTTL).Err(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// ConsumeState validates and burns an OAuth state, returning the CLI
// nonce it was created with.
func (s *Store) ConsumeState(ctx context.Context, state string) (string, error) {
	nonce, err := s.client.GetDel(ctx, StateKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrStateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume state: %w", err)
	}
	return nonce, nil
}
