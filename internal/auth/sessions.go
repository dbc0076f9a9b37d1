package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrSessionNotFound means the refresh token is unknown, expired,
	// revoked, or already rotated.
	ErrSessionNotFound = errors.New("session not found")
	// ErrGrantNotFound means the grant nonce is unknown, expired, or
	// already claimed.
	ErrGrantNotFound = errors.New("grant not found")
	// ErrStateNotFound means the OAuth state is unknown, expired, or
	// already used.
	ErrStateNotFound = errors.New("state not found")
)

// Session is the server-side record behind a refresh token.
type Session struct {
	UserID    string    `json:"user_id"`
	Login     string    `json:"login"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps the short-lived auth state that must survive restarts
// and be shared across instances: refresh sessions, in-flight OAuth
// states, and parked CLI grants.
type Store struct {
	client     *redis.Client
	sessionTTL time.Duration
}

func NewStore(client *redis.Client, sessionTTL time.Duration) *Store {
	return &Store{client: client, sessionTTL: sessionTTL}
}

// CreateSession mints a refresh token for the user and stores its
// session record with the configured TTL.
func (s *Store) CreateSession(ctx context.Context, userID, login string) (string, error) {
	sess := &Session{
		UserID:    userID,
		Login:     login,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	token := uuid.NewString()
	if err := s.client.Set(ctx, SessionKey(token), data, s.sessionTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return token, nil
}

// RotateSession atomically consumes a refresh token and issues a new
// one for the same user. A token can be rotated exactly once; replays
// get ErrSessionNotFound.
func (s *Store) RotateSession(ctx context.Context, token string) (string, *Session, error) {
	data, err := s.client.GetDel(ctx, SessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", nil, ErrSessionNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to consume session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	next, err := s.CreateSession(ctx, sess.UserID, sess.Login)
	if err != nil {
		return "", nil, err
	}
	return next, &sess, nil
}

// RevokeSession deletes a refresh token. Revoking an unknown token is
// not an error.
func (s *Store) RevokeSession(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, SessionKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
