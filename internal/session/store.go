// Package session provides the stored-credential context the identity
// resolver reads from. The portal never writes credentials; it only reads
// whatever the login flow left behind.
package session

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store exposes the two credential sources for a signed-in user: a structured
// session record (JSON, possibly missing or malformed) and an opaque bearer
// token. A missing value is returned as empty with a nil error; errors are
// reserved for backend failures.
type Store interface {
	// User returns the raw stored session record, or nil when absent.
	User(ctx context.Context) ([]byte, error)
	// Token returns the stored bearer token, or "" when absent.
	Token(ctx context.Context) (string, error)
}

// RedisStore reads session material from Redis.
type RedisStore struct {
	client    *redis.Client
	sessionID string
}

// NewRedisStore creates a store scoped to one session id.
func NewRedisStore(client *redis.Client, sessionID string) *RedisStore {
	return &RedisStore{client: client, sessionID: sessionID}
}

func (s *RedisStore) key(field string) string {
	return fmt.Sprintf("portal:session:%s:%s", s.sessionID, field)
}

// User returns the stored session record JSON, nil when the key is absent.
func (s *RedisStore) User(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key("user")).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: get user record: %w", err)
	}
	return data, nil
}

// Token returns the stored bearer token, "" when the key is absent.
func (s *RedisStore) Token(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key("token")).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session: get token: %w", err)
	}
	return token, nil
}

// StaticStore holds fixed session material. Used for tests and for demo
// wiring where credentials come straight from the environment.
type StaticStore struct {
	UserJSON    []byte
	BearerToken string
}

func (s *StaticStore) User(ctx context.Context) ([]byte, error) {
	if len(s.UserJSON) == 0 {
		return nil, nil
	}
	return s.UserJSON, nil
}

func (s *StaticStore) Token(ctx context.Context) (string, error) {
	return s.BearerToken, nil
}

var _ Store = (*RedisStore)(nil)
var _ Store = (*StaticStore)(nil)
