package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store holds short-lived server-side state, currently the browser
// extension's sessions. Tokens live in Redis with a TTL, so expiry is
// checked on every read instead of cached in the extension process.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func extensionSessionKey(token string) string {
	return fmt.Sprintf("ext:sess:%s", token)
}

func (s *Store) PutExtensionSession(ctx context.Context, token string, userID uint64, ttl time.Duration) error {
	return s.rdb.Set(ctx, extensionSessionKey(token), strconv.FormatUint(userID, 10), ttl).Err()
}

// GetExtensionSession resolves a token to a user id. Expired or unknown
// tokens return redis.Nil.
func (s *Store) GetExtensionSession(ctx context.Context, token string) (uint64, error) {
	v, err := s.rdb.Get(ctx, extensionSessionKey(token)).Result()
	if err != nil {
		return 0, err
	}
	uid, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt extension session %q: %w", token, err)
	}
	return uid, nil
}

func (s *Store) DeleteExtensionSession(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, extensionSessionKey(token)).Err()
}
