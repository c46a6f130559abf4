package quarantine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// compare-and-delete, so a reaper never clears a flag re-armed by another instance
var clearIfScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore shares flags between bot instances. Values are the expiry in unix nanoseconds.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisStoreFromURL parses a redis:// URL and pings the server.
func NewRedisStoreFromURL(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(client, prefix), nil
}

func (s *RedisStore) key(groupID int64) string {
	return s.prefix + strconv.FormatInt(groupID, 10)
}

func (s *RedisStore) Arm(ctx context.Context, groupID int64, expiresAt time.Time, ttl time.Duration) error {
	val := strconv.FormatInt(expiresAt.UnixNano(), 10)
	if err := s.client.Set(ctx, s.key(groupID), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis arm %d: %w", groupID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, groupID int64) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, s.key(groupID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis get %d: %w", groupID, err)
	}
	ns, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis value for %d: %w", groupID, err)
	}
	return time.Unix(0, ns), true, nil
}

func (s *RedisStore) ClearIf(ctx context.Context, groupID int64, expiresAt time.Time) (bool, error) {
	val := strconv.FormatInt(expiresAt.UnixNano(), 10)
	n, err := clearIfScript.Run(ctx, s.client, []string{s.key(groupID)}, val).Int()
	if err != nil {
		return false, fmt.Errorf("redis clear %d: %w", groupID, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
