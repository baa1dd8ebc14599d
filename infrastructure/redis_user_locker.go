package infrastructure

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	userLockKeyPrefix = "lootledger:user-lock:"
	lockRetryInterval = 25 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedis creates a Redis client from a URL and verifies the connection.
// Returns nil when redisURL is empty.
func NewRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		log.Warn("Redis URL not configured, per-user locking falls back to row locks only")
		return nil, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info("Connected to Redis")
	return client, nil
}

// RedisUserLocker serializes balance-affecting work per user across processes.
// Locks expire after ttl so a crashed holder cannot block a user forever; the
// database row lock taken inside the unit of work remains the final guard.
type RedisUserLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisUserLocker creates a new Redis-backed user locker
func NewRedisUserLocker(client *redis.Client, ttl time.Duration) *RedisUserLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RedisUserLocker{client: client, ttl: ttl}
}

// Lock acquires every user's lock in ascending id order and blocks until all are
// held, ctx is done, or ttl elapses
func (l *RedisUserLocker) Lock(ctx context.Context, userIDs ...int64) (func(), error) {
	ids := sortedUnique(userIDs)

	token, err := newLockToken()
	if err != nil {
		return nil, err
	}

	acquired := make([]string, 0, len(ids))
	release := func() {
		// Release must run even when the caller's context is already cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for i := len(acquired) - 1; i >= 0; i-- {
			if err := releaseScript.Run(releaseCtx, l.client, []string{acquired[i]}, token).Err(); err != nil {
				log.WithFields(log.Fields{
					"key":   acquired[i],
					"error": err,
				}).Warn("Failed to release user lock")
			}
		}
	}

	deadline := time.Now().Add(l.ttl)
	for _, id := range ids {
		key := fmt.Sprintf("%s%d", userLockKeyPrefix, id)
		if err := l.acquire(ctx, key, token, deadline); err != nil {
			release()
			return nil, err
		}
		acquired = append(acquired, key)
	}

	return release, nil
}

func (l *RedisUserLocker) acquire(ctx context.Context, key, token string, deadline time.Time) error {
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for lock %s", key)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// NoopUserLocker grants every lock immediately. Used when Redis is not configured;
// SELECT ... FOR UPDATE on the user row still serializes writers.
type NoopUserLocker struct{}

// Lock returns a no-op release function
func (NoopUserLocker) Lock(ctx context.Context, userIDs ...int64) (func(), error) {
	return func() {}, nil
}

func sortedUnique(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func newLockToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
