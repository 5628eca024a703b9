package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cloo-solutions/supportiq/internal/telemetry"
)

const (
	lockPrefix = "supportiq:lock:"

	// DefaultTTL bounds how long a crashed holder can block a key
	DefaultTTL = 30 * time.Second
	// DefaultRetryInterval is the wait between acquisition attempts
	DefaultRetryInterval = 50 * time.Millisecond
)

// ErrNotHeld is returned when extending a lock this holder no longer owns.
var ErrNotHeld = errors.New("lock not held")

// RedisLocker implements a per-key lock using Redis SET NX with a TTL. Each
// acquisition writes its own token so a holder can only release what it took.
type RedisLocker struct {
	client        *redis.Client
	ownerID       string
	ttl           time.Duration
	retryInterval time.Duration
}

// NewRedisLocker creates a RedisLocker. Zero durations use the defaults.
func NewRedisLocker(client *redis.Client, ttl, retryInterval time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	return &RedisLocker{
		client:        client,
		ownerID:       generateOwnerID(),
		ttl:           ttl,
		retryInterval: retryInterval,
	}
}

// NewRedisClient parses a redis:// URL and returns a connected client
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// generateOwnerID identifies this process: hostname:pid:random
func generateOwnerID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), randomHex(8))
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// TryLock makes a single acquisition attempt and returns the owner token on success.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (string, bool, error) {
	token := l.ownerID + ":" + randomHex(4)
	ok, err := l.client.SetNX(ctx, lockPrefix+key, token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Lock polls until key is acquired or ctx is done. While held, the lock is
// renewed every third of its TTL so slow critical sections such as a
// generator call keep exclusive access.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		token, ok, err := l.TryLock(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			stop := l.keepAlive(ctx, key, token)
			return func() {
				stop()
				// Release even if the caller's context is already cancelled.
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := l.Release(releaseCtx, key, token); err != nil {
					log.Printf("lock: %v", err)
					telemetry.CaptureError(ctx, err)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// keepAlive extends key until the returned stop func is called or the lock
// is lost. stop waits for the renewal goroutine to exit.
func (l *RedisLocker) keepAlive(ctx context.Context, key, token string) func() {
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		ticker := time.NewTicker(l.ttl / 3)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				extendCtx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
				err := l.Extend(extendCtx, key, token)
				cancel()
				if errors.Is(err, ErrNotHeld) {
					log.Printf("lock: %v", err)
					telemetry.CaptureError(ctx, err)
					return
				}
				if err != nil {
					log.Printf("lock: %v", err)
				}
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}

// releaseScript deletes the key only if it still holds the caller's token.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Release frees key if token still owns it. Releasing an expired or foreign
// lock is a no-op.
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	_, err := releaseScript.Run(ctx, l.client, []string{lockPrefix + key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

// extendScript refreshes the TTL only if the caller's token still owns the key.
var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Extend pushes out the expiry of a held lock
func (l *RedisLocker) Extend(ctx context.Context, key, token string) error {
	result, err := extendScript.Run(ctx, l.client, []string{lockPrefix + key}, token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", key, err)
	}
	if result == 0 {
		return fmt.Errorf("extend lock %s: %w", key, ErrNotHeld)
	}
	return nil
}
