package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const lockExtendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

const keySettlementLock = "giftpool:settlement:lock:%s"

type Locker struct {
	client *redis.Client
	script *redis.Script
	extend *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		extend: redis.NewScript(lockExtendScript),
	}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// Extend resets the ttl of a lock still held under token. It reports false
// once the lock has expired or changed hands.
func (l *Locker) Extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if l == nil || l.client == nil {
		return false, errors.New("lock client not configured")
	}
	n, err := l.extend.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// keepAlive calls extend every interval until stop is closed or extend
// reports the lock lost. Errors are retried on the next tick.
func keepAlive(stop <-chan struct{}, every time.Duration, extend func() (bool, error)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			held, err := extend()
			if err == nil && !held {
				return
			}
		}
	}
}

// GiftLocker serializes settlement attempts for one gift.
type GiftLocker interface {
	// Acquire reports ok=false when another attempt holds the gift. The
	// returned release func is always safe to call.
	Acquire(ctx context.Context, giftID string, ttl time.Duration) (release func(), ok bool, err error)
}

func NewGiftLocker(client *redis.Client) GiftLocker {
	if locker := NewLocker(client); locker != nil {
		return &redisGiftLocker{locker: locker}
	}
	return NewLocalGiftLocker()
}

type redisGiftLocker struct {
	locker *Locker
}

func (l *redisGiftLocker) Acquire(ctx context.Context, giftID string, ttl time.Duration) (func(), bool, error) {
	key := fmt.Sprintf(keySettlementLock, strings.TrimSpace(giftID))
	token, ok, err := l.locker.TryLock(ctx, key, ttl)
	if err != nil || !ok {
		return func() {}, false, err
	}

	// renewed every ttl/3 until released or lost
	every := max(ttl/3, time.Millisecond)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(stop, every, func() (bool, error) {
			extendCtx, cancel := context.WithTimeout(context.Background(), every)
			defer cancel()
			return l.locker.Extend(extendCtx, key, token, ttl)
		})
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// The caller's context may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = l.locker.Release(releaseCtx, key, token)
		})
	}, true, nil
}

// LocalGiftLocker is the single-process fallback used without Redis.
type LocalGiftLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalGiftLocker() *LocalGiftLocker {
	return &LocalGiftLocker{held: make(map[string]struct{})}
}

func (l *LocalGiftLocker) Acquire(ctx context.Context, giftID string, _ time.Duration) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return func() {}, false, err
	}
	key := strings.TrimSpace(giftID)
	if key == "" {
		return func() {}, false, errors.New("lock key is empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return func() {}, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}
