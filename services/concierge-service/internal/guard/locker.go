package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a lock could not be taken before the wait budget ran out.
var ErrLockTimeout = errors.New("slot lock wait timed out")

type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

type Lease interface {
	Release(ctx context.Context)
}

// RedisClient is the subset of go-redis the locker needs.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// compare-and-delete: only the owner token removes the key.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	rdb   RedisClient
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
}

// NewRedisLocker locks with SET NX PX. ttl bounds how long a crashed holder blocks others;
// wait bounds how long Acquire polls before giving up.
func NewRedisLocker(rdb RedisClient, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, wait: wait, retry: 25 * time.Millisecond}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx: %w", err)
		}
		if ok {
			return &redisLease{rdb: l.rdb, key: key, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

type redisLease struct {
	rdb   RedisClient
	key   string
	token string
}

func (r *redisLease) Release(ctx context.Context) {
	// An expired lease or a lost connection leaves the key to its TTL.
	_ = unlockScript.Run(ctx, r.rdb, []string{r.key}, r.token).Err()
}

// LocalLocker serializes holders of the same key inside one process. A key's entry lives
// only while someone holds or waits on it.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*localSlot
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*localSlot)}
}

func (l *LocalLocker) ref(key string) *localSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl, ok := l.slots[key]
	if !ok {
		sl = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = sl
	}
	sl.refs++
	return sl
}

func (l *LocalLocker) unref(key string, sl *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(l.slots, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (l *LocalLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	sl := l.ref(key)
	select {
	case sl.ch <- struct{}{}:
		return &localLease{owner: l, key: key, slot: sl}, nil
	case <-ctx.Done():
		l.unref(key, sl)
		return nil, ctx.Err()
	}
}

type localLease struct {
	once  sync.Once
	owner *LocalLocker
	key   string
	slot  *localSlot
}

func (l *localLease) Release(context.Context) {
	l.once.Do(func() {
		<-l.slot.ch
		l.owner.unref(l.key, l.slot)
	})
}
