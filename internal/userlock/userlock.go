// Package userlock serializes budget admission per user. Two concurrent
// correction requests for the same user must not both pass the budget check
// on the same stale spend reading.
package userlock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"transcriptcleaner/internal/util"
)

const keyPrefix = "transcriptcleaner:userlock:"

// ErrBusy is returned when the user's lock is already held.
var ErrBusy = errors.New("user lock busy")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker acquires short-lived per-user locks in Redis.
type Locker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLocker creates a locker. ttl bounds how long a crashed holder can
// block the user; it must exceed the admission critical section.
func NewLocker(rdb *redis.Client, ttl time.Duration) (*Locker, error) {
	if rdb == nil {
		return nil, errors.New("user locker redis client is required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{rdb: rdb, ttl: ttl}, nil
}

// Acquire takes the user's lock, retrying until ctx expires. The returned
// release function is safe to call once; it only deletes the lock if this
// holder still owns it.
func (l *Locker) Acquire(ctx context.Context, userID string) (func(), error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user lock requires a user id")
	}
	key := keyPrefix + userID
	holder := util.NewID()

	for {
		ok, err := l.rdb.SetNX(ctx, key, holder, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire user lock: %w", err)
		}
		if ok {
			return func() {
				relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_, _ = releaseScript.Run(relCtx, l.rdb, []string{key}, holder).Result()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ErrBusy
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// TryAcquire takes the lock without waiting, returning ErrBusy when held.
func (l *Locker) TryAcquire(ctx context.Context, userID string) (func(), error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("user lock requires a user id")
	}
	key := keyPrefix + userID
	holder := util.NewID()
	ok, err := l.rdb.SetNX(ctx, key, holder, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire user lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() {
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(relCtx, l.rdb, []string{key}, holder).Result()
	}, nil
}
