package redisstore

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"studyplan/internal/store"
)

const (
	defaultLockTTL   = 30 * time.Second
	lockRetryBackoff = 25 * time.Millisecond
)

// unlockScript deletes the lock only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a store.Locker shared by every process using the same Redis.
// Locks expire after TTL so a crashed holder cannot wedge a series.
type Locker struct {
	client *redis.Client
	prefix string
	TTL    time.Duration
}

var _ store.Locker = (*Locker)(nil)

func NewLocker(client *redis.Client, prefix string) *Locker {
	if prefix == "" {
		prefix = "studyplan"
	}
	return &Locker{client: client, prefix: prefix, TTL: defaultLockTTL}
}

// Lock polls SET NX until it acquires key or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.prefix + ":lock:" + key
	token := uuid.NewString()
	ttl := l.TTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "redis lock %s", key)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryBackoff):
		}
	}

	return func() {
		// Best effort: an expired lock is simply gone.
		_ = unlockScript.Run(context.Background(), l.client, []string{lockKey}, token).Err()
	}, nil
}
