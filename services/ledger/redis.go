package ledger

import (
	"context"

	"github.com/redis/go-redis/v9"

	"ppbooks/noveltybot/logger"
	apperrors "ppbooks/noveltybot/pkg/errors"
)

// RedisLedger keeps the ledger in a Redis set
type RedisLedger struct {
	client *redis.Client
	key    string
	log    *logger.Logger
}

// NewRedisLedger creates a new Redis-backed ledger
func NewRedisLedger(addr string, db int, key string) *RedisLedger {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return newRedisLedgerWithClient(client, key)
}

func newRedisLedgerWithClient(client *redis.Client, key string) *RedisLedger {
	return &RedisLedger{
		client: client,
		key:    key,
		log:    logger.ForLedger().WithField("key", key),
	}
}

// Load reads every member of the set. A missing key is an empty ledger; an
// unreachable server is an error, since the stored URLs still exist.
func (l *RedisLedger) Load(ctx context.Context) (URLSet, error) {
	members, err := l.client.SMembers(ctx, l.key).Result()
	if err != nil {
		return nil, apperrors.NewLedger(l.key, "redis SMEMBERS failed", err)
	}

	set := NewURLSet(members...)
	l.log.Debug().Int("urls", set.Len()).Msg("Ledger loaded")
	return set, nil
}

// Save adds every URL of set to the Redis set. Members are never removed.
func (l *RedisLedger) Save(ctx context.Context, set URLSet) error {
	if set.Len() == 0 {
		return nil
	}

	members := make([]interface{}, 0, set.Len())
	for _, u := range set.Sorted() {
		members = append(members, u)
	}

	if err := l.client.SAdd(ctx, l.key, members...).Err(); err != nil {
		return apperrors.NewLedger(l.key, "redis SADD failed", err)
	}

	l.log.Debug().Int("urls", set.Len()).Msg("Ledger saved")
	return nil
}

// Close closes the Redis connection
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
