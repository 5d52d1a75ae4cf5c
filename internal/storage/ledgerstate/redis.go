package ledgerstate

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vadiminshakov/papertrade/internal/domain"
)

const defaultRedisPrefix = "papertrade:ledger:"

// RedisStore keeps one JSON value per user. A single SET replaces the whole
// record, so a failed write never leaves a partial ledger behind.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore creates a ledger store on top of rdb. An empty prefix selects the default.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(user string) (string, error) {
	name, err := RecordName(user)
	if err != nil {
		return "", err
	}
	return s.prefix + name, nil
}

func (s *RedisStore) Load(ctx context.Context, user string) (domain.Ledger, error) {
	key, err := s.key(user)
	if err != nil {
		return domain.Ledger{}, domain.NewPersistenceError("load", user, err)
	}

	payload, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.NewLedger(), nil
		}
		return domain.Ledger{}, domain.NewPersistenceError("load", user, errors.Wrap(err, "read ledger state"))
	}

	l, err := decodeLedger(payload)
	if err != nil {
		return domain.Ledger{}, domain.NewPersistenceError("load", user, err)
	}
	return l, nil
}

func (s *RedisStore) Save(ctx context.Context, user string, l domain.Ledger) error {
	key, err := s.key(user)
	if err != nil {
		return domain.NewPersistenceError("save", user, err)
	}

	payload, err := encodeLedger(l)
	if err != nil {
		return domain.NewPersistenceError("save", user, err)
	}

	if err := s.rdb.Set(ctx, key, payload, 0).Err(); err != nil {
		return domain.NewPersistenceError("save", user, errors.Wrap(err, "write ledger state"))
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return errors.Wrap(s.rdb.Ping(ctx).Err(), "ping redis")
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
