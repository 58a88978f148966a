package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the ledger under a single Redis key and implements the
// conditional write with WATCH: the transaction aborts if anyone touches
// the key between our read and our EXEC, which maps directly onto
// ErrVersionConflict. This is the backend for genuinely concurrent writers
// (scheduled jobs racing chat commands across hosts).
type RedisStore struct {
	client *redis.Client
	key    string
}

type redisEnvelope struct {
	Version      int64         `json:"version"`
	UpdatedAt    string        `json:"updated_at"`
	Transactions []Transaction `json:"transactions"`
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (rs *RedisStore) Read(ctx context.Context) (Snapshot, Version, error) {
	env, err := rs.readEnvelope(ctx, rs.client)
	if err != nil {
		return Snapshot{}, "", err
	}
	s := Snapshot{Transactions: env.Transactions}
	if err := s.Validate(); err != nil {
		return Snapshot{}, "", fmt.Errorf("ledger key %s: %w", rs.key, err)
	}
	return s, Version(strconv.FormatInt(env.Version, 10)), nil
}

func (rs *RedisStore) ConditionalWrite(ctx context.Context, s Snapshot, expected Version) (Version, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	var committed Version
	txn := func(tx *redis.Tx) error {
		cur, err := rs.readEnvelope(ctx, tx)
		if err != nil {
			return err
		}
		if Version(strconv.FormatInt(cur.Version, 10)) != expected {
			return ErrVersionConflict
		}
		next := redisEnvelope{
			Version:      cur.Version + 1,
			UpdatedAt:    time.Now().UTC().Format(time.RFC3339),
			Transactions: s.Transactions,
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal ledger: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rs.key, payload, 0)
			return nil
		})
		if err == nil {
			committed = Version(strconv.FormatInt(next.Version, 10))
		}
		return err
	}

	err := rs.client.Watch(ctx, txn, rs.key)
	if errors.Is(err, redis.TxFailedErr) {
		// Key changed under the WATCH: same situation as a stale token.
		return "", ErrVersionConflict
	}
	if err != nil {
		return "", err
	}
	return committed, nil
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (rs *RedisStore) readEnvelope(ctx context.Context, c redisGetter) (redisEnvelope, error) {
	data, err := c.Get(ctx, rs.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return redisEnvelope{Version: 0}, nil
	}
	if err != nil {
		return redisEnvelope{}, fmt.Errorf("read ledger key %s: %w", rs.key, err)
	}
	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return redisEnvelope{}, fmt.Errorf("decode ledger key %s: %w", rs.key, err)
	}
	return env, nil
}
