package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore keeps each session's list as a Redis list of JSON records, with a
// companion hash of the modules already recorded. Both keys expire ttl after
// the last append.
type RedisStore struct {
	rdb    goredis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb goredis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "detprep"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(sessionID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, sessionID, StorageKey)
}

func (s *RedisStore) modulesKey(sessionID string) string {
	return s.key(sessionID) + ":modules"
}

// Append claims the module in the marker hash with HSETNX before pushing, so
// only one writer per session and module gets to append.
func (s *RedisStore) Append(ctx context.Context, sessionID string, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	k, mk := s.key(sessionID), s.modulesKey(sessionID)
	claimed, err := s.rdb.HSetNX(ctx, mk, rec.Module, rec.Timestamp).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return ErrDuplicate
	}
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, k, b)
	if s.ttl > 0 {
		pipe.Expire(ctx, k, s.ttl)
		pipe.Expire(ctx, mk, s.ttl)
	}
	if _, err = pipe.Exec(ctx); err != nil {
		// release the claim so a retry can land
		s.rdb.HDel(ctx, mk, rec.Module)
		return err
	}
	return nil
}

func (s *RedisStore) ReadAll(ctx context.Context, sessionID string) ([]Record, error) {
	vals, err := s.rdb.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	list := make([]Record, 0, len(vals))
	for _, v := range vals {
		var rec Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		list = append(list, rec)
	}
	return list, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, s.key(sessionID), s.modulesKey(sessionID)).Err()
}
