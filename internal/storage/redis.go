package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	logx "econbot/pkg/logx"
)

// redisStore keeps the same two JSON documents as the file driver under
// <prefix>:notified and <prefix>:pending.
type redisStore struct {
	db          redis.UniversalClient
	log         logx.Logger
	notifiedKey string
	pendingKey  string
}

func openRedis(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, errors.New("storage.redis_url is required for redis driver")
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis not ready: %w", err)
	}
	return newRedisStore(client, cfg.KeyPrefix, log), nil
}

func newRedisStore(db redis.UniversalClient, prefix string, log logx.Logger) *redisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "econbot"
	}
	return &redisStore{db: db, log: log, notifiedKey: prefix + ":notified", pendingKey: prefix + ":pending"}
}

func (s *redisStore) Close() error { return s.db.Close() }

func (s *redisStore) Load(ctx context.Context) (State, error) {
	st := NewState()
	vals, err := s.db.MGet(ctx, s.notifiedKey, s.pendingKey).Result()
	if err != nil {
		return State{}, fmt.Errorf("redis load: %w", err)
	}
	if b, ok := redisBytes(vals, 0); ok {
		if m, err := decodeNotified(b); err != nil {
			s.log.Warn("notified records unreadable, starting empty", logx.String("key", s.notifiedKey), logx.Err(err))
		} else {
			st.Notified = m
		}
	}
	if b, ok := redisBytes(vals, 1); ok {
		if m, err := decodePending(b); err != nil {
			s.log.Warn("pending results unreadable, starting empty", logx.String("key", s.pendingKey), logx.Err(err))
		} else {
			st.Pending = m
		}
	}
	return st, nil
}

func redisBytes(vals []any, i int) ([]byte, bool) {
	if i >= len(vals) || vals[i] == nil {
		return nil, false
	}
	switch v := vals[i].(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	}
	return nil, false
}

// Save writes both documents in one MULTI/EXEC.
func (s *redisStore) Save(ctx context.Context, st State) error {
	nb, err := encodeNotified(st.Notified)
	if err != nil {
		return err
	}
	pb, err := encodePending(st.Pending)
	if err != nil {
		return err
	}
	_, err = s.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.notifiedKey, nb, 0)
		pipe.Set(ctx, s.pendingKey, pb, 0)
		return nil
	})
	return err
}
