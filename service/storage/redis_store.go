package storage

import (
	"context"
	"encoding/json"
	"time"

	"BProject/model"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Redis key layout.
func boardKey(docID string) string      { return "board:doc:" + docID }
func activitiesKey(docID string) string { return "board:activities:" + docID }

// RedisStoreConf configures the Redis-backed store.
type RedisStoreConf struct {
	TTL time.Duration // 0 = keep forever
}

// RedisStore keeps board snapshots and the activity ledger as JSON blobs in
// Redis. The client is injected; the store owns no connection lifecycle.
type RedisStore struct {
	rdb  *redis.Client
	conf RedisStoreConf
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client, conf RedisStoreConf) *RedisStore {
	return &RedisStore{rdb: rdb, conf: conf}
}

func (s *RedisStore) LoadBoard(ctx context.Context, docID string) (*model.DocumentState, bool, error) {
	raw, err := s.rdb.Get(ctx, boardKey(docID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "load board")
	}
	var st model.DocumentState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, false, errors.Wrap(err, "decode board")
	}
	return &st, true, nil
}

func (s *RedisStore) SaveBoard(ctx context.Context, docID string, state *model.DocumentState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "encode board")
	}
	if err := s.rdb.Set(ctx, boardKey(docID), raw, s.conf.TTL).Err(); err != nil {
		return errors.Wrap(err, "save board")
	}
	return nil
}

func (s *RedisStore) LoadActivities(ctx context.Context, docID string) ([]*model.ActivityEntry, error) {
	raw, err := s.rdb.Get(ctx, activitiesKey(docID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load activities")
	}
	var entries []*model.ActivityEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.Wrap(err, "decode activities")
	}
	return entries, nil
}

func (s *RedisStore) SaveActivities(ctx context.Context, docID string, entries []*model.ActivityEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "encode activities")
	}
	if err := s.rdb.Set(ctx, activitiesKey(docID), raw, s.conf.TTL).Err(); err != nil {
		return errors.Wrap(err, "save activities")
	}
	return nil
}
