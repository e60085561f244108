package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/park285/stoneboard/internal/board"
	"github.com/park285/stoneboard/internal/wire"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

// RedisStore keeps each session as its wire message plus a JSON meta record.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) keyState(id string) string { return "sess:" + strings.TrimSpace(id) }
func (s *RedisStore) keyMeta(id string) string  { return s.keyState(id) + ":meta" }
func (s *RedisStore) keyIndex() string          { return "sess:index" }

func (s *RedisStore) Save(ctx context.Context, meta Meta, state board.SessionState) error {
	if strings.TrimSpace(meta.ID) == "" {
		return ErrInvalidArgs
	}
	raw, err := wire.Encode(state)
	if err != nil {
		return err
	}
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.keyState(meta.ID), raw, s.ttl)
	pipe.Set(ctx, s.keyMeta(meta.ID), metaRaw, s.ttl)
	pipe.SAdd(ctx, s.keyIndex(), meta.ID)
	pipe.Expire(ctx, s.keyIndex(), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session %s: %w", meta.ID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (Meta, board.SessionState, bool, error) {
	raw, err := s.rdb.Get(ctx, s.keyState(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Meta{}, board.SessionState{}, false, nil
	}
	if err != nil {
		return Meta{}, board.SessionState{}, false, err
	}
	state, err := wire.Decode(raw)
	if err != nil {
		return Meta{}, board.SessionState{}, false, fmt.Errorf("load session %s: %w", id, err)
	}
	meta := Meta{ID: id}
	metaRaw, err := s.rdb.Get(ctx, s.keyMeta(id)).Bytes()
	if err == nil {
		if err := json.Unmarshal(metaRaw, &meta); err != nil {
			return Meta{}, board.SessionState{}, false, err
		}
	} else if !errors.Is(err, redis.Nil) {
		return Meta{}, board.SessionState{}, false, err
	}
	return meta, state, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.keyState(id), s.keyMeta(id))
	pipe.SRem(ctx, s.keyIndex(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns the stored sessions, newest first. Index entries whose data
// expired are pruned.
func (s *RedisStore) List(ctx context.Context) ([]Meta, error) {
	ids, err := s.rdb.SMembers(ctx, s.keyIndex()).Result()
	if err != nil {
		return nil, err
	}
	var out []Meta
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, s.keyMeta(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			_ = s.rdb.SRem(ctx, s.keyIndex(), id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		var m Meta
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
