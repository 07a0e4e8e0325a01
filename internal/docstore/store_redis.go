package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"nutridash/pkg/platform/sentinel"
)

const redisKeyPrefix = "docstore:"

// RedisStore keeps each document as a JSON string and each collection's
// insertion order as a list of ids.
//
//	docstore:{collection}:order      LIST of ids
//	docstore:{collection}:doc:{id}   STRING (JSON fields)
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedis constructs a Redis-backed document store. The client lifecycle is
// managed by the caller.
func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func orderKey(collection string) string {
	return redisKeyPrefix + collection + ":order"
}

func docKey(collection, id string) string {
	return redisKeyPrefix + collection + ":doc:" + id
}

func (s *RedisStore) List(ctx context.Context, collection string) ([]Document, error) {
	ids, err := s.client.LRange(ctx, orderKey(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w: %w", collection, sentinel.ErrUnavailable, err)
	}
	if len(ids) == 0 {
		return []Document{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(collection, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w: %w", collection, sentinel.ErrUnavailable, err)
	}

	out := make([]Document, 0, len(ids))
	for i, raw := range values {
		body, ok := raw.(string)
		if !ok {
			// order entry without a body: a delete raced this read
			continue
		}
		var fields Fields
		if err := json.Unmarshal([]byte(body), &fields); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w: %w", collection, ids[i], sentinel.ErrUnavailable, err)
		}
		out = append(out, Document{ID: ids[i], Fields: fields})
	}
	return out, nil
}

func (s *RedisStore) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	id := uuid.NewString()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, docKey(collection, id), body, 0)
		pipe.RPush(ctx, orderKey(collection), id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create in %s: %w: %w", collection, sentinel.ErrUnavailable, err)
	}
	return id, nil
}

func (s *RedisStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	err = s.client.SetArgs(ctx, docKey(collection, id), body, redis.SetArgs{Mode: "XX"}).Err()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("update %s/%s: %w", collection, id, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: %w: %w", collection, id, sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	var deleted *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, docKey(collection, id))
		pipe.LRem(ctx, orderKey(collection), 0, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w: %w", collection, id, sentinel.ErrUnavailable, err)
	}
	if deleted.Val() == 0 {
		return fmt.Errorf("delete %s/%s: %w", collection, id, sentinel.ErrNotFound)
	}
	return nil
}
