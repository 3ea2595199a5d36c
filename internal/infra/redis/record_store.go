package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"prediction-poll-service/internal/app"
	"prediction-poll-service/internal/domain"
)

// RecordStore keeps versioned documents in Redis, one key per record holding
// a {version, data} envelope. Conditional updates run inside WATCH/MULTI so a
// concurrent writer aborts the transaction instead of silently overwriting.
type RecordStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRecordStore wraps a Redis client. ttl <= 0 keeps records forever.
func NewRecordStore(client *redis.Client, ttl time.Duration) *RecordStore {
	return &RecordStore{client: client, ttl: ttl}
}

type envelope struct {
	Version int64           `json:"version"`
	Data    json.RawMessage `json:"data"`
}

func (s *RecordStore) Get(ctx context.Context, id string) (app.Record, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return app.Record{}, domain.ErrNotFound
	}
	if err != nil {
		return app.Record{}, fmt.Errorf("redis get %s: %w", id, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return app.Record{}, fmt.Errorf("decode record %s: %w", id, err)
	}
	return app.Record{ID: id, Version: env.Version, Data: env.Data}, nil
}

func (s *RecordStore) Create(ctx context.Context, id string, data []byte) error {
	raw, err := json.Marshal(envelope{Version: 1, Data: data})
	if err != nil {
		return fmt.Errorf("encode record %s: %w", id, err)
	}
	ok, err := s.client.SetNX(ctx, s.key(id), raw, s.expiry()).Result()
	if err != nil {
		return fmt.Errorf("redis setnx %s: %w", id, err)
	}
	if !ok {
		return domain.ErrRecordExists
	}
	return nil
}

func (s *RecordStore) ConditionalUpdate(ctx context.Context, id string, expectedVersion int64, data []byte) error {
	key := s.key(id)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get %s: %w", id, err)
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("decode record %s: %w", id, err)
		}
		if env.Version != expectedVersion {
			return domain.ErrConcurrentModification
		}

		next, err := json.Marshal(envelope{Version: env.Version + 1, Data: data})
		if err != nil {
			return fmt.Errorf("encode record %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, s.expiry())
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// Key changed between WATCH and EXEC.
		return domain.ErrConcurrentModification
	}
	return err
}

func (s *RecordStore) Delete(ctx context.Context, id string) error {
	deleted, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", id, err)
	}
	if deleted == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *RecordStore) key(id string) string {
	return "record:" + id
}

func (s *RecordStore) expiry() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	return s.ttl
}
