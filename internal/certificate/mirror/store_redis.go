package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"certvault/internal/certificate/models"
	"certvault/pkg/platform/sentinel"
	"certvault/pkg/requestcontext"
)

const redisKeyPrefix = "certvault:certificate:"

// RedisStore mirrors records as JSON values. A zero ttl keeps entries forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, rec models.LedgerRecord) error {
	payload, err := json.Marshal(newEntry(rec, requestcontext.Now(ctx)))
	if err != nil {
		return fmt.Errorf("encode mirror entry: %w", err)
	}
	if err := s.client.SetNX(ctx, redisKeyPrefix+string(rec.Identity), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save mirror entry: %w", err)
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, id models.CertificateIdentity) (*Entry, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+string(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find mirror entry: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode mirror entry: %w", err)
	}
	return &e, nil
}
