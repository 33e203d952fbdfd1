package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis. Entries are JSON values whose
// expiry Redis enforces with PX.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Redis-backed cache store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Get retrieves an entry.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get: %v", ErrStoreUnavailable, err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry is a miss; drop it so the next request repopulates.
		_ = s.client.Del(ctx, key).Err()
		return nil, false, nil
	}
	return &entry, true, nil
}

// Set stores an entry. A non-positive ttl stores nothing.
func (s *RedisStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache: encode entry: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes entries in one command.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: delete: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// scanBatch is the COUNT hint used when scanning for variants.
const scanBatch = 256

// Invalidate removes keys and, via SCAN, every variant key.
func (s *RedisStore) Invalidate(ctx context.Context, keys ...string) error {
	if err := s.Delete(ctx, keys...); err != nil {
		return err
	}
	for _, base := range keys {
		iter := s.client.Scan(ctx, 0, globEscape(base+VariantSep)+"*", scanBatch).Iterator()
		var batch []string
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) == scanBatch {
				if err := s.Delete(ctx, batch...); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("%w: scan: %v", ErrStoreUnavailable, err)
		}
		if err := s.Delete(ctx, batch...); err != nil {
			return err
		}
	}
	return nil
}

var globReplacer = strings.NewReplacer("\\", "\\\\", "*", "\\*", "?", "\\?", "[", "\\[", "]", "\\]")

func globEscape(s string) string {
	return globReplacer.Replace(s)
}

var _ Store = (*RedisStore)(nil)
