// Package snapshot is the short-TTL cache of the last committed page per
// request fingerprint. It is read once on feed mount to paint content
// instantly, and written on every successful commit (last-writer-wins).
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"servimap/feed-service/internal/model"
)

// DefaultTTL after which a cached snapshot reads as a miss.
const DefaultTTL = 3 * time.Minute

const keyPrefix = "feed:snapshot:"

// Snapshot is the cached value for one fingerprint.
type Snapshot struct {
	Page      model.ResultPage         `json:"page"`
	Expansion *model.ExpansionMetadata `json:"expansion,omitempty"`
	StoredAt  time.Time                `json:"storedAt"`
}

// Store reads and writes snapshots. Get returns (nil, nil) on a miss;
// an expired entry is a miss.
type Store interface {
	Get(ctx context.Context, fp string) (*Snapshot, error)
	Put(ctx context.Context, fp string, snap Snapshot) error
}

// ─── Redis implementation ────────────────────────────────────────────────────

// RedisStore keeps snapshots in Redis with a per-key TTL, so expiry needs
// no janitor.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore returns a RedisStore. ttl <= 0 selects DefaultTTL.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, fp string) (*Snapshot, error) {
	raw, err := s.rdb.Get(ctx, keyPrefix+fp).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot get: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("snapshot unmarshal: %w", err)
	}
	return &snap, nil
}

func (s *RedisStore) Put(ctx context.Context, fp string, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot marshal: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+fp, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("snapshot set: %w", err)
	}
	return nil
}
