// Package warmer keeps recently used feed queries' snapshots warm: every
// tick it re-runs the most recently touched fingerprints and refreshes
// their cached pages, so a returning user paints instantly.
package warmer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"servimap/feed-service/internal/model"
)

const (
	recentKey      = "feed:recent" // sorted set: fingerprint → last-use unix
	queryKeyPrefix = "feed:query:"
)

// warmQuery is the stored, re-runnable form of a touched feed query.
type warmQuery struct {
	Filters  model.Filters   `json:"filters"`
	Location *model.GeoPoint `json:"location,omitempty"`
}

// Entry is one recently used query eligible for warming.
type Entry struct {
	Fingerprint string
	Filters     model.Filters
	Location    *model.GeoPoint
}

// Tracker records feed query usage in Redis.
type Tracker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTracker returns a Tracker. Queries untouched for ttl fall out of the
// warm set.
func NewTracker(rdb *redis.Client, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Tracker{rdb: rdb, ttl: ttl}
}

// Touch marks the fingerprint as recently used and stores its re-runnable
// query.
func (t *Tracker) Touch(ctx context.Context, fp string, filters model.Filters, loc *model.GeoPoint) error {
	raw, err := json.Marshal(warmQuery{Filters: filters, Location: loc})
	if err != nil {
		return fmt.Errorf("marshal warm query: %w", err)
	}

	pipe := t.rdb.Pipeline()
	pipe.ZAdd(ctx, recentKey, redis.Z{Score: float64(time.Now().Unix()), Member: fp})
	pipe.Set(ctx, queryKeyPrefix+fp, raw, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("touch %s: %w", fp, err)
	}
	return nil
}

// Recent returns up to n of the most recently touched queries, newest
// first, pruning entries whose stored query has expired.
func (t *Tracker) Recent(ctx context.Context, n int) ([]Entry, error) {
	// Drop fingerprints past the TTL before reading.
	cutoff := float64(time.Now().Add(-t.ttl).Unix())
	if err := t.rdb.ZRemRangeByScore(ctx, recentKey, "-inf", fmt.Sprintf("%f", cutoff)).Err(); err != nil {
		return nil, fmt.Errorf("prune recent set: %w", err)
	}

	fps, err := t.rdb.ZRevRange(ctx, recentKey, 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent set: %w", err)
	}

	entries := make([]Entry, 0, len(fps))
	for _, fp := range fps {
		raw, err := t.rdb.Get(ctx, queryKeyPrefix+fp).Bytes()
		if err != nil {
			// Expired or missing: remove from the warm set.
			t.rdb.ZRem(ctx, recentKey, fp)
			continue
		}
		var q warmQuery
		if err := json.Unmarshal(raw, &q); err != nil {
			t.rdb.ZRem(ctx, recentKey, fp)
			continue
		}
		entries = append(entries, Entry{Fingerprint: fp, Filters: q.Filters, Location: q.Location})
	}
	return entries, nil
}
