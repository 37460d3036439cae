package search

import (
	"context"
	"log/slog"
	"time"

	"servimap/feed-service/internal/model"
)

// retryDelay separates the two attempts. A failed page is retried exactly
// once; the second failure is surfaced to the caller.
const retryDelay = 250 * time.Millisecond

// Retrying wraps a Client with the feed's shared single-retry policy.
// Initial, corrective, pagination and expansion fetches all go through the
// same rule.
type Retrying struct {
	Inner Client
}

// Search issues q, retrying one time after a short delay on failure.
func (r Retrying) Search(ctx context.Context, q Query) (*model.ResultPage, error) {
	page, err := r.Inner.Search(ctx, q)
	if err == nil {
		return page, nil
	}

	slog.Warn("search failed, retrying once", "err", err)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(retryDelay):
	}

	return r.Inner.Search(ctx, q)
}
