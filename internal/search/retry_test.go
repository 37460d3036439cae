package search_test

import (
	"context"
	"errors"
	"testing"

	"servimap/feed-service/internal/model"
	"servimap/feed-service/internal/search"
)

// flakyClient fails the first failures calls, then succeeds.
type flakyClient struct {
	failures int
	calls    int
}

func (f *flakyClient) Search(ctx context.Context, q search.Query) (*model.ResultPage, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("backend unavailable")
	}
	return &model.ResultPage{Items: []model.Listing{{ID: "a"}}}, nil
}

func TestRetrying_RecoversAfterOneFailure(t *testing.T) {
	inner := &flakyClient{failures: 1}
	r := search.Retrying{Inner: inner}

	page, err := r.Search(context.Background(), search.Query{})
	if err != nil {
		t.Fatalf("expected recovery on second attempt, got error: %v", err)
	}
	if len(page.Items) != 1 {
		t.Errorf("got %d items, want 1", len(page.Items))
	}
	if inner.calls != 2 {
		t.Errorf("inner client called %d times, want 2", inner.calls)
	}
}

func TestRetrying_SurfacesSecondFailure(t *testing.T) {
	inner := &flakyClient{failures: 2}
	r := search.Retrying{Inner: inner}

	if _, err := r.Search(context.Background(), search.Query{}); err == nil {
		t.Fatal("expected error after two consecutive failures")
	}
	if inner.calls != 2 {
		t.Errorf("inner client called %d times, want exactly 2 (retry once, never more)", inner.calls)
	}
}

func TestRetrying_NoRetryOnSuccess(t *testing.T) {
	inner := &flakyClient{}
	r := search.Retrying{Inner: inner}

	if _, err := r.Search(context.Background(), search.Query{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner client called %d times, want 1", inner.calls)
	}
}

func TestRetrying_HonorsCancelledContext(t *testing.T) {
	inner := &flakyClient{failures: 2}
	r := search.Retrying{Inner: inner}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Search(ctx, search.Query{}); err == nil {
		t.Fatal("expected error when context is cancelled before the retry")
	}
	if inner.calls != 1 {
		t.Errorf("inner client called %d times, want 1 (retry skipped on cancel)", inner.calls)
	}
}
