package feed_test

import (
	"context"
	"sync"

	"servimap/feed-service/internal/model"
	"servimap/feed-service/internal/search"
)

// stubClient scripts search responses for pager and controller tests.
type stubClient struct {
	mu      sync.Mutex
	calls   int
	queries []search.Query

	// respond produces the page for each call. Required.
	respond func(q search.Query) (*model.ResultPage, error)
	// block, when non-nil, holds every Search call until closed.
	block chan struct{}
}

func (s *stubClient) Search(ctx context.Context, q search.Query) (*model.ResultPage, error) {
	s.mu.Lock()
	s.calls++
	s.queries = append(s.queries, q)
	block := s.block
	respond := s.respond
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return respond(q)
}

func (s *stubClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubClient) Queries() []search.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]search.Query(nil), s.queries...)
}

// pageOf builds a page from explicit ids.
func pageOf(cursor string, ids ...string) *model.ResultPage {
	p := &model.ResultPage{NextCursor: cursor}
	for _, id := range ids {
		p.Items = append(p.Items, model.Listing{ID: id, ImageURL: "https://img.example/" + id + ".jpg"})
	}
	return p
}
