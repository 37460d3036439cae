package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"servimap/feed-service/internal/model"
	"servimap/feed-service/internal/search"
)

// ErrLoadInProgress is returned by LoadMore while a page fetch is already
// running.
var ErrLoadInProgress = errors.New("page load already in progress")

// ErrNoMorePages is returned by LoadMore when the cursor is exhausted.
var ErrNoMorePages = errors.New("no more pages")

// ErrSuperseded is returned by LoadMore when a new commit replaced the
// feed while the page fetch was in flight; the fetched rows belong to the
// old query and were discarded.
var ErrSuperseded = errors.New("feed superseded during page load")

// Pager owns cursor state and the accumulated, committed item list.
// Initial loads are deduplicated per fingerprint: two concurrent calls for
// the same fingerprint share one backend request. Pagination appends with
// id-based dedupe and never disturbs already-accumulated items.
type Pager struct {
	client   search.Client
	pageSize int
	group    singleflight.Group

	mu      sync.Mutex
	query   search.Query // base query for LoadMore; set at commit
	cursor  string
	hasMore bool
	loading bool
	gen     uint64 // bumped by Commit; invalidates in-flight page loads
	items   []model.Listing
	seen    map[string]struct{}
}

// NewPager returns a Pager issuing requests through client.
func NewPager(client search.Client, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = search.DefaultPageSize
	}
	return &Pager{client: client, pageSize: pageSize, seen: make(map[string]struct{})}
}

// LoadInitial fetches the first page for the given fingerprint. Concurrent
// calls with the same fingerprint share a single in-flight request. The
// accumulated list is untouched: the result only becomes visible when the
// cycle commits it via Commit.
func (p *Pager) LoadInitial(ctx context.Context, fp string, q search.Query) (*model.ResultPage, error) {
	q.PageSize = p.pageSize
	q.Cursor = ""

	v, err, _ := p.group.Do(fp, func() (any, error) {
		return p.client.Search(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.ResultPage), nil
}

// Commit replaces the accumulated list with a freshly committed page and
// rebases the cursor. Called exactly once per committed cycle.
func (p *Pager) Commit(q search.Query, page model.ResultPage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.query = q
	p.cursor = page.NextCursor
	p.hasMore = page.NextCursor != ""
	// Invalidate any page fetch still in flight: its rows belong to the
	// query this commit just replaced.
	p.gen++
	p.loading = false
	p.items = append([]model.Listing(nil), page.Items...)
	p.seen = make(map[string]struct{}, len(page.Items))
	for _, it := range page.Items {
		p.seen[it.ID] = struct{}{}
	}
}

// LoadMore fetches the next page and appends it, skipping any id already
// present regardless of backend overlap. A failure preserves everything
// already accumulated; the retry policy lives in the client.
func (p *Pager) LoadMore(ctx context.Context) ([]model.Listing, error) {
	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return nil, ErrLoadInProgress
	}
	if !p.hasMore {
		p.mu.Unlock()
		return nil, ErrNoMorePages
	}
	p.loading = true
	gen := p.gen
	q := p.query
	q.Cursor = p.cursor
	q.PageSize = p.pageSize
	p.mu.Unlock()

	page, err := p.client.Search(ctx, q)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		// A commit replaced the feed while this page was in flight. The
		// result is for the old query: no append, no cursor update.
		return nil, ErrSuperseded
	}
	p.loading = false
	if err != nil {
		return nil, fmt.Errorf("load more: %w", err)
	}

	appended := make([]model.Listing, 0, len(page.Items))
	for _, it := range page.Items {
		if _, dup := p.seen[it.ID]; dup {
			continue
		}
		p.seen[it.ID] = struct{}{}
		p.items = append(p.items, it)
		appended = append(appended, it)
	}
	p.cursor = page.NextCursor
	p.hasMore = page.NextCursor != ""

	return appended, nil
}

// Items returns a copy of the accumulated list.
func (p *Pager) Items() []model.Listing {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Listing(nil), p.items...)
}

// HasMore reports whether another page is available.
func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}
