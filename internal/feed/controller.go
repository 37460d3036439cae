package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"servimap/feed-service/internal/fingerprint"
	"servimap/feed-service/internal/metrics"
	"servimap/feed-service/internal/model"
	"servimap/feed-service/internal/search"
	"servimap/feed-service/internal/snapshot"
)

const (
	// DefaultGateTimeout bounds how long a commit waits on image readiness.
	DefaultGateTimeout = 2500 * time.Millisecond

	// fetchTimeout bounds each backend search call. Fetch goroutines
	// detach from the originating request: supersession is logical (late
	// results are discarded by cycle id), not an I/O abort.
	fetchTimeout = 15 * time.Second

	// snapshotReadTimeout bounds the warm-start cache read. A cache
	// slower than this paints nothing; the live fetch proceeds regardless.
	snapshotReadTimeout = 500 * time.Millisecond
)

// Sentinel errors returned by Controller operations.
var (
	ErrNoActiveCycle = errors.New("no active load cycle")
	ErrNotCommitted  = errors.New("feed not committed yet")
)

// CommitSignal is handed to the presentation layer exactly once per
// committed cycle.
type CommitSignal struct {
	CycleID     uint64
	Fingerprint string
	Page        model.ResultPage
	Expansion   *model.ExpansionMetadata
	HasMore     bool
	Empty       bool
}

// Config wires a Controller.
type Config struct {
	Client      search.Client
	Snapshots   snapshot.Store
	Expander    *Expander
	Redis       *redis.Client // optional; commit events are published for SSE forward
	Rules       Rules         // zero value selects DefaultRules
	PageSize    int
	GateTimeout time.Duration
	OnCommit    func(CommitSignal) // optional
}

// Controller runs one feed session: at most one live load cycle at a time,
// superseded whenever the fingerprint changes. All asynchronous arrivals
// (fetch completions, image callbacks, the gate timer) are funneled into
// the cycle reducer under one lock, stamped with the cycle id they belong
// to; arrivals for a superseded cycle are dropped before touching state.
type Controller struct {
	rules       Rules
	client      search.Client
	snapshots   snapshot.Store
	pager       *Pager
	expander    *Expander
	rdb         *redis.Client
	gateTimeout time.Duration
	pageSize    int
	onCommit    func(CommitSignal)

	mu           sync.Mutex
	cycle        *Cycle
	nextID       uint64
	gateTimer    *time.Timer
	snapshotPage *model.ResultPage // painted page for the current cycle, pre-commit
}

// NewController returns a Controller for one feed session.
func NewController(cfg Config) *Controller {
	rules := cfg.Rules
	if rules.SparseThreshold == 0 && rules.VisibleBatch == 0 {
		rules = DefaultRules()
	}
	gateTimeout := cfg.GateTimeout
	if gateTimeout <= 0 {
		gateTimeout = DefaultGateTimeout
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = search.DefaultPageSize
	}
	return &Controller{
		rules:       rules,
		client:      cfg.Client,
		snapshots:   cfg.Snapshots,
		pager:       NewPager(cfg.Client, pageSize),
		expander:    cfg.Expander,
		rdb:         cfg.Redis,
		gateTimeout: gateTimeout,
		pageSize:    pageSize,
		onCommit:    cfg.OnCommit,
	}
}

// BeginResult reports what a freshly started cycle can paint immediately.
type BeginResult struct {
	CycleID     uint64
	Fingerprint string
	Snapshot    *model.ResultPage // cached page for instant paint; nil when cold
}

// Begin starts a new load cycle for the given filters, superseding any
// cycle still in flight. loc may be a coarse or absent coordinate; when
// locFinal is true the parameters are already final and no corrective
// fetch can occur. The optimistic fetch starts immediately either way.
func (c *Controller) Begin(ctx context.Context, role model.Role, filters model.Filters, loc *model.GeoPoint, locFinal bool) BeginResult {
	fp := fingerprint.Compute(filters, loc)

	// Snapshot paint: serve the cached page for this fingerprint
	// instantly; the live fetch proceeds regardless. The read happens
	// before the lock is taken so a slow cache cannot stall event
	// dispatch for the session.
	var snapPage *model.ResultPage
	snapCtx, cancel := context.WithTimeout(ctx, snapshotReadTimeout)
	snap, err := c.snapshots.Get(snapCtx, fp)
	cancel()
	if err != nil {
		slog.Warn("snapshot read failed", "fingerprint", fp, "err", err)
	} else if snap != nil {
		metrics.SnapshotLookups.WithLabelValues("hit").Inc()
		snapPage = &snap.Page
	} else {
		metrics.SnapshotLookups.WithLabelValues("miss").Inc()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.abandonLocked()

	c.nextID++
	cy := &Cycle{
		ID:                 c.nextID,
		Phase:              PhaseFetching,
		StartedAt:          time.Now(),
		Role:               role,
		Filters:            filters,
		FingerprintAtStart: fp,
		SnapshotServed:     snapPage != nil,
		ExpansionRoleOK:    c.expander != nil && c.expander.Eligibility.CanExpand(role),
	}
	c.cycle = cy
	c.snapshotPage = snapPage

	go c.runFetch("optimistic", cy.ID, fp,
		search.Query{Filters: filters, Location: loc},
		EvOptimisticResult, EvOptimisticFailed)

	if locFinal {
		c.dispatchLocked(Event{Kind: EvParamsFinal, CycleID: cy.ID, Fingerprint: fp, Location: loc})
	}

	return BeginResult{CycleID: cy.ID, Fingerprint: fp, Snapshot: c.snapshotPage}
}

// FinalizeLocation delivers the resolved device coordinate for the current
// cycle. If the resulting fingerprint matches the optimistic fetch, the
// held or in-flight result commits with no further network call; otherwise
// exactly one corrective fetch is issued. A duplicate delivery is ignored
// and returns the fingerprint already finalized.
func (c *Controller) FinalizeLocation(loc *model.GeoPoint) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cy := c.cycle
	if cy == nil || IsTerminal(cy.Phase) {
		return "", ErrNoActiveCycle
	}
	if cy.FinalParamsReady {
		// Parameters finalize once per cycle; a duplicate delivery
		// reports the fingerprint the cycle actually keyed on.
		return cy.FinalFingerprint, nil
	}
	fp := fingerprint.Compute(cy.Filters, loc)
	c.dispatchLocked(Event{Kind: EvParamsFinal, CycleID: cy.ID, Fingerprint: fp, Location: loc})
	return fp, nil
}

// ImageReady records an image load completion (success or failure) for a
// rendered item. Signals for superseded cycles are dropped.
func (c *Controller) ImageReady(cycleID uint64, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatchLocked(Event{Kind: EvImageReady, CycleID: cycleID, ImageID: id})
}

// LoadMore appends the next page to a committed feed. Pagination is
// additive: it never resets the asset gate and never re-runs the
// expansion check.
func (c *Controller) LoadMore(ctx context.Context) ([]model.Listing, bool, error) {
	c.mu.Lock()
	committed := c.cycle != nil && c.cycle.Phase == PhaseCommitted
	c.mu.Unlock()
	if !committed {
		return nil, false, ErrNotCommitted
	}

	items, err := c.pager.LoadMore(ctx)
	if errors.Is(err, ErrSuperseded) {
		// The fetch itself succeeded; its result was discarded because a
		// new cycle committed meanwhile.
		return nil, c.pager.HasMore(), err
	}
	if err != nil {
		metrics.FetchTotal.WithLabelValues("page", "error").Inc()
		return nil, c.pager.HasMore(), err
	}
	metrics.FetchTotal.WithLabelValues("page", "ok").Inc()
	return items, c.pager.HasMore(), nil
}

// Status is a point-in-time view of the session for polling clients.
type Status struct {
	CycleID        uint64                   `json:"cycleId"`
	Phase          Phase                    `json:"phase"`
	Fingerprint    string                   `json:"fingerprint"`
	SnapshotServed bool                     `json:"snapshotServed"`
	Snapshot       *model.ResultPage        `json:"snapshot,omitempty"`
	Page           *model.ResultPage        `json:"page,omitempty"`
	Expansion      *model.ExpansionMetadata `json:"expansion,omitempty"`
	HasMore        bool                     `json:"hasMore"`
	Empty          bool                     `json:"empty"`
	Error          string                   `json:"error,omitempty"`
}

// Status returns the current session state. Before commit the snapshot
// page (if any) is the only renderable content; after commit Page holds
// the accumulated list including any pagination appends.
func (c *Controller) Status() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cy := c.cycle
	if cy == nil {
		return Status{}, ErrNoActiveCycle
	}

	st := Status{
		CycleID:        cy.ID,
		Phase:          cy.Phase,
		Fingerprint:    cy.Fingerprint(),
		SnapshotServed: cy.SnapshotServed,
		Snapshot:       c.snapshotPage,
		Expansion:      cy.Expansion,
	}
	if cy.Phase == PhaseCommitted {
		items := c.pager.Items()
		st.Page = &model.ResultPage{Items: items}
		st.HasMore = c.pager.HasMore()
		st.Empty = len(items) == 0
		st.Snapshot = nil
	}
	if cy.Err != nil {
		st.Error = cy.Err.Error()
	}
	return st, nil
}

// ─── Event dispatch ──────────────────────────────────────────────────────────

// dispatch is the entry point for events arriving from goroutines.
func (c *Controller) dispatch(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatchLocked(ev)
}

// dispatchLocked drops stale events, runs the reducer, and executes the
// returned commands. Caller holds c.mu.
func (c *Controller) dispatchLocked(ev Event) {
	cy := c.cycle
	if cy == nil || ev.CycleID != cy.ID {
		// Stale: the cycle was superseded. Expected under filter churn.
		return
	}
	for _, cmd := range c.rules.Apply(cy, ev) {
		c.runCommand(cy, cmd)
	}
}

// runCommand executes one reducer command. Caller holds c.mu; anything
// slow runs in a goroutine and re-enters through dispatch.
func (c *Controller) runCommand(cy *Cycle, cmd Command) {
	switch cmd.Kind {
	case CmdFetchCorrective:
		go c.runFetch("corrective", cy.ID, cy.FinalFingerprint,
			search.Query{Filters: cy.Filters, Location: cy.FinalLocation},
			EvCorrectiveResult, EvCorrectiveFailed)

	case CmdFetchExpansion:
		exclude := make([]string, 0, len(cy.Final.Items))
		for _, it := range cy.Final.Items {
			exclude = append(exclude, it.ID)
		}
		go c.runExpansion(cy.ID, cy.Filters, cy.FinalLocation, exclude)

	case CmdArmGateTimer:
		cycleID := cy.ID
		c.gateTimer = time.AfterFunc(c.gateTimeout, func() {
			c.dispatch(Event{Kind: EvGateTimeout, CycleID: cycleID})
		})

	case CmdCommit:
		c.commitLocked(cy)

	case CmdFail:
		metrics.CyclesTotal.WithLabelValues("failed").Inc()
		slog.Warn("load cycle failed",
			"cycleId", cy.ID, "fingerprint", cy.Fingerprint(), "err", cy.Err)
		c.stopGateTimerLocked()
	}
}

func (c *Controller) runFetch(kind string, cycleID uint64, fp string, q search.Query, okKind, failKind EventKind) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	page, err := c.pager.LoadInitial(ctx, fp, q)
	if err != nil {
		metrics.FetchTotal.WithLabelValues(kind, "error").Inc()
		c.dispatch(Event{Kind: failKind, CycleID: cycleID, Err: err})
		return
	}
	metrics.FetchTotal.WithLabelValues(kind, "ok").Inc()
	c.dispatch(Event{Kind: okKind, CycleID: cycleID, Page: page})
}

func (c *Controller) runExpansion(cycleID uint64, filters model.Filters, loc *model.GeoPoint, exclude []string) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	tier, meta, err := c.expander.FetchTier(ctx, filters, loc, exclude, c.pageSize)
	if err != nil {
		metrics.FetchTotal.WithLabelValues("expansion", "error").Inc()
		slog.Warn("expansion fetch failed", "cycleId", cycleID, "err", err)
		c.dispatch(Event{Kind: EvExpansionFailed, CycleID: cycleID, Err: err})
		return
	}
	metrics.FetchTotal.WithLabelValues("expansion", "ok").Inc()
	c.dispatch(Event{Kind: EvExpansionMerged, CycleID: cycleID, Tier: tier, Meta: meta})
}

// ─── Commit and teardown ─────────────────────────────────────────────────────

// commitLocked performs the single visual commit for cy. Caller holds c.mu.
func (c *Controller) commitLocked(cy *Cycle) {
	c.stopGateTimerLocked()

	metrics.CyclesTotal.WithLabelValues("committed").Inc()
	metrics.CommitDuration.Observe(time.Since(cy.StartedAt).Seconds())
	if cy.Gate.TimedOut() {
		metrics.GateTimeouts.Inc()
	}
	if cy.Expansion != nil {
		metrics.ExpansionsTotal.Inc()
	}

	page := *cy.Final
	fp := cy.Fingerprint()
	c.pager.Commit(search.Query{Filters: cy.Filters, Location: cy.FinalLocation}, page)
	c.snapshotPage = nil

	sig := CommitSignal{
		CycleID:     cy.ID,
		Fingerprint: fp,
		Page:        page,
		Expansion:   cy.Expansion,
		HasMore:     page.NextCursor != "",
		Empty:       len(page.Items) == 0,
	}

	// Snapshot write and event publish are off the lock and non-fatal.
	go c.afterCommit(sig)
}

func (c *Controller) afterCommit(sig CommitSignal) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap := snapshot.Snapshot{Page: sig.Page, Expansion: sig.Expansion, StoredAt: time.Now()}
	if err := c.snapshots.Put(ctx, sig.Fingerprint, snap); err != nil {
		slog.Warn("snapshot write failed", "fingerprint", sig.Fingerprint, "err", err)
	}

	if c.rdb != nil {
		event, _ := json.Marshal(map[string]any{
			"type":        "EVENT_FEED_COMMITTED",
			"cycleId":     fmt.Sprintf("%d", sig.CycleID),
			"fingerprint": sig.Fingerprint,
			"itemCount":   len(sig.Page.Items),
			"expanded":    sig.Expansion != nil,
		})
		if err := c.rdb.Publish(ctx, "EVENT_FEED_COMMITTED", event).Err(); err != nil {
			slog.Warn("publish EVENT_FEED_COMMITTED failed", "err", err)
		}
	}

	if c.onCommit != nil {
		c.onCommit(sig)
	}
}

// abandonLocked retires the current cycle without committing it. Its
// in-flight fetches are left to finish; their results will be dropped by
// the cycle-id check in dispatch.
func (c *Controller) abandonLocked() {
	cy := c.cycle
	if cy == nil || IsTerminal(cy.Phase) {
		return
	}
	_ = cy.transition(PhaseAbandoned)
	metrics.CyclesTotal.WithLabelValues("abandoned").Inc()
	c.stopGateTimerLocked()
}

func (c *Controller) stopGateTimerLocked() {
	if c.gateTimer != nil {
		c.gateTimer.Stop()
		c.gateTimer = nil
	}
}
