package warmer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"servimap/feed-service/internal/metrics"
	"servimap/feed-service/internal/search"
	"servimap/feed-service/internal/snapshot"
)

// Warmer wraps robfig/cron and manages the snapshot warm loop.
type Warmer struct {
	cron      *cron.Cron
	tracker   *Tracker
	client    search.Client
	snapshots snapshot.Store
	topN      int
	spec      string // cron spec, e.g. "@every 2m"
}

// New creates a Warmer that re-warms the topN most recent queries every
// intervalMinutes minutes.
func New(tracker *Tracker, client search.Client, snapshots snapshot.Store, topN, intervalMinutes int) *Warmer {
	if topN <= 0 {
		topN = 20
	}
	if intervalMinutes <= 0 {
		intervalMinutes = 2
	}
	return &Warmer{
		cron:      cron.New(cron.WithLogger(cron.DefaultLogger)),
		tracker:   tracker,
		client:    client,
		snapshots: snapshots,
		topN:      topN,
		spec:      fmt.Sprintf("@every %dm", intervalMinutes),
	}
}

// Start registers the job and starts the scheduler.
func (w *Warmer) Start(ctx context.Context) error {
	_, err := w.cron.AddFunc(w.spec, func() {
		w.runWarm(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	w.cron.Start()
	log.Printf("[warmer] Cron started — spec: %s, topN: %d", w.spec, w.topN)
	return nil
}

// Stop gracefully shuts down the scheduler.
func (w *Warmer) Stop() {
	w.cron.Stop()
	log.Println("[warmer] Cron stopped")
}

// runWarm re-executes the most recently used queries and rewrites their
// snapshots. Individual failures are logged and skipped; a warm cycle
// never aborts part-way for one bad query.
func (w *Warmer) runWarm(ctx context.Context) {
	entries, err := w.tracker.Recent(ctx, w.topN)
	if err != nil {
		log.Printf("[warmer] Recent error: %v", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	log.Printf("[warmer] Warm cycle started — %d query(ies)", len(entries))
	var warmed int
	for _, e := range entries {
		if err := w.warmOne(ctx, e); err != nil {
			log.Printf("[warmer] Warm error for %s: %v — continuing", e.Fingerprint, err)
			continue
		}
		warmed++
	}
	log.Printf("[warmer] Warm cycle complete — warmed=%d skipped=%d", warmed, len(entries)-warmed)
}

func (w *Warmer) warmOne(ctx context.Context, e Entry) error {
	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	page, err := w.client.Search(fetchCtx, search.Query{Filters: e.Filters, Location: e.Location})
	if err != nil {
		metrics.FetchTotal.WithLabelValues("warm", "error").Inc()
		return err
	}
	metrics.FetchTotal.WithLabelValues("warm", "ok").Inc()

	return w.snapshots.Put(fetchCtx, e.Fingerprint, snapshot.Snapshot{
		Page:     *page,
		StoredAt: time.Now(),
	})
}
