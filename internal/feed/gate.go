package feed

import "servimap/feed-service/internal/model"

// Gate is the asset readiness gate for one cycle's visible batch: the
// visual commit is withheld until every tracked image has reported ready
// (load success and failure both count) or the gate timer force-opens it.
//
// The zero value is usable. Image-ready signals that arrive before Init
// are buffered in the ready set; readiness is a set, so arrival order does
// not matter.
type Gate struct {
	initialized bool
	timedOut    bool
	batch       map[string]struct{} // tracked ids — visible items that have an image
	ready       map[string]struct{}
}

// Init fixes the visible batch from the first k items. It runs at most
// once per cycle: further data arrivals for the same cycle (the expansion
// tier, a second backend half resolving late) must not reset tracking.
// Items without an image URL are not tracked — they have nothing to wait
// for.
func (g *Gate) Init(items []model.Listing, k int) {
	if g.initialized {
		return
	}
	g.initialized = true

	if g.batch == nil {
		g.batch = make(map[string]struct{}, k)
	}
	if k > len(items) {
		k = len(items)
	}
	for _, it := range items[:k] {
		if it.ImageURL == "" {
			continue
		}
		g.batch[it.ID] = struct{}{}
	}
}

// MarkReady records an image load completion for id. At-most-once delivery
// is expected but duplicates are harmless.
func (g *Gate) MarkReady(id string) {
	if g.ready == nil {
		g.ready = make(map[string]struct{})
	}
	g.ready[id] = struct{}{}
}

// ForceOpen treats every remaining tracked id as ready. Called when the
// gate timer fires; guarantees the commit is never blocked indefinitely.
func (g *Gate) ForceOpen() {
	g.timedOut = true
}

// TimedOut reports whether the gate was opened by the timer.
func (g *Gate) TimedOut() bool { return g.timedOut }

// Initialized reports whether the visible batch has been fixed.
func (g *Gate) Initialized() bool { return g.initialized }

// Open reports whether the commit may proceed: the batch is initialized
// and either fully covered by ready signals or timed out. An empty batch
// is trivially open.
func (g *Gate) Open() bool {
	if !g.initialized {
		return false
	}
	if g.timedOut {
		return true
	}
	for id := range g.batch {
		if _, ok := g.ready[id]; !ok {
			return false
		}
	}
	return true
}

// Pending returns how many tracked ids have not reported ready.
func (g *Gate) Pending() int {
	n := 0
	for id := range g.batch {
		if _, ok := g.ready[id]; !ok {
			n++
		}
	}
	return n
}
