// Package feed implements the home-feed loading pipeline: one load cycle
// per request fingerprint, from instant snapshot paint through a single
// visual commit.
//
// Valid phase graph:
//
//	FETCHING ──► HELD ───────────┐
//	    │          │             ▼
//	    │          └────────► CORRECTING ──► GATING ──► COMMITTED
//	    │                        ▲             ▲
//	    └────────► MATCHED ──────┘─────────────┘
//
// Every non-terminal phase may also move to ABANDONED (superseded by a new
// fingerprint) or FAILED (fetch failed twice). COMMITTED, ABANDONED and
// FAILED are terminal.
package feed

import (
	"fmt"
	"time"

	"servimap/feed-service/internal/model"
)

// Phase is the load cycle's position in the pipeline.
type Phase string

const (
	// PhaseFetching: optimistic fetch in flight, final parameters (the
	// resolved user coordinate) not yet known.
	PhaseFetching Phase = "FETCHING"
	// PhaseHeld: optimistic fetch resolved before final parameters; its
	// result is stored on the cycle but not rendered.
	PhaseHeld Phase = "HELD"
	// PhaseMatched: final parameters arrived and fingerprint-match the
	// optimistic fetch, which is still in flight. No second call will be
	// made.
	PhaseMatched Phase = "MATCHED"
	// PhaseCorrecting: final parameters mismatched; exactly one corrective
	// fetch is in flight.
	PhaseCorrecting Phase = "CORRECTING"
	// PhaseGating: data is final; awaiting the asset readiness gate and
	// any pending expansion merge.
	PhaseGating Phase = "GATING"

	PhaseCommitted Phase = "COMMITTED"
	PhaseAbandoned Phase = "ABANDONED"
	PhaseFailed    Phase = "FAILED"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Phase][]Phase{
	PhaseFetching:   {PhaseHeld, PhaseMatched, PhaseCorrecting, PhaseAbandoned, PhaseFailed},
	PhaseHeld:       {PhaseGating, PhaseCorrecting, PhaseAbandoned},
	PhaseMatched:    {PhaseGating, PhaseAbandoned, PhaseFailed},
	PhaseCorrecting: {PhaseGating, PhaseAbandoned, PhaseFailed},
	PhaseGating:     {PhaseCommitted, PhaseAbandoned},
	// COMMITTED, ABANDONED and FAILED are terminal — no outgoing transitions
}

// IsTransitionAllowed returns true when moving from → to is permitted.
func IsTransitionAllowed(from, to Phase) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal phase
	}
	for _, p := range allowed {
		if p == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for phases with no outgoing transitions.
func IsTerminal(p Phase) bool {
	_, ok := validTransitions[p]
	return !ok
}

// Cycle is one logical attempt to populate the feed for a fingerprint.
// It is owned exclusively by the Controller; all mutation goes through
// Rules.Apply. The once-per-cycle guards (gate init, gate timer) live here
// as explicit fields rather than ambient flags so staleness discard and
// single-commit are checkable per cycle.
type Cycle struct {
	ID        uint64
	Phase     Phase
	StartedAt time.Time

	Role    model.Role
	Filters model.Filters

	// FingerprintAtStart keys the optimistic fetch; FinalFingerprint is
	// computed once parameters finalize. Equal values mean the held
	// optimistic result commits as-is with no corrective fetch.
	FingerprintAtStart string
	FinalFingerprint   string
	FinalLocation      *model.GeoPoint
	FinalParamsReady   bool

	SnapshotServed bool

	// Optimistic holds a result that resolved before parameters finalized.
	Optimistic *model.ResultPage
	// Final is the page handed to the asset gate (primary tier, plus the
	// expansion tier once merged).
	Final *model.ResultPage

	// ExpansionRoleOK is fixed at creation from the injected eligibility
	// policy. The expansion itself additionally requires a known final
	// location and a sparse primary tier.
	ExpansionRoleOK  bool
	ExpansionPending bool
	Expansion        *model.ExpansionMetadata

	Gate           Gate
	GateTimerArmed bool

	Err error
}

// Fingerprint returns the fingerprint the cycle's data is keyed by: the
// final one when parameters have resolved, otherwise the optimistic one.
func (c *Cycle) Fingerprint() string {
	if c.FinalParamsReady {
		return c.FinalFingerprint
	}
	return c.FingerprintAtStart
}

// transition moves the cycle to the target phase, rejecting moves the
// phase graph does not allow.
func (c *Cycle) transition(to Phase) error {
	if !IsTransitionAllowed(c.Phase, to) {
		return fmt.Errorf("cycle %d: transition %s → %s is not allowed", c.ID, c.Phase, to)
	}
	c.Phase = to
	return nil
}
