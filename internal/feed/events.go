package feed

import (
	"servimap/feed-service/internal/model"
)

// EventKind identifies an asynchronous arrival fed into the cycle reducer.
type EventKind string

const (
	EvOptimisticResult EventKind = "OPTIMISTIC_RESULT"
	EvOptimisticFailed EventKind = "OPTIMISTIC_FAILED"
	EvParamsFinal      EventKind = "PARAMS_FINAL"
	EvCorrectiveResult EventKind = "CORRECTIVE_RESULT"
	EvCorrectiveFailed EventKind = "CORRECTIVE_FAILED"
	EvExpansionMerged  EventKind = "EXPANSION_MERGED"
	EvExpansionFailed  EventKind = "EXPANSION_FAILED"
	EvImageReady       EventKind = "IMAGE_READY"
	EvGateTimeout      EventKind = "GATE_TIMEOUT"
)

// Event is one arrival: a fetch completion, parameter finalization, an
// image callback or a timer firing. CycleID stamps the cycle the event
// belongs to; the dispatcher drops events whose cycle has been superseded
// before Apply ever sees them.
type Event struct {
	Kind    EventKind
	CycleID uint64

	Page        *model.ResultPage // OPTIMISTIC_RESULT, CORRECTIVE_RESULT
	Fingerprint string            // PARAMS_FINAL
	Location    *model.GeoPoint   // PARAMS_FINAL
	Tier        []model.Listing   // EXPANSION_MERGED
	Meta        *model.ExpansionMetadata
	ImageID     string // IMAGE_READY
	Err         error  // *_FAILED
}

// CommandKind identifies a side effect requested by the reducer. The
// reducer itself performs no I/O; the Controller interprets commands.
type CommandKind string

const (
	CmdFetchCorrective CommandKind = "FETCH_CORRECTIVE"
	CmdFetchExpansion  CommandKind = "FETCH_EXPANSION"
	CmdArmGateTimer    CommandKind = "ARM_GATE_TIMER"
	CmdCommit          CommandKind = "COMMIT"
	CmdFail            CommandKind = "FAIL"
)

// Command is one reducer-requested side effect.
type Command struct {
	Kind CommandKind
}

// Rules holds the tunables the reducer needs. Transitions are total
// functions of (cycle, event): any event that does not apply in the
// cycle's current phase leaves the cycle unchanged.
type Rules struct {
	// SparseThreshold is the primary-tier count below which the
	// wide-radius expansion tier is fetched.
	SparseThreshold int
	// VisibleBatch is the number of leading items whose image readiness
	// gates the commit.
	VisibleBatch int
}

// DefaultRules mirrors the mobile client's initial-render tuning.
func DefaultRules() Rules {
	return Rules{SparseThreshold: 30, VisibleBatch: 8}
}

// Apply advances the cycle by one event and returns the side effects to
// run. It must be called with events already filtered to the current
// cycle; it never mutates state for a terminal cycle.
func (r Rules) Apply(c *Cycle, ev Event) []Command {
	if IsTerminal(c.Phase) {
		return nil
	}

	switch ev.Kind {
	case EvOptimisticResult:
		return r.applyOptimisticResult(c, ev)
	case EvOptimisticFailed:
		// In CORRECTING the optimistic call has been superseded; its
		// failure is irrelevant.
		if c.Phase == PhaseFetching || c.Phase == PhaseMatched {
			return fail(c, ev.Err)
		}
	case EvParamsFinal:
		return r.applyParamsFinal(c, ev)
	case EvCorrectiveResult:
		if c.Phase == PhaseCorrecting {
			return r.dataFinal(c, ev.Page)
		}
	case EvCorrectiveFailed:
		if c.Phase == PhaseCorrecting {
			return fail(c, ev.Err)
		}
	case EvExpansionMerged:
		return r.applyExpansionMerged(c, ev)
	case EvExpansionFailed:
		// Non-fatal: commit the primary tier alone.
		if c.ExpansionPending {
			c.ExpansionPending = false
			return maybeCommit(c)
		}
	case EvImageReady:
		c.Gate.MarkReady(ev.ImageID)
		if c.Phase == PhaseGating {
			return maybeCommit(c)
		}
	case EvGateTimeout:
		if c.Phase == PhaseGating && !c.Gate.Open() {
			c.Gate.ForceOpen()
			return maybeCommit(c)
		}
	}
	return nil
}

func (r Rules) applyOptimisticResult(c *Cycle, ev Event) []Command {
	switch c.Phase {
	case PhaseFetching:
		// Resolved before parameters finalized: hold, do not render.
		c.Optimistic = ev.Page
		_ = c.transition(PhaseHeld)
	case PhaseMatched:
		// Parameters already confirmed the optimistic fingerprint.
		return r.dataFinal(c, ev.Page)
	case PhaseCorrecting:
		// Superseded by the corrective fetch — discard.
	}
	return nil
}

func (r Rules) applyParamsFinal(c *Cycle, ev Event) []Command {
	if c.FinalParamsReady {
		return nil
	}
	c.FinalParamsReady = true
	c.FinalFingerprint = ev.Fingerprint
	c.FinalLocation = ev.Location

	match := ev.Fingerprint == c.FingerprintAtStart
	switch c.Phase {
	case PhaseFetching:
		if match {
			_ = c.transition(PhaseMatched)
			return nil
		}
		_ = c.transition(PhaseCorrecting)
		return []Command{{Kind: CmdFetchCorrective}}
	case PhaseHeld:
		if match {
			// The held optimistic result commits as-is: zero extra
			// fetches for this cycle.
			return r.dataFinal(c, c.Optimistic)
		}
		_ = c.transition(PhaseCorrecting)
		return []Command{{Kind: CmdFetchCorrective}}
	}
	return nil
}

// dataFinal installs the primary result page, evaluates the sparse-supply
// expansion, initializes the asset gate exactly once, and moves to GATING.
func (r Rules) dataFinal(c *Cycle, page *model.ResultPage) []Command {
	if page == nil {
		page = &model.ResultPage{}
	}
	c.Final = page

	var cmds []Command
	if c.ExpansionRoleOK && c.FinalLocation != nil && len(page.Items) < r.SparseThreshold {
		c.ExpansionPending = true
		cmds = append(cmds, Command{Kind: CmdFetchExpansion})
	}

	c.Gate.Init(page.Items, r.VisibleBatch)
	if err := c.transition(PhaseGating); err != nil {
		return nil
	}

	if !c.Gate.Open() && !c.GateTimerArmed {
		c.GateTimerArmed = true
		cmds = append(cmds, Command{Kind: CmdArmGateTimer})
	}
	return append(cmds, maybeCommit(c)...)
}

func (r Rules) applyExpansionMerged(c *Cycle, ev Event) []Command {
	if c.Phase != PhaseGating || !c.ExpansionPending {
		return nil
	}
	c.ExpansionPending = false
	c.Final.Items = append(c.Final.Items, ev.Tier...)
	c.Expansion = ev.Meta
	// The gate's visible batch stays fixed: the expansion tier is part of
	// this cycle's single commit, not a new arrival.
	return maybeCommit(c)
}

// maybeCommit transitions to COMMITTED when the gate is open and no
// expansion merge is outstanding. A cycle passes here many times but
// commits at most once: COMMITTED is terminal.
func maybeCommit(c *Cycle) []Command {
	if c.Phase != PhaseGating || c.ExpansionPending || !c.Gate.Open() {
		return nil
	}
	if err := c.transition(PhaseCommitted); err != nil {
		return nil
	}
	return []Command{{Kind: CmdCommit}}
}

func fail(c *Cycle, err error) []Command {
	c.Err = err
	if terr := c.transition(PhaseFailed); terr != nil {
		return nil
	}
	return []Command{{Kind: CmdFail}}
}
