// Package fusion holds the hazard fusion core: per-kind debounce state
// machines, the conjunctive fusion rules, and the fixed-cadence scheduler
// that drives them.
package fusion

import (
	"fmt"
	"time"
)

// Kind is a debounced signal class.
type Kind int

const (
	KindDrowsy Kind = iota
	KindStressed
	KindProximityLeft
	KindProximityRight
)

func (k Kind) String() string {
	switch k {
	case KindDrowsy:
		return "drowsy"
	case KindStressed:
		return "stressed"
	case KindProximityLeft:
		return "proximity_left"
	case KindProximityRight:
		return "proximity_right"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Phase is a debouncer's internal state.
type Phase int

const (
	PhaseInactive Phase = iota
	PhasePending
	PhaseActive
	PhaseCooling
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseActive:
		return "active"
	case PhaseCooling:
		return "cooling"
	default:
		return "inactive"
	}
}

// SignalState is the debounced view of one signal kind. Active covers both
// the Active and Cooling phases: once confirmed, a state only clears after
// the full cooldown elapses with the condition false.
type SignalState struct {
	Kind   Kind
	Active bool
	Since  time.Time
}

// Debouncer applies asymmetric temporal hysteresis to one signal kind.
// The condition must hold continuously for the activation window before the
// state turns active, and must be continuously false for the (shorter)
// cooldown before it clears. Transients in either direction are absorbed.
type Debouncer struct {
	kind     Kind
	window   time.Duration
	cooldown time.Duration

	phase       Phase
	phaseSince  time.Time
	activeSince time.Time
}

// NewDebouncer creates a debouncer. A window of zero activates on the first
// true observation.
func NewDebouncer(kind Kind, window, cooldown time.Duration) *Debouncer {
	return &Debouncer{kind: kind, window: window, cooldown: cooldown}
}

// Observe feeds one cycle's raw condition and returns the debounced state.
func (d *Debouncer) Observe(cond bool, now time.Time) SignalState {
	switch d.phase {
	case PhaseInactive:
		if cond {
			d.phase = PhasePending
			d.phaseSince = now
			if d.window <= 0 {
				d.activate(now)
			}
		}
	case PhasePending:
		switch {
		case !cond:
			// Transient, ignored.
			d.phase = PhaseInactive
			d.phaseSince = now
		case now.Sub(d.phaseSince) >= d.window:
			d.activate(now)
		}
	case PhaseActive:
		if !cond {
			d.phase = PhaseCooling
			d.phaseSince = now
		}
	case PhaseCooling:
		switch {
		case cond:
			// Re-triggered mid-cooldown: back to Active, the original
			// activation stands.
			d.phase = PhaseActive
			d.phaseSince = now
		case now.Sub(d.phaseSince) >= d.cooldown:
			d.phase = PhaseInactive
			d.phaseSince = now
		}
	}
	return d.State(now)
}

// Expire forces the state machine to Inactive, bypassing the cooldown.
// Used when the backing source goes stale: absence of data never sustains
// a hazard.
func (d *Debouncer) Expire(now time.Time) SignalState {
	if d.phase != PhaseInactive {
		d.phase = PhaseInactive
		d.phaseSince = now
	}
	return d.State(now)
}

// State returns the current debounced state without observing anything.
func (d *Debouncer) State(now time.Time) SignalState {
	active := d.phase == PhaseActive || d.phase == PhaseCooling
	since := d.phaseSince
	if active {
		since = d.activeSince
	}
	return SignalState{Kind: d.kind, Active: active, Since: since}
}

// Phase exposes the internal phase for logging and tests.
func (d *Debouncer) Phase() Phase { return d.phase }

func (d *Debouncer) activate(now time.Time) {
	d.phase = PhaseActive
	d.phaseSince = now
	d.activeSince = now
}
