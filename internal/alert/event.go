// Package alert turns hazard-state transitions into outbound alert events
// and fans them out to the buzzer, dashboard, and voice sinks.
package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/sheero-ai/sheero/internal/fusion"
	"github.com/sheero-ai/sheero/internal/signal"
)

// Flag names a hazard flag on the wire.
type Flag string

const (
	FlagDrowsy         Flag = "drowsy"
	FlagStressed       Flag = "stressed"
	FlagBlindSpotLeft  Flag = "blind_spot_left"
	FlagBlindSpotRight Flag = "blind_spot_right"
)

// Flank returns the vehicle side for blind-spot flags.
func (f Flag) Flank() (signal.Flank, bool) {
	switch f {
	case FlagBlindSpotLeft:
		return signal.FlankLeft, true
	case FlagBlindSpotRight:
		return signal.FlankRight, true
	}
	return signal.FlankLeft, false
}

// Priority orders alerts for downstream consumers.
type Priority int

const (
	PriorityAdvisory Priority = iota + 1
	PriorityWarning
	PriorityCritical
)

// Event is the canonical alert payload. Immutable and fire-and-forget:
// the engine never retries a delivery, only the freshest state is ever
// actionable.
type Event struct {
	ID       string   `json:"id"`
	Kind     Flag     `json:"kind"`
	Active   bool     `json:"active"`
	Priority Priority `json:"priority"`

	// Flank and Intensity are set on blind-spot events for the buzzer.
	Flank     string `json:"flank,omitempty"`
	Intensity int    `json:"intensity,omitempty"`

	// State is the full hazard snapshot at dispatch time, consumed by the
	// voice advisory.
	State     fusion.HazardState `json:"state"`
	Timestamp time.Time          `json:"timestamp"`
}

func newEvent(flag Flag, active bool, prio Priority, state fusion.HazardState, ts time.Time) *Event {
	ev := &Event{
		ID:        uuid.NewString(),
		Kind:      flag,
		Active:    active,
		Priority:  prio,
		State:     state,
		Timestamp: ts,
	}
	if flank, ok := flag.Flank(); ok {
		ev.Flank = flank.String()
	}
	return ev
}
