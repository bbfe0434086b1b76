package fusion

import "github.com/sheero-ai/sheero/internal/signal"

// Inputs is the debounced per-kind view plus the latest turn-signal value,
// evaluated once per cycle.
type Inputs struct {
	Drowsy         bool
	Stressed       bool
	ProximityLeft  bool
	ProximityRight bool
	Turn           signal.TurnDirection

	// AlwaysWarn disables the conjunctive blind-spot policy: a confirmed
	// proximity alone escalates, regardless of turn-signal direction.
	AlwaysWarn bool
}

// Fuse computes the next HazardState. Pure: no state is held between calls
// other than the HazardState the engine owns.
//
// Blind-spot rules are the false-positive suppression the system is built
// around: a flank escalates only when proximity is confirmed AND the turn
// signal points toward that flank or is not asserted at all. A proximity
// confirmed against an opposite turn signal is reported in suppressed, for
// logging, never as an alert. Drowsiness and stress pass through directly
// and may be simultaneously active.
func Fuse(in Inputs) (next HazardState, suppressed []Kind) {
	next = HazardState{
		Drowsy:     in.Drowsy,
		Stressed:   in.Stressed,
		TurnSignal: in.Turn,
	}

	if in.ProximityLeft {
		if in.AlwaysWarn || in.Turn != signal.TurnRight {
			next.BlindSpotLeft = true
		} else {
			suppressed = append(suppressed, KindProximityLeft)
		}
	}
	if in.ProximityRight {
		if in.AlwaysWarn || in.Turn != signal.TurnLeft {
			next.BlindSpotRight = true
		} else {
			suppressed = append(suppressed, KindProximityRight)
		}
	}
	return next, suppressed
}
