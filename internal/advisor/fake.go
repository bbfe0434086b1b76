package advisor

import (
	"context"

	"github.com/sheero-ai/sheero/internal/fusion"
)

// Fake is a canned advisor for tests and offline operation. Tips mirror
// the fixed lines the voice channel falls back to when no model is
// reachable.
type Fake struct {
	// Err, when set, is returned from every Advise call.
	Err error

	calls int
}

// FallbackTip returns the fixed advisory line for a hazard snapshot
// without consulting any model.
func FallbackTip(state fusion.HazardState) string {
	switch {
	case state.BlindSpotLeft:
		return "Vehicle in your left blind spot. Check before changing lanes."
	case state.BlindSpotRight:
		return "Vehicle in your right blind spot. Check before changing lanes."
	case state.Drowsy:
		return "You seem a bit drowsy. Maybe pull over and rest."
	case state.Stressed:
		return "You seem stressed. Take a moment to relax before continuing."
	default:
		return ""
	}
}

func (f *Fake) Advise(_ context.Context, state fusion.HazardState) (string, error) {
	f.calls++
	if f.Err != nil {
		return "", f.Err
	}
	return FallbackTip(state), nil
}

// Calls reports how many times Advise ran.
func (f *Fake) Calls() int { return f.calls }
