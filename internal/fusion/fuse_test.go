package fusion

import (
	"testing"

	"github.com/sheero-ai/sheero/internal/signal"
)

func TestFuseBlindSpotConjunctive(t *testing.T) {
	cases := []struct {
		name      string
		in        Inputs
		wantLeft  bool
		wantRight bool
		wantSupp  int
	}{
		{
			name:     "left proximity, no turn signal",
			in:       Inputs{ProximityLeft: true, Turn: signal.TurnNone},
			wantLeft: true,
		},
		{
			name:     "left proximity, turning left",
			in:       Inputs{ProximityLeft: true, Turn: signal.TurnLeft},
			wantLeft: true,
		},
		{
			name:     "left proximity, turning right is suppressed",
			in:       Inputs{ProximityLeft: true, Turn: signal.TurnRight},
			wantSupp: 1,
		},
		{
			name:     "right proximity, turning left is suppressed",
			in:       Inputs{ProximityRight: true, Turn: signal.TurnLeft},
			wantSupp: 1,
		},
		{
			name:     "always warn overrides opposite turn",
			in:       Inputs{ProximityLeft: true, Turn: signal.TurnRight, AlwaysWarn: true},
			wantLeft: true,
		},
		{
			name:      "both flanks, no signal",
			in:        Inputs{ProximityLeft: true, ProximityRight: true, Turn: signal.TurnNone},
			wantLeft:  true,
			wantRight: true,
		},
		{
			name:     "both flanks, turning left suppresses only the right",
			in:       Inputs{ProximityLeft: true, ProximityRight: true, Turn: signal.TurnLeft},
			wantLeft: true,
			wantSupp: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, suppressed := Fuse(tc.in)
			if next.BlindSpotLeft != tc.wantLeft || next.BlindSpotRight != tc.wantRight {
				t.Fatalf("blind spots = %v/%v, want %v/%v",
					next.BlindSpotLeft, next.BlindSpotRight, tc.wantLeft, tc.wantRight)
			}
			if len(suppressed) != tc.wantSupp {
				t.Fatalf("suppressed = %v, want %d entries", suppressed, tc.wantSupp)
			}
		})
	}
}

func TestFusePassesThroughDriverStates(t *testing.T) {
	next, _ := Fuse(Inputs{Drowsy: true, Stressed: true, Turn: signal.TurnLeft})
	if !next.Drowsy || !next.Stressed {
		t.Fatalf("drowsy and stressed must pass through: %+v", next)
	}
	if next.TurnSignal != signal.TurnLeft {
		t.Fatalf("turn signal not carried: %+v", next)
	}
	if !next.Any() {
		t.Fatalf("Any() should report an active hazard")
	}
}

func TestHazardStateSummary(t *testing.T) {
	var clear HazardState
	if got := clear.Summary(); got != "clear" {
		t.Fatalf("Summary() = %q, want clear", got)
	}

	st := HazardState{Drowsy: true, BlindSpotLeft: true}
	if got := st.Summary(); got != "drowsy, blind spot left" {
		t.Fatalf("Summary() = %q", got)
	}
}
