package fusion

import (
	"strings"

	"github.com/sheero-ai/sheero/internal/signal"
)

// HazardState is the fused snapshot of what is currently wrong. Exactly one
// instance is owned and mutated by the engine goroutine; everything else
// sees value copies.
type HazardState struct {
	Drowsy         bool                 `json:"drowsy"`
	Stressed       bool                 `json:"stressed"`
	BlindSpotLeft  bool                 `json:"blind_spot_left"`
	BlindSpotRight bool                 `json:"blind_spot_right"`
	TurnSignal     signal.TurnDirection `json:"turn_signal"`
}

// Any reports whether any hazard flag is set.
func (h HazardState) Any() bool {
	return h.Drowsy || h.Stressed || h.BlindSpotLeft || h.BlindSpotRight
}

// Summary renders the active flags for logs and voice advisories,
// e.g. "drowsy, blind spot left".
func (h HazardState) Summary() string {
	var parts []string
	if h.Drowsy {
		parts = append(parts, "drowsy")
	}
	if h.Stressed {
		parts = append(parts, "stressed")
	}
	if h.BlindSpotLeft {
		parts = append(parts, "blind spot left")
	}
	if h.BlindSpotRight {
		parts = append(parts, "blind spot right")
	}
	if len(parts) == 0 {
		return "clear"
	}
	return strings.Join(parts, ", ")
}
