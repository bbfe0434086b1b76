// Package vision scores driver drowsiness from per-frame metrics, either
// with a plain threshold heuristic or an optional on-device ONNX model.
package vision

import "github.com/sheero-ai/sheero/internal/signal"

// Heuristic flags drowsiness when the eye aspect ratio drops below the
// configured cutoff, optionally also when the head bows past its own
// threshold. This is the default scorer and the fallback when no model
// bundle is configured.
type Heuristic struct {
	// EARThreshold is the eye-aspect-ratio cutoff (closed-ish eyes score
	// below it). Zero disables the check.
	EARThreshold float64
	// HeadBowThreshold flags a forward head bow beyond this delta. Zero
	// disables the check.
	HeadBowThreshold float64
}

// Drowsy implements the fusion engine's scorer contract.
func (h Heuristic) Drowsy(m signal.DriverMetric) bool {
	if h.EARThreshold > 0 && m.EyeAspectRatio < h.EARThreshold {
		return true
	}
	if h.HeadBowThreshold > 0 && m.HeadBowDelta > h.HeadBowThreshold {
		return true
	}
	return false
}
