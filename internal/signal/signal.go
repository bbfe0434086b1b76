// Package signal defines the typed sensor inputs the fusion engine consumes
// and the normalizer that validates and timestamps them.
package signal

import (
	"fmt"
	"strings"
)

// Source identifies which collaborator produced a raw event.
type Source int

const (
	SourceVision Source = iota
	SourceUltrasonic
	SourceTurnSignal
	SourceAudio
)

func (s Source) String() string {
	switch s {
	case SourceVision:
		return "vision"
	case SourceUltrasonic:
		return "ultrasonic"
	case SourceTurnSignal:
		return "turn_signal"
	case SourceAudio:
		return "audio"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Flank is a side of the vehicle, each instrumented with a sensor pair.
type Flank int

const (
	FlankLeft Flank = iota
	FlankRight
)

func (f Flank) String() string {
	if f == FlankRight {
		return "right"
	}
	return "left"
}

// ParseFlank maps a wire value ("left"/"right") to a Flank.
func ParseFlank(s string) (Flank, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return FlankLeft, nil
	case "right", "r":
		return FlankRight, nil
	}
	return FlankLeft, fmt.Errorf("unknown flank %q", s)
}

// SensorsPerFlank is the redundancy requirement: a blind-spot decision
// needs agreement from both sensors on a flank.
const SensorsPerFlank = 2

// TurnDirection is the discrete turn-signal state.
type TurnDirection int

const (
	TurnNone TurnDirection = iota
	TurnLeft
	TurnRight
)

func (d TurnDirection) String() string {
	switch d {
	case TurnLeft:
		return "left"
	case TurnRight:
		return "right"
	default:
		return "none"
	}
}

// MarshalJSON emits the wire form ("none"/"left"/"right").
func (d TurnDirection) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts the wire form.
func (d *TurnDirection) UnmarshalJSON(data []byte) error {
	parsed, err := ParseTurnDirection(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseTurnDirection maps a wire value to a TurnDirection.
func ParseTurnDirection(s string) (TurnDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return TurnNone, nil
	case "left":
		return TurnLeft, nil
	case "right":
		return TurnRight, nil
	}
	return TurnNone, fmt.Errorf("unknown turn direction %q", s)
}

// DriverMetric is the per-frame output of the vision collaborator.
type DriverMetric struct {
	EyeAspectRatio      float64 `json:"eye_aspect_ratio"`
	HeadBowDelta        float64 `json:"head_bow_delta"`
	SteeringIntentAngle float64 `json:"steering_intent_angle"`
}

// ProximityReading is one ultrasonic range sample. Sensor is the index of
// the sensor within its flank pair (0 or 1).
type ProximityReading struct {
	Flank      Flank   `json:"flank"`
	Sensor     int     `json:"sensor"`
	DistanceCm float64 `json:"distance_cm"`
}

// StressCue is a discrete stress event from the audio collaborator: an
// amplitude spike paired with a keyword match.
type StressCue struct {
	Amplitude    float64 `json:"amplitude"`
	KeywordMatch bool    `json:"keyword_match"`
}

// Validation ranges. Source clocks and source-side filtering are untrusted,
// so out-of-range values are rejected here and never reach the debouncers.
const (
	MinDistanceCm = 0.0
	MaxDistanceCm = 500.0
	MinEAR        = 0.0
	MaxEAR        = 1.0
)

// MalformedSignalError reports an input that failed range validation.
// It is non-fatal: the offending event is dropped and logged.
type MalformedSignalError struct {
	Source Source
	Field  string
	Value  float64
}

func (e *MalformedSignalError) Error() string {
	return fmt.Sprintf("malformed %s signal: %s=%g out of range", e.Source, e.Field, e.Value)
}

func validateMetric(m DriverMetric) error {
	if m.EyeAspectRatio < MinEAR || m.EyeAspectRatio > MaxEAR {
		return &MalformedSignalError{Source: SourceVision, Field: "eye_aspect_ratio", Value: m.EyeAspectRatio}
	}
	return nil
}

func validateProximity(r ProximityReading) error {
	if r.DistanceCm < MinDistanceCm || r.DistanceCm > MaxDistanceCm {
		return &MalformedSignalError{Source: SourceUltrasonic, Field: "distance_cm", Value: r.DistanceCm}
	}
	if r.Sensor < 0 || r.Sensor >= SensorsPerFlank {
		return &MalformedSignalError{Source: SourceUltrasonic, Field: "sensor", Value: float64(r.Sensor)}
	}
	return nil
}

func validateStress(c StressCue) error {
	if c.Amplitude < 0 {
		return &MalformedSignalError{Source: SourceAudio, Field: "amplitude", Value: c.Amplitude}
	}
	return nil
}
