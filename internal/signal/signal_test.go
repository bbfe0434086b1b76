package signal

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestNormalizer() (*Normalizer, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewNormalizer(clock.Now), clock
}

func TestOfferMetricRejectsOutOfRangeEAR(t *testing.T) {
	n, _ := newTestNormalizer()

	err := n.OfferMetric(DriverMetric{EyeAspectRatio: 1.4})
	if err == nil {
		t.Fatalf("expected validation error for EAR 1.4")
	}
	var malformed *MalformedSignalError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedSignalError, got %T: %v", err, err)
	}
	if malformed.Source != SourceVision || malformed.Field != "eye_aspect_ratio" {
		t.Fatalf("unexpected error detail: %+v", malformed)
	}
	if got := n.MalformedCount(SourceVision); got != 1 {
		t.Fatalf("malformed count = %d, want 1", got)
	}

	// The rejected frame must not become the latest value.
	if _, ok := n.LatestMetric(n.clock(), time.Second); ok {
		t.Fatalf("malformed frame should not populate the vision slot")
	}
}

func TestOfferProximityRejectsBadReadings(t *testing.T) {
	n, _ := newTestNormalizer()

	cases := []ProximityReading{
		{Flank: FlankLeft, Sensor: 0, DistanceCm: -1},
		{Flank: FlankLeft, Sensor: 0, DistanceCm: 501},
		{Flank: FlankLeft, Sensor: 2, DistanceCm: 80},
	}
	for _, r := range cases {
		if err := n.OfferProximity(r); err == nil {
			t.Fatalf("expected rejection for %+v", r)
		}
	}
	if got := n.MalformedCount(SourceUltrasonic); got != 3 {
		t.Fatalf("malformed count = %d, want 3", got)
	}
}

func TestLatestValueWins(t *testing.T) {
	n, clock := newTestNormalizer()

	if err := n.OfferMetric(DriverMetric{EyeAspectRatio: 0.30}); err != nil {
		t.Fatalf("offer: %v", err)
	}
	clock.Advance(10 * time.Millisecond)
	if err := n.OfferMetric(DriverMetric{EyeAspectRatio: 0.12}); err != nil {
		t.Fatalf("offer: %v", err)
	}

	m, ok := n.LatestMetric(clock.Now(), time.Second)
	if !ok {
		t.Fatalf("expected a fresh metric")
	}
	if m.EyeAspectRatio != 0.12 {
		t.Fatalf("EAR = %g, want the later frame's 0.12", m.EyeAspectRatio)
	}
}

func TestLatestMetricStaleness(t *testing.T) {
	n, clock := newTestNormalizer()

	if err := n.OfferMetric(DriverMetric{EyeAspectRatio: 0.25}); err != nil {
		t.Fatalf("offer: %v", err)
	}

	clock.Advance(1500 * time.Millisecond)
	if _, ok := n.LatestMetric(clock.Now(), 1500*time.Millisecond); !ok {
		t.Fatalf("metric at exactly the staleness bound should still be fresh")
	}

	clock.Advance(time.Millisecond)
	if _, ok := n.LatestMetric(clock.Now(), 1500*time.Millisecond); ok {
		t.Fatalf("metric past the staleness bound should be reported absent")
	}
}

func TestFlankDistancesRequireBothSensors(t *testing.T) {
	n, clock := newTestNormalizer()

	if err := n.OfferProximity(ProximityReading{Flank: FlankLeft, Sensor: 0, DistanceCm: 80}); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if _, _, ok := n.FlankDistances(FlankLeft, clock.Now(), time.Second); ok {
		t.Fatalf("one live sensor must not produce a flank reading")
	}

	if err := n.OfferProximity(ProximityReading{Flank: FlankLeft, Sensor: 1, DistanceCm: 85}); err != nil {
		t.Fatalf("offer: %v", err)
	}
	d0, d1, ok := n.FlankDistances(FlankLeft, clock.Now(), time.Second)
	if !ok {
		t.Fatalf("both sensors fresh, expected a reading")
	}
	if d0 != 80 || d1 != 85 {
		t.Fatalf("distances = %g, %g, want 80, 85", d0, d1)
	}

	// One sensor going silent takes the whole flank down.
	clock.Advance(2 * time.Second)
	if err := n.OfferProximity(ProximityReading{Flank: FlankLeft, Sensor: 0, DistanceCm: 78}); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if _, _, ok := n.FlankDistances(FlankLeft, clock.Now(), time.Second); ok {
		t.Fatalf("stale second sensor must invalidate the flank")
	}
}

func TestTurnSignalIsSticky(t *testing.T) {
	n, clock := newTestNormalizer()

	if got := n.LatestTurn(); got != TurnNone {
		t.Fatalf("default turn = %v, want none", got)
	}

	if err := n.OfferTurn(TurnLeft); err != nil {
		t.Fatalf("offer: %v", err)
	}
	clock.Advance(time.Hour)
	if got := n.LatestTurn(); got != TurnLeft {
		t.Fatalf("turn = %v, want left regardless of age", got)
	}
}

func TestLatestStressHoldWindow(t *testing.T) {
	n, clock := newTestNormalizer()

	if err := n.OfferStress(StressCue{Amplitude: 0.9, KeywordMatch: true}); err != nil {
		t.Fatalf("offer: %v", err)
	}

	clock.Advance(900 * time.Millisecond)
	if _, ok := n.LatestStress(clock.Now(), time.Second); !ok {
		t.Fatalf("cue inside the hold window should be visible")
	}

	clock.Advance(200 * time.Millisecond)
	if _, ok := n.LatestStress(clock.Now(), time.Second); ok {
		t.Fatalf("cue outside the hold window should expire")
	}
}

func TestParseFlank(t *testing.T) {
	if f, err := ParseFlank(" R "); err != nil || f != FlankRight {
		t.Fatalf("ParseFlank(R) = %v, %v", f, err)
	}
	if _, err := ParseFlank("rear"); err == nil {
		t.Fatalf("expected error for unknown flank")
	}
}

func TestTurnDirectionJSONRoundTrip(t *testing.T) {
	b, err := TurnRight.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"right"` {
		t.Fatalf("marshal = %s, want \"right\"", b)
	}

	var d TurnDirection
	if err := d.UnmarshalJSON([]byte(`"left"`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d != TurnLeft {
		t.Fatalf("unmarshal = %v, want left", d)
	}
	if err := d.UnmarshalJSON([]byte(`"sideways"`)); err == nil {
		t.Fatalf("expected error for unknown direction")
	}
}
