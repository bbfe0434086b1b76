package signal

import (
	"sync"
	"time"
)

// Normalizer validates raw collaborator events and stores the latest value
// per source in single-slot buffers. Stale frames are useless for a
// real-time safety decision, so an Offer always overwrites: latest value
// wins, producers never block.
//
// Receipt timestamps come from the injected clock, not from the source
// (source clocks are untrusted), and carry a strictly increasing sequence
// number so downstream can detect ordering faults.
type Normalizer struct {
	clock func() time.Time

	mu        sync.Mutex
	seq       uint64
	vision    slot[DriverMetric]
	proximity [2][SensorsPerFlank]slot[ProximityReading]
	turn      slot[TurnDirection]
	stress    slot[StressCue]
	malformed map[Source]uint64
}

type slot[T any] struct {
	value      T
	receivedAt time.Time
	seq        uint64
	present    bool
}

// NewNormalizer creates a normalizer stamping receipts with clock.
// A nil clock means time.Now.
func NewNormalizer(clock func() time.Time) *Normalizer {
	if clock == nil {
		clock = time.Now
	}
	return &Normalizer{
		clock:     clock,
		malformed: make(map[Source]uint64),
	}
}

// OfferMetric accepts a vision frame's driver metrics.
func (n *Normalizer) OfferMetric(m DriverMetric) error {
	if err := validateMetric(m); err != nil {
		n.countMalformed(SourceVision)
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.vision = stamp(n, m)
	return nil
}

// OfferProximity accepts one ultrasonic range sample.
func (n *Normalizer) OfferProximity(r ProximityReading) error {
	if err := validateProximity(r); err != nil {
		n.countMalformed(SourceUltrasonic)
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.proximity[r.Flank][r.Sensor] = stamp(n, r)
	return nil
}

// OfferTurn accepts a turn-signal state change.
func (n *Normalizer) OfferTurn(d TurnDirection) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.turn = stamp(n, d)
	return nil
}

// OfferStress accepts a discrete stress cue.
func (n *Normalizer) OfferStress(c StressCue) error {
	if err := validateStress(c); err != nil {
		n.countMalformed(SourceAudio)
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stress = stamp(n, c)
	return nil
}

// stamp assigns the receipt timestamp and sequence. Callers hold n.mu.
func stamp[T any](n *Normalizer, v T) slot[T] {
	n.seq++
	return slot[T]{value: v, receivedAt: n.clock(), seq: n.seq, present: true}
}

// LatestMetric returns the freshest driver metric, or false when the vision
// source has produced nothing within staleAfter of now.
func (n *Normalizer) LatestMetric(now time.Time, staleAfter time.Duration) (DriverMetric, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !fresh(n.vision, now, staleAfter) {
		return DriverMetric{}, false
	}
	return n.vision.value, true
}

// FlankDistances returns the latest reading from each sensor on a flank.
// ok is false unless both sensors have a fresh reading: a single live sensor
// is never trusted for a blind-spot decision.
func (n *Normalizer) FlankDistances(f Flank, now time.Time, staleAfter time.Duration) (d0, d1 float64, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s0, s1 := n.proximity[f][0], n.proximity[f][1]
	if !fresh(s0, now, staleAfter) || !fresh(s1, now, staleAfter) {
		return 0, 0, false
	}
	return s0.value.DistanceCm, s1.value.DistanceCm, true
}

// LatestTurn returns the current turn-signal state. Turn signals are state
// changes rather than a periodic stream, so the value is sticky: no
// staleness applies and the zero value is TurnNone.
func (n *Normalizer) LatestTurn() TurnDirection {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.turn.value
}

// LatestStress returns the last stress cue if it arrived within window of
// now. Cues are discrete, so freshness doubles as the cue's hold time.
func (n *Normalizer) LatestStress(now time.Time, window time.Duration) (StressCue, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !fresh(n.stress, now, window) {
		return StressCue{}, false
	}
	return n.stress.value, true
}

// MalformedCount reports how many events from a source failed validation.
func (n *Normalizer) MalformedCount(s Source) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.malformed[s]
}

func (n *Normalizer) countMalformed(s Source) {
	n.mu.Lock()
	n.malformed[s]++
	n.mu.Unlock()
}

func fresh[T any](s slot[T], now time.Time, staleAfter time.Duration) bool {
	if !s.present {
		return false
	}
	return now.Sub(s.receivedAt) <= staleAfter
}
