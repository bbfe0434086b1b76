package fusion

import (
	"errors"
	"testing"
	"time"

	"github.com/sheero-ai/sheero/internal/signal"
)

type thresholdScorer struct {
	cutoff float64
}

func (s thresholdScorer) Drowsy(m signal.DriverMetric) bool {
	return m.EyeAspectRatio < s.cutoff
}

type recordingNotifier struct {
	transitions []HazardState
}

func (n *recordingNotifier) HazardChanged(prev, next HazardState, now time.Time) {
	if prev != next {
		n.transitions = append(n.transitions, next)
	}
}

type engineHarness struct {
	engine   *Engine
	norm     *signal.Normalizer
	notifier *recordingNotifier
	now      time.Time
	period   time.Duration
}

func newEngineHarness(t *testing.T, cfg Config) *engineHarness {
	t.Helper()
	h := &engineHarness{
		now:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		notifier: &recordingNotifier{},
		period:   cfg.CyclePeriod,
	}
	clock := func() time.Time { return h.now }
	h.norm = signal.NewNormalizer(clock)
	h.engine = NewEngine(cfg, h.norm, thresholdScorer{cutoff: 0.18}, h.notifier, nil, clock)
	return h
}

// step advances simulated time by one cycle period and runs one cycle.
func (h *engineHarness) step(t *testing.T) {
	t.Helper()
	h.now = h.now.Add(h.period)
	if err := h.engine.Step(h.now); err != nil {
		t.Fatalf("step at %v: %v", h.now, err)
	}
}

func (h *engineHarness) offerVision(t *testing.T, ear float64) {
	t.Helper()
	if err := h.norm.OfferMetric(signal.DriverMetric{EyeAspectRatio: ear}); err != nil {
		t.Fatalf("offer vision: %v", err)
	}
}

func (h *engineHarness) offerFlank(t *testing.T, f signal.Flank, cm float64) {
	t.Helper()
	for sensor := 0; sensor < signal.SensorsPerFlank; sensor++ {
		err := h.norm.OfferProximity(signal.ProximityReading{Flank: f, Sensor: sensor, DistanceCm: cm})
		if err != nil {
			t.Fatalf("offer proximity: %v", err)
		}
	}
}

func defaultTestConfig() Config {
	return Config{
		CyclePeriod:          40 * time.Millisecond,
		StalenessTimeout:     1500 * time.Millisecond,
		ProximityThresholdCm: 100,
		StressAmplitude:      0.7,
		FatigueWindow:        2 * time.Second,
		StressWindow:         time.Second,
		ProximityCycles:      1,
		Cooldown:             800 * time.Millisecond,
	}
}

func TestEngineDrowsyScenario(t *testing.T) {
	h := newEngineHarness(t, defaultTestConfig())

	// Eyes nearly closed for 2.5s of cycles: the drowsy flag must come up
	// exactly once.
	cycles := int((2500 * time.Millisecond) / h.period)
	for i := 0; i < cycles; i++ {
		h.offerVision(t, 0.10)
		h.step(t)
	}

	if !h.engine.Snapshot().Drowsy {
		t.Fatalf("drowsy not active after 2.5s of closed eyes")
	}
	if len(h.notifier.transitions) != 1 {
		t.Fatalf("transitions = %d, want exactly 1", len(h.notifier.transitions))
	}

	// Eyes open again: the flag holds through cooldown, then clears.
	cycles = int((900 * time.Millisecond) / h.period)
	for i := 0; i < cycles; i++ {
		h.offerVision(t, 0.30)
		h.step(t)
	}
	if h.engine.Snapshot().Drowsy {
		t.Fatalf("drowsy still active after quiet cooldown")
	}
	if len(h.notifier.transitions) != 2 {
		t.Fatalf("transitions = %d, want 2 (rise and clear)", len(h.notifier.transitions))
	}
}

func TestEngineStalenessClearsHazard(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.Cooldown = 10 * time.Second // must NOT delay a staleness clear
	h := newEngineHarness(t, cfg)

	h.offerFlank(t, signal.FlankLeft, 60)
	h.step(t)
	h.offerFlank(t, signal.FlankLeft, 60)
	h.step(t)
	if !h.engine.Snapshot().BlindSpotLeft {
		t.Fatalf("blind spot left not active")
	}

	// Sensor goes silent: after the staleness timeout the hazard clears
	// immediately, bypassing the cooldown.
	for i := 0; i < 50; i++ {
		h.step(t)
	}
	if h.engine.Snapshot().BlindSpotLeft {
		t.Fatalf("stale ultrasonic source must not sustain a blind-spot hazard")
	}

	// The clearing is a real transition: the dispatcher saw the rise and
	// exactly one fall.
	if len(h.notifier.transitions) != 2 {
		t.Fatalf("transitions = %d, want rise and clear", len(h.notifier.transitions))
	}
	if h.notifier.transitions[1].BlindSpotLeft {
		t.Fatalf("second transition should carry the cleared state: %+v", h.notifier.transitions[1])
	}
}

func TestEngineBlindSpotSuppressedByOppositeTurn(t *testing.T) {
	h := newEngineHarness(t, defaultTestConfig())

	if err := h.norm.OfferTurn(signal.TurnRight); err != nil {
		t.Fatalf("offer turn: %v", err)
	}
	for i := 0; i < 3; i++ {
		h.offerFlank(t, signal.FlankLeft, 80)
		h.step(t)
	}
	if h.engine.Snapshot().BlindSpotLeft {
		t.Fatalf("left blind spot must be suppressed while signalling right")
	}

	// Signal flips left: the already-confirmed proximity escalates.
	if err := h.norm.OfferTurn(signal.TurnLeft); err != nil {
		t.Fatalf("offer turn: %v", err)
	}
	h.offerFlank(t, signal.FlankLeft, 80)
	h.step(t)
	if !h.engine.Snapshot().BlindSpotLeft {
		t.Fatalf("left blind spot should escalate once the turn signal points left")
	}
}

func TestEngineAlwaysWarnOverridesTurn(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.AlwaysWarn = true
	h := newEngineHarness(t, cfg)

	if err := h.norm.OfferTurn(signal.TurnRight); err != nil {
		t.Fatalf("offer turn: %v", err)
	}
	for i := 0; i < 3; i++ {
		h.offerFlank(t, signal.FlankLeft, 80)
		h.step(t)
	}
	if !h.engine.Snapshot().BlindSpotLeft {
		t.Fatalf("always_warn must escalate proximity regardless of turn signal")
	}
}

func TestEngineStressRequiresKeywordAndAmplitude(t *testing.T) {
	h := newEngineHarness(t, defaultTestConfig())

	// Amplitude alone is not enough.
	if err := h.norm.OfferStress(signal.StressCue{Amplitude: 0.9}); err != nil {
		t.Fatalf("offer stress: %v", err)
	}
	h.step(t)
	if h.engine.Snapshot().Stressed {
		t.Fatalf("amplitude without keyword must not trip stress")
	}

	if err := h.norm.OfferStress(signal.StressCue{Amplitude: 0.9, KeywordMatch: true}); err != nil {
		t.Fatalf("offer stress: %v", err)
	}
	h.step(t)
	if !h.engine.Snapshot().Stressed {
		t.Fatalf("keyword plus amplitude must trip stress")
	}
}

func TestEngineCycleOverrunSkipsNextTick(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Queued clock: each read pops the next instant, simulating a cycle
	// whose work runs 60ms past the 40ms budget.
	reads := []time.Time{
		base,                            // tick 1: cycle start
		base.Add(60 * time.Millisecond), // tick 1: cycle end, over budget
		base.Add(80 * time.Millisecond), // tick 3: cycle start
		base.Add(81 * time.Millisecond), // tick 3: cycle end
	}
	i := 0
	clock := func() time.Time {
		v := reads[i]
		if i < len(reads)-1 {
			i++
		}
		return v
	}

	norm := signal.NewNormalizer(func() time.Time { return base })
	notifier := &recordingNotifier{}
	engine := NewEngine(defaultTestConfig(), norm, thresholdScorer{cutoff: 0.18}, notifier, nil, clock)

	// An immediate stress activation proves the overrunning cycle's output
	// is still dispatched.
	if err := norm.OfferStress(signal.StressCue{Amplitude: 0.9, KeywordMatch: true}); err != nil {
		t.Fatalf("offer stress: %v", err)
	}

	if err := engine.tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !engine.Snapshot().Stressed {
		t.Fatalf("overrunning cycle's output was not applied")
	}
	if len(notifier.transitions) != 1 {
		t.Fatalf("transitions = %d, want 1: the overrunning cycle still dispatches", len(notifier.transitions))
	}
	if !engine.skipNext {
		t.Fatalf("overrun must mark the next tick for skipping")
	}

	// The next tick is dropped: no cycle runs.
	if err := engine.tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if engine.skipNext {
		t.Fatalf("skip flag should clear after the dropped tick")
	}
	if !engine.lastCycle.Equal(base) {
		t.Fatalf("dropped tick ran a cycle: lastCycle = %v", engine.lastCycle)
	}

	// The tick after that runs normally.
	if err := engine.tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !engine.lastCycle.Equal(base.Add(80 * time.Millisecond)) {
		t.Fatalf("lastCycle = %v, want the fresh tick's instant", engine.lastCycle)
	}
	if engine.skipNext {
		t.Fatalf("a within-budget cycle must not schedule a skip")
	}
}

func TestEngineSchedulerFaultIsFatal(t *testing.T) {
	h := newEngineHarness(t, defaultTestConfig())

	h.step(t)
	err := h.engine.Step(h.now.Add(-time.Millisecond))
	if err == nil {
		t.Fatalf("expected a scheduler fault for a non-advancing clock")
	}
	var fault *SchedulerFaultError
	if !errors.As(err, &fault) {
		t.Fatalf("expected SchedulerFaultError, got %T: %v", err, err)
	}
}

func TestEngineSnapshotIsTurnAware(t *testing.T) {
	h := newEngineHarness(t, defaultTestConfig())

	if err := h.norm.OfferTurn(signal.TurnLeft); err != nil {
		t.Fatalf("offer turn: %v", err)
	}
	h.step(t)
	if got := h.engine.Snapshot().TurnSignal; got != signal.TurnLeft {
		t.Fatalf("snapshot turn = %v, want left", got)
	}
}
