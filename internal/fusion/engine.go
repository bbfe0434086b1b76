package fusion

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sheero-ai/sheero/internal/signal"
	"github.com/sheero-ai/sheero/internal/telemetry"
)

// Config is the engine's tunable surface. None of these are hard-coded
// invariants; defaults live in the config package.
type Config struct {
	// CyclePeriod is the fixed fusion cadence and also the per-cycle
	// latency budget.
	CyclePeriod time.Duration
	// StalenessTimeout after which a silent source is treated as inactive.
	StalenessTimeout time.Duration

	ProximityThresholdCm float64
	StressAmplitude      float64

	FatigueWindow   time.Duration
	StressWindow    time.Duration
	ProximityCycles int
	Cooldown        time.Duration

	// AlwaysWarn disables the conjunctive blind-spot policy.
	AlwaysWarn bool
}

// Notifier receives hazard-state transitions. Implemented by the alert
// dispatcher; the engine never blocks on it.
type Notifier interface {
	HazardChanged(prev, next HazardState, now time.Time)
}

// DrowsinessScorer decides whether a driver metric indicates drowsiness.
// The heuristic threshold and the ONNX model both satisfy this.
type DrowsinessScorer interface {
	Drowsy(m signal.DriverMetric) bool
}

// Engine drives the normalizer → debouncer → fusion → dispatch pipeline at
// a fixed cadence. One goroutine runs the cycle; producers only touch the
// normalizer's slots and sinks only see immutable event copies, so the
// hazard state needs no lock on the hot path.
type Engine struct {
	cfg      Config
	norm     *signal.Normalizer
	scorer   DrowsinessScorer
	notifier Notifier
	tel      *telemetry.Provider
	clock    func() time.Time

	drowsy    *Debouncer
	stressed  *Debouncer
	proxLeft  *Debouncer
	proxRight *Debouncer

	mu     sync.Mutex
	hazard HazardState

	lastCycle time.Time
	skipNext  bool

	staleVision bool
	staleFlank  [2]bool
}

// NewEngine wires an engine. clock may be nil (time.Now); tel may be nil.
func NewEngine(cfg Config, norm *signal.Normalizer, scorer DrowsinessScorer, notifier Notifier, tel *telemetry.Provider, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if cfg.CyclePeriod <= 0 {
		cfg.CyclePeriod = 40 * time.Millisecond
	}
	if cfg.ProximityCycles < 1 {
		cfg.ProximityCycles = 1
	}
	proximityWindow := time.Duration(cfg.ProximityCycles) * cfg.CyclePeriod
	return &Engine{
		cfg:       cfg,
		norm:      norm,
		scorer:    scorer,
		notifier:  notifier,
		tel:       tel,
		clock:     clock,
		drowsy:    NewDebouncer(KindDrowsy, cfg.FatigueWindow, cfg.Cooldown),
		stressed:  NewDebouncer(KindStressed, 0, cfg.Cooldown),
		proxLeft:  NewDebouncer(KindProximityLeft, proximityWindow, cfg.Cooldown),
		proxRight: NewDebouncer(KindProximityRight, proximityWindow, cfg.Cooldown),
	}
}

// Run drives cycles until ctx is cancelled or a scheduler fault occurs.
// Cancellation lets the in-flight cycle finish; no dispatch happens after
// Run returns. A returned error is always fatal.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.CyclePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.tick(); err != nil {
				return err
			}
		}
	}
}

// tick handles one scheduler tick, honoring the drop-oldest rule: after an
// overrun the engine acts on the next fresh tick, never on a backlog.
func (e *Engine) tick() error {
	if e.skipNext {
		e.skipNext = false
		return nil
	}
	return e.Step(e.clock())
}

// Step executes one fusion cycle at the given instant. Exposed for the
// scheduler, the bench tool, and tests; not safe for concurrent callers.
func (e *Engine) Step(now time.Time) error {
	if !e.lastCycle.IsZero() && !now.After(e.lastCycle) {
		return &SchedulerFaultError{Now: now, Last: e.lastCycle}
	}
	e.lastCycle = now

	in := e.observe(now)
	next, suppressed := Fuse(in)
	for _, k := range suppressed {
		log.Printf("fusion: %s confirmed but turn signal is %s, not escalating", k, in.Turn)
	}

	e.mu.Lock()
	prev := e.hazard
	e.hazard = next
	e.mu.Unlock()

	if e.notifier != nil {
		e.notifier.HazardChanged(prev, next, now)
	}

	elapsed := e.clock().Sub(now)
	e.tel.RecordCycle(elapsed)
	if elapsed > e.cfg.CyclePeriod {
		overrun := &CycleOverrunError{Elapsed: elapsed, Budget: e.cfg.CyclePeriod}
		log.Printf("fusion: %v, skipping next cycle", overrun)
		e.tel.CycleOverrun()
		e.skipNext = true
	}
	return nil
}

// Snapshot returns a copy of the current hazard state for side queries
// (the /state endpoint). The engine goroutine remains the only writer.
func (e *Engine) Snapshot() HazardState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hazard
}

// observe reads the latest normalized inputs and steps every debouncer.
func (e *Engine) observe(now time.Time) Inputs {
	stale := e.cfg.StalenessTimeout

	var in Inputs
	in.Turn = e.norm.LatestTurn()
	in.AlwaysWarn = e.cfg.AlwaysWarn

	if metric, ok := e.norm.LatestMetric(now, stale); ok {
		e.markVisionLive()
		in.Drowsy = e.drowsy.Observe(e.scorer.Drowsy(metric), now).Active
	} else {
		// Fails safe: absence of data never synthesizes a hazard and never
		// sustains one.
		e.markVisionStale(now)
		in.Drowsy = e.drowsy.Expire(now).Active
	}

	if cue, ok := e.norm.LatestStress(now, e.cfg.StressWindow); ok {
		cond := cue.KeywordMatch && cue.Amplitude >= e.cfg.StressAmplitude
		in.Stressed = e.stressed.Observe(cond, now).Active
	} else {
		in.Stressed = e.stressed.Observe(false, now).Active
	}

	leftOK := e.observeFlank(e.proxLeft, signal.FlankLeft, now, stale)
	rightOK := e.observeFlank(e.proxRight, signal.FlankRight, now, stale)
	in.ProximityLeft = leftOK
	in.ProximityRight = rightOK
	return in
}

func (e *Engine) observeFlank(d *Debouncer, f signal.Flank, now time.Time, stale time.Duration) bool {
	d0, d1, ok := e.norm.FlankDistances(f, now, stale)
	if !ok {
		if !e.staleFlank[f] {
			e.staleFlank[f] = true
			log.Printf("fusion: stale source %s (%s flank) at %s, treating as inactive",
				signal.SourceUltrasonic, f, now.Format(time.RFC3339))
			e.tel.StaleSource(signal.SourceUltrasonic.String())
		}
		return d.Expire(now).Active
	}
	e.staleFlank[f] = false
	below := d0 < e.cfg.ProximityThresholdCm && d1 < e.cfg.ProximityThresholdCm
	return d.Observe(below, now).Active
}

// Staleness transitions are logged once per edge, not every cycle.

func (e *Engine) markVisionStale(now time.Time) {
	if !e.staleVision {
		e.staleVision = true
		log.Printf("fusion: stale source %s at %s, treating as inactive", signal.SourceVision, now.Format(time.RFC3339))
		e.tel.StaleSource(signal.SourceVision.String())
	}
}

func (e *Engine) markVisionLive() { e.staleVision = false }
