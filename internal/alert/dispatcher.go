package alert

import (
	"log"
	"time"

	"github.com/sheero-ai/sheero/internal/fusion"
	"github.com/sheero-ai/sheero/internal/telemetry"
)

// Publisher accepts events for delivery. Implemented by Emitter; tests use
// a capture.
type Publisher interface {
	Publish(ev *Event)
}

// DispatcherConfig holds per-flag rate limits and the buzzer command
// intensity.
type DispatcherConfig struct {
	// MinSpacing is the minimum spacing between activations per flag.
	// A re-activation inside the window is suppressed, protecting the
	// buzzer and voice channels from saturation when a state flaps near
	// the debounce boundary. Clearing events are never suppressed.
	MinSpacing map[Flag]time.Duration

	// BuzzerIntensity is carried on activating blind-spot events.
	BuzzerIntensity int
}

// Dispatcher maps hazard-state transitions to alert events. Edge-triggered:
// a sustained hazard emits once on activation and once on clearing, never
// per cycle. It runs on the engine goroutine only.
type Dispatcher struct {
	cfg DispatcherConfig
	pub Publisher
	tel *telemetry.Provider

	lastEmit   map[Flag]time.Time
	lastTS     time.Time
	suppressed uint64
}

// NewDispatcher wires a dispatcher to its publisher.
func NewDispatcher(cfg DispatcherConfig, pub Publisher, tel *telemetry.Provider) *Dispatcher {
	if cfg.BuzzerIntensity <= 0 {
		cfg.BuzzerIntensity = 2
	}
	return &Dispatcher{
		cfg:      cfg,
		pub:      pub,
		tel:      tel,
		lastEmit: make(map[Flag]time.Time),
	}
}

// HazardChanged implements fusion.Notifier: exactly one event per
// newly-set flag and one clearing event per newly-cleared flag.
func (d *Dispatcher) HazardChanged(prev, next fusion.HazardState, now time.Time) {
	for _, ch := range diff(prev, next) {
		// Only re-activations are rate limited. A clearing event always
		// flows: swallowing an OFF would leave the buzzer latched on a
		// hazard that no longer exists.
		if ch.active {
			if spacing := d.cfg.MinSpacing[ch.flag]; spacing > 0 {
				if last, ok := d.lastEmit[ch.flag]; ok && now.Sub(last) < spacing {
					d.suppressed++
					log.Printf("alert: %s re-activation suppressed by rate limit", ch.flag)
					continue
				}
			}
			d.lastEmit[ch.flag] = now
		}

		ev := newEvent(ch.flag, ch.active, ch.priority, next, d.stampAfter(now))
		if ev.Active && ev.Flank != "" {
			ev.Intensity = d.cfg.BuzzerIntensity
		}
		d.pub.Publish(ev)
		d.tel.AlertEmitted(string(ch.flag), ch.active)
	}
}

// Suppressed reports how many transitions the rate limiter swallowed.
func (d *Dispatcher) Suppressed() uint64 { return d.suppressed }

// stampAfter guarantees strictly increasing event timestamps even when two
// flags transition in the same cycle.
func (d *Dispatcher) stampAfter(now time.Time) time.Time {
	ts := now
	if !ts.After(d.lastTS) {
		ts = d.lastTS.Add(time.Nanosecond)
	}
	d.lastTS = ts
	return ts
}

type change struct {
	flag     Flag
	active   bool
	priority Priority
}

// diff lists flag transitions in a fixed order so event timestamps are
// deterministic within a cycle.
func diff(prev, next fusion.HazardState) []change {
	var out []change
	if prev.BlindSpotLeft != next.BlindSpotLeft {
		out = append(out, change{FlagBlindSpotLeft, next.BlindSpotLeft, PriorityCritical})
	}
	if prev.BlindSpotRight != next.BlindSpotRight {
		out = append(out, change{FlagBlindSpotRight, next.BlindSpotRight, PriorityCritical})
	}
	if prev.Drowsy != next.Drowsy {
		out = append(out, change{FlagDrowsy, next.Drowsy, PriorityWarning})
	}
	if prev.Stressed != next.Stressed {
		out = append(out, change{FlagStressed, next.Stressed, PriorityAdvisory})
	}
	return out
}
