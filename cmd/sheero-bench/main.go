package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"time"

	"github.com/sheero-ai/sheero/internal/alert"
	"github.com/sheero-ai/sheero/internal/config"
	"github.com/sheero-ai/sheero/internal/fusion"
	"github.com/sheero-ai/sheero/internal/signal"
	"github.com/sheero-ai/sheero/internal/vision"
)

// countingPublisher swallows dispatched events so the bench measures the
// fusion cycle alone, without sink I/O.
type countingPublisher struct {
	events int
}

func (p *countingPublisher) Publish(*alert.Event) { p.events++ }

func main() {
	cfgPath := flag.String("config", "", "path to config yaml (optional, defaults apply)")
	n := flag.Int("n", 10000, "number of fusion cycles")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	period := time.Duration(cfg.Engine.CyclePeriodMs) * time.Millisecond

	// Simulated clock: each cycle advances exactly one period, so debounce
	// windows behave as they would on the vehicle.
	now := time.Now()
	clock := func() time.Time { return now }

	norm := signal.NewNormalizer(clock)
	pub := &countingPublisher{}
	dispatcher := alert.NewDispatcher(alert.DispatcherConfig{
		BuzzerIntensity: cfg.Alerts.Sinks.Buzzer.Intensity,
	}, pub, nil)

	engine := fusion.NewEngine(fusion.Config{
		CyclePeriod:          period,
		StalenessTimeout:     time.Duration(cfg.Engine.StalenessTimeoutMs) * time.Millisecond,
		ProximityThresholdCm: cfg.Engine.Thresholds.ProximityCm,
		StressAmplitude:      cfg.Engine.Thresholds.StressAmplitude,
		FatigueWindow:        time.Duration(cfg.Engine.Windows.FatigueMs) * time.Millisecond,
		StressWindow:         time.Duration(cfg.Engine.Windows.StressMs) * time.Millisecond,
		ProximityCycles:      cfg.Engine.Windows.ProximityCycles,
		Cooldown:             time.Duration(cfg.Engine.Windows.CooldownMs) * time.Millisecond,
	}, norm, vision.Heuristic{EARThreshold: cfg.Engine.Thresholds.EyeAspectRatio}, dispatcher, nil, clock)

	if *n <= 0 {
		*n = 1
	}

	// Warmup
	for i := 0; i < 5; i++ {
		feed(norm, cfg)
		if err := engine.Step(now); err != nil {
			log.Fatalf("warmup step failed: %v", err)
		}
		now = now.Add(period)
	}

	durations := make([]time.Duration, 0, *n)
	for i := 0; i < *n; i++ {
		feed(norm, cfg)
		start := time.Now()
		if err := engine.Step(now); err != nil {
			log.Fatalf("step failed: %v", err)
		}
		durations = append(durations, time.Since(start))
		now = now.Add(period)
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	avg := float64(total.Microseconds()) / float64(len(durations))
	p50 := float64(durations[len(durations)/2].Microseconds())
	p95 := float64(durations[int(float64(len(durations))*0.95)].Microseconds())

	fmt.Printf("bench: n=%d avg_us=%.2f p50_us=%.2f p95_us=%.2f cycle_ms=%d events=%d\n",
		len(durations),
		avg,
		p50,
		p95,
		cfg.Engine.CyclePeriodMs,
		pub.events,
	)
}

// feed offers one synthetic reading per source, mixing hazard and clear
// values so the debouncers and dispatcher see real transitions.
func feed(norm *signal.Normalizer, cfg *config.Config) {
	_ = norm.OfferMetric(signal.DriverMetric{
		EyeAspectRatio: cfg.Engine.Thresholds.EyeAspectRatio * (0.5 + rand.Float64()),
		HeadBowDelta:   rand.Float64() * 10,
	})
	for _, flank := range []signal.Flank{signal.FlankLeft, signal.FlankRight} {
		base := cfg.Engine.Thresholds.ProximityCm * (0.5 + rand.Float64())
		for sensor := 0; sensor < signal.SensorsPerFlank; sensor++ {
			_ = norm.OfferProximity(signal.ProximityReading{
				Flank:      flank,
				Sensor:     sensor,
				DistanceCm: base + rand.Float64()*5,
			})
		}
	}
	_ = norm.OfferStress(signal.StressCue{
		Amplitude:    rand.Float64(),
		KeywordMatch: rand.Intn(4) == 0,
	})
}
