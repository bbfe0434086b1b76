package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	osignal "os/signal"
	"syscall"
	"time"

	"github.com/sheero-ai/sheero/internal/advisor"
	"github.com/sheero-ai/sheero/internal/alert"
	"github.com/sheero-ai/sheero/internal/auth"
	"github.com/sheero-ai/sheero/internal/config"
	"github.com/sheero-ai/sheero/internal/fusion"
	"github.com/sheero-ai/sheero/internal/ingest"
	"github.com/sheero-ai/sheero/internal/server"
	"github.com/sheero-ai/sheero/internal/signal"
	"github.com/sheero-ai/sheero/internal/telemetry"
	"github.com/sheero-ai/sheero/internal/vision"
)

func main() {
	addrFlag := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "sheero.yaml", "Path to Sheero config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	addr := cfg.Server.Addr
	if *addrFlag != "" {
		addr = *addrFlag
	}

	ctx, stop := osignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Service:  "sheero",
	})
	if err != nil {
		log.Fatalf("telemetry init failed: %v", err)
	}

	norm := signal.NewNormalizer(time.Now)

	scorer, destroyScorer := buildScorer(cfg)
	defer destroyScorer()

	sinks := buildSinks(cfg)
	emitter := alert.NewEmitter(alert.EmitterConfig{
		QueueSize:      cfg.Alerts.QueueSize,
		Workers:        cfg.Alerts.Workers,
		DeliverTimeout: time.Duration(cfg.Alerts.DeliverTimeoutMs) * time.Millisecond,
	}, sinks, tel)

	dispatcher := alert.NewDispatcher(alert.DispatcherConfig{
		MinSpacing: map[alert.Flag]time.Duration{
			alert.FlagDrowsy:         time.Duration(cfg.Alerts.RateLimits.DrowsyMs) * time.Millisecond,
			alert.FlagStressed:       time.Duration(cfg.Alerts.RateLimits.StressedMs) * time.Millisecond,
			alert.FlagBlindSpotLeft:  time.Duration(cfg.Alerts.RateLimits.BlindSpotMs) * time.Millisecond,
			alert.FlagBlindSpotRight: time.Duration(cfg.Alerts.RateLimits.BlindSpotMs) * time.Millisecond,
		},
		BuzzerIntensity: cfg.Alerts.Sinks.Buzzer.Intensity,
	}, emitter, tel)

	engine := fusion.NewEngine(fusion.Config{
		CyclePeriod:          time.Duration(cfg.Engine.CyclePeriodMs) * time.Millisecond,
		StalenessTimeout:     time.Duration(cfg.Engine.StalenessTimeoutMs) * time.Millisecond,
		ProximityThresholdCm: cfg.Engine.Thresholds.ProximityCm,
		StressAmplitude:      cfg.Engine.Thresholds.StressAmplitude,
		FatigueWindow:        time.Duration(cfg.Engine.Windows.FatigueMs) * time.Millisecond,
		StressWindow:         time.Duration(cfg.Engine.Windows.StressMs) * time.Millisecond,
		ProximityCycles:      cfg.Engine.Windows.ProximityCycles,
		Cooldown:             time.Duration(cfg.Engine.Windows.CooldownMs) * time.Millisecond,
		AlwaysWarn:           cfg.Engine.BlindSpot.AlwaysWarn,
	}, norm, scorer, dispatcher, tel, time.Now)

	ultra := buildUltrasonic(cfg, norm)
	ultra.Start(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New(norm, engine, auth.New(cfg.Server.AuthToken), tel).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	engineDone := make(chan error, 1)
	go func() { engineDone <- engine.Run(ctx) }()

	go func() {
		log.Printf("Starting Sheero on %s...", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	var engineErr error
	select {
	case <-ctx.Done():
	case engineErr = <-engineDone:
		// A scheduler fault is fatal: the engine cannot trust its own
		// cadence, so the daemon exits instead of running degraded.
		if engineErr != nil {
			log.Printf("fusion engine failed: %v", engineErr)
		}
	}
	stop()

	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Order matters: the engine has stopped publishing, so drain the alert
	// queue before taking the HTTP surface and telemetry down.
	emitter.Close(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	tel.Shutdown(shutdownCtx)

	produced, dropped := ultra.Stats()
	log.Printf("stopped (alerts enqueued=%d dropped=%d, ultrasonic produced=%d dropped=%d)",
		emitter.Enqueued(), emitter.Dropped(), produced, dropped)

	if engineErr != nil {
		destroyScorer()
		os.Exit(1)
	}
}

// buildScorer picks the drowsiness scorer: the ONNX bundle when one is
// configured, the plain threshold heuristic otherwise.
func buildScorer(cfg *config.Config) (fusion.DrowsinessScorer, func()) {
	heuristic := vision.Heuristic{
		EARThreshold:     cfg.Engine.Thresholds.EyeAspectRatio,
		HeadBowThreshold: cfg.Engine.Thresholds.HeadBow,
	}
	if cfg.Vision.BundleDir == "" {
		return heuristic, func() {}
	}
	model, err := vision.LoadModel(cfg.Vision.BundleDir, heuristic)
	if err != nil {
		log.Printf("vision: model bundle %s unavailable (%v); using threshold heuristic", cfg.Vision.BundleDir, err)
		return heuristic, func() {}
	}
	log.Printf("vision: model bundle loaded from %s", cfg.Vision.BundleDir)
	return model, model.Destroy
}

func buildSinks(cfg *config.Config) []alert.Sink {
	var sinks []alert.Sink

	if url := cfg.Alerts.Sinks.Dashboard.URL; url != "" {
		sink, err := alert.NewWebhookSink(url, cfg.Alerts.Sinks.Dashboard.Headers,
			time.Duration(cfg.Alerts.Sinks.Dashboard.TimeoutMs)*time.Millisecond)
		if err != nil {
			log.Fatalf("dashboard sink: %v", err)
		}
		sinks = append(sinks, sink)
	}

	if device := cfg.Alerts.Sinks.Buzzer.Device; device != "" {
		f, err := os.OpenFile(device, os.O_WRONLY, 0)
		if err != nil {
			log.Fatalf("buzzer device %s: %v", device, err)
		}
		sink, err := alert.NewBuzzerSink(f)
		if err != nil {
			log.Fatalf("buzzer sink: %v", err)
		}
		sinks = append(sinks, sink)
	}

	if cfg.Advisor.Enabled {
		provider := advisor.NewOllama(cfg.Advisor.BaseURL, cfg.Advisor.Model,
			time.Duration(cfg.Advisor.TimeoutMs)*time.Millisecond)
		sink, err := alert.NewVoiceSink(provider, cfg.Alerts.Sinks.Voice.URL,
			time.Duration(cfg.Alerts.Sinks.Voice.TimeoutMs)*time.Millisecond,
			time.Duration(cfg.Alerts.Sinks.Voice.CooldownMs)*time.Millisecond,
			time.Now)
		if err != nil {
			log.Fatalf("voice sink: %v", err)
		}
		sinks = append(sinks, sink)
	}

	if path := cfg.Alerts.Sinks.LogFile; path != "" {
		sink, err := alert.NewFileSink(path)
		if err != nil {
			log.Fatalf("alert log file: %v", err)
		}
		sinks = append(sinks, sink)
	}

	if len(sinks) == 0 {
		log.Printf("no alert sinks configured; hazard transitions will only appear on /v1/state")
	}
	return sinks
}

func buildUltrasonic(cfg *config.Config, norm *signal.Normalizer) *ingest.UltrasonicReader {
	duty := time.Duration(cfg.Ultrasonic.DutyCycleMs) * time.Millisecond
	if cfg.Ultrasonic.Simulate {
		return ingest.NewUltrasonicReader(norm, nil, duty)
	}
	f, err := os.Open(cfg.Ultrasonic.Device)
	if err != nil {
		log.Fatalf("ultrasonic device %s: %v", cfg.Ultrasonic.Device, err)
	}
	return ingest.NewUltrasonicReader(norm, f, duty)
}
