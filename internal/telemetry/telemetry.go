// Package telemetry exports fusion-engine metrics over OpenTelemetry OTLP.
package telemetry

import (
	"context"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Config controls telemetry setup.
type Config struct {
	Enabled  bool
	Endpoint string
	Protocol string // grpc | http
	Service  string
	Version  string
}

// Provider wires a meter provider and exposes the engine's instruments.
// A nil *Provider is valid and records nothing.
type Provider struct {
	Enabled bool
	meter   metric.Meter

	signalsReceived  metric.Int64Counter
	signalsMalformed metric.Int64Counter
	staleSources     metric.Int64Counter
	alertsEmitted    metric.Int64Counter
	sinkFailures     metric.Int64Counter
	cycleOverruns    metric.Int64Counter
	cycleDuration    metric.Float64Histogram

	shutdownMeterProvider func(context.Context) error
}

// NewProvider configures the OTLP exporter and meter provider. When
// disabled it returns no-op instruments.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !cfg.Enabled {
		p := &Provider{Enabled: false, meter: noop.NewMeterProvider().Meter("")}
		p.initInstruments()
		return p, nil
	}

	log.Printf("telemetry enabled (OpenTelemetry OTLP %s) endpoint=%s; without a collector listening, periodic export warnings are expected",
		strings.ToLower(cfg.Protocol), cfg.Endpoint)

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.Service),
			attribute.String("service.version", cfg.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	var exp sdkmetric.Exporter
	switch strings.ToLower(cfg.Protocol) {
	case "http":
		exp, err = otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default: // grpc
		exp, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	}
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
	)
	otel.SetMeterProvider(mp)

	p := &Provider{
		Enabled:               true,
		meter:                 mp.Meter("sheero"),
		shutdownMeterProvider: mp.Shutdown,
	}
	p.initInstruments()
	return p, nil
}

func (p *Provider) initInstruments() {
	p.signalsReceived, _ = p.meter.Int64Counter("sheero.signals.received",
		metric.WithDescription("Raw source events accepted by the normalizer"))
	p.signalsMalformed, _ = p.meter.Int64Counter("sheero.signals.malformed",
		metric.WithDescription("Source events dropped by range validation"))
	p.staleSources, _ = p.meter.Int64Counter("sheero.sources.stale",
		metric.WithDescription("Transitions of a source into staleness"))
	p.alertsEmitted, _ = p.meter.Int64Counter("sheero.alerts.emitted",
		metric.WithDescription("Alert events produced by the dispatcher"))
	p.sinkFailures, _ = p.meter.Int64Counter("sheero.sinks.failures",
		metric.WithDescription("Alert deliveries rejected or timed out per sink"))
	p.cycleOverruns, _ = p.meter.Int64Counter("sheero.cycles.overruns",
		metric.WithDescription("Fusion cycles that exceeded the latency budget"))
	p.cycleDuration, _ = p.meter.Float64Histogram("sheero.cycle.duration_ms",
		metric.WithDescription("Fusion cycle wall time in milliseconds"))
}

// SignalReceived counts an accepted source event.
func (p *Provider) SignalReceived(source string) {
	if p == nil {
		return
	}
	p.signalsReceived.Add(context.Background(), 1, metric.WithAttributes(attribute.String("source", source)))
}

// SignalMalformed counts a dropped out-of-range event.
func (p *Provider) SignalMalformed(source string) {
	if p == nil {
		return
	}
	p.signalsMalformed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("source", source)))
}

// StaleSource counts a source going silent past the staleness timeout.
func (p *Provider) StaleSource(source string) {
	if p == nil {
		return
	}
	p.staleSources.Add(context.Background(), 1, metric.WithAttributes(attribute.String("source", source)))
}

// AlertEmitted counts one dispatched alert event.
func (p *Provider) AlertEmitted(flag string, active bool) {
	if p == nil {
		return
	}
	p.alertsEmitted.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("flag", flag),
		attribute.Bool("active", active),
	))
}

// SinkFailure counts a failed delivery for one sink.
func (p *Provider) SinkFailure(sink string) {
	if p == nil {
		return
	}
	p.sinkFailures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("sink", sink)))
}

// CycleOverrun counts a budget overrun.
func (p *Provider) CycleOverrun() {
	if p == nil {
		return
	}
	p.cycleOverruns.Add(context.Background(), 1)
}

// RecordCycle records one cycle's wall time.
func (p *Provider) RecordCycle(d time.Duration) {
	if p == nil {
		return
	}
	p.cycleDuration.Record(context.Background(), float64(d)/float64(time.Millisecond))
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) {
	if p == nil || p.shutdownMeterProvider == nil {
		return
	}
	if err := p.shutdownMeterProvider(ctx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
}
