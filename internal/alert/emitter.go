package alert

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sheero-ai/sheero/internal/telemetry"
)

// Sink consumes alert events. The set is closed: buzzer, dashboard
// webhook, voice advisory, and the JSONL log.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev *Event) error
	Close(ctx context.Context) error
}

// SinkUnavailableError wraps a single sink's delivery failure. Non-fatal:
// the alert for that sink is dropped, other sinks are unaffected.
type SinkUnavailableError struct {
	Sink string
	Err  error
}

func (e *SinkUnavailableError) Error() string {
	return "sink " + e.Sink + " unavailable: " + e.Err.Error()
}

func (e *SinkUnavailableError) Unwrap() error { return e.Err }

// EmitterConfig sizes the delivery queue and workers.
type EmitterConfig struct {
	QueueSize       int
	Workers         int
	DeliverTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Emitter fans events out to every sink from background workers. Publish
// never blocks the fusion cycle; a full queue drops the event. Each sink
// gets its own delivery timeout and its failures are isolated.
type Emitter struct {
	queue           chan *Event
	sinks           []Sink
	deliverTimeout  time.Duration
	shutdownTimeout time.Duration
	tel             *telemetry.Provider

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	statsMu  sync.Mutex
	enqueued uint64
	dropped  uint64
	success  map[string]uint64
	failure  map[string]uint64
}

// NewEmitter starts the delivery workers.
func NewEmitter(cfg EmitterConfig, sinks []Sink, tel *telemetry.Provider) *Emitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.DeliverTimeout <= 0 {
		cfg.DeliverTimeout = 2 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 2 * time.Second
	}

	em := &Emitter{
		queue:           make(chan *Event, cfg.QueueSize),
		sinks:           sinks,
		deliverTimeout:  cfg.DeliverTimeout,
		shutdownTimeout: cfg.ShutdownTimeout,
		tel:             tel,
		success:         make(map[string]uint64, len(sinks)),
		failure:         make(map[string]uint64, len(sinks)),
	}
	for i := 0; i < cfg.Workers; i++ {
		em.wg.Add(1)
		go em.worker()
	}
	return em
}

// Publish enqueues without blocking. Events offered after Close begins, or
// when the queue is full, are dropped and counted.
func (e *Emitter) Publish(ev *Event) {
	if e == nil || ev == nil {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.count(func() { e.dropped++ })
		return
	}
	select {
	case e.queue <- ev:
		e.count(func() { e.enqueued++ })
	default:
		e.count(func() { e.dropped++ })
	}
}

// Close stops accepting events, drains the queue within the shutdown
// timeout, then closes every sink. Guarantees no alert is delivered after
// Close returns.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	waitCtx, cancel := context.WithTimeout(ctx, e.shutdownTimeout)
	defer cancel()

	select {
	case <-done:
	case <-waitCtx.Done():
	}

	for _, s := range e.sinks {
		if err := s.Close(waitCtx); err != nil {
			log.Printf("alert: sink %s close error: %v", s.Name(), err)
		}
	}
}

// Enqueued returns events accepted onto the queue.
func (e *Emitter) Enqueued() uint64 { return e.stat(&e.enqueued) }

// Dropped returns events lost to a full queue or a closed emitter.
func (e *Emitter) Dropped() uint64 { return e.stat(&e.dropped) }

// SinkSuccess returns successful deliveries per sink name.
func (e *Emitter) SinkSuccess(name string) uint64 {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.success[name]
}

// SinkFailure returns failed deliveries per sink name.
func (e *Emitter) SinkFailure(name string) uint64 {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.failure[name]
}

func (e *Emitter) worker() {
	defer e.wg.Done()
	for ev := range e.queue {
		e.deliver(ev)
	}
}

// deliver fans one event to all sinks. Best-effort: a slow or unavailable
// sink must not prevent the others from receiving the alert.
func (e *Emitter) deliver(ev *Event) {
	for _, s := range e.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), e.deliverTimeout)
		err := s.Deliver(ctx, ev)
		cancel()
		if err != nil {
			log.Printf("alert: %v", &SinkUnavailableError{Sink: s.Name(), Err: err})
			e.tel.SinkFailure(s.Name())
			e.count(func() { e.failure[s.Name()]++ })
			continue
		}
		e.count(func() { e.success[s.Name()]++ })
	}
}

func (e *Emitter) count(fn func()) {
	e.statsMu.Lock()
	fn()
	e.statsMu.Unlock()
}

func (e *Emitter) stat(v *uint64) uint64 {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return *v
}
