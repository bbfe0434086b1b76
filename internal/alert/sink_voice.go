package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/sheero-ai/sheero/internal/advisor"
)

// VoiceSink triggers the voice collaborator with a spoken tip for newly
// activated hazards. Clearing events and rapid repeats are skipped: a
// voice line is the most intrusive channel, so it carries its own cooldown
// on top of the dispatcher's rate limit.
type VoiceSink struct {
	provider advisor.Provider
	url      string // TTS collaborator endpoint; empty logs the tip instead
	client   *http.Client
	cooldown time.Duration
	clock    func() time.Time

	mu      sync.Mutex
	lastTip time.Time
	spoken  uint64
	skipped uint64
}

// NewVoiceSink builds the voice channel. provider may not be nil; url may
// be empty for log-only operation.
func NewVoiceSink(provider advisor.Provider, url string, timeout, cooldown time.Duration, clock func() time.Time) (*VoiceSink, error) {
	if provider == nil {
		return nil, fmt.Errorf("voice provider is nil")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	if clock == nil {
		clock = time.Now
	}
	return &VoiceSink{
		provider: provider,
		url:      url,
		client:   &http.Client{Timeout: timeout},
		cooldown: cooldown,
		clock:    clock,
	}, nil
}

func (s *VoiceSink) Name() string { return "voice" }

func (s *VoiceSink) Deliver(ctx context.Context, ev *Event) error {
	if ev == nil || !ev.Active {
		return nil
	}

	s.mu.Lock()
	now := s.clock()
	if !s.lastTip.IsZero() && now.Sub(s.lastTip) < s.cooldown {
		s.skipped++
		s.mu.Unlock()
		return nil
	}
	s.lastTip = now
	s.mu.Unlock()

	tip, err := s.provider.Advise(ctx, ev.State)
	if err != nil {
		// The channel still speaks: a canned line beats silence when the
		// model is unreachable.
		log.Printf("alert: voice advisor failed (%v), using fallback line", err)
		tip = advisor.FallbackTip(ev.State)
	}
	if tip == "" {
		return nil
	}

	s.mu.Lock()
	s.spoken++
	s.mu.Unlock()

	if s.url == "" {
		log.Printf("alert: voice advisory: %s", tip)
		return nil
	}
	return s.push(ctx, tip, ev)
}

func (s *VoiceSink) push(ctx context.Context, tip string, ev *Event) error {
	payload, err := json.Marshal(map[string]any{
		"text":    tip,
		"summary": ev.State.Summary(),
		"kind":    ev.Kind,
	})
	if err != nil {
		return fmt.Errorf("encode advisory: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post advisory: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("voice collaborator status %d", resp.StatusCode)
	}
	return nil
}

// Spoken reports how many tips were delivered.
func (s *VoiceSink) Spoken() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spoken
}

// Skipped reports activations swallowed by the cooldown.
func (s *VoiceSink) Skipped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

func (s *VoiceSink) Close(context.Context) error { return nil }
