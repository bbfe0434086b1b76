package alert

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// BuzzerSink writes directional activation commands to the buzzer's
// GPIO-style character device. Line protocol, one command per event:
//
//	BUZ <flank> <intensity> ON
//	BUZ <flank> 0 OFF
//
// Only blind-spot flags reach the device; drowsiness and stress have no
// directional buzzer meaning and are skipped.
type BuzzerSink struct {
	w  io.Writer
	c  io.Closer
	mu sync.Mutex
}

// NewBuzzerSink wraps the opened device. If w also implements io.Closer it
// is closed with the sink.
func NewBuzzerSink(w io.Writer) (*BuzzerSink, error) {
	if w == nil {
		return nil, fmt.Errorf("buzzer writer is nil")
	}
	s := &BuzzerSink{w: w}
	if c, ok := w.(io.Closer); ok {
		s.c = c
	}
	return s, nil
}

func (s *BuzzerSink) Name() string { return "buzzer" }

func (s *BuzzerSink) Deliver(_ context.Context, ev *Event) error {
	if ev == nil {
		return nil
	}
	_, isBlindSpot := ev.Kind.Flank()
	if !isBlindSpot {
		return nil
	}

	cmd := fmt.Sprintf("BUZ %s 0 OFF\n", ev.Flank)
	if ev.Active {
		cmd = fmt.Sprintf("BUZ %s %d ON\n", ev.Flank, ev.Intensity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, cmd); err != nil {
		return fmt.Errorf("write buzzer command: %w", err)
	}
	return nil
}

func (s *BuzzerSink) Close(context.Context) error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}
