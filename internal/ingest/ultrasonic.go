// Package ingest reads the ultrasonic sensor frames off their serial
// transport and offers them to the normalizer.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sheero-ai/sheero/internal/signal"
)

// UltrasonicReader parses the flank frame line protocol from a serial
// transport opened by the caller:
//
//	L,<cm0>,<cm1>
//	R,<cm0>,<cm1>
//
// One line per flank per duty cycle (~500 ms), two sensors per line.
// Malformed frames are dropped and counted; the reader never blocks the
// engine, it only writes to the normalizer's single-slot buffers.
type UltrasonicReader struct {
	norm *signal.Normalizer
	r    io.Reader
	sim  bool
	duty time.Duration

	produced uint64
	dropped  uint64
}

// NewUltrasonicReader wraps the opened transport. A nil reader enables
// simulation mode at the given duty cycle, for bench and development use.
func NewUltrasonicReader(norm *signal.Normalizer, r io.Reader, duty time.Duration) *UltrasonicReader {
	if duty <= 0 {
		duty = 500 * time.Millisecond
	}
	return &UltrasonicReader{
		norm: norm,
		r:    r,
		sim:  r == nil,
		duty: duty,
	}
}

// Start launches the read loop.
func (u *UltrasonicReader) Start(ctx context.Context) {
	if u.sim {
		log.Printf("ultrasonic reader started (simulate, duty=%s)", u.duty)
		go u.runSim(ctx)
		return
	}
	log.Printf("ultrasonic reader started (serial, duty=%s)", u.duty)
	go u.runSerial(ctx)
}

func (u *UltrasonicReader) runSerial(ctx context.Context) {
	scanner := bufio.NewScanner(u.r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		readings, err := ParseFrame(scanner.Text())
		if err != nil {
			atomic.AddUint64(&u.dropped, 1)
			log.Printf("ultrasonic: %v", err)
			continue
		}
		u.offer(readings)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Printf("ultrasonic: serial read ended: %v", err)
	}
}

func (u *UltrasonicReader) runSim(ctx context.Context) {
	ticker := time.NewTicker(u.duty)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("ultrasonic reader stopped (produced=%d, dropped=%d)",
				atomic.LoadUint64(&u.produced), atomic.LoadUint64(&u.dropped))
			return
		case <-ticker.C:
			for _, flank := range []signal.Flank{signal.FlankLeft, signal.FlankRight} {
				base := 150.0 + rand.Float64()*200.0
				u.offer([]signal.ProximityReading{
					{Flank: flank, Sensor: 0, DistanceCm: base + rand.Float64()*5},
					{Flank: flank, Sensor: 1, DistanceCm: base + rand.Float64()*5},
				})
			}
		}
	}
}

func (u *UltrasonicReader) offer(readings []signal.ProximityReading) {
	for _, r := range readings {
		if err := u.norm.OfferProximity(r); err != nil {
			atomic.AddUint64(&u.dropped, 1)
			log.Printf("ultrasonic: %v", err)
			continue
		}
		atomic.AddUint64(&u.produced, 1)
	}
}

// Stats returns produced and dropped counts.
func (u *UltrasonicReader) Stats() (produced, dropped uint64) {
	return atomic.LoadUint64(&u.produced), atomic.LoadUint64(&u.dropped)
}

// ParseFrame decodes one serial line into the flank's sensor pair.
func ParseFrame(line string) ([]signal.ProximityReading, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("empty frame")
	}
	parts := strings.Split(line, ",")
	if len(parts) != 1+signal.SensorsPerFlank {
		return nil, fmt.Errorf("frame %q: want %d fields, got %d", line, 1+signal.SensorsPerFlank, len(parts))
	}

	flank, err := signal.ParseFlank(parts[0])
	if err != nil {
		return nil, fmt.Errorf("frame %q: %w", line, err)
	}

	out := make([]signal.ProximityReading, 0, signal.SensorsPerFlank)
	for i, raw := range parts[1:] {
		cm, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("frame %q: sensor %d: %w", line, i, err)
		}
		out = append(out, signal.ProximityReading{Flank: flank, Sensor: i, DistanceCm: cm})
	}
	return out, nil
}
