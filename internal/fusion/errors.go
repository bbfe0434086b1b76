package fusion

import (
	"fmt"
	"time"
)

// SchedulerFaultError is an internal invariant violation, e.g. the cycle
// clock moving backwards. Fatal: a corrupted hazard state must never
// silently continue driving safety alerts, so the engine halts and surfaces
// this to the operator.
type SchedulerFaultError struct {
	Now  time.Time
	Last time.Time
}

func (e *SchedulerFaultError) Error() string {
	return fmt.Sprintf("scheduler fault: cycle time %s not after previous cycle %s",
		e.Now.Format(time.RFC3339Nano), e.Last.Format(time.RFC3339Nano))
}

// CycleOverrunError records a fusion cycle exceeding its budget. Non-fatal:
// the cycle's output is still dispatched, the next tick is skipped, and the
// overrun is logged as a degradation signal.
type CycleOverrunError struct {
	Elapsed time.Duration
	Budget  time.Duration
}

func (e *CycleOverrunError) Error() string {
	return fmt.Sprintf("cycle overrun: %s exceeded %s budget", e.Elapsed, e.Budget)
}
