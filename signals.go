package posecam

import "sync/atomic"

// Signals carries the start/stop requests from a control surface to Capture.
//
// The two flags are independent and latched: once set they stay set. They are
// written by one listener goroutine and read by the capture loop at iteration
// boundaries.
type Signals struct {
	started       atomic.Bool
	stopRequested atomic.Bool
}

// Start marks capturing as started. It reports whether this call changed the flag.
func (s *Signals) Start() bool {
	return s.started.CompareAndSwap(false, true)
}

// RequestStop asks the capture to end. It reports whether this call changed the flag.
func (s *Signals) RequestStop() bool {
	return s.stopRequested.CompareAndSwap(false, true)
}

// Started reports whether capturing has started.
func (s *Signals) Started() bool { return s.started.Load() }

// StopRequested reports whether a stop was requested.
func (s *Signals) StopRequested() bool { return s.stopRequested.Load() }
