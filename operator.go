package posecam

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// CaptureConfig paces a capture.
type CaptureConfig struct {
	// FrameRate is the approximate number of samples kept per second
	FrameRate float64

	// StartPollInterval is the per-frame delay while waiting for the start signal
	StartPollInterval time.Duration
}

// DefaultCaptureConfig returns a 4 Hz capture that polls for start every 250ms.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		FrameRate:         4,
		StartPollInterval: 250 * time.Millisecond,
	}
}

// samplePeriod returns the sleep between kept frames.
func (c CaptureConfig) samplePeriod() time.Duration {
	if c.FrameRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.FrameRate)
}

// CaptureResult contains everything a capture produced.
//
// Example usage:
//
//	result, err := op.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	posecam.SavePosesJSON("poses.json", result.Poses)
type CaptureResult struct {
	SessionID        string        // Unique id of this capture, for logs and reports
	Poses            []PoseRecord  // Valid records in capture order
	InitialTime      int64         // First predicted display time seen by the rig
	StopTime         int64         // Time of the last kept record, 0 when none
	Frames           int64         // Frame loop iterations
	Duration         time.Duration // Wall time from first to last iteration
	RestartRequested bool          // The runtime asked for a new instance
	TripReport       string        // Detailed trip handling report
}

// CaptureStatus is a point-in-time view of a running capture, safe to read
// from any goroutine.
type CaptureStatus struct {
	SessionID string
	Started   bool
	Stopping  bool
	State     SessionState
	Loop      LoopStats
	Poses     int
	Stumbles  int
}

// Operator runs a start/stop gated capture over a rig: it keeps the frame
// loop turning, retains valid records once started, and ends the loop when a
// stop is requested.
type Operator struct {
	rig     *Rig
	signals *Signals
	config  CaptureConfig
	id      string

	mu    sync.Mutex
	loop  *FrameLoop
	state atomic.Int64
	poses atomic.Int64
}

// NewOperator creates an operator for rig, driven by signals.
func NewOperator(rig *Rig, signals *Signals, config CaptureConfig) *Operator {
	return &Operator{
		rig:     rig,
		signals: signals,
		config:  config,
		id:      uuid.NewString(),
	}
}

// SessionID returns the capture id.
func (op *Operator) SessionID() string { return op.id }

// Run drives the frame loop until stop is requested, the runtime ends the
// session, or ctx is done. The frame in flight when stop is observed always
// completes.
func (op *Operator) Run(ctx context.Context) (*CaptureResult, error) {
	loop := op.rig.Frames(ctx)
	op.mu.Lock()
	op.loop = loop
	op.mu.Unlock()

	log := op.rig.log.With("capture", op.id)
	log.Info("capture waiting for start signal")

	var (
		poses       []PoseRecord
		initialTime int64
		stopping    bool
		started     time.Time
		period      = op.config.samplePeriod()
	)

	for loop.Next() {
		rec := loop.Record()
		op.state.Store(int64(op.rig.State()))
		if started.IsZero() {
			started = time.Now()
		}

		if !op.signals.Started() {
			if !sleepCtx(ctx, op.config.StartPollInterval) {
				break
			}
			continue
		}

		if op.signals.StopRequested() && !stopping {
			stopping = true
			initialTime = op.rig.InitialTime()
			op.rig.RequestExit()
			log.Info("capture stop requested", "initial_time", initialTime)
		}

		if rec.IsValid() {
			poses = append(poses, rec)
			op.poses.Add(1)
		}

		if !stopping && !sleepCtx(ctx, period) {
			break
		}
	}

	if !stopping {
		initialTime = op.rig.InitialTime()
	}

	result := &CaptureResult{
		SessionID:        op.id,
		Poses:            poses,
		InitialTime:      initialTime,
		Frames:           loop.Stats().Ticks,
		RestartRequested: op.rig.RestartRequested(),
		TripReport:       op.rig.Trips().DetailedReport(),
	}
	if !started.IsZero() {
		result.Duration = time.Since(started)
	}
	if len(poses) > 0 {
		result.StopTime = poses[len(poses)-1].Time()
	}

	log.Info("capture finished",
		"poses", len(poses),
		"frames", result.Frames,
		"initial_time", result.InitialTime,
		"stop_time", result.StopTime,
		"restart_requested", result.RestartRequested,
	)

	if err := loop.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// Status returns the capture progress.
func (op *Operator) Status() CaptureStatus {
	op.mu.Lock()
	loop := op.loop
	op.mu.Unlock()

	status := CaptureStatus{
		SessionID: op.id,
		Started:   op.signals.Started(),
		Stopping:  op.signals.StopRequested(),
		State:     SessionState(op.state.Load()),
		Poses:     int(op.poses.Load()),
		Stumbles:  op.rig.Trips().StumbleCount(),
	}
	if loop != nil {
		status.Loop = loop.Stats()
	}
	return status
}

// Capture runs one operator over rig with the given signals.
func Capture(ctx context.Context, rig *Rig, signals *Signals, config CaptureConfig) (*CaptureResult, error) {
	return NewOperator(rig, signals, config).Run(ctx)
}

// sleepCtx sleeps for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
