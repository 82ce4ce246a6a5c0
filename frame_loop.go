package posecam

import (
	"context"
	"iter"
	"sync/atomic"

	"github.com/teranos/posecam/trip"
)

// FrameLoop steps a rig one frame at a time.
//
// A loop is single pass: once Next returns false it stays false. Build a new
// loop with Rig.Frames to iterate again.
//
// Example usage:
//
//	loop := rig.Frames(ctx)
//	for loop.Next() {
//		rec := loop.Record()
//		...
//	}
//	if err := loop.Err(); err != nil {
//		return err
//	}
type FrameLoop struct {
	rig  *Rig
	ctx  context.Context
	time int64 // predicted display time of the previous frame

	record PoseRecord
	err    error
	done   bool

	// Counters are atomic so a status view can read them mid-capture
	ticks    atomic.Int64
	frames   atomic.Int64
	sampled  atomic.Int64
	lastTime atomic.Int64
}

// LoopStats is a snapshot of a frame loop's counters.
type LoopStats struct {
	Ticks    int64 // iterations that produced a record
	Frames   int64 // frames waited on
	Sampled  int64 // records carrying a sampled timestamp
	LastTime int64 // last predicted display time
}

// Frames returns a new frame loop over the rig. The loop ends when ctx is
// done, when exit was requested, on the first runtime error, or right after
// event dispatch when the trip policy says to stop.
func (r *Rig) Frames(ctx context.Context) *FrameLoop {
	return &FrameLoop{rig: r, ctx: ctx}
}

// Next runs one iteration: dispatch events, then, while the session runs,
// sample the hands and wait for the next frame. It reports whether a record
// was produced.
func (l *FrameLoop) Next() bool {
	if l.done {
		return false
	}
	r := l.rig

	if l.ctx.Err() != nil || r.ExitRequested() {
		l.done = true
		return false
	}

	if err := r.PollEvents(); err != nil {
		return l.fail(err)
	}
	if !r.trips.ShouldContinue() {
		r.log.Warn("trip policy ended the frame loop", "state", r.state.String())
		l.done = true
		return false
	}

	rec := PoseRecord{}
	if r.Running() {
		sample, err := r.PollActions(l.time)
		if err != nil {
			return l.fail(err)
		}

		frame, head, err := l.renderFrame()
		if err != nil {
			return l.fail(err)
		}

		if r.initialTime == 0 && frame.PredictedDisplayTime != 0 {
			r.initialTime = frame.PredictedDisplayTime
			r.log.Info("initial time latched", "time", r.initialTime)
		}
		l.time = frame.PredictedDisplayTime
		l.lastTime.Store(l.time)

		var ts int64
		if sample.Sampled {
			ts = frame.PredictedDisplayTime
			l.sampled.Add(1)
		}
		rec = NewPoseRecord(ts, sample.Hands[LeftHand], sample.Hands[RightHand], head)
	}

	l.record = rec
	l.ticks.Add(1)
	return true
}

// renderFrame waits for the next frame, resolves the left eye in world space
// as the head reference, and submits an empty frame.
func (l *FrameLoop) renderFrame() (FrameState, Transform, error) {
	r := l.rig

	frame, err := r.rt.WaitFrame(r.session)
	if err != nil {
		return FrameState{}, Transform{}, r.fall("xrWaitFrame failed", err)
	}
	l.frames.Add(1)
	r.log.Debug("current frame display time", "time_s", float64(frame.PredictedDisplayTime)/1e9)

	viewState, views, err := r.rt.LocateViews(r.session, primaryViewConfiguration, frame.PredictedDisplayTime, r.worldSpace)
	if err != nil {
		return FrameState{}, Transform{}, r.fall("xrLocateViews failed", err)
	}

	if err := r.rt.BeginFrame(r.session); err != nil {
		return FrameState{}, Transform{}, r.fall("xrBeginFrame failed", err)
	}
	if err := r.rt.EndFrame(r.session, FrameEndInfo{DisplayTime: frame.PredictedDisplayTime}); err != nil {
		return FrameState{}, Transform{}, r.fall("xrEndFrame failed", err)
	}

	head := EmptyTransform()
	switch {
	case len(views) <= EyeLeft:
		r.log.Warn("runtime returned no views", "count", len(views))
	case !viewState.Flags.Valid():
		r.trips.Record(trip.NewStumble("tracking", "head view missing valid bits", nil))
		r.log.Warn("head view not valid", "flags", uint64(viewState.Flags))
	default:
		head = NewTransform(views[EyeLeft].Pose)
	}
	return frame, head, nil
}

func (l *FrameLoop) fail(err error) bool {
	l.err = err
	l.done = true
	return false
}

// Record returns the record produced by the last successful Next.
func (l *FrameLoop) Record() PoseRecord { return l.record }

// Err returns the error that ended the loop, if any.
func (l *FrameLoop) Err() error { return l.err }

// All adapts the loop to a range-over-func sequence.
func (l *FrameLoop) All() iter.Seq[PoseRecord] {
	return func(yield func(PoseRecord) bool) {
		for l.Next() {
			if !yield(l.record) {
				return
			}
		}
	}
}

// Stats returns a snapshot of the loop counters. Safe for concurrent use.
func (l *FrameLoop) Stats() LoopStats {
	return LoopStats{
		Ticks:    l.ticks.Load(),
		Frames:   l.frames.Load(),
		Sampled:  l.sampled.Load(),
		LastTime: l.lastTime.Load(),
	}
}
