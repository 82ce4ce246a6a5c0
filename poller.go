package posecam

import (
	"fmt"

	"github.com/teranos/posecam/trip"
)

// HandSample holds both hand transforms from one PollActions call.
type HandSample struct {
	// Sampled is false when the session was not focused and nothing was queried
	Sampled bool
	Hands   [handCount]Transform
}

// PollActions samples both hands at time ts.
//
// Input is only synchronized while the session is FOCUSED; in any other state
// the returned sample is unsampled and the runtime is not touched.
func (r *Rig) PollActions(ts int64) (HandSample, error) {
	if r.closed {
		return HandSample{}, ErrRigClosed
	}
	if r.state != SessionStateFocused {
		return HandSample{}, nil
	}

	if err := r.rt.SyncActions(r.session, r.actionSet, NullPath); err != nil {
		return HandSample{}, r.fall("xrSyncActions failed", err)
	}

	sample := HandSample{Sampled: true}
	for _, h := range Hands {
		active, err := r.rt.ActionStatePose(r.session, r.poseAction, r.handPaths[h])
		if err != nil {
			return HandSample{}, r.fall(fmt.Sprintf("xrGetActionStatePose failed for %s hand", h), err)
		}
		if !active {
			r.log.Debug("pose action inactive", "hand", h.String())
		}

		t, err := r.locate(h, ts)
		if err != nil {
			return HandSample{}, err
		}
		sample.Hands[h] = t
	}
	return sample, nil
}

// locate resolves a hand's action space in world space at ts.
//
// Times at or before the initial frame time are never sent to the runtime.
// Partially valid locations are logged and returned as absent transforms.
func (r *Rig) locate(h Hand, ts int64) (Transform, error) {
	path := r.cfg.Hands[h].Path
	if ts <= r.initialTime {
		r.log.Warn("attempt to ask pose for invalid time", "time", ts, "initial_time", r.initialTime, "path", path)
		r.trips.Record(trip.NewStumble("timing", "pose requested before initial time", trip.Context{
			"time": ts,
			"path": path,
		}))
		return EmptyTransform(), nil
	}

	loc, err := r.rt.LocateSpace(r.handSpaces[h], r.worldSpace, ts)
	if err != nil {
		return EmptyTransform(), r.fall(fmt.Sprintf("xrLocateSpace failed for %s", path), err)
	}

	seconds := float64(ts) / 1e9
	if loc.Flags&PositionValid == 0 {
		r.log.Warn("invalid time called for locate_space or runtime doesn't know how to locate spaces",
			"time_s", seconds, "path", path)
	}
	if loc.Flags&OrientationValid == 0 {
		r.log.Warn("orientation invalid, runtime cannot orient space", "time_s", seconds, "path", path)
	}
	if loc.Flags&PositionTracked == 0 {
		r.log.Warn("position disoriented, tracking lost", "path", path)
	}

	if !loc.Flags.Valid() {
		r.trips.Record(trip.NewStumble("tracking", "location missing valid bits", trip.Context{
			"path":  path,
			"flags": fmt.Sprintf("%#x", uint64(loc.Flags)),
		}))
		return EmptyTransform(), nil
	}

	t := NewTransform(loc.Pose)
	r.log.Debug("pose located", "time_s", seconds, "path", path, "pose", t.String())
	return t, nil
}
