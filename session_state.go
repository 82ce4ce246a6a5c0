package posecam

import (
	"fmt"

	"github.com/teranos/posecam/trip"
)

// SessionState mirrors XrSessionState.
type SessionState int

const (
	SessionStateUnknown SessionState = iota
	SessionStateIdle
	SessionStateReady
	SessionStateSynchronized
	SessionStateVisible
	SessionStateFocused
	SessionStateStopping
	SessionStateLossPending
	SessionStateExiting
)

func (s SessionState) String() string {
	switch s {
	case SessionStateUnknown:
		return "UNKNOWN"
	case SessionStateIdle:
		return "IDLE"
	case SessionStateReady:
		return "READY"
	case SessionStateSynchronized:
		return "SYNCHRONIZED"
	case SessionStateVisible:
		return "VISIBLE"
	case SessionStateFocused:
		return "FOCUSED"
	case SessionStateStopping:
		return "STOPPING"
	case SessionStateLossPending:
		return "LOSS_PENDING"
	case SessionStateExiting:
		return "EXITING"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// primaryViewConfiguration is the view configuration sessions are begun with.
const primaryViewConfiguration = ViewConfigurationPrimaryStereo

// handleSessionStateChanged applies a session state change event.
//
// Events for a session other than the one this rig owns are not applied; they
// end the loop with a restart request instead.
func (r *Rig) handleSessionStateChanged(ev Event) error {
	if ev.Session != 0 && ev.Session != r.session {
		r.log.Info("session state changed for unknown session",
			"event_session", fmt.Sprintf("%#x", uint64(ev.Session)),
			"current_session", fmt.Sprintf("%#x", uint64(r.session)),
		)
		r.trips.Record(trip.NewTrip("session", "state change for unknown session", trip.Context{
			"event_session": uint64(ev.Session),
			"state":         ev.State.String(),
		}))
		r.requestStop(true)
		return nil
	}

	old := r.state
	r.state = ev.State
	r.log.Info("session changed state", "from", old.String(), "to", ev.State.String())

	switch ev.State {
	case SessionStateReady:
		if r.running {
			r.log.Debug("session already running, ignoring READY")
			return nil
		}
		if err := r.rt.BeginSession(r.session, primaryViewConfiguration); err != nil {
			return r.fall("xrBeginSession failed", err)
		}
		r.running = true
		r.log.Info("session started")

	case SessionStateStopping:
		if !r.running {
			r.log.Debug("session not running, ignoring STOPPING")
			return nil
		}
		r.running = false
		if err := r.rt.EndSession(r.session); err != nil {
			return r.fall("xrEndSession failed", err)
		}
		r.log.Info("session ended")

	case SessionStateExiting:
		// The user closed the session: never restart.
		r.requestStop(false)
		r.log.Info("session exited")

	case SessionStateLossPending:
		r.log.Warn("session loss pending, exiting")
		r.trips.Record(trip.NewTrip("session", "session loss pending", nil))
		r.requestStop(true)

	case SessionStateFocused:
		r.log.Info("session focused, ready for input")

	case SessionStateSynchronized:
		r.log.Info("session synchronized")

	case SessionStateVisible:
		r.log.Info("session visible")
	}

	return nil
}

// requestStop latches the exit flag and sets the restart request.
func (r *Rig) requestStop(restart bool) {
	r.exitRequested.Store(true)
	r.restartRequested.Store(restart)
}
