package posecam

import (
	"errors"

	"github.com/teranos/posecam/trip"
)

// PollEvents drains the runtime event queue and applies each event.
//
// Instance loss pending requests exit and restart and leaves any remaining
// events queued. A poll error other than ErrEventUnavailable is fatal.
func (r *Rig) PollEvents() error {
	if r.closed {
		return ErrRigClosed
	}

	for {
		ev, err := r.rt.PollEvent()
		if errors.Is(err, ErrEventUnavailable) {
			return nil
		}
		if err != nil {
			return r.fall("xrPollEvent failed", err)
		}

		switch ev.Type {
		case EventEventsLost:
			r.log.Warn("EVENT LOST", "lost_count", ev.LostCount)

		case EventInstanceLossPending:
			r.log.Info("EVENT: instance loss pending")
			r.trips.Record(trip.NewTrip("session", "instance loss pending", trip.Context{"time": ev.Time}))
			r.requestStop(true)
			return nil

		case EventSessionStateChanged:
			r.log.Info("EVENT: session state changed")
			if err := r.handleSessionStateChanged(ev); err != nil {
				return err
			}

		case EventInteractionProfileChanged:
			r.handleInteractionProfileChanged()

		case EventReferenceSpaceChangePending:
			r.log.Warn("EVENT: reference space change pending")

		default:
			r.log.Warn("EVENT: unknown event", "type", ev.Type.String())
		}
	}
}

// handleInteractionProfileChanged records the profile now bound to the hands.
func (r *Rig) handleInteractionProfileChanged() {
	profile, err := r.rt.CurrentInteractionProfile(r.session, r.handPaths[RightHand])
	if err != nil {
		r.log.Warn("EVENT: interaction profile changed, lookup failed", "error", err)
		return
	}

	name, err := r.rt.PathToString(profile)
	if err != nil || profile == NullPath {
		r.log.Warn("EVENT: interaction profile changed to NULL")
		return
	}

	r.interactionProfile = profile
	r.log.Warn("EVENT: interaction profile changed", "profile", name)
}
