package posecam_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/posecam"
)

func TestSessionState_String(t *testing.T) {
	names := map[posecam.SessionState]string{
		posecam.SessionStateUnknown:      "UNKNOWN",
		posecam.SessionStateIdle:         "IDLE",
		posecam.SessionStateReady:        "READY",
		posecam.SessionStateSynchronized: "SYNCHRONIZED",
		posecam.SessionStateVisible:      "VISIBLE",
		posecam.SessionStateFocused:      "FOCUSED",
		posecam.SessionStateStopping:     "STOPPING",
		posecam.SessionStateLossPending:  "LOSS_PENDING",
		posecam.SessionStateExiting:      "EXITING",
	}
	for state, name := range names {
		assert.Equal(t, name, state.String())
	}
	assert.Equal(t, "SessionState(42)", posecam.SessionState(42).String())
}

func TestSessionState_ReadyBeginsOnce(t *testing.T) {
	rig, rt := openRig(t, manualSim())

	rt.Enqueue(rt.StateChange(posecam.SessionStateReady), rt.StateChange(posecam.SessionStateReady))
	require.NoError(t, rig.PollEvents())

	assert.Equal(t, 1, rt.Calls("BeginSession"))
	assert.True(t, rig.Running())
	assert.Equal(t, posecam.SessionStateReady, rig.State())
}

func TestSessionState_StoppingEndsOnce(t *testing.T) {
	rig, rt := openRig(t, manualSim())

	rt.Enqueue(rt.StateChange(posecam.SessionStateStopping))
	require.NoError(t, rig.PollEvents())
	assert.Equal(t, 0, rt.Calls("EndSession"), "a session that never began is not ended")

	rt.Enqueue(
		rt.StateChange(posecam.SessionStateReady),
		rt.StateChange(posecam.SessionStateStopping),
		rt.StateChange(posecam.SessionStateStopping),
	)
	require.NoError(t, rig.PollEvents())

	assert.Equal(t, 1, rt.Calls("BeginSession"))
	assert.Equal(t, 1, rt.Calls("EndSession"))
	assert.False(t, rig.Running())
	assert.False(t, rig.ExitRequested(), "stopping alone does not end the loop")
}

func TestSessionState_Restartable(t *testing.T) {
	rig, rt := openRig(t, manualSim())

	rt.Enqueue(
		rt.StateChange(posecam.SessionStateReady),
		rt.StateChange(posecam.SessionStateStopping),
		rt.StateChange(posecam.SessionStateIdle),
		rt.StateChange(posecam.SessionStateReady),
	)
	require.NoError(t, rig.PollEvents())

	assert.Equal(t, 2, rt.Calls("BeginSession"))
	assert.Equal(t, 1, rt.Calls("EndSession"))
	assert.True(t, rig.Running())
}

func TestSessionState_ExitingNeverRestarts(t *testing.T) {
	rig, rt := openRig(t, manualSim())

	rt.Enqueue(
		rt.StateChange(posecam.SessionStateLossPending),
		rt.StateChange(posecam.SessionStateExiting),
	)
	require.NoError(t, rig.PollEvents())

	assert.True(t, rig.ExitRequested())
	assert.False(t, rig.RestartRequested())
	assert.Equal(t, posecam.SessionStateExiting, rig.State())
}

func TestSessionState_LossPendingRestarts(t *testing.T) {
	rig, rt := openRig(t, manualSim())

	rt.Enqueue(rt.StateChange(posecam.SessionStateLossPending))
	require.NoError(t, rig.PollEvents())

	assert.True(t, rig.ExitRequested())
	assert.True(t, rig.RestartRequested())

	last, ok := rig.Trips().Last("session")
	require.True(t, ok)
	assert.Equal(t, "session loss pending", last.Message)
}

func TestSessionState_ForeignSessionIgnored(t *testing.T) {
	rig, rt := openRig(t, manualSim())

	rt.Enqueue(posecam.Event{
		Type:    posecam.EventSessionStateChanged,
		Session: rt.Session() + 99,
		State:   posecam.SessionStateReady,
	})
	require.NoError(t, rig.PollEvents())

	assert.Equal(t, posecam.SessionStateUnknown, rig.State(), "the state is not applied")
	assert.Equal(t, 0, rt.Calls("BeginSession"))
	assert.True(t, rig.ExitRequested())
	assert.True(t, rig.RestartRequested())
	assert.True(t, rig.Trips().HasTrips())
}

func TestSessionState_InformationalStates(t *testing.T) {
	rig, rt := openRig(t, manualSim())

	for _, state := range []posecam.SessionState{
		posecam.SessionStateIdle,
		posecam.SessionStateSynchronized,
		posecam.SessionStateVisible,
		posecam.SessionStateFocused,
	} {
		rt.Enqueue(rt.StateChange(state))
		require.NoError(t, rig.PollEvents())
		assert.Equal(t, state, rig.State())
	}

	assert.False(t, rig.Running())
	assert.False(t, rig.ExitRequested())
	assert.Equal(t, 0, rt.Calls("BeginSession"))
	assert.Equal(t, 0, rt.Calls("EndSession"))
}

func TestSessionState_BeginFailureIsFatal(t *testing.T) {
	rig, rt := openRig(t, manualSim())
	rt.FailOn("BeginSession", errBoom)

	rt.Enqueue(rt.StateChange(posecam.SessionStateReady))
	err := rig.PollEvents()

	assert.ErrorIs(t, err, errBoom)
	assert.False(t, rig.Running())
	assert.False(t, rig.Trips().ShouldContinue())
}
