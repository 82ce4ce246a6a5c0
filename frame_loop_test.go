package posecam_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/posecam"
	"github.com/teranos/posecam/simxr"
	"github.com/teranos/posecam/trip"
)

// runTicks advances the loop n times and returns the records produced.
func runTicks(t *testing.T, loop *posecam.FrameLoop, n int) []posecam.PoseRecord {
	t.Helper()
	var records []posecam.PoseRecord
	for i := 0; i < n; i++ {
		require.True(t, loop.Next(), "tick %d", i+1)
		records = append(records, loop.Record())
	}
	return records
}

func valid(records []posecam.PoseRecord) []posecam.PoseRecord {
	var kept []posecam.PoseRecord
	for _, rec := range records {
		if rec.IsValid() {
			kept = append(kept, rec)
		}
	}
	return kept
}

func TestFrameLoop_NeverFocused(t *testing.T) {
	rig, rt := openRig(t, manualSim())
	rt.Schedule(1, rt.StateChange(posecam.SessionStateReady))
	rt.Schedule(2, rt.StateChange(posecam.SessionStateSynchronized), rt.StateChange(posecam.SessionStateVisible))

	loop := rig.Frames(context.Background())
	records := runTicks(t, loop, 5)

	for i, rec := range records {
		assert.Equal(t, int64(0), rec.Time(), "tick %d", i+1)
	}
	assert.Empty(t, valid(records))
	assert.Equal(t, 0, rt.Calls("SyncActions"))
	assert.Equal(t, 5, rt.Calls("WaitFrame"), "frames keep turning while the session runs")
	assert.Equal(t, int64(10), rig.InitialTime())
}

func TestFrameLoop_SessionNotRunning(t *testing.T) {
	rig, rt := openRig(t, manualSim())

	loop := rig.Frames(context.Background())
	records := runTicks(t, loop, 3)

	for _, rec := range records {
		assert.Equal(t, posecam.PoseRecord{}, rec)
	}
	assert.Equal(t, 0, rt.Calls("WaitFrame"))
	assert.Equal(t, int64(0), rig.InitialTime())
}

func TestFrameLoop_FocusedFromSecondTick(t *testing.T) {
	rig, rt := openRig(t, manualSim())
	rt.Schedule(1, rt.StateChange(posecam.SessionStateReady))
	rt.Schedule(2, rt.StateChange(posecam.SessionStateFocused))

	loop := rig.Frames(context.Background())
	records := runTicks(t, loop, 5)

	assert.Equal(t, int64(10), rig.InitialTime())

	assert.Equal(t, int64(0), records[0].Time())
	assert.False(t, records[0].IsValid())

	for i, want := range []int64{20, 30, 40, 50} {
		rec := records[i+1]
		assert.Equal(t, want, rec.Time(), "tick %d", i+2)
		assert.True(t, rec.IsValid(), "tick %d", i+2)
		assert.True(t, rec.Head().Present())
	}

	// The first focused tick may not query a time at or before the initial time.
	assert.False(t, records[1].LeftHand().Present())
	assert.False(t, records[1].RightHand().Present())
	assert.Equal(t, []int64{20, 20, 30, 30, 40, 40}, rt.LocateTimes())
	for _, rec := range records[2:] {
		assert.True(t, rec.LeftHand().Present())
		assert.True(t, rec.RightHand().Present())
	}

	assert.Len(t, valid(records), 4)
	assert.Equal(t, posecam.LoopStats{Ticks: 5, Frames: 5, Sampled: 4, LastTime: 50}, loop.Stats())
}

func TestFrameLoop_ExitRequestStopsLoop(t *testing.T) {
	rig, _ := openRig(t, manualSim())
	loop := rig.Frames(context.Background())

	require.True(t, loop.Next())
	rig.RequestExit()
	assert.False(t, loop.Next())
	assert.False(t, loop.Next(), "a finished loop stays finished")
	assert.NoError(t, loop.Err())
}

func TestFrameLoop_ExitingEndsAfterTick(t *testing.T) {
	rig, rt := openRig(t, manualSim())
	rt.Schedule(1, rt.StateChange(posecam.SessionStateReady))
	rt.Schedule(3, rt.StateChange(posecam.SessionStateExiting))

	loop := rig.Frames(context.Background())
	var ticks int
	for loop.Next() {
		ticks++
	}

	assert.Equal(t, 3, ticks, "the tick that saw EXITING still completes")
	assert.NoError(t, loop.Err())
	assert.True(t, rig.ExitRequested())
	assert.False(t, rig.RestartRequested())
}

func TestFrameLoop_ContextCancel(t *testing.T) {
	rig, _ := openRig(t, manualSim())
	ctx, cancel := context.WithCancel(context.Background())

	loop := rig.Frames(ctx)
	require.True(t, loop.Next())
	cancel()
	assert.False(t, loop.Next())
	assert.NoError(t, loop.Err())
}

func TestFrameLoop_RuntimeErrorEndsLoop(t *testing.T) {
	for _, method := range []string{"WaitFrame", "LocateViews", "BeginFrame", "EndFrame"} {
		t.Run(method, func(t *testing.T) {
			rig, rt := openRig(t, manualSim())
			rt.Schedule(1, rt.StateChange(posecam.SessionStateReady))
			rt.FailOn(method, errBoom)

			loop := rig.Frames(context.Background())
			assert.False(t, loop.Next())
			assert.ErrorIs(t, loop.Err(), errBoom)
		})
	}
}

func TestFrameLoop_InvalidHeadView(t *testing.T) {
	rig, rt := openRig(t, manualSim())
	rt.Schedule(1, rt.StateChange(posecam.SessionStateReady))
	rt.SetViewFlags(posecam.PositionValid)

	loop := rig.Frames(context.Background())
	rec := runTicks(t, loop, 1)[0]

	assert.False(t, rec.Head().Present())
	_, ok := rig.Trips().Last("tracking")
	assert.True(t, ok)
}

func TestFrameLoop_StopOnErrorPolicy(t *testing.T) {
	rigCfg := quietRigConfig()
	rigCfg.TripPolicy = &trip.Policy{StopOnFall: true, StopOnError: true}
	rig, rt := openRigWith(t, manualSim(), rigCfg)
	rt.Schedule(1, rt.StateChange(posecam.SessionStateReady))
	rt.Schedule(2, rt.StateChange(posecam.SessionStateLossPending))

	loop := rig.Frames(context.Background())
	require.True(t, loop.Next())
	assert.False(t, loop.Next(), "the error ends the loop before the frame is rendered")
	assert.NoError(t, loop.Err())
	assert.Equal(t, int64(1), loop.Stats().Frames)
	assert.True(t, rig.RestartRequested())
}

func TestFrameLoop_DefaultPolicyFinishesErrorTick(t *testing.T) {
	rig, rt := openRig(t, manualSim())
	rt.Schedule(1, rt.StateChange(posecam.SessionStateReady))
	rt.Schedule(2, rt.StateChange(posecam.SessionStateLossPending))

	loop := rig.Frames(context.Background())
	runTicks(t, loop, 2)
	assert.False(t, loop.Next())
	assert.NoError(t, loop.Err())
	assert.True(t, rig.RestartRequested())
}

func TestFrameLoop_InitialTimeLatchesOnce(t *testing.T) {
	rig, rt := openRig(t, manualSim())
	rt.Schedule(1, rt.StateChange(posecam.SessionStateReady))

	runTicks(t, rig.Frames(context.Background()), 2)
	require.Equal(t, int64(10), rig.InitialTime())

	again := rig.Frames(context.Background())
	require.True(t, again.Next())
	assert.Equal(t, int64(30), again.Stats().LastTime)
	assert.Equal(t, int64(10), rig.InitialTime(), "a new loop keeps the first frame time")
}

func TestFrameLoop_All(t *testing.T) {
	rig, rt := openRig(t, manualSim())
	rt.Schedule(1, rt.StateChange(posecam.SessionStateReady))
	rt.Schedule(2, rt.StateChange(posecam.SessionStateFocused))

	var times []int64
	for rec := range rig.Frames(context.Background()).All() {
		times = append(times, rec.Time())
		if len(times) == 4 {
			break
		}
	}
	assert.Equal(t, []int64{0, 20, 30, 40}, times)
}

func TestFrameLoop_AutoLifecycle(t *testing.T) {
	rig, _ := openRig(t, simxr.DefaultConfig())

	loop := rig.Frames(context.Background())
	records := runTicks(t, loop, 6)

	assert.Equal(t, posecam.SessionStateFocused, rig.State())
	assert.NotEmpty(t, valid(records))
	assert.Greater(t, rig.InitialTime(), int64(0))
}
