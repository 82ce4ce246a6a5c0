// Package simxr is a deterministic, in-process tracking runtime.
//
// It implements posecam.Runtime without hardware: frames advance by a fixed
// period, controllers move on circles in front of a standing head, and events
// are delivered per tick from a script. Tests use it as the fake runtime; the
// posecam command uses it as the "sim" device.
//
// A tick starts with the first PollEvent call after the queue last reported
// empty, so events scheduled for tick N arrive during the Nth event drain.
package simxr

import (
	"errors"
	"fmt"
	"math"

	"github.com/teranos/posecam"
)

// ErrTimeInvalid mirrors XR_ERROR_TIME_INVALID.
var ErrTimeInvalid = errors.New("simxr: XR_ERROR_TIME_INVALID")

// ErrHandleInvalid mirrors XR_ERROR_HANDLE_INVALID.
var ErrHandleInvalid = errors.New("simxr: XR_ERROR_HANDLE_INVALID")

// Config configures a simulated runtime.
type Config struct {
	// Extensions reported by EnumerateInstanceExtensions
	Extensions []string

	// FramePeriod is the predicted display period in nanoseconds
	FramePeriod int64

	// AutoLifecycle walks the session IDLE → READY → ... → FOCUSED by itself
	AutoLifecycle bool

	// FocusAfter is the number of ticks between READY and FOCUSED when AutoLifecycle is set
	FocusAfter int
}

// DefaultConfig returns a 90 Hz runtime that supports the Vive extensions and
// focuses two ticks after the session is ready.
func DefaultConfig() Config {
	return Config{
		Extensions: []string{
			posecam.ExtOpenGLEnable,
			posecam.ExtHandTracking,
			posecam.ExtViveCosmosControllerProfile,
		},
		FramePeriod:   11_111_111,
		AutoLifecycle: true,
		FocusAfter:    2,
	}
}

type spaceInfo struct {
	reference bool
	hand      posecam.Hand
}

// Runtime is the simulated runtime. It is not safe for concurrent use, like
// the session it stands in for.
type Runtime struct {
	cfg Config

	nextHandle uint64
	live       map[uint64]string
	instance   bool
	session    posecam.SessionHandle
	actionSet  posecam.ActionSetHandle
	attached   bool
	running    bool

	paths     map[string]posecam.Path
	pathNames map[posecam.Path]string
	spaces    map[posecam.SpaceHandle]spaceInfo
	profile   posecam.Path

	queue     []posecam.Event
	scheduled map[int][]posecam.Event
	tick      int
	draining  bool

	frameTime int64
	handFlags [2]posecam.LocationFlags
	viewFlags posecam.LocationFlags
	inactive  [2]bool
	failures  map[string]error
	calls     map[string]int
	locateLog []int64
}

var _ posecam.Runtime = (*Runtime)(nil)

// New creates a simulated runtime.
func New(cfg Config) *Runtime {
	all := posecam.OrientationValid | posecam.PositionValid | posecam.OrientationTracked | posecam.PositionTracked
	return &Runtime{
		cfg:        cfg,
		nextHandle: 0x1000,
		live:       make(map[uint64]string),
		paths:      make(map[string]posecam.Path),
		pathNames:  make(map[posecam.Path]string),
		spaces:     make(map[posecam.SpaceHandle]spaceInfo),
		scheduled:  make(map[int][]posecam.Event),
		handFlags:  [2]posecam.LocationFlags{all, all},
		viewFlags:  all,
		failures:   make(map[string]error),
		calls:      make(map[string]int),
	}
}

// Schedule queues events for delivery during the given tick (1-based).
func (r *Runtime) Schedule(tick int, events ...posecam.Event) {
	r.scheduled[tick] = append(r.scheduled[tick], events...)
}

// Enqueue appends events to the queue immediately.
func (r *Runtime) Enqueue(events ...posecam.Event) {
	r.queue = append(r.queue, events...)
}

// StateChange builds a session state changed event for the current session.
func (r *Runtime) StateChange(state posecam.SessionState) posecam.Event {
	return posecam.Event{Type: posecam.EventSessionStateChanged, Session: r.session, State: state}
}

// FailOn makes the named method return err from now on. A nil err clears it.
func (r *Runtime) FailOn(method string, err error) {
	if err == nil {
		delete(r.failures, method)
		return
	}
	r.failures[method] = err
}

// SetHandFlags overrides the location flags reported for a hand.
func (r *Runtime) SetHandFlags(h posecam.Hand, flags posecam.LocationFlags) {
	r.handFlags[h] = flags
}

// SetViewFlags overrides the flags reported by LocateViews.
func (r *Runtime) SetViewFlags(flags posecam.LocationFlags) {
	r.viewFlags = flags
}

// SetActionInactive marks a hand's pose action as inactive.
func (r *Runtime) SetActionInactive(h posecam.Hand, inactive bool) {
	r.inactive[h] = inactive
}

// Calls returns how many times the named method was invoked.
func (r *Runtime) Calls(method string) int { return r.calls[method] }

// LocateTimes returns the times LocateSpace was called with, in order.
func (r *Runtime) LocateTimes() []int64 { return append([]int64(nil), r.locateLog...) }

// Live returns the number of runtime resources not yet destroyed.
func (r *Runtime) Live() int { return len(r.live) }

// Session returns the session handle created by CreateSession.
func (r *Runtime) Session() posecam.SessionHandle { return r.session }

// Tick returns the current tick number.
func (r *Runtime) Tick() int { return r.tick }

// Running reports whether BeginSession was called without a matching EndSession.
func (r *Runtime) Running() bool { return r.running }

func (r *Runtime) enter(method string) error {
	r.calls[method]++
	return r.failures[method]
}

func (r *Runtime) alloc(kind string) uint64 {
	r.nextHandle++
	r.live[r.nextHandle] = kind
	return r.nextHandle
}

func (r *Runtime) free(h uint64, kind string) error {
	if r.live[h] != kind {
		return fmt.Errorf("%w: %s %#x", ErrHandleInvalid, kind, h)
	}
	delete(r.live, h)
	return nil
}

// EnumerateInstanceExtensions implements posecam.ExtensionLister.
func (r *Runtime) EnumerateInstanceExtensions() ([]string, error) {
	if err := r.enter("EnumerateInstanceExtensions"); err != nil {
		return nil, err
	}
	return append([]string(nil), r.cfg.Extensions...), nil
}

// CreateInstance implements posecam.Runtime.
func (r *Runtime) CreateInstance(appName string, extensions []string) error {
	if err := r.enter("CreateInstance"); err != nil {
		return err
	}
	if r.instance {
		return fmt.Errorf("simxr: instance already created")
	}
	r.instance = true
	r.live[0] = "instance"
	return nil
}

// DestroyInstance implements posecam.Runtime.
func (r *Runtime) DestroyInstance() error {
	if err := r.enter("DestroyInstance"); err != nil {
		return err
	}
	r.instance = false
	return r.free(0, "instance")
}

// CreateSession implements posecam.Runtime.
func (r *Runtime) CreateSession() (posecam.SessionHandle, error) {
	if err := r.enter("CreateSession"); err != nil {
		return 0, err
	}
	if !r.instance {
		return 0, ErrHandleInvalid
	}
	r.session = posecam.SessionHandle(r.alloc("session"))
	if r.cfg.AutoLifecycle {
		r.Schedule(1, r.StateChange(posecam.SessionStateIdle), r.StateChange(posecam.SessionStateReady))
	}
	return r.session, nil
}

// BeginSession implements posecam.Runtime.
func (r *Runtime) BeginSession(session posecam.SessionHandle, view posecam.ViewConfigurationType) error {
	if err := r.enter("BeginSession"); err != nil {
		return err
	}
	if session != r.session {
		return ErrHandleInvalid
	}
	r.running = true
	if r.cfg.AutoLifecycle {
		next := r.tick + 1
		r.Schedule(next, r.StateChange(posecam.SessionStateSynchronized), r.StateChange(posecam.SessionStateVisible))
		focus := r.tick + r.cfg.FocusAfter
		if focus <= next {
			focus = next
		}
		r.Schedule(focus, r.StateChange(posecam.SessionStateFocused))
	}
	return nil
}

// EndSession implements posecam.Runtime.
func (r *Runtime) EndSession(session posecam.SessionHandle) error {
	if err := r.enter("EndSession"); err != nil {
		return err
	}
	if session != r.session {
		return ErrHandleInvalid
	}
	r.running = false
	return nil
}

// DestroySession implements posecam.Runtime.
func (r *Runtime) DestroySession(session posecam.SessionHandle) error {
	if err := r.enter("DestroySession"); err != nil {
		return err
	}
	r.running = false
	return r.free(uint64(session), "session")
}

// StringToPath implements posecam.Runtime.
func (r *Runtime) StringToPath(s string) (posecam.Path, error) {
	if err := r.enter("StringToPath"); err != nil {
		return posecam.NullPath, err
	}
	if p, ok := r.paths[s]; ok {
		return p, nil
	}
	p := posecam.Path(len(r.paths) + 1)
	r.paths[s] = p
	r.pathNames[p] = s
	return p, nil
}

// PathToString implements posecam.Runtime.
func (r *Runtime) PathToString(p posecam.Path) (string, error) {
	if err := r.enter("PathToString"); err != nil {
		return "", err
	}
	name, ok := r.pathNames[p]
	if !ok {
		return "", fmt.Errorf("simxr: XR_ERROR_PATH_INVALID %d", p)
	}
	return name, nil
}

// CreateActionSet implements posecam.Runtime.
func (r *Runtime) CreateActionSet(name, localizedName string) (posecam.ActionSetHandle, error) {
	if err := r.enter("CreateActionSet"); err != nil {
		return 0, err
	}
	r.actionSet = posecam.ActionSetHandle(r.alloc("action_set"))
	return r.actionSet, nil
}

// DestroyActionSet implements posecam.Runtime.
func (r *Runtime) DestroyActionSet(set posecam.ActionSetHandle) error {
	if err := r.enter("DestroyActionSet"); err != nil {
		return err
	}
	return r.free(uint64(set), "action_set")
}

// CreateAction implements posecam.Runtime.
func (r *Runtime) CreateAction(set posecam.ActionSetHandle, info posecam.ActionCreateInfo) (posecam.ActionHandle, error) {
	if err := r.enter("CreateAction"); err != nil {
		return 0, err
	}
	if info.Type != posecam.ActionTypePoseInput {
		return 0, fmt.Errorf("simxr: only pose actions are simulated")
	}
	return posecam.ActionHandle(r.alloc("action")), nil
}

// DestroyAction implements posecam.Runtime.
func (r *Runtime) DestroyAction(action posecam.ActionHandle) error {
	if err := r.enter("DestroyAction"); err != nil {
		return err
	}
	return r.free(uint64(action), "action")
}

// SuggestInteractionProfileBindings implements posecam.Runtime.
func (r *Runtime) SuggestInteractionProfileBindings(profile posecam.Path, bindings []posecam.ActionBinding) error {
	if err := r.enter("SuggestInteractionProfileBindings"); err != nil {
		return err
	}
	r.profile = profile
	return nil
}

// AttachSessionActionSets implements posecam.Runtime.
func (r *Runtime) AttachSessionActionSets(session posecam.SessionHandle, sets ...posecam.ActionSetHandle) error {
	if err := r.enter("AttachSessionActionSets"); err != nil {
		return err
	}
	r.attached = true
	return nil
}

// CurrentInteractionProfile implements posecam.Runtime.
func (r *Runtime) CurrentInteractionProfile(session posecam.SessionHandle, topLevelPath posecam.Path) (posecam.Path, error) {
	if err := r.enter("CurrentInteractionProfile"); err != nil {
		return posecam.NullPath, err
	}
	return r.profile, nil
}

// SetInteractionProfile changes the bound profile and queues the change event.
func (r *Runtime) SetInteractionProfile(profile string) {
	p, _ := r.StringToPath(profile)
	r.profile = p
	r.Enqueue(posecam.Event{Type: posecam.EventInteractionProfileChanged, Session: r.session})
}

// CreateActionSpace implements posecam.Runtime.
func (r *Runtime) CreateActionSpace(session posecam.SessionHandle, action posecam.ActionHandle, subactionPath posecam.Path, pose posecam.Pose) (posecam.SpaceHandle, error) {
	if err := r.enter("CreateActionSpace"); err != nil {
		return 0, err
	}
	hand := posecam.LeftHand
	if r.pathNames[subactionPath] == "/user/hand/right" {
		hand = posecam.RightHand
	}
	space := posecam.SpaceHandle(r.alloc("space"))
	r.spaces[space] = spaceInfo{hand: hand}
	return space, nil
}

// CreateReferenceSpace implements posecam.Runtime.
func (r *Runtime) CreateReferenceSpace(session posecam.SessionHandle, kind posecam.ReferenceSpaceType, pose posecam.Pose) (posecam.SpaceHandle, error) {
	if err := r.enter("CreateReferenceSpace"); err != nil {
		return 0, err
	}
	space := posecam.SpaceHandle(r.alloc("space"))
	r.spaces[space] = spaceInfo{reference: true}
	return space, nil
}

// DestroySpace implements posecam.Runtime.
func (r *Runtime) DestroySpace(space posecam.SpaceHandle) error {
	if err := r.enter("DestroySpace"); err != nil {
		return err
	}
	delete(r.spaces, space)
	return r.free(uint64(space), "space")
}

// PollEvent implements posecam.Runtime.
func (r *Runtime) PollEvent() (posecam.Event, error) {
	if err := r.enter("PollEvent"); err != nil {
		return posecam.Event{}, err
	}
	if !r.draining {
		r.draining = true
		r.tick++
		r.queue = append(r.queue, r.scheduled[r.tick]...)
		delete(r.scheduled, r.tick)
	}
	if len(r.queue) == 0 {
		r.draining = false
		return posecam.Event{}, posecam.ErrEventUnavailable
	}
	ev := r.queue[0]
	r.queue = r.queue[1:]
	ev.Time = r.frameTime
	return ev, nil
}

// SyncActions implements posecam.Runtime.
func (r *Runtime) SyncActions(session posecam.SessionHandle, set posecam.ActionSetHandle, subactionPath posecam.Path) error {
	if err := r.enter("SyncActions"); err != nil {
		return err
	}
	if !r.attached {
		return fmt.Errorf("simxr: XR_ERROR_ACTIONSET_NOT_ATTACHED")
	}
	return nil
}

// ActionStatePose implements posecam.Runtime.
func (r *Runtime) ActionStatePose(session posecam.SessionHandle, action posecam.ActionHandle, subactionPath posecam.Path) (bool, error) {
	if err := r.enter("ActionStatePose"); err != nil {
		return false, err
	}
	hand := posecam.LeftHand
	if r.pathNames[subactionPath] == "/user/hand/right" {
		hand = posecam.RightHand
	}
	return !r.inactive[hand], nil
}

// LocateSpace implements posecam.Runtime.
func (r *Runtime) LocateSpace(space, baseSpace posecam.SpaceHandle, time int64) (posecam.SpaceLocation, error) {
	if err := r.enter("LocateSpace"); err != nil {
		return posecam.SpaceLocation{}, err
	}
	r.locateLog = append(r.locateLog, time)
	if time <= 0 {
		return posecam.SpaceLocation{}, ErrTimeInvalid
	}
	info, ok := r.spaces[space]
	if !ok {
		return posecam.SpaceLocation{}, ErrHandleInvalid
	}
	if info.reference {
		return posecam.SpaceLocation{Flags: r.handFlags[0] | r.handFlags[1], Pose: posecam.IdentityPose}, nil
	}
	return posecam.SpaceLocation{Flags: r.handFlags[info.hand], Pose: HandPose(info.hand, time)}, nil
}

// WaitFrame implements posecam.Runtime.
func (r *Runtime) WaitFrame(session posecam.SessionHandle) (posecam.FrameState, error) {
	if err := r.enter("WaitFrame"); err != nil {
		return posecam.FrameState{}, err
	}
	if !r.running {
		return posecam.FrameState{}, fmt.Errorf("simxr: XR_ERROR_SESSION_NOT_RUNNING")
	}
	r.frameTime += r.cfg.FramePeriod
	return posecam.FrameState{
		PredictedDisplayTime:   r.frameTime,
		PredictedDisplayPeriod: r.cfg.FramePeriod,
		ShouldRender:           true,
	}, nil
}

// BeginFrame implements posecam.Runtime.
func (r *Runtime) BeginFrame(session posecam.SessionHandle) error {
	return r.enter("BeginFrame")
}

// EndFrame implements posecam.Runtime.
func (r *Runtime) EndFrame(session posecam.SessionHandle, info posecam.FrameEndInfo) error {
	return r.enter("EndFrame")
}

// LocateViews implements posecam.Runtime.
func (r *Runtime) LocateViews(session posecam.SessionHandle, view posecam.ViewConfigurationType, displayTime int64, space posecam.SpaceHandle) (posecam.ViewState, []posecam.View, error) {
	if err := r.enter("LocateViews"); err != nil {
		return posecam.ViewState{}, nil, err
	}
	left, right := HeadPose(), HeadPose()
	left.Position.X -= ipd / 2
	right.Position.X += ipd / 2
	return posecam.ViewState{Flags: r.viewFlags}, []posecam.View{{Pose: left}, {Pose: right}}, nil
}

const (
	ipd         = 0.064
	orbitRadius = 0.1
	orbitHz     = 0.25
)

// HandPose returns the simulated controller pose at time t: each hand circles
// its own center, turning about the vertical axis.
func HandPose(h posecam.Hand, t int64) posecam.Pose {
	angle := 2 * math.Pi * orbitHz * float64(t) / 1e9
	cx := -0.2
	if h == posecam.RightHand {
		cx = 0.2
		angle = -angle
	}
	return posecam.Pose{
		Position: posecam.Vec3{
			X: float32(cx + orbitRadius*math.Cos(angle)),
			Y: float32(1.0 + orbitRadius*math.Sin(angle)),
			Z: -0.3,
		},
		Orientation: posecam.Quat{
			Y: float32(math.Sin(angle / 2)),
			W: float32(math.Cos(angle / 2)),
		},
	}
}

// HeadPose returns the simulated head pose (center eye).
func HeadPose() posecam.Pose {
	return posecam.Pose{
		Position:    posecam.Vec3{Y: 1.6},
		Orientation: posecam.IdentityQuat,
	}
}
