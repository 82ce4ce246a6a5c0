package posecam

import (
	"errors"
	"fmt"
)

// Handles issued by the tracking runtime. Zero is the null handle for each.
type (
	SessionHandle   uint64
	ActionSetHandle uint64
	ActionHandle    uint64
	SpaceHandle     uint64
	Path            uint64
)

// NullPath matches XR_NULL_PATH.
const NullPath Path = 0

// Hand identifies one of the two tracked controllers.
type Hand int

const (
	LeftHand Hand = iota
	RightHand
	handCount
)

// Hands lists both hands in the order they are polled.
var Hands = [handCount]Hand{LeftHand, RightHand}

func (h Hand) String() string {
	switch h {
	case LeftHand:
		return "left"
	case RightHand:
		return "right"
	default:
		return fmt.Sprintf("hand(%d)", int(h))
	}
}

// ErrEventUnavailable is returned by Runtime.PollEvent when the event queue is
// empty (XR_EVENT_UNAVAILABLE). Any other PollEvent error is fatal.
var ErrEventUnavailable = errors.New("posecam: event unavailable")

// EventType is the structure type of a polled runtime event.
type EventType int

const (
	EventUnknown EventType = iota
	EventEventsLost
	EventInstanceLossPending
	EventSessionStateChanged
	EventInteractionProfileChanged
	EventReferenceSpaceChangePending
)

func (t EventType) String() string {
	switch t {
	case EventEventsLost:
		return "events_lost"
	case EventInstanceLossPending:
		return "instance_loss_pending"
	case EventSessionStateChanged:
		return "session_state_changed"
	case EventInteractionProfileChanged:
		return "interaction_profile_changed"
	case EventReferenceSpaceChangePending:
		return "reference_space_change_pending"
	default:
		return "unknown"
	}
}

// Event is a decoded entry of the runtime event queue. Only the fields that
// belong to Type are set.
type Event struct {
	Type EventType
	// Session is the session the event refers to (state and profile events).
	Session SessionHandle
	// State is the new session state (state changed events).
	State SessionState
	// Time is the runtime time the event was generated at.
	Time int64
	// LostCount is the number of dropped events (events lost).
	LostCount uint32
}

// ViewConfigurationType selects the display view layout.
type ViewConfigurationType int

const (
	ViewConfigurationPrimaryMono ViewConfigurationType = iota + 1
	ViewConfigurationPrimaryStereo
)

// ReferenceSpaceType selects the origin of a reference space.
type ReferenceSpaceType int

const (
	ReferenceSpaceView ReferenceSpaceType = iota + 1
	ReferenceSpaceLocal
	ReferenceSpaceStage
)

// ActionType is the input type of an action.
type ActionType int

const (
	ActionTypeBooleanInput ActionType = iota + 1
	ActionTypeFloatInput
	ActionTypePoseInput ActionType = 4
)

// ActionCreateInfo describes an action to create in an action set.
type ActionCreateInfo struct {
	Name           string
	LocalizedName  string
	Type           ActionType
	SubactionPaths []Path
}

// ActionBinding suggests a binding path for an action.
type ActionBinding struct {
	Action  ActionHandle
	Binding Path
}

// LocationFlags mirrors XrSpaceLocationFlags.
type LocationFlags uint64

const (
	OrientationValid LocationFlags = 1 << iota
	PositionValid
	OrientationTracked
	PositionTracked
)

// Valid reports whether both position and orientation are valid.
func (f LocationFlags) Valid() bool {
	return f&PositionValid != 0 && f&OrientationValid != 0
}

// SpaceLocation is the result of locating a space at a time.
type SpaceLocation struct {
	Flags LocationFlags
	Pose  Pose
}

// ViewState carries the validity flags of a LocateViews call.
type ViewState struct {
	Flags LocationFlags
}

// View is one eye's pose.
type View struct {
	Pose Pose
}

// Eye indexes the views returned for the stereo configuration.
const (
	EyeLeft = iota
	EyeRight
)

// FrameState is the timing envelope returned by WaitFrame.
type FrameState struct {
	PredictedDisplayTime   int64
	PredictedDisplayPeriod int64
	ShouldRender           bool
}

// FrameEndInfo submits a frame. posecam never renders, so Layers is always 0.
type FrameEndInfo struct {
	DisplayTime int64
	Layers      int
}

// ExtensionLister is the capability query collaborator.
type ExtensionLister interface {
	// EnumerateInstanceExtensions returns the extension names the runtime supports.
	EnumerateInstanceExtensions() ([]string, error)
}

// Runtime is the tracking runtime the rig drives. Its methods mirror the
// OpenXR calls used for pose capture; implementations own the result code
// translation and report failures as errors.
type Runtime interface {
	ExtensionLister

	CreateInstance(appName string, extensions []string) error
	DestroyInstance() error

	CreateSession() (SessionHandle, error)
	BeginSession(session SessionHandle, view ViewConfigurationType) error
	EndSession(session SessionHandle) error
	DestroySession(session SessionHandle) error

	StringToPath(s string) (Path, error)
	PathToString(p Path) (string, error)

	CreateActionSet(name, localizedName string) (ActionSetHandle, error)
	DestroyActionSet(set ActionSetHandle) error
	CreateAction(set ActionSetHandle, info ActionCreateInfo) (ActionHandle, error)
	DestroyAction(action ActionHandle) error
	SuggestInteractionProfileBindings(profile Path, bindings []ActionBinding) error
	AttachSessionActionSets(session SessionHandle, sets ...ActionSetHandle) error
	CurrentInteractionProfile(session SessionHandle, topLevelPath Path) (Path, error)

	CreateActionSpace(session SessionHandle, action ActionHandle, subactionPath Path, poseInActionSpace Pose) (SpaceHandle, error)
	CreateReferenceSpace(session SessionHandle, kind ReferenceSpaceType, poseInReferenceSpace Pose) (SpaceHandle, error)
	DestroySpace(space SpaceHandle) error

	// PollEvent returns the next queued event, or ErrEventUnavailable.
	PollEvent() (Event, error)

	SyncActions(session SessionHandle, set ActionSetHandle, subactionPath Path) error
	ActionStatePose(session SessionHandle, action ActionHandle, subactionPath Path) (active bool, err error)
	LocateSpace(space, baseSpace SpaceHandle, time int64) (SpaceLocation, error)

	// WaitFrame blocks until the runtime schedules the next frame.
	WaitFrame(session SessionHandle) (FrameState, error)
	BeginFrame(session SessionHandle) error
	EndFrame(session SessionHandle, info FrameEndInfo) error
	LocateViews(session SessionHandle, view ViewConfigurationType, displayTime int64, space SpaceHandle) (ViewState, []View, error)
}
