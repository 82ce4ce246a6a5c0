// Package posecam captures controller and head poses from a mixed-reality
// tracking runtime.
//
// A Rig owns one runtime session: it checks the runtime capabilities, creates
// the pose action and spaces, and releases everything when closed. The rig
// turns the runtime's asynchronous event queue into a deterministic per-frame
// sampling loop.
//
// Basic usage:
//
//	err := posecam.WithRig(rt, posecam.DefaultRigConfig(), func(rig *posecam.Rig) error {
//		loop := rig.Frames(ctx)
//		for loop.Next() {
//			if rec := loop.Record(); rec.IsValid() {
//				poses = append(poses, rec)
//			}
//		}
//		return loop.Err()
//	})
//
// For keyboard-gated captures with pacing, see Capture.
package posecam

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/teranos/posecam/trip"
)

// Extensions the HTC Vive capture needs from the runtime.
const (
	ExtOpenGLEnable                = "XR_KHR_opengl_enable"
	ExtHandTracking                = "XR_EXT_hand_tracking"
	ExtViveCosmosControllerProfile = "XR_HTC_vive_cosmos_controller_interaction"
)

// ErrRigClosed is returned when a closed rig is used.
var ErrRigClosed = errors.New("posecam: rig closed")

// HandPaths are the top-level user path and the pose binding of one hand.
type HandPaths struct {
	Path     string
	PosePath string
}

// RigConfig configures the runtime resources a Rig creates.
//
// Example usage:
//
//	cfg := posecam.DefaultRigConfig()
//	cfg.Logger = slog.New(slog.NewTextHandler(logFile, nil))
//	rig, err := posecam.OpenRig(rt, cfg)
type RigConfig struct {
	// AppName is reported to the runtime when creating the instance
	AppName string

	// RequiredExtensions must all be supported or OpenRig fails
	RequiredExtensions []string

	// InteractionProfile is the profile the pose bindings are suggested for
	InteractionProfile string

	// Hands holds the user and pose paths, indexed by Hand
	Hands [handCount]HandPaths

	// Logger receives runtime diagnostics (default slog.Default())
	Logger *slog.Logger

	// TripPolicy decides which recorded trips end the frame loop (default trip.DefaultPolicy())
	TripPolicy *trip.Policy
}

// DefaultRigConfig returns the configuration for HTC Vive controllers.
func DefaultRigConfig() RigConfig {
	return RigConfig{
		AppName: "posecam",
		RequiredExtensions: []string{
			ExtOpenGLEnable,
			ExtHandTracking,
			ExtViveCosmosControllerProfile,
		},
		InteractionProfile: "/interaction_profiles/htc/vive_controller",
		Hands: [handCount]HandPaths{
			LeftHand:  {Path: "/user/hand/left", PosePath: "/user/hand/left/input/aim/pose"},
			RightHand: {Path: "/user/hand/right", PosePath: "/user/hand/right/input/aim/pose"},
		},
	}
}

// Rig owns the runtime resources of one capture session.
//
// All methods except RequestExit, ExitRequested, RestartRequested and Trips
// must be called from the goroutine driving the frame loop.
type Rig struct {
	rt    Runtime
	cfg   RigConfig
	log   *slog.Logger
	trips *trip.Handler

	// Runtime resources, created once by OpenRig
	session            SessionHandle
	actionSet          ActionSetHandle
	poseAction         ActionHandle
	handPaths          [handCount]Path
	posePaths          [handCount]Path
	handSpaces         [handCount]SpaceHandle
	worldSpace         SpaceHandle
	interactionProfile Path

	// release runs in reverse order on Close
	release []func() error
	closed  bool

	// Session lifecycle, mutated by the state machine only
	state   SessionState
	running bool

	// Control flags; the exit flag is latched
	exitRequested    atomic.Bool
	restartRequested atomic.Bool

	initialTime int64
}

// WithRig opens a rig, runs fn, and closes the rig however fn returns.
func WithRig(rt Runtime, cfg RigConfig, fn func(*Rig) error) (err error) {
	rig, err := OpenRig(rt, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rig.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(rig)
}

// OpenRig checks the runtime capabilities and creates the session, the hand
// pose action, one action space per hand and the STAGE world space.
//
// A missing extension fails before any runtime resource is created. If a later
// step fails, everything created so far is released.
func OpenRig(rt Runtime, cfg RigConfig) (*Rig, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	r := &Rig{
		rt:    rt,
		cfg:   cfg,
		log:   log,
		trips: trip.NewHandler("rig", cfg.TripPolicy),
	}

	if err := r.checkExtensions(); err != nil {
		return nil, err
	}

	log.Info("initializing XR instance", "extensions", cfg.RequiredExtensions)
	if err := r.init(); err != nil {
		if closeErr := r.Close(); closeErr != nil {
			log.Error("release after failed init", "error", closeErr)
		}
		return nil, err
	}
	return r, nil
}

// checkExtensions fails fast when the runtime lacks a required extension.
func (r *Rig) checkExtensions() error {
	available, err := r.rt.EnumerateInstanceExtensions()
	if err != nil {
		return r.fall("xrEnumerateInstanceExtensionProperties failed", err)
	}

	supported := make(map[string]bool, len(available))
	for _, name := range available {
		supported[name] = true
	}

	var missing []string
	for _, name := range r.cfg.RequiredExtensions {
		if !supported[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	r.log.Error("HTC VIVE is unsupported in this version of OpenXR", "missing", missing)
	return r.trips.Record(trip.NewFall("capability",
		"HTC VIVE is unsupported in this version of OpenXR (missing "+strings.Join(missing, ", ")+")",
		trip.Context{"missing": missing}))
}

// init creates the runtime resources. Every created resource pushes its
// release onto r.release.
func (r *Rig) init() error {
	if err := r.rt.CreateInstance(r.cfg.AppName, r.cfg.RequiredExtensions); err != nil {
		return r.fall("xrCreateInstance failed", err)
	}
	r.onClose(r.rt.DestroyInstance)

	session, err := r.rt.CreateSession()
	if err != nil {
		return r.fall("xrCreateSession failed", err)
	}
	r.session = session
	r.onClose(func() error { return r.rt.DestroySession(session) })

	set, err := r.rt.CreateActionSet("default_action_set", "Default Action Set")
	if err != nil {
		return r.fall("xrCreateActionSet failed", err)
	}
	r.actionSet = set
	r.onClose(func() error { return r.rt.DestroyActionSet(set) })

	for _, h := range Hands {
		if r.handPaths[h], err = r.path(r.cfg.Hands[h].Path); err != nil {
			return err
		}
		if r.posePaths[h], err = r.path(r.cfg.Hands[h].PosePath); err != nil {
			return err
		}
	}
	if r.interactionProfile, err = r.path(r.cfg.InteractionProfile); err != nil {
		return err
	}

	action, err := r.rt.CreateAction(set, ActionCreateInfo{
		Name:           "hand_pose",
		LocalizedName:  "Hand Pose",
		Type:           ActionTypePoseInput,
		SubactionPaths: r.handPaths[:],
	})
	if err != nil {
		return r.fall("xrCreateAction failed", err)
	}
	r.poseAction = action
	r.onClose(func() error { return r.rt.DestroyAction(action) })

	bindings := make([]ActionBinding, 0, handCount)
	for _, h := range Hands {
		bindings = append(bindings, ActionBinding{Action: action, Binding: r.posePaths[h]})
	}
	if err := r.rt.SuggestInteractionProfileBindings(r.interactionProfile, bindings); err != nil {
		return r.fall("xrSuggestInteractionProfileBindings failed", err)
	}

	for _, h := range Hands {
		space, err := r.rt.CreateActionSpace(session, action, r.handPaths[h], IdentityPose)
		if err != nil {
			return r.fall(fmt.Sprintf("xrCreateActionSpace failed for %s hand", h), err)
		}
		r.handSpaces[h] = space
		r.onClose(func() error { return r.rt.DestroySpace(space) })
	}

	world, err := r.rt.CreateReferenceSpace(session, ReferenceSpaceStage, IdentityPose)
	if err != nil {
		return r.fall("xrCreateReferenceSpace failed", err)
	}
	r.worldSpace = world
	r.onClose(func() error { return r.rt.DestroySpace(world) })

	if err := r.rt.AttachSessionActionSets(session, set); err != nil {
		return r.fall("xrAttachSessionActionSets failed", err)
	}

	r.log.Info("pose actions ready",
		"profile", r.cfg.InteractionProfile,
		"left", r.cfg.Hands[LeftHand].PosePath,
		"right", r.cfg.Hands[RightHand].PosePath,
	)
	return nil
}

func (r *Rig) path(s string) (Path, error) {
	p, err := r.rt.StringToPath(s)
	if err != nil {
		return NullPath, r.fall(fmt.Sprintf("xrStringToPath failed for %q", s), err)
	}
	return p, nil
}

func (r *Rig) onClose(fn func() error) {
	r.release = append(r.release, fn)
}

// Close releases every runtime resource in reverse creation order. It is safe
// to call more than once.
func (r *Rig) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if r.running {
		r.running = false
		if err := r.rt.EndSession(r.session); err != nil {
			errs = append(errs, err)
		}
	}

	r.log.Info("deleting XR instance", "resources", len(r.release))
	for i := len(r.release) - 1; i >= 0; i-- {
		if err := r.release[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.release = nil
	return errors.Join(errs...)
}

// fall records a fatal runtime failure and returns it as an error.
func (r *Rig) fall(message string, err error) error {
	return r.trips.Record(trip.NewFall("runtime", message, nil).WithCause(err))
}

// State returns the last applied session state.
func (r *Rig) State() SessionState { return r.state }

// Running reports whether the runtime session has been begun and not ended.
func (r *Rig) Running() bool { return r.running }

// Session returns the owned session handle.
func (r *Rig) Session() SessionHandle { return r.session }

// InitialTime returns the first nonzero predicted display time, or 0.
func (r *Rig) InitialTime() int64 { return r.initialTime }

// InteractionProfile returns the current interaction profile path.
func (r *Rig) InteractionProfile() Path { return r.interactionProfile }

// RequestExit asks the frame loop to stop at the next iteration boundary.
func (r *Rig) RequestExit() { r.exitRequested.Store(true) }

// ExitRequested reports whether the frame loop will stop.
func (r *Rig) ExitRequested() bool { return r.exitRequested.Load() }

// RestartRequested reports whether the runtime asked for a new instance.
func (r *Rig) RestartRequested() bool { return r.restartRequested.Load() }

// Trips returns the handler collecting this rig's errors and stumbles.
func (r *Rig) Trips() *trip.Handler { return r.trips }
