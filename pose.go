package posecam

import (
	"encoding/json"
	"fmt"
)

// Vec3 is a position in meters, matching XrVector3f.
type Vec3 struct {
	X, Y, Z float32
}

// Quat is a unit quaternion, matching XrQuaternionf.
type Quat struct {
	X, Y, Z, W float32
}

// IdentityQuat is the no-rotation orientation.
var IdentityQuat = Quat{W: 1}

// Pose is a raw runtime pose (XrPosef). It carries no validity information;
// see Transform for that.
type Pose struct {
	Orientation Quat
	Position    Vec3
}

// IdentityPose is the pose used for reference spaces created at the origin.
var IdentityPose = Pose{Orientation: IdentityQuat}

// Transform is a pose that is either fully known or fully absent.
//
// The zero value is absent.
type Transform struct {
	pose    Pose
	present bool
}

// NewTransform returns a present transform for the given pose.
func NewTransform(p Pose) Transform {
	return Transform{pose: p, present: true}
}

// EmptyTransform returns the absent sentinel transform.
func EmptyTransform() Transform {
	return Transform{}
}

// Present reports whether both position and orientation are known.
func (t Transform) Present() bool { return t.present }

// Pose returns the underlying pose and whether it is present.
func (t Transform) Pose() (Pose, bool) { return t.pose, t.present }

// Position returns the position and whether it is present.
func (t Transform) Position() (Vec3, bool) { return t.pose.Position, t.present }

// Orientation returns the orientation and whether it is present.
func (t Transform) Orientation() (Quat, bool) { return t.pose.Orientation, t.present }

// String renders the transform for log lines.
func (t Transform) String() string {
	if !t.present {
		return "<none>"
	}
	p, o := t.pose.Position, t.pose.Orientation
	return fmt.Sprintf("pos=(%.4f, %.4f, %.4f) rot=(%.4f, %.4f, %.4f, %.4f)",
		p.X, p.Y, p.Z, o.X, o.Y, o.Z, o.W)
}

// transformJSON is the wire shape of a transform in poses.json.
type transformJSON struct {
	Position    *[3]float32 `json:"position"`
	Orientation *[4]float32 `json:"orientation"`
}

// MarshalJSON encodes the transform as position/orientation arrays; an absent
// transform encodes both as null.
func (t Transform) MarshalJSON() ([]byte, error) {
	var out transformJSON
	if t.present {
		p, o := t.pose.Position, t.pose.Orientation
		out.Position = &[3]float32{p.X, p.Y, p.Z}
		out.Orientation = &[4]float32{o.X, o.Y, o.Z, o.W}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a transform written by MarshalJSON.
func (t *Transform) UnmarshalJSON(data []byte) error {
	var in transformJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if (in.Position == nil) != (in.Orientation == nil) {
		return fmt.Errorf("posecam: transform must have both position and orientation or neither")
	}
	if in.Position == nil {
		*t = EmptyTransform()
		return nil
	}
	*t = NewTransform(Pose{
		Position:    Vec3{X: in.Position[0], Y: in.Position[1], Z: in.Position[2]},
		Orientation: Quat{X: in.Orientation[0], Y: in.Orientation[1], Z: in.Orientation[2], W: in.Orientation[3]},
	})
	return nil
}

// PoseRecord is one frame's sample: both hands and the head reference at a
// runtime timestamp in nanoseconds.
//
// A record is immutable once built. Time 0 means the frame was not sampled.
type PoseRecord struct {
	time      int64
	leftHand  Transform
	rightHand Transform
	head      Transform
}

// NewPoseRecord builds a record.
func NewPoseRecord(time int64, left, right, head Transform) PoseRecord {
	return PoseRecord{time: time, leftHand: left, rightHand: right, head: head}
}

// Time returns the runtime timestamp (XrTime, nanoseconds).
func (r PoseRecord) Time() int64 { return r.time }

// LeftHand returns the left controller transform.
func (r PoseRecord) LeftHand() Transform { return r.leftHand }

// RightHand returns the right controller transform.
func (r PoseRecord) RightHand() Transform { return r.rightHand }

// Head returns the head reference (left eye) transform.
func (r PoseRecord) Head() Transform { return r.head }

// Hand returns the transform stored for h.
func (r PoseRecord) Hand(h Hand) Transform {
	if h == RightHand {
		return r.rightHand
	}
	return r.leftHand
}

// IsValid reports whether the record was sampled and carries at least one
// known position.
//
// The check is deliberately lenient: a single tracked device is enough.
func (r PoseRecord) IsValid() bool {
	if r.time == 0 {
		return false
	}
	return r.leftHand.present || r.rightHand.present || r.head.present
}

// recordJSON is the wire shape of a record in poses.json.
type recordJSON struct {
	Time      int64     `json:"time"`
	RightHand Transform `json:"right_hand"`
	LeftHand  Transform `json:"left_hand"`
	Head      Transform `json:"head"`
}

// MarshalJSON implements json.Marshaler.
func (r PoseRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		Time:      r.time,
		RightHand: r.rightHand,
		LeftHand:  r.leftHand,
		Head:      r.head,
	})
}

// UnmarshalJSON implements json.Unmarshaler. It exists for reading captures
// back; records are otherwise never mutated.
func (r *PoseRecord) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = NewPoseRecord(in.Time, in.LeftHand, in.RightHand, in.Head)
	return nil
}
