package facemesh

import "fmt"

// EyeRingSize is the number of contour points in one eye ring.
const EyeRingSize = 16

// EyeRing lists the contour landmarks of one eye, starting at a horizontal
// corner. Positions 0 and 8 are the corners; 1/14 and 2/13 are the
// outer and inner vertical pairs.
type EyeRing [EyeRingSize]int

// Mouth holds the inner-lip landmarks used for mouth openness.
type Mouth struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// PosePoints holds the six landmarks matched against the 3D face template.
type PosePoints struct {
	NoseTip       int `json:"nose_tip"`
	Chin          int `json:"chin"`
	LeftEyeOuter  int `json:"left_eye_outer"`
	RightEyeOuter int `json:"right_eye_outer"`
	MouthLeft     int `json:"mouth_left"`
	MouthRight    int `json:"mouth_right"`
}

// Indices returns the pose landmarks in template order.
func (p PosePoints) Indices() []int {
	return []int{p.NoseTip, p.Chin, p.LeftEyeOuter, p.RightEyeOuter, p.MouthLeft, p.MouthRight}
}

// Topology describes where each cue finds its landmarks in a detector's
// index scheme. Swapping the upstream landmark model means swapping this value.
type Topology struct {
	Name         string     `json:"name"`
	MinLandmarks int        `json:"min_landmarks"`
	LeftEye      EyeRing    `json:"left_eye"`
	RightEye     EyeRing    `json:"right_eye"`
	Mouth        Mouth      `json:"mouth"`
	Pose         PosePoints `json:"pose"`
}

// MediaPipe returns the topology of the 468/478-point MediaPipe Face Mesh.
func MediaPipe() Topology {
	return Topology{
		Name:         "mediapipe-face-mesh",
		MinLandmarks: 468,
		LeftEye:      EyeRing{362, 382, 381, 380, 373, 374, 390, 249, 263, 466, 388, 387, 386, 385, 384, 398},
		RightEye:     EyeRing{33, 7, 163, 144, 145, 153, 154, 155, 133, 173, 157, 158, 159, 160, 161, 246},
		Mouth: Mouth{
			Top:    13,
			Bottom: 14,
			Left:   61,
			Right:  291,
		},
		Pose: PosePoints{
			NoseTip:       1,
			Chin:          152,
			LeftEyeOuter:  33,
			RightEyeOuter: 263,
			MouthLeft:     61,
			MouthRight:    291,
		},
	}
}

// Validate checks that every index is non-negative and below MinLandmarks.
func (t Topology) Validate() error {
	if t.MinLandmarks <= 0 {
		return fmt.Errorf("topology %q: min landmarks must be positive", t.Name)
	}
	check := func(what string, i int) error {
		if i < 0 || i >= t.MinLandmarks {
			return fmt.Errorf("topology %q: %s %w: index %d, min landmarks %d",
				t.Name, what, ErrIndexOutOfRange, i, t.MinLandmarks)
		}
		return nil
	}
	for k, i := range t.LeftEye {
		if err := check(fmt.Sprintf("left eye[%d]", k), i); err != nil {
			return err
		}
	}
	for k, i := range t.RightEye {
		if err := check(fmt.Sprintf("right eye[%d]", k), i); err != nil {
			return err
		}
	}
	for _, i := range []int{t.Mouth.Top, t.Mouth.Bottom, t.Mouth.Left, t.Mouth.Right} {
		if err := check("mouth", i); err != nil {
			return err
		}
	}
	for _, i := range t.Pose.Indices() {
		if err := check("pose", i); err != nil {
			return err
		}
	}
	return nil
}
