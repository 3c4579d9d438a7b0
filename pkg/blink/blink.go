// Package blink classifies eye blinks and talking from face landmarks.
//
// Blinks are detected with the eye aspect ratio (EAR) of both eyes. Mouth
// movement while talking distorts the eye contour enough to read as a blink,
// so an open mouth suppresses blink detection entirely.
//
// Detection is best effort: IsBlinking and IsTalking never return an error.
// Any geometry failure is logged at debug level and reported as false so that
// a caller's frame loop keeps running. The raw metrics are available with
// their errors through EyeAspectRatio, MouthOpenness and Measure.
package blink

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-facecues/internal/log"
	"github.com/teslashibe/go-facecues/pkg/facemesh"
)

// ErrDegenerateGeometry is returned when an eye has zero horizontal width.
var ErrDegenerateGeometry = errors.New("degenerate eye geometry")

// Default thresholds.
const (
	DefaultEARThreshold       = 0.2
	DefaultMouthOpenThreshold = 15.0
)

// Config holds blink and talking thresholds and the landmark topology.
type Config struct {
	// EARThreshold: average EAR strictly below this is a blink.
	EARThreshold float64 `json:"ear_threshold"`

	// MouthOpenThreshold: mouth openness strictly above this is talking.
	MouthOpenThreshold float64 `json:"mouth_open_threshold"`

	Topology facemesh.Topology `json:"topology"`
}

// DefaultConfig returns the default thresholds for MediaPipe landmarks.
func DefaultConfig() Config {
	return Config{
		EARThreshold:       DefaultEARThreshold,
		MouthOpenThreshold: DefaultMouthOpenThreshold,
		Topology:           facemesh.MediaPipe(),
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if !(c.EARThreshold >= 0) {
		return fmt.Errorf("blink: ear_threshold must be >= 0, got %v", c.EARThreshold)
	}
	if !(c.MouthOpenThreshold >= 0) {
		return fmt.Errorf("blink: mouth_open_threshold must be >= 0, got %v", c.MouthOpenThreshold)
	}
	return c.Topology.Validate()
}

// EyeAspectRatio returns (|p1-p14| + |p2-p13|) / (2|p0-p8|) for the ring.
// A zero horizontal width returns ErrDegenerateGeometry.
func EyeAspectRatio(ring facemesh.EyeRing, landmarks facemesh.Landmarks, size facemesh.FrameSize) (float64, error) {
	if err := size.Validate(); err != nil {
		return 0, err
	}

	outer, err := landmarks.Distance(ring[1], ring[14], size)
	if err != nil {
		return 0, err
	}
	inner, err := landmarks.Distance(ring[2], ring[13], size)
	if err != nil {
		return 0, err
	}
	horizontal, err := landmarks.Distance(ring[0], ring[8], size)
	if err != nil {
		return 0, err
	}

	if horizontal == 0 {
		return 0, fmt.Errorf("%w: landmarks %d and %d coincide", ErrDegenerateGeometry, ring[0], ring[8])
	}
	return (outer + inner) / (2 * horizontal), nil
}

// MouthOpenness returns the inner-lip height as a percentage of mouth width.
// A zero mouth width returns 0 rather than an error, unlike EyeAspectRatio.
func MouthOpenness(mouth facemesh.Mouth, landmarks facemesh.Landmarks, size facemesh.FrameSize) (float64, error) {
	if err := size.Validate(); err != nil {
		return 0, err
	}

	vertical, err := landmarks.Distance(mouth.Top, mouth.Bottom, size)
	if err != nil {
		return 0, err
	}
	horizontal, err := landmarks.Distance(mouth.Left, mouth.Right, size)
	if err != nil {
		return 0, err
	}

	if horizontal == 0 {
		return 0, nil
	}
	return vertical / horizontal * 100, nil
}

// Metrics are the raw per-frame measurements behind the classification.
type Metrics struct {
	LeftEAR       float64 `json:"left_ear"`
	RightEAR      float64 `json:"right_ear"`
	AverageEAR    float64 `json:"average_ear"`
	MouthOpenness float64 `json:"mouth_openness"`
}

// Measure computes mouth openness and both eye aspect ratios, in that order.
// On error the metrics computed so far are returned alongside it and the
// rest are zero.
func Measure(landmarks facemesh.Landmarks, size facemesh.FrameSize, cfg Config) (Metrics, error) {
	var m Metrics
	var err error

	if m.MouthOpenness, err = MouthOpenness(cfg.Topology.Mouth, landmarks, size); err != nil {
		return m, fmt.Errorf("mouth: %w", err)
	}
	if m.LeftEAR, err = EyeAspectRatio(cfg.Topology.LeftEye, landmarks, size); err != nil {
		return m, fmt.Errorf("left eye: %w", err)
	}
	if m.RightEAR, err = EyeAspectRatio(cfg.Topology.RightEye, landmarks, size); err != nil {
		return m, fmt.Errorf("right eye: %w", err)
	}
	m.AverageEAR = (m.LeftEAR + m.RightEAR) / 2
	return m, nil
}

// Talking reports whether measured mouth openness is above the threshold.
func (c Config) Talking(m Metrics) bool {
	return m.MouthOpenness > c.MouthOpenThreshold
}

// Blinking applies the blink rule to complete metrics: talking suppresses
// the blink, otherwise the average EAR must be strictly below the threshold.
func (c Config) Blinking(m Metrics) bool {
	return !c.Talking(m) && m.AverageEAR < c.EARThreshold
}

// IsBlinking reports whether the eyes are closed in this frame.
// Talking (mouth openness above the threshold) always reports false.
func IsBlinking(landmarks facemesh.Landmarks, size facemesh.FrameSize, cfg Config) bool {
	m, err := Measure(landmarks, size, cfg)
	if err != nil {
		if !cfg.Talking(m) {
			log.Debug("blink detection skipped", "error", err)
		}
		return false
	}
	return cfg.Blinking(m)
}

// IsTalking reports whether mouth openness is above the threshold.
func IsTalking(landmarks facemesh.Landmarks, size facemesh.FrameSize, cfg Config) bool {
	openness, err := MouthOpenness(cfg.Topology.Mouth, landmarks, size)
	if err != nil {
		log.Debug("talk detection skipped", "error", err)
		return false
	}
	return cfg.Talking(Metrics{MouthOpenness: openness})
}
