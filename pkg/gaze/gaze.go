// Package gaze decides whether a head pose faces the camera.
package gaze

import (
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/go-facecues/pkg/headpose"
)

// ErrInvalidThreshold is returned for a negative or NaN threshold.
var ErrInvalidThreshold = errors.New("invalid gaze threshold")

const (
	// DefaultThreshold is the yaw tolerance in degrees.
	DefaultThreshold = 15.0

	// PitchAllowance is the extra tolerance in degrees applied to pitch.
	PitchAllowance = 5.0
)

// IsLookingAtCamera reports whether |yaw| < threshold and
// |pitch| < threshold + PitchAllowance. Angles are in degrees.
func IsLookingAtCamera(pitch, yaw, threshold float64) (bool, error) {
	if err := validateThreshold(threshold); err != nil {
		return false, err
	}
	return math.Abs(yaw) < threshold && math.Abs(pitch) < threshold+PitchAllowance, nil
}

// Config holds the gaze classification threshold.
type Config struct {
	Threshold float64 `json:"threshold"` // degrees
}

// DefaultConfig returns the default gaze configuration.
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold}
}

// Validate returns ErrInvalidThreshold when the threshold is unusable.
func (c Config) Validate() error {
	return validateThreshold(c.Threshold)
}

// Classify applies IsLookingAtCamera to a pose.
func (c Config) Classify(a headpose.Angles) (bool, error) {
	return IsLookingAtCamera(a.Pitch, a.Yaw, c.Threshold)
}

func validateThreshold(threshold float64) error {
	if threshold < 0 || math.IsNaN(threshold) {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	return nil
}
