// Package headpose recovers head orientation from 2D face landmarks.
//
// Six landmarks are matched against a rigid 3D face template and the
// perspective-n-point problem is solved under an approximate pinhole camera
// (see pkg/camera). The resulting rotation is reported as X-Y-Z Euler angles
// in degrees.
//
// Failures are always returned as errors wrapping ErrPoseSolve. A zero pose is
// a real answer (facing the camera dead on) and is never used as a fallback.
package headpose

import (
	"fmt"

	"github.com/teslashibe/go-facecues/pkg/camera"
	"github.com/teslashibe/go-facecues/pkg/facemesh"
)

// Estimator solves head pose for one landmark topology and face template.
// It holds no per-frame state and is safe for concurrent use.
type Estimator struct {
	config Config
	model  FaceModel
	points facemesh.PosePoints
}

// NewEstimator creates an estimator after validating cfg.
func NewEstimator(cfg Config, model FaceModel, points facemesh.PosePoints) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{
		config: cfg,
		model:  model,
		points: points,
	}, nil
}

var defaultEstimator = &Estimator{
	config: DefaultConfig(),
	model:  DefaultFaceModel(),
	points: facemesh.MediaPipe().Pose,
}

// Estimate solves head pose for MediaPipe landmarks with the default template
// and solver settings.
func Estimate(landmarks facemesh.Landmarks, size facemesh.FrameSize) (Angles, error) {
	return defaultEstimator.Estimate(landmarks, size)
}

// Config returns the solver configuration.
func (e *Estimator) Config() Config {
	return e.config
}

// Estimate returns the head orientation for one frame.
func (e *Estimator) Estimate(landmarks facemesh.Landmarks, size facemesh.FrameSize) (Angles, error) {
	sol, err := e.Solve(landmarks, size)
	if err != nil {
		return Angles{}, err
	}
	return sol.Angles(), nil
}

// Solve returns the full camera-from-template transform for one frame.
func (e *Estimator) Solve(landmarks facemesh.Landmarks, size facemesh.FrameSize) (Solution, error) {
	k, err := camera.BuildModel(size)
	if err != nil {
		return Solution{}, err
	}

	image, err := landmarks.Pixels(e.points.Indices(), size)
	if err != nil {
		return Solution{}, fmt.Errorf("%w: %w", ErrPoseSolve, err)
	}

	return Solve(e.model.Points(), image, k, e.config)
}
