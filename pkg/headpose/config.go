package headpose

import "fmt"

// Config holds the solver parameters for head pose estimation.
type Config struct {
	// MaxIterations bounds the Levenberg-Marquardt refinement.
	MaxIterations int `json:"max_iterations"`

	// StepTolerance stops refinement once a step is this small relative to
	// the parameter vector.
	StepTolerance float64 `json:"step_tolerance"`

	// CostTolerance stops refinement once the relative decrease in squared
	// reprojection error falls below it.
	CostTolerance float64 `json:"cost_tolerance"`

	// MaxReprojectionError rejects solutions whose RMS reprojection error in
	// pixels is above it. Zero disables the check.
	MaxReprojectionError float64 `json:"max_reprojection_error"`
}

// DefaultConfig returns the solver defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:        100,
		StepTolerance:        1e-10,
		CostTolerance:        1e-12,
		MaxReprojectionError: 0, // accept any converged pose
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("headpose: max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.StepTolerance < 0 {
		return fmt.Errorf("headpose: step_tolerance must be >= 0, got %v", c.StepTolerance)
	}
	if c.CostTolerance < 0 {
		return fmt.Errorf("headpose: cost_tolerance must be >= 0, got %v", c.CostTolerance)
	}
	if c.MaxReprojectionError < 0 {
		return fmt.Errorf("headpose: max_reprojection_error must be >= 0, got %v", c.MaxReprojectionError)
	}
	return nil
}
