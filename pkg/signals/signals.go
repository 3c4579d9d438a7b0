// Package signals combines head pose, gaze, blink and talking detection into
// one per-frame result.
package signals

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-facecues/internal/log"
	"github.com/teslashibe/go-facecues/pkg/blink"
	"github.com/teslashibe/go-facecues/pkg/facemesh"
	"github.com/teslashibe/go-facecues/pkg/gaze"
	"github.com/teslashibe/go-facecues/pkg/headpose"
)

// Config groups the thresholds of every detector.
type Config struct {
	Gaze  gaze.Config     `json:"gaze"`
	Blink blink.Config    `json:"blink"`
	Pose  headpose.Config `json:"pose"`
}

// DefaultConfig returns defaults for MediaPipe landmarks.
func DefaultConfig() Config {
	return Config{
		Gaze:  gaze.DefaultConfig(),
		Blink: blink.DefaultConfig(),
		Pose:  headpose.DefaultConfig(),
	}
}

// Validate checks every sub-config.
func (c Config) Validate() error {
	if err := c.Gaze.Validate(); err != nil {
		return fmt.Errorf("gaze: %w", err)
	}
	if err := c.Blink.Validate(); err != nil {
		return err
	}
	return c.Pose.Validate()
}

// Frame is one set of normalized landmarks with the frame it was detected in.
type Frame struct {
	Width     int                `json:"width" validate:"gt=0"`
	Height    int                `json:"height" validate:"gt=0"`
	Landmarks facemesh.Landmarks `json:"landmarks" validate:"required"`
}

// Size returns the frame dimensions.
func (f Frame) Size() facemesh.FrameSize {
	return facemesh.FrameSize{Width: f.Width, Height: f.Height}
}

// Result holds every signal derived from one frame.
//
// Pose is nil when the solve failed; PoseError then carries the reason and
// LookingAtCamera is false.
type Result struct {
	Pose            *headpose.Angles `json:"pose,omitempty"`
	PoseError       string           `json:"pose_error,omitempty"`
	LookingAtCamera bool             `json:"looking_at_camera"`
	Blinking        bool             `json:"blinking"`
	Talking         bool             `json:"talking"`
	blink.Metrics
}

// Analyzer derives signals from frames. It is safe for concurrent use.
type Analyzer struct {
	config    Config
	estimator *headpose.Estimator
	logger    *slog.Logger
}

// NewAnalyzer validates cfg and builds an analyzer.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	est, err := headpose.NewEstimator(cfg.Pose, headpose.DefaultFaceModel(), cfg.Blink.Topology.Pose)
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		config:    cfg,
		estimator: est,
		logger:    log.With("component", "signals"),
	}, nil
}

// Config returns the active configuration.
func (a *Analyzer) Config() Config {
	return a.config
}

// Analyze derives all signals for one frame. Only an invalid frame size is
// returned as an error; pose and blink failures are folded into the result.
func (a *Analyzer) Analyze(f Frame) (Result, error) {
	size := f.Size()
	if err := size.Validate(); err != nil {
		return Result{}, err
	}

	var res Result
	angles, err := a.estimator.Estimate(f.Landmarks, size)
	if err != nil {
		a.logger.Debug("pose solve failed", "error", err, "landmarks", len(f.Landmarks))
		res.PoseError = err.Error()
	} else {
		res.Pose = &angles
		looking, err := a.config.Gaze.Classify(angles)
		if err != nil {
			a.logger.Debug("gaze classification failed", "error", err)
		}
		res.LookingAtCamera = looking
	}

	// One measurement feeds both flags. Partial metrics still settle talking
	// because mouth openness is measured first and is zero when it fails.
	res.Metrics, err = blink.Measure(f.Landmarks, size, a.config.Blink)
	res.Talking = a.config.Blink.Talking(res.Metrics)
	if err != nil {
		a.logger.Debug("blink metrics incomplete", "error", err)
	} else {
		res.Blinking = a.config.Blink.Blinking(res.Metrics)
	}
	return res, nil
}

// AnalyzeBatch analyzes frames on at most workers goroutines and returns the
// results in input order. A workers value below 1 means one.
//
// The first frame error or ctx cancellation stops the batch.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, frames []Frame, workers int) ([]Result, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(frames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range frames {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := a.Analyze(frames[i])
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
