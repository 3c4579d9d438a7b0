// Package facemesh defines the landmark data model shared by the cue classifiers.
//
// Landmarks arrive from an external face-mesh detector as points normalized to
// the frame, so every geometric measurement first scales them back to pixels
// using the FrameSize they were normalized against.
package facemesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// Landmark is a single detector point normalized to [0,1] on both axes.
// Z is carried for completeness and ignored by every computation here.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Landmarks is the ordered landmark set for one face in one frame.
type Landmarks []Landmark

// FrameSize is the pixel size the landmarks were normalized against.
type FrameSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Validate returns ErrInvalidDimensions unless both sides are positive.
func (s FrameSize) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, s.Width, s.Height)
	}
	return nil
}

// Center returns the pixel center of the frame.
func (s FrameSize) Center() r2.Vec {
	return r2.Vec{X: float64(s.Width) / 2, Y: float64(s.Height) / 2}
}

// String implements fmt.Stringer.
func (s FrameSize) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Pixel returns landmark i scaled to pixel coordinates.
func (l Landmarks) Pixel(i int, size FrameSize) (r2.Vec, error) {
	if i < 0 || i >= len(l) {
		return r2.Vec{}, fmt.Errorf("%w: index %d, have %d landmarks", ErrIndexOutOfRange, i, len(l))
	}
	p := l[i]
	return r2.Vec{X: p.X * float64(size.Width), Y: p.Y * float64(size.Height)}, nil
}

// Pixels scales each of the given landmarks to pixel coordinates, in order.
func (l Landmarks) Pixels(indices []int, size FrameSize) ([]r2.Vec, error) {
	out := make([]r2.Vec, len(indices))
	for k, i := range indices {
		p, err := l.Pixel(i, size)
		if err != nil {
			return nil, err
		}
		out[k] = p
	}
	return out, nil
}

// Distance returns the Euclidean pixel distance between landmarks i and j.
func (l Landmarks) Distance(i, j int, size FrameSize) (float64, error) {
	a, err := l.Pixel(i, size)
	if err != nil {
		return 0, err
	}
	b, err := l.Pixel(j, size)
	if err != nil {
		return 0, err
	}
	return r2.Norm(r2.Sub(a, b)), nil
}
