// Package camera builds the approximate pinhole camera used for head pose.
//
// Only relative angles are needed, so the model is not calibrated: the focal
// length equals the frame width on both axes, the principal point sits at the
// frame center and the lens is assumed distortion free.
package camera

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-facecues/pkg/facemesh"
)

// Distortion holds the k1, k2, p1, p2 lens coefficients.
type Distortion [4]float64

// Intrinsics is a pinhole camera model in pixel units.
type Intrinsics struct {
	FX, FY     float64
	CX, CY     float64
	Distortion Distortion
}

// BuildModel returns the intrinsics for a frame of the given size.
// The result is derived fresh on every call and never cached.
func BuildModel(size facemesh.FrameSize) (Intrinsics, error) {
	if err := size.Validate(); err != nil {
		return Intrinsics{}, fmt.Errorf("build camera model: %w", err)
	}
	focal := float64(size.Width)
	center := size.Center()
	return Intrinsics{
		FX: focal,
		FY: focal,
		CX: center.X,
		CY: center.Y,
	}, nil
}

// Matrix returns the 3x3 intrinsic matrix
//
//	[fx  0 cx]
//	[ 0 fy cy]
//	[ 0  0  1]
func (k Intrinsics) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		k.FX, 0, k.CX,
		0, k.FY, k.CY,
		0, 0, 1,
	})
}

// Project maps a point in camera coordinates to pixels. The point must be in
// front of the camera (Z > 0); callers check depth before projecting.
func (k Intrinsics) Project(p r3.Vec) r2.Vec {
	n := k.distort(r2.Vec{X: p.X / p.Z, Y: p.Y / p.Z})
	return r2.Vec{X: k.FX*n.X + k.CX, Y: k.FY*n.Y + k.CY}
}

// Normalize maps a pixel to the normalized image plane (z = 1), ignoring
// distortion.
func (k Intrinsics) Normalize(px r2.Vec) r2.Vec {
	return r2.Vec{X: (px.X - k.CX) / k.FX, Y: (px.Y - k.CY) / k.FY}
}

// distort applies the Brown-Conrady radial/tangential model to a normalized point.
func (k Intrinsics) distort(n r2.Vec) r2.Vec {
	d := k.Distortion
	if d == (Distortion{}) {
		return n
	}
	k1, k2, p1, p2 := d[0], d[1], d[2], d[3]
	rr := n.X*n.X + n.Y*n.Y
	radial := 1 + k1*rr + k2*rr*rr
	return r2.Vec{
		X: n.X*radial + 2*p1*n.X*n.Y + p2*(rr+2*n.X*n.X),
		Y: n.Y*radial + p1*(rr+2*n.Y*n.Y) + 2*p2*n.X*n.Y,
	}
}
