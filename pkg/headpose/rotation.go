package headpose

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// singularThreshold is the sy value below which the X-Y-Z decomposition is
// treated as gimbal locked.
const singularThreshold = 1e-6

// Angles is a head orientation in degrees.
type Angles struct {
	Pitch float64 `json:"pitch"` // about X
	Yaw   float64 `json:"yaw"`   // about Y
	Roll  float64 `json:"roll"`  // about Z
}

// Degrees converts radians to degrees.
func Degrees(radians float64) float64 {
	return radians * 180.0 / math.Pi
}

// Radians converts degrees to radians.
func Radians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}

// MatrixToEuler extracts pitch, yaw and roll from a 3x3 rotation matrix
// R = Rz(roll) * Ry(yaw) * Rx(pitch).
//
// Near yaw = ±90° the decomposition is singular; there roll is reported as 0
// and the combined pitch/roll rotation is folded into pitch.
func MatrixToEuler(r mat.Matrix) Angles {
	r00 := r.At(0, 0)
	r10, r11, r12 := r.At(1, 0), r.At(1, 1), r.At(1, 2)
	r20, r21, r22 := r.At(2, 0), r.At(2, 1), r.At(2, 2)

	sy := math.Sqrt(r00*r00 + r10*r10)

	var x, y, z float64
	if sy >= singularThreshold {
		x = math.Atan2(r21, r22)
		y = math.Atan2(-r20, sy)
		z = math.Atan2(r10, r00)
	} else {
		x = math.Atan2(-r12, r11)
		y = math.Atan2(-r20, sy)
		z = 0
	}

	return Angles{
		Pitch: Degrees(x),
		Yaw:   Degrees(y),
		Roll:  Degrees(z),
	}
}

// EulerToMatrix builds Rz(roll) * Ry(yaw) * Rx(pitch), the inverse of MatrixToEuler.
func EulerToMatrix(a Angles) *mat.Dense {
	sx, cx := math.Sincos(Radians(a.Pitch))
	sy, cy := math.Sincos(Radians(a.Yaw))
	sz, cz := math.Sincos(Radians(a.Roll))

	return mat.NewDense(3, 3, []float64{
		cz * cy, cz*sy*sx - sz*cx, cz*sy*cx + sz*sx,
		sz * cy, sz*sy*sx + cz*cx, sz*sy*cx - cz*sx,
		-sy, cy * sx, cy * cx,
	})
}

// RotationFromVector converts a Rodrigues (axis * angle) vector to a rotation matrix.
func RotationFromVector(v r3.Vec) *mat.Dense {
	theta := r3.Norm(v)
	if theta < 1e-12 {
		// First order: I + [v]x
		return mat.NewDense(3, 3, []float64{
			1, -v.Z, v.Y,
			v.Z, 1, -v.X,
			-v.Y, v.X, 1,
		})
	}

	k := r3.Scale(1/theta, v)
	s, c := math.Sincos(theta)
	t := 1 - c

	return mat.NewDense(3, 3, []float64{
		c + k.X*k.X*t, k.X*k.Y*t - k.Z*s, k.X*k.Z*t + k.Y*s,
		k.Y*k.X*t + k.Z*s, c + k.Y*k.Y*t, k.Y*k.Z*t - k.X*s,
		k.Z*k.X*t - k.Y*s, k.Z*k.Y*t + k.X*s, c + k.Z*k.Z*t,
	})
}

// VectorFromRotation converts a rotation matrix to a Rodrigues vector with
// angle in [0, π].
func VectorFromRotation(r mat.Matrix) r3.Vec {
	trace := r.At(0, 0) + r.At(1, 1) + r.At(2, 2)
	cos := math.Max(-1, math.Min(1, (trace-1)/2))
	theta := math.Acos(cos)

	w := r3.Vec{
		X: r.At(2, 1) - r.At(1, 2),
		Y: r.At(0, 2) - r.At(2, 0),
		Z: r.At(1, 0) - r.At(0, 1),
	}

	sin := math.Sin(theta)
	if sin > 1e-6 {
		return r3.Scale(theta/(2*sin), w)
	}
	if cos > 0 {
		// theta ≈ 0
		return r3.Scale(0.5, w)
	}

	// theta ≈ π: R ≈ 2aaᵀ - I, so aaᵀ = (R + I) / 2.
	diag := [3]float64{
		(r.At(0, 0) + 1) / 2,
		(r.At(1, 1) + 1) / 2,
		(r.At(2, 2) + 1) / 2,
	}
	i := 0
	for j := 1; j < 3; j++ {
		if diag[j] > diag[i] {
			i = j
		}
	}
	ai := math.Sqrt(math.Max(diag[i], 0))
	if ai == 0 {
		return r3.Vec{}
	}
	var a [3]float64
	a[i] = ai
	for j := 0; j < 3; j++ {
		if j != i {
			a[j] = (r.At(i, j) + r.At(j, i)) / (4 * ai)
		}
	}
	axis := r3.Unit(r3.Vec{X: a[0], Y: a[1], Z: a[2]})
	if r3.Dot(axis, w) < 0 {
		axis = r3.Scale(-1, axis)
	}
	return r3.Scale(theta, axis)
}

// rotate returns r * p for a 3x3 matrix r.
func rotate(r mat.Matrix, p r3.Vec) r3.Vec {
	return r3.Vec{
		X: r.At(0, 0)*p.X + r.At(0, 1)*p.Y + r.At(0, 2)*p.Z,
		Y: r.At(1, 0)*p.X + r.At(1, 1)*p.Y + r.At(1, 2)*p.Z,
		Z: r.At(2, 0)*p.X + r.At(2, 1)*p.Y + r.At(2, 2)*p.Z,
	}
}
