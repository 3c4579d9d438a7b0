package headpose

import "gonum.org/v1/gonum/spatial/r3"

// FaceModel is a rigid 3D face template in template order: nose tip, chin,
// left eye outer corner, right eye outer corner, left mouth corner, right
// mouth corner. Units are arbitrary but fixed; only the shape matters.
type FaceModel [6]r3.Vec

// DefaultFaceModel returns the generic template used for all faces.
// The nose tip is the origin, +Y points up and the face looks down +Z.
func DefaultFaceModel() FaceModel {
	return FaceModel{
		{X: 0, Y: 0, Z: 0},          // nose tip
		{X: 0, Y: -330, Z: -65},     // chin
		{X: -225, Y: 170, Z: -135},  // left eye outer corner
		{X: 225, Y: 170, Z: -135},   // right eye outer corner
		{X: -150, Y: -150, Z: -125}, // left mouth corner
		{X: 150, Y: -150, Z: -125},  // right mouth corner
	}
}

// Points returns the template as a slice.
func (m FaceModel) Points() []r3.Vec {
	out := make([]r3.Vec, len(m))
	copy(out, m[:])
	return out
}
