package headpose

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-facecues/pkg/camera"
)

// minCorrespondences is the fewest points the linear initialisation accepts.
const minCorrespondences = 6

// Damping bounds for the Levenberg-Marquardt loop.
const (
	initialDamping = 1e-3
	maxDamping     = 1e10
	minDiagonal    = 1e-12
)

// exactFit is the squared pixel error treated as a perfect fit.
const exactFit = 1e-18

// Solution is the rigid transform taking template points into camera
// coordinates: p_cam = R(Rotation) * p_model + Translation.
type Solution struct {
	Rotation    r3.Vec  // Rodrigues vector
	Translation r3.Vec  // template units
	RMSError    float64 // reprojection error in pixels
	Iterations  int
}

// Matrix returns the rotation as a 3x3 matrix.
func (s Solution) Matrix() *mat.Dense {
	return RotationFromVector(s.Rotation)
}

// Angles returns the rotation as Euler angles in degrees.
func (s Solution) Angles() Angles {
	return MatrixToEuler(s.Matrix())
}

// Solve finds the pose whose projection of model best matches image under k.
//
// A direct linear transform gives the starting pose, which is refined by
// Levenberg-Marquardt on the reprojection error within cfg.MaxIterations.
// When that start fails to converge in front of the camera, refinement is
// retried from weak-perspective frontal and upright starts and the best
// valid solution is kept.
func Solve(model []r3.Vec, image []r2.Vec, k camera.Intrinsics, cfg Config) (Solution, error) {
	if len(model) != len(image) {
		return Solution{}, fmt.Errorf("%w: %d model points, %d image points", ErrPoseSolve, len(model), len(image))
	}
	if len(model) < minCorrespondences {
		return Solution{}, fmt.Errorf("%w: need %d correspondences, have %d", ErrPoseSolve, minCorrespondences, len(model))
	}
	for i, p := range image {
		if !finite(p.X) || !finite(p.Y) {
			return Solution{}, fmt.Errorf("%w: image point %d is not finite", ErrPoseSolve, i)
		}
	}

	p := pnpProblem{model: model, image: image, k: k}

	rvec, tvec, err := linearPose(model, image, k)
	var sol Solution
	if err == nil {
		sol, err = p.solveFrom(rvec, tvec, cfg)
	}
	if err != nil {
		alt, ok := p.retry(cfg)
		if !ok {
			return Solution{}, err
		}
		sol = alt
	}

	if cfg.MaxReprojectionError > 0 && sol.RMSError > cfg.MaxReprojectionError {
		return Solution{}, fmt.Errorf("%w: reprojection error %.3gpx exceeds %.3gpx",
			ErrPoseSolve, sol.RMSError, cfg.MaxReprojectionError)
	}
	return sol, nil
}

// solveFrom refines from the given start and checks that every template
// point ends up in front of the camera.
func (p pnpProblem) solveFrom(rvec, tvec r3.Vec, cfg Config) (Solution, error) {
	x, cost, iters, err := p.refine([]float64{rvec.X, rvec.Y, rvec.Z, tvec.X, tvec.Y, tvec.Z}, cfg)
	if err != nil {
		return Solution{}, err
	}

	sol := Solution{
		Rotation:    r3.Vec{X: x[0], Y: x[1], Z: x[2]},
		Translation: r3.Vec{X: x[3], Y: x[4], Z: x[5]},
		RMSError:    math.Sqrt(cost / float64(len(p.model))),
		Iterations:  iters,
	}

	rot := sol.Matrix()
	for i, m := range p.model {
		if z := rotate(rot, m).Z + sol.Translation.Z; z <= 0 {
			return Solution{}, fmt.Errorf("%w: point %d behind camera (z=%.3g)", ErrPoseSolve, i, z)
		}
	}
	return sol, nil
}

// retry refines from each weak-perspective start and returns the valid
// solution with the lowest reprojection error.
func (p pnpProblem) retry(cfg Config) (Solution, bool) {
	var best Solution
	found := false
	for _, start := range weakPerspectiveStarts(p.model, p.image, p.k) {
		sol, err := p.solveFrom(start[0], start[1], cfg)
		if err != nil {
			continue
		}
		if !found || sol.RMSError < best.RMSError {
			best, found = sol, true
		}
	}
	return best, found
}

// weakPerspectiveStarts places the template centroid at the depth implied by
// the ratio of template to image spread, facing the camera either frontally
// (identity) or upright (half turn about X), as (rotation, translation) pairs.
func weakPerspectiveStarts(model []r3.Vec, image []r2.Vec, k camera.Intrinsics) [][2]r3.Vec {
	n := float64(len(model))

	var c r3.Vec
	for _, m := range model {
		c = r3.Add(c, m)
	}
	c = r3.Scale(1/n, c)

	var u r2.Vec
	for _, px := range image {
		u = r2.Add(u, px)
	}
	u = r2.Scale(1/n, u)

	var spread, imageSpread float64
	for i := range model {
		spread += r3.Norm(r3.Sub(model[i], c))
		imageSpread += r2.Norm(r2.Sub(image[i], u))
	}
	if spread == 0 || imageSpread == 0 {
		return nil
	}

	depth := k.FX * spread / imageSpread
	nc := k.Normalize(u)
	center := r3.Vec{X: nc.X * depth, Y: nc.Y * depth, Z: depth}

	var starts [][2]r3.Vec
	for _, rvec := range []r3.Vec{{}, {X: math.Pi}} {
		t := r3.Sub(center, rotate(RotationFromVector(rvec), c))
		starts = append(starts, [2]r3.Vec{rvec, t})
	}
	return starts
}

// linearPose estimates the pose with a DLT on the normalized image plane.
// The template is centred and scaled first to keep the system well
// conditioned.
func linearPose(model []r3.Vec, image []r2.Vec, k camera.Intrinsics) (rvec, tvec r3.Vec, err error) {
	n := len(model)

	var c r3.Vec
	for _, p := range model {
		c = r3.Add(c, p)
	}
	c = r3.Scale(1/float64(n), c)

	var spread float64
	for _, p := range model {
		spread += r3.Norm(r3.Sub(p, c))
	}
	spread /= float64(n)
	if spread == 0 {
		return rvec, tvec, fmt.Errorf("%w: model points coincide", ErrPoseSolve)
	}

	a := mat.NewDense(2*n, 12, nil)
	for i := range model {
		q := r3.Scale(1/spread, r3.Sub(model[i], c))
		u := k.Normalize(image[i])
		a.SetRow(2*i, []float64{q.X, q.Y, q.Z, 1, 0, 0, 0, 0, -u.X * q.X, -u.X * q.Y, -u.X * q.Z, -u.X})
		a.SetRow(2*i+1, []float64{0, 0, 0, 0, q.X, q.Y, q.Z, 1, -u.Y * q.X, -u.Y * q.Y, -u.Y * q.Z, -u.Y})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return rvec, tvec, fmt.Errorf("%w: linear system factorization failed", ErrPoseSolve)
	}
	var v mat.Dense
	svd.VTo(&v)
	p := mat.Col(nil, 11, &v)

	// p is [M | t] up to scale and sign; p[11] is the depth of the template
	// centroid, which must be in front of the camera.
	if p[11] < 0 {
		floats.Scale(-1, p)
	}

	m := mat.NewDense(3, 3, []float64{
		p[0], p[1], p[2],
		p[4], p[5], p[6],
		p[8], p[9], p[10],
	})
	var msvd mat.SVD
	if !msvd.Factorize(m, mat.SVDFull) {
		return rvec, tvec, fmt.Errorf("%w: rotation factorization failed", ErrPoseSolve)
	}
	var u, vm mat.Dense
	msvd.UTo(&u)
	msvd.VTo(&vm)

	sv := msvd.Values(nil)
	scale := (sv[0] + sv[1] + sv[2]) / 3
	if scale == 0 {
		return rvec, tvec, fmt.Errorf("%w: degenerate linear solution", ErrPoseSolve)
	}

	// Nearest proper rotation: R = U diag(1, 1, det(U Vt)) Vt.
	var rot mat.Dense
	rot.Mul(&u, vm.T())
	if mat.Det(&rot) < 0 {
		d := mat.NewDiagDense(3, []float64{1, 1, -1})
		var ud mat.Dense
		ud.Mul(&u, d)
		rot.Mul(&ud, vm.T())
	}

	// Undo the template normalization: t = spread * t' - R c.
	t1 := r3.Scale(1/scale, r3.Vec{X: p[3], Y: p[7], Z: p[11]})
	tvec = r3.Sub(r3.Scale(spread, t1), rotate(&rot, c))
	return VectorFromRotation(&rot), tvec, nil
}

// pnpProblem holds the correspondences for the refinement residuals.
type pnpProblem struct {
	model []r3.Vec
	image []r2.Vec
	k     camera.Intrinsics
}

// residuals writes the per-axis pixel reprojection errors for parameters x
// (Rodrigues rotation followed by translation) into y.
func (p pnpProblem) residuals(y, x []float64) {
	rot := RotationFromVector(r3.Vec{X: x[0], Y: x[1], Z: x[2]})
	t := r3.Vec{X: x[3], Y: x[4], Z: x[5]}
	for i, m := range p.model {
		px := p.k.Project(r3.Add(rotate(rot, m), t))
		y[2*i] = px.X - p.image[i].X
		y[2*i+1] = px.Y - p.image[i].Y
	}
}

// refine runs Levenberg-Marquardt from x0 and returns the parameters, the
// final sum of squared residuals and the iterations used.
func (p pnpProblem) refine(x0 []float64, cfg Config) ([]float64, float64, int, error) {
	const dim = 6
	m := 2 * len(p.model)

	x := append([]float64(nil), x0...)
	r := make([]float64, m)
	p.residuals(r, x)
	cost := floats.Dot(r, r)
	if !finite(cost) {
		return nil, 0, 0, fmt.Errorf("%w: initial pose is not finite", ErrPoseSolve)
	}

	jac := mat.NewDense(m, dim, nil)
	jtj := mat.NewSymDense(dim, nil)
	a := mat.NewDense(dim, dim, nil)
	var g, step mat.VecDense
	xn := make([]float64, dim)
	rn := make([]float64, m)
	settings := &fd.JacobianSettings{Formula: fd.Central}
	lambda := initialDamping

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		if cost <= exactFit {
			return x, cost, iter, nil
		}

		fd.Jacobian(jac, p.residuals, x, settings)
		jtj.SymOuterK(1, jac.T())
		g.MulVec(jac.T(), mat.NewVecDense(m, r))

		for {
			a.Copy(jtj)
			for i := 0; i < dim; i++ {
				d := jtj.At(i, i)
				a.Set(i, i, d+lambda*math.Max(d, minDiagonal))
			}

			accepted := false
			if err := step.SolveVec(a, &g); err == nil || isCondition(err) {
				floats.SubTo(xn, x, step.RawVector().Data)
				p.residuals(rn, xn)
				costN := floats.Dot(rn, rn)

				if finite(costN) && costN < cost {
					accepted = true
					stepNorm := floats.Norm(step.RawVector().Data, 2)
					small := stepNorm <= cfg.StepTolerance*(floats.Norm(x, 2)+cfg.StepTolerance) ||
						cost-costN <= cfg.CostTolerance*cost

					copy(x, xn)
					copy(r, rn)
					cost = costN
					lambda = math.Max(lambda/10, minDiagonal)

					if small {
						return x, cost, iter + 1, nil
					}
				}
			}
			if accepted {
				break
			}

			lambda *= 10
			if lambda > maxDamping {
				// No descent direction left: x is a stationary point.
				return x, cost, iter + 1, nil
			}
		}
	}

	return nil, 0, cfg.MaxIterations, fmt.Errorf("%w: no convergence after %d iterations (rms %.3gpx)",
		ErrPoseSolve, cfg.MaxIterations, math.Sqrt(cost/float64(len(p.model))))
}

func isCondition(err error) bool {
	var c mat.Condition
	return errors.As(err, &c)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
