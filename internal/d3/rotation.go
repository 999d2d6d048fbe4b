package d3

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// RotationAbout returns the rigid Transform rotating by alpha radians
// about the axis through the origin. The rotation sense matches
// r3.NewRotation so directions rotated with r3.Rotation and meshes
// rotated with the returned Transform stay consistent.
func RotationAbout(axis r3.Vec, alpha float64) Transform {
	q := r3.NewRotation(alpha, axis)
	return ComposeTransform(r3.Vec{}, Elem(1), q)
}

// RotationBetween returns the Transform rotating unit vector from onto
// unit vector to. Antiparallel inputs rotate about an arbitrary
// perpendicular axis.
func RotationBetween(from, to r3.Vec) Transform {
	const tol = 1e-12
	d := r3.Dot(from, to)
	if d > 1-tol {
		return Transform{} // identity
	}
	if d < -1+tol {
		// Pick any axis perpendicular to from.
		perp := r3.Cross(from, r3.Vec{X: 1})
		if r3.Norm2(perp) < tol {
			perp = r3.Cross(from, r3.Vec{Y: 1})
		}
		return RotationAbout(r3.Unit(perp), math.Pi)
	}
	axis := r3.Unit(r3.Cross(from, to))
	return RotationAbout(axis, math.Acos(math.Max(-1, math.Min(1, d))))
}
