// Package visibility computes, for a sampled set of milling directions
// around the X axis, which mesh faces can be machined from which
// direction under a heightfield (tool clearance) constraint.
//
// All strategies share the same contract: a face is visible from a
// direction only if it is geometrically unobstructed from it and its
// normal is within the heightfield angle of the direction. They differ
// only in how occlusion is determined.
package visibility

import (
	"errors"
	"fmt"
	"math"

	"github.com/fabware/fourax/internal/d3"
	"github.com/fabware/fourax/trimesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNonManifold reports degenerate or non-manifold input geometry
// detected by a probe that intersected fewer faces than a closed
// surface guarantees.
var ErrNonManifold = errors.New("visibility: non-manifold or open mesh")

// Mode selects the occlusion strategy.
type Mode int

const (
	// ModeProjection tests 2D overlap of projected faces in
	// painter's order.
	ModeProjection Mode = iota
	// ModeRay probes through every face barycenter and keeps the
	// nearest hit per side.
	ModeRay
	// ModeRender rasterizes the mesh per direction and reads back
	// per-face coverage.
	ModeRender
)

func (m Mode) String() string {
	switch m {
	case ModeProjection:
		return "projection"
	case ModeRay:
		return "ray"
	case ModeRender:
		return "render"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Options configure a visibility computation.
type Options struct {
	// Directions is the number of sampled directions D around the X
	// axis. Must be even and positive; the matrix gains two extra
	// rows for the -X/+X extremes.
	Directions int
	// HeightfieldAngle is the maximum angle, in radians, between a
	// face normal and a direction for the face to be machinable
	// from it.
	HeightfieldAngle float64
	// GeometricExtremes selects whether the -X/+X rows are computed
	// geometrically. When false the rows are copied verbatim from
	// the extremes selection.
	GeometricExtremes bool
	// Resolution is the rasterization size for ModeRender.
	Resolution int
}

func (o Options) validate() error {
	if o.Directions < 2 || o.Directions%2 != 0 {
		return fmt.Errorf("visibility: direction count %d must be even and >= 2", o.Directions)
	}
	if o.HeightfieldAngle <= 0 || o.HeightfieldAngle > math.Pi/2 {
		return fmt.Errorf("visibility: heightfield angle %v out of (0, pi/2]", o.HeightfieldAngle)
	}
	return nil
}

// Strategy determines occlusion for one direction pair. The engine
// hands it a working copy of the mesh rotated so the pair's directions
// lie along +Z and -Z; the strategy fills row dirIdx viewing along +Z
// and, when oppIdx >= 0, row oppIdx viewing along -Z.
type Strategy interface {
	CheckPair(m *trimesh.Mesh, dirIdx, oppIdx int, cosLimit float64, vis *Matrix) error
}

// NewStrategy returns the Strategy for mode. Resolution only applies to
// ModeRender.
func NewStrategy(mode Mode, resolution int) (Strategy, error) {
	switch mode {
	case ModeProjection:
		return ProjectionStrategy{}, nil
	case ModeRay:
		return RayStrategy{}, nil
	case ModeRender:
		return NewRenderStrategy(resolution), nil
	}
	return nil, fmt.Errorf("visibility: unknown mode %v", mode)
}

// Result is the output of a visibility computation.
type Result struct {
	Matrix *Matrix
	// Directions holds D+2 unit vectors; index is the matrix row.
	Directions []r3.Vec
	// Angles holds the rotation angle about X of rows 0..D-1.
	Angles []float64
	// NonVisible lists the faces with no valid direction.
	NonVisible []int
}

// Compute fills the (D+2)xF visibility matrix for m. The mesh itself is
// never mutated; direction pairs are evaluated on a rotating working
// copy so every strategy only ever probes along Z. Face normals and
// bounds of m must be current.
//
// minExtremes and maxExtremes are consulted only when
// opts.GeometricExtremes is false: their faces are marked visible in
// the -X/+X rows verbatim.
func Compute(m *trimesh.Mesh, minExtremes, maxExtremes []int, opts Options, s Strategy) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.New("visibility: nil strategy")
	}
	half := opts.Directions / 2
	nFaces := m.NumFaces()
	vis := NewMatrix(opts.Directions+2, nFaces)
	dirs := make([]r3.Vec, opts.Directions+2)
	angles := make([]float64, opts.Directions)

	cosLimit := math.Cos(opts.HeightfieldAngle)
	step := math.Pi / float64(half)
	for i := range angles {
		angles[i] = float64(i) * step
	}

	xAxis := r3.Vec{X: 1}
	dirRot := r3.NewRotation(step, xAxis)
	// The mesh rotates opposite to the direction so that the current
	// direction pair always lies along +/-Z of the working copy.
	meshRot := d3.RotationAbout(xAxis, -step)

	rotating := m.Clone()
	dir := r3.Vec{Z: 1}
	for i := 0; i < half; i++ {
		if err := s.CheckPair(rotating, i, half+i, cosLimit, vis); err != nil {
			return nil, fmt.Errorf("direction %d: %w", i, err)
		}
		dirs[i] = dir
		dirs[half+i] = r3.Scale(-1, dir)
		rotating.Transform(meshRot)
		dir = dirRot.Rotate(dir)
	}

	minIdx, maxIdx := opts.Directions, opts.Directions+1
	dirs[minIdx] = r3.Vec{X: -1}
	dirs[maxIdx] = r3.Vec{X: 1}
	if opts.GeometricExtremes {
		// Reorient so -X lies along +Z and run one more pair.
		rotating = m.Clone()
		rotating.Transform(d3.RotationBetween(r3.Vec{X: -1}, r3.Vec{Z: 1}))
		if err := s.CheckPair(rotating, minIdx, maxIdx, cosLimit, vis); err != nil {
			return nil, fmt.Errorf("extreme directions: %w", err)
		}
	} else {
		for _, f := range minExtremes {
			vis.Set(minIdx, f, true)
		}
		for _, f := range maxExtremes {
			vis.Set(maxIdx, f, true)
		}
	}

	return &Result{
		Matrix:     vis,
		Directions: dirs,
		Angles:     angles,
		NonVisible: vis.NonVisible(),
	}, nil
}
