package fourax

import (
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fabware/fourax/internal/d3"
	"github.com/fabware/fourax/trimesh"
)

// OrientationSearch finds a rotation improving the machinability of m
// when milled about the X axis. samples bounds the candidate
// orientations evaluated; deterministic selects a reproducible
// candidate set.
type OrientationSearch func(m *trimesh.Mesh, samples int, deterministic bool) d3.Transform

// DefaultOrientationSearch scores candidate milling axes by the
// area-weighted squared alignment of face normals with the axis and
// returns the rotation bringing the best axis onto +X. Normals aligned
// with the milling axis are only reachable through the end cuts, so
// less axis-aligned normal area means more of the surface is millable
// from rotated directions.
//
// Deterministic runs sample axes on a Fibonacci spiral; randomized runs
// draw them uniformly from the sphere.
func DefaultOrientationSearch(m *trimesh.Mesh, samples int, deterministic bool) d3.Transform {
	if samples <= 0 {
		samples = 1000
	}
	var axes []r3.Vec
	if deterministic {
		axes = fibonacciAxes(samples)
	} else {
		axes = randomAxes(samples)
	}

	best, bestCost := r3.Vec{X: 1}, math.Inf(1)
	for _, a := range axes {
		if c := axisCost(m, a); c < bestCost {
			best, bestCost = a, c
		}
	}
	return d3.RotationBetween(best, r3.Vec{X: 1})
}

// axisCost is the area-weighted squared alignment of face normals with
// the candidate milling axis.
func axisCost(m *trimesh.Mesh, axis r3.Vec) float64 {
	cost := 0.0
	for f := 0; f < m.NumFaces(); f++ {
		t := m.Triangle(f)
		area := 0.5 * r3.Norm(r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0])))
		d := r3.Dot(m.FaceNormal(f), axis)
		cost += area * d * d
	}
	return cost
}

// fibonacciAxes returns n unit vectors on a Fibonacci spiral covering
// the sphere.
func fibonacciAxes(n int) []r3.Vec {
	goldenAngle := math.Pi * (3 - math.Sqrt(5))
	axes := make([]r3.Vec, n)
	for i := range axes {
		z := 1 - 2*(float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - z*z)
		phi := goldenAngle * float64(i)
		axes[i] = r3.Vec{X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: z}
	}
	return axes
}

// orientRand backs the randomized axis sampler. Seeded at startup so
// repeated runs draw different candidate axes; reproducible runs go
// through fibonacciAxes instead.
var orientRand = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))

// randomAxes returns n unit vectors drawn uniformly from the sphere.
func randomAxes(n int) []r3.Vec {
	axes := make([]r3.Vec, n)
	for i := range axes {
		z := 2*orientRand.Float64() - 1
		r := math.Sqrt(1 - z*z)
		phi := 2 * math.Pi * orientRand.Float64()
		axes[i] = r3.Vec{X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: z}
	}
	return axes
}

// Normalize rotates primary into its canonical machining pose and
// applies the identical rigid motion to companion when non-nil, keeping
// the two meshes aligned. The pose is: the orientation chosen by
// search, followed by a 90 degree correction about Z or Y whenever the
// Y or Z extent dominates the bounding box, so the X extent ends up as
// the milling axis, and finally a recenter of the bounding box onto the
// origin. Both meshes come back with fresh normals and bounds.
func Normalize(primary, companion *trimesh.Mesh, samples int, deterministic bool, search OrientationSearch) {
	if search == nil {
		search = DefaultOrientationSearch
	}
	apply := func(t d3.Transform) {
		primary.Transform(t)
		if companion != nil {
			companion.Transform(t)
		}
	}
	apply(search(primary, samples, deterministic))

	size := primary.Bounds().Size()
	switch {
	case size.Y > size.X && size.Y > size.Z:
		apply(d3.RotationAbout(r3.Vec{Z: 1}, math.Pi/2))
	case size.Z > size.X && size.Z > size.Y:
		apply(d3.RotationAbout(r3.Vec{Y: 1}, math.Pi/2))
	}

	center := primary.Bounds().Center()
	primary.Translate(r3.Scale(-1, center))
	if companion != nil {
		companion.Translate(r3.Scale(-1, center))
	}
}
