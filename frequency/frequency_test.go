package frequency

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fabware/fourax/trimesh"
	"github.com/fabware/fourax/visibility"
)

// axisDirs are the six axis-aligned machining directions used by the
// synthetic fixtures.
var axisDirs = []r3.Vec{
	{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
}

// nearestAxis returns the index in axisDirs closest to n.
func nearestAxis(n r3.Vec) int {
	best, bestDot := 0, math.Inf(-1)
	for i, d := range axisDirs {
		if dot := r3.Dot(n, d); dot > bestDot {
			best, bestDot = i, dot
		}
	}
	return best
}

func TestDifferentialCoordinatesPointOutward(t *testing.T) {
	m := trimesh.UVSphere(1, 8, 12)
	diff := DifferentialCoordinates(m)
	if len(diff) != m.NumVertices() {
		t.Fatalf("got %d coordinates for %d vertices", len(diff), m.NumVertices())
	}
	// The 1-ring centroid of a convex surface lies strictly inside it,
	// so every offset points away from the center.
	for v, d := range diff {
		if r3.Norm(d) == 0 {
			t.Fatalf("vertex %d: zero differential coordinate", v)
		}
		if r3.Dot(d, r3.Unit(m.Vertices[v])) <= 0 {
			t.Errorf("vertex %d: offset points inward", v)
		}
	}
}

func TestRestoreRecoversDetail(t *testing.T) {
	detail := trimesh.UVSphere(1, 8, 12)
	diff := DifferentialCoordinates(detail)

	// Shrink the sphere to fake a smoothed input, then restore.
	smooth := detail.Clone()
	for i := range smooth.Vertices {
		smooth.Vertices[i] = r3.Scale(0.8, smooth.Vertices[i])
	}
	smooth.UpdateNormals()
	smooth.UpdateBounds()

	assoc := make([]int, smooth.NumFaces())
	for f := range assoc {
		assoc[f] = nearestAxis(smooth.FaceNormal(f))
	}

	before := vertexDistance(smooth, detail)
	if err := Restore(smooth, diff, assoc, axisDirs, 50, math.Pi/2); err != nil {
		t.Fatal(err)
	}
	after := vertexDistance(smooth, detail)
	if after >= before {
		t.Fatalf("restoration did not recover detail: distance %g -> %g", before, after)
	}
	if after > before/4 {
		t.Errorf("restoration too weak: distance %g -> %g", before, after)
	}
}

func TestRestoreRejectsInfeasibleMoves(t *testing.T) {
	detail := trimesh.UVSphere(1, 6, 8)
	diff := DifferentialCoordinates(detail)

	smooth := detail.Clone()
	for i := range smooth.Vertices {
		smooth.Vertices[i] = r3.Scale(0.8, smooth.Vertices[i])
	}
	smooth.UpdateNormals()
	smooth.UpdateBounds()
	want := append([]r3.Vec(nil), smooth.Vertices...)

	assoc := make([]int, smooth.NumFaces())
	for f := range assoc {
		assoc[f] = nearestAxis(smooth.FaceNormal(f))
	}

	// A near-zero angle limit rejects every candidate, including all
	// halvings; the mesh must come back untouched.
	if err := Restore(smooth, diff, assoc, axisDirs, 5, 1e-9); err != nil {
		t.Fatal(err)
	}
	for v := range want {
		if smooth.Vertices[v] != want[v] {
			t.Fatalf("vertex %d moved despite infeasible angle limit", v)
		}
	}
}

// bumpySphere returns a sphere with alternating radial detail and the
// plain sphere standing in as its smoothed counterpart.
func bumpySphere() (detail, smooth *trimesh.Mesh) {
	smooth = trimesh.UVSphere(1, 12, 16)
	detail = smooth.Clone()
	for i := range detail.Vertices {
		s := 1.35
		if i%2 == 1 {
			s = 0.65
		}
		detail.Vertices[i] = r3.Scale(s, detail.Vertices[i])
	}
	detail.UpdateNormals()
	detail.UpdateBounds()
	return detail, smooth
}

func TestRestoreKeepsFacesMachinable(t *testing.T) {
	detail, smooth := bumpySphere()
	diff := DifferentialCoordinates(detail)

	assoc := make([]int, smooth.NumFaces())
	for f := range assoc {
		assoc[f] = nearestAxis(smooth.FaceNormal(f))
	}

	// Any unit normal is within acos(1/sqrt(3)) of its nearest axis, so
	// the smoothed sphere starts with every face inside a 60 degree
	// limit.
	const angle = math.Pi / 3
	cosLimit := math.Cos(angle)
	for f := 0; f < smooth.NumFaces(); f++ {
		if r3.Dot(smooth.FaceNormal(f), axisDirs[assoc[f]]) < cosLimit {
			t.Fatalf("face %d infeasible before restoration", f)
		}
	}

	if err := Restore(smooth, diff, assoc, axisDirs, 20, angle); err != nil {
		t.Fatal(err)
	}

	// Neighboring vertices commit together, so the limit must hold for
	// the jointly committed positions, not just for each move validated
	// against the frozen snapshot in isolation.
	for f := 0; f < smooth.NumFaces(); f++ {
		if dot := r3.Dot(smooth.FaceNormal(f), axisDirs[assoc[f]]); dot < cosLimit {
			t.Errorf("face %d: normal-direction dot %.4f below limit %.4f after restoration", f, dot, cosLimit)
		}
	}
}

func TestRestoreDisplacementGrowsWithIterations(t *testing.T) {
	detail := trimesh.UVSphere(1, 8, 12)
	diff := DifferentialCoordinates(detail)

	base := detail.Clone()
	for i := range base.Vertices {
		base.Vertices[i] = r3.Scale(0.8, base.Vertices[i])
	}
	base.UpdateNormals()
	base.UpdateBounds()

	assoc := make([]int, base.NumFaces())
	for f := range assoc {
		assoc[f] = nearestAxis(base.FaceNormal(f))
	}

	// With a permissive limit every move lands in full, and each extra
	// iteration carries every vertex further from its smoothed start.
	prev := make([]float64, base.NumVertices())
	for _, n := range []int{1, 2, 4, 8, 16} {
		m := base.Clone()
		if err := Restore(m, diff, assoc, axisDirs, n, math.Pi/2); err != nil {
			t.Fatal(err)
		}
		for v := range m.Vertices {
			d := r3.Norm(r3.Sub(m.Vertices[v], base.Vertices[v]))
			if d < prev[v]-1e-6 {
				t.Fatalf("vertex %d: displacement shrank from %g to %g going to %d iterations", v, prev[v], d, n)
			}
			prev[v] = d
		}
	}
}

func TestRestoreHalvingCapsConstrainedMoves(t *testing.T) {
	detail, smooth := bumpySphere()
	diff := DifferentialCoordinates(detail)

	assoc := make([]int, smooth.NumFaces())
	for f := range assoc {
		assoc[f] = nearestAxis(smooth.FaceNormal(f))
	}

	free := smooth.Clone()
	if err := Restore(free, diff, assoc, axisDirs, 1, math.Pi-1e-3); err != nil {
		t.Fatal(err)
	}
	held := smooth.Clone()
	if err := Restore(held, diff, assoc, axisDirs, 1, math.Pi/3); err != nil {
		t.Fatal(err)
	}

	// A constrained vertex only ever bisects toward its start, so its
	// displacement never exceeds the unconstrained move.
	capped := 0
	for v := range smooth.Vertices {
		df := r3.Norm(r3.Sub(free.Vertices[v], smooth.Vertices[v]))
		dh := r3.Norm(r3.Sub(held.Vertices[v], smooth.Vertices[v]))
		if dh > df+1e-12 {
			t.Fatalf("vertex %d: constrained displacement %g exceeds unconstrained %g", v, dh, df)
		}
		if dh < df-1e-12 {
			capped++
		}
	}
	if capped == 0 {
		t.Error("no vertex was damped by the angle limit")
	}
}

func TestRestoreValidatesInput(t *testing.T) {
	m := trimesh.Cube(1)
	diff := DifferentialCoordinates(m)
	assoc := make([]int, m.NumFaces())

	if err := Restore(m, diff[:2], assoc, axisDirs, 1, math.Pi/4); err == nil {
		t.Error("short differential coordinates accepted")
	}
	if err := Restore(m, diff, assoc[:3], axisDirs, 1, math.Pi/4); err == nil {
		t.Error("short association accepted")
	}
	bad := append([]int(nil), assoc...)
	bad[0] = len(axisDirs)
	if err := Restore(m, diff, bad, axisDirs, 1, math.Pi/4); err == nil {
		t.Error("out-of-range direction row accepted")
	}
	if err := Restore(m, diff, assoc, axisDirs, 0, math.Pi/4); err == nil {
		t.Error("zero iterations accepted")
	}
}

func TestRecheckVisibilityCountsLostFaces(t *testing.T) {
	m := trimesh.Cube(2)
	opts := visibility.Options{
		Directions:        4,
		HeightfieldAngle:  math.Pi / 180,
		GeometricExtremes: true,
	}
	base, err := visibility.Compute(m, nil, nil, opts, visibility.ProjectionStrategy{})
	if err != nil {
		t.Fatal(err)
	}

	// Assign every face a direction it is visible from; nothing is lost.
	assoc := make([]int, m.NumFaces())
	for f := range assoc {
		assoc[f] = -1
		for r := 0; r < base.Matrix.Rows(); r++ {
			if base.Matrix.At(r, f) {
				assoc[f] = r
				break
			}
		}
		if assoc[f] < 0 {
			t.Fatalf("cube face %d visible from no direction", f)
		}
	}
	res, lost, err := RecheckVisibility(m, nil, nil, assoc, opts, visibility.ProjectionStrategy{})
	if err != nil {
		t.Fatal(err)
	}
	if lost != 0 {
		t.Fatalf("lost %d faces on an unchanged mesh", lost)
	}
	if !res.Matrix.Equal(base.Matrix) {
		t.Error("recheck disagrees with the original matrix")
	}

	// Point every face at a direction it is not visible from.
	for f := range assoc {
		for r := 0; r < base.Matrix.Rows(); r++ {
			if !base.Matrix.At(r, f) {
				assoc[f] = r
				break
			}
		}
	}
	_, lost, err = RecheckVisibility(m, nil, nil, assoc, opts, visibility.ProjectionStrategy{})
	if err != nil {
		t.Fatal(err)
	}
	if lost != m.NumFaces() {
		t.Fatalf("lost = %d, want %d", lost, m.NumFaces())
	}
}

func vertexDistance(a, b *trimesh.Mesh) float64 {
	total := 0.0
	for i := range a.Vertices {
		total += r3.Norm(r3.Sub(a.Vertices[i], b.Vertices[i]))
	}
	return total
}
