package trimesh

import (
	"bytes"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fabware/fourax/internal/d3"
)

func TestFromTrianglesMergesVertices(t *testing.T) {
	cube := Cube(2)
	soup := make([][3]r3.Vec, cube.NumFaces())
	for f := range soup {
		soup[f] = cube.Triangle(f)
	}
	m, err := FromTriangles(soup, 0)
	if err != nil {
		t.Fatal(err)
	}
	if m.NumVertices() != 8 {
		t.Errorf("got %d vertices, want 8", m.NumVertices())
	}
	if m.NumFaces() != 12 {
		t.Errorf("got %d faces, want 12", m.NumFaces())
	}
}

func TestFromTrianglesRejectsDegenerate(t *testing.T) {
	p := r3.Vec{X: 1}
	if _, err := FromTriangles([][3]r3.Vec{{p, p, p}}, 0); err == nil {
		t.Error("degenerate input accepted")
	}
	if _, err := FromTriangles(nil, 0); err == nil {
		t.Error("empty input accepted")
	}
}

func TestNormalsPointOutward(t *testing.T) {
	for _, m := range []*Mesh{Cube(2), UVSphere(1, 6, 9)} {
		for f := 0; f < m.NumFaces(); f++ {
			n := m.FaceNormal(f)
			if math.Abs(r3.Norm(n)-1) > 1e-12 {
				t.Fatalf("face %d: normal not unit length", f)
			}
			if r3.Dot(n, m.Barycenter(f)) <= 0 {
				t.Errorf("face %d: normal points inward", f)
			}
		}
		for v := 0; v < m.NumVertices(); v++ {
			if r3.Dot(m.VertexNormal(v), m.Vertices[v]) <= 0 {
				t.Errorf("vertex %d: pseudo normal points inward", v)
			}
		}
	}
}

func TestTransformRefreshesDerivedData(t *testing.T) {
	m := Cube(2)
	m.Transform(d3.RotationAbout(r3.Vec{X: 1}, math.Pi/2))

	size := m.Bounds().Size()
	if math.Abs(size.X-2) > 1e-9 || math.Abs(size.Y-2) > 1e-9 || math.Abs(size.Z-2) > 1e-9 {
		t.Errorf("bounds not refreshed: size %v", size)
	}
	// Rotating a closed cube permutes the axis-aligned normals.
	for f := 0; f < m.NumFaces(); f++ {
		n := m.FaceNormal(f)
		major := math.Max(math.Abs(n.X), math.Max(math.Abs(n.Y), math.Abs(n.Z)))
		if math.Abs(major-1) > 1e-9 {
			t.Errorf("face %d: normal %v not axis aligned after rotation", f, n)
		}
	}
}

func TestTranslateKeepsNormals(t *testing.T) {
	m := Cube(2)
	want := make([]r3.Vec, m.NumFaces())
	for f := range want {
		want[f] = m.FaceNormal(f)
	}
	m.Translate(r3.Vec{X: 3, Y: -1, Z: 0.5})
	c := m.Bounds().Center()
	if r3.Norm(r3.Sub(c, r3.Vec{X: 3, Y: -1, Z: 0.5})) > 1e-12 {
		t.Errorf("center %v after translate", c)
	}
	for f := range want {
		if m.FaceNormal(f) != want[f] {
			t.Fatalf("face %d: normal changed under translation", f)
		}
	}
}

func TestSTLRoundTrip(t *testing.T) {
	m := UVSphere(1, 5, 7)
	var buf bytes.Buffer
	if err := WriteSTL(&buf, m); err != nil {
		t.Fatal(err)
	}
	got, err := ReadSTL(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.NumFaces() != m.NumFaces() {
		t.Fatalf("got %d faces, want %d", got.NumFaces(), m.NumFaces())
	}
	for f := 0; f < m.NumFaces(); f++ {
		want, have := m.Triangle(f), got.Triangle(f)
		for j := range want {
			if r3.Norm(r3.Sub(want[j], have[j])) > 1e-5 {
				t.Fatalf("face %d vertex %d: %v != %v", f, j, want[j], have[j])
			}
		}
	}
}

func TestSameTopology(t *testing.T) {
	a := Cube(1)
	if err := SameTopology(a, Cube(2)); err != nil {
		t.Errorf("scaled copy rejected: %v", err)
	}
	if err := SameTopology(a, UVSphere(1, 4, 6)); err == nil {
		t.Error("different connectivity accepted")
	}
	b := Cube(1)
	b.Faces[3][0], b.Faces[3][1] = b.Faces[3][1], b.Faces[3][0]
	if err := SameTopology(a, b); err == nil {
		t.Error("permuted face accepted")
	}
}
