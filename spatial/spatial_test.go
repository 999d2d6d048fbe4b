package spatial

import (
	"sort"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/fabware/fourax/trimesh"
)

func TestProbeIndexStabCube(t *testing.T) {
	m := trimesh.Cube(2)
	index := NewProbeIndex(m)

	// A probe strictly inside the footprint pierces one top and one
	// bottom triangle.
	hits := index.Stab(r2.Vec{X: 0.1, Y: 0.05})
	var tops, bottoms int
	for _, f := range hits {
		switch n := m.FaceNormal(f); {
		case n.Z > 0.5:
			tops++
		case n.Z < -0.5:
			bottoms++
		}
	}
	if tops != 1 || bottoms != 1 {
		t.Errorf("stab hit %d top and %d bottom faces, want 1 and 1 (hits %v)", tops, bottoms, hits)
	}

	// Outside the footprint nothing is hit.
	if hits := index.Stab(r2.Vec{X: 3, Y: 3}); len(hits) != 0 {
		t.Errorf("stab outside the cube hit %v", hits)
	}
}

func TestProbeIndexStabGrazing(t *testing.T) {
	m := trimesh.Cube(2)
	index := NewProbeIndex(m)

	// On the footprint boundary the probe grazes the edge-on side
	// faces; those degenerate projections must still report the hit.
	hits := index.Stab(r2.Vec{X: 0.1, Y: 1})
	grazed := 0
	for _, f := range hits {
		if m.FaceNormal(f).Y > 0.5 {
			grazed++
		}
	}
	if grazed == 0 {
		t.Errorf("grazing probe missed the +Y faces (hits %v)", hits)
	}
}

func TestOverlapIndex(t *testing.T) {
	index := NewOverlapIndex()
	base := Triangle2{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 2}}
	if index.Overlaps(base) {
		t.Fatal("empty index reports overlap")
	}
	index.Insert(base)

	cases := []struct {
		name string
		tri  Triangle2
		want bool
	}{
		{"disjoint", Triangle2{{X: 5, Y: 5}, {X: 6, Y: 5}, {X: 5, Y: 6}}, false},
		{"contained", Triangle2{{X: 0.2, Y: 0.2}, {X: 0.8, Y: 0.2}, {X: 0.2, Y: 0.8}}, true},
		{"proper overlap", Triangle2{{X: 0.5, Y: 0.5}, {X: 2.5, Y: 0.5}, {X: 0.5, Y: 2.5}}, true},
		{"boundary touch", Triangle2{{X: 1, Y: 1}, {X: 3, Y: 1}, {X: 1, Y: 3}}, false},
		{"shared edge", Triangle2{{X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}}, false},
		{"shared vertex", Triangle2{{X: 2, Y: 0}, {X: 4, Y: 0}, {X: 2, Y: -2}}, false},
		{"sliver", Triangle2{{X: 0, Y: 1}, {X: 2, Y: 1}, {X: 1, Y: 1}}, false},
	}
	for _, tc := range cases {
		if got := index.Overlaps(tc.tri); got != tc.want {
			t.Errorf("%s: Overlaps = %v, want %v", tc.name, got, tc.want)
		}
	}

	// Winding must not matter.
	cw := Triangle2{{X: 0.2, Y: 0.2}, {X: 0.2, Y: 0.8}, {X: 0.8, Y: 0.2}}
	if !index.Overlaps(cw) {
		t.Error("clockwise contained triangle not detected")
	}
}

func TestContainsPoint(t *testing.T) {
	tri := Triangle2{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 0, Y: 2}}
	cases := []struct {
		q    r2.Vec
		want bool
	}{
		{r2.Vec{X: 0.5, Y: 0.5}, true},
		{r2.Vec{X: 1, Y: 0}, true}, // on an edge
		{r2.Vec{X: 0, Y: 0}, true}, // on a vertex
		{r2.Vec{X: 1.5, Y: 1.5}, false},
		{r2.Vec{X: -0.1, Y: 0.5}, false},
	}
	for _, tc := range cases {
		if got := containsPoint(tri, tc.q); got != tc.want {
			t.Errorf("containsPoint(%v) = %v, want %v", tc.q, got, tc.want)
		}
	}
}

func TestStabResultsAreStable(t *testing.T) {
	// Two identical stabs return the same face set regardless of tree
	// traversal order.
	m := trimesh.UVSphere(1, 8, 12)
	index := NewProbeIndex(m)
	q := r2.Vec{X: 0.1, Y: 0.2}
	a, b := index.Stab(q), index.Stab(q)
	sort.Ints(a)
	sort.Ints(b)
	if len(a) != len(b) {
		t.Fatalf("stab counts differ: %d != %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("stab results differ at %d: %v != %v", i, a, b)
		}
	}
	if len(a) < 2 {
		t.Errorf("probe through a closed sphere hit %d faces", len(a))
	}
}
