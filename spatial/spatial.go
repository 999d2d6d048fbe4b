// Package spatial provides the spatial queries the visibility engine
// relies on: stabbing a mesh with vertical probe lines and testing 2D
// overlap of projected triangles against an incrementally built index.
// Both are backed by an R-tree over axis-aligned rectangles.
package spatial

import (
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/fabware/fourax/trimesh"
	"gonum.org/v1/gonum/spatial/r2"
)

// tol absorbs floating point noise in containment and overlap
// predicates so boundary contact (shared edges, grazing probes) is not
// reported as occlusion.
const tol = 1e-9

// Triangle2 is a triangle projected on the XY plane.
type Triangle2 [3]r2.Vec

// rect returns the triangle's bounding rectangle, padded so degenerate
// projections still have positive extent.
func (t Triangle2) rect() *rtreego.Rect {
	minX := math.Min(t[0].X, math.Min(t[1].X, t[2].X))
	maxX := math.Max(t[0].X, math.Max(t[1].X, t[2].X))
	minY := math.Min(t[0].Y, math.Min(t[1].Y, t[2].Y))
	maxY := math.Max(t[0].Y, math.Max(t[1].Y, t[2].Y))
	r, err := rtreego.NewRect(
		rtreego.Point{minX - tol, minY - tol},
		[]float64{maxX - minX + 2*tol, maxY - minY + 2*tol},
	)
	if err != nil {
		panic(err) // lengths are always positive
	}
	return r
}

type indexedTriangle struct {
	tri  Triangle2
	face int
	bb   *rtreego.Rect
}

func (it *indexedTriangle) Bounds() *rtreego.Rect { return it.bb }

// ProbeIndex answers vertical line queries against a mesh: which faces
// does the line through (x, y) parallel to Z intersect. Projecting the
// probe to 2D reduces the segment-mesh intersection to point-in-triangle
// containment.
type ProbeIndex struct {
	tree  *rtreego.Rtree
	items []indexedTriangle
}

// NewProbeIndex builds the index from the XY projections of every face
// of m.
func NewProbeIndex(m *trimesh.Mesh) *ProbeIndex {
	p := &ProbeIndex{items: make([]indexedTriangle, m.NumFaces())}
	spatials := make([]rtreego.Spatial, m.NumFaces())
	for f := 0; f < m.NumFaces(); f++ {
		t := m.Triangle(f)
		tri := Triangle2{
			{X: t[0].X, Y: t[0].Y},
			{X: t[1].X, Y: t[1].Y},
			{X: t[2].X, Y: t[2].Y},
		}
		p.items[f] = indexedTriangle{tri: tri, face: f, bb: tri.rect()}
		spatials[f] = &p.items[f]
	}
	p.tree = rtreego.NewTree(2, 25, 50, spatials...)
	return p
}

// Stab returns the faces whose XY projection contains p, i.e. the faces
// intersected by the vertical line through p. Grazing hits on
// degenerate (edge-on) projections are included.
func (p *ProbeIndex) Stab(q r2.Vec) []int {
	probe := rtreego.Point{q.X, q.Y}.ToRect(tol)
	var hits []int
	for _, s := range p.tree.SearchIntersect(probe) {
		it := s.(*indexedTriangle)
		if containsPoint(it.tri, q) {
			hits = append(hits, it.face)
		}
	}
	return hits
}

// OverlapIndex holds the projected triangles accepted so far by a
// painter's-algorithm sweep and answers overlap queries against them.
type OverlapIndex struct {
	tree *rtreego.Rtree
}

// NewOverlapIndex returns an empty index.
func NewOverlapIndex() *OverlapIndex {
	return &OverlapIndex{tree: rtreego.NewTree(2, 25, 50)}
}

// Overlaps reports whether t properly overlaps any triangle already in
// the index. Triangles that only share an edge or vertex do not
// overlap.
func (o *OverlapIndex) Overlaps(t Triangle2) bool {
	for _, s := range o.tree.SearchIntersect(t.rect()) {
		if trianglesOverlap(t, s.(*indexedTriangle).tri) {
			return true
		}
	}
	return false
}

// Insert adds t to the index.
func (o *OverlapIndex) Insert(t Triangle2) {
	o.tree.Insert(&indexedTriangle{tri: t, face: -1, bb: t.rect()})
}

// signedArea2 returns twice the signed area of the triangle.
func signedArea2(t Triangle2) float64 {
	return (t[1].X-t[0].X)*(t[2].Y-t[0].Y) - (t[2].X-t[0].X)*(t[1].Y-t[0].Y)
}

func ccw(t Triangle2) Triangle2 {
	if signedArea2(t) < 0 {
		t[1], t[2] = t[2], t[1]
	}
	return t
}

// containsPoint reports whether q lies in the (closed) triangle t.
// Degenerate projections degrade to a segment distance test.
func containsPoint(t Triangle2, q r2.Vec) bool {
	if math.Abs(signedArea2(t)) <= tol {
		for i := 0; i < 3; i++ {
			if distToSegment(q, t[i], t[(i+1)%3]) <= tol {
				return true
			}
		}
		return false
	}
	d1 := edgeSign(q, t[0], t[1])
	d2 := edgeSign(q, t[1], t[2])
	d3 := edgeSign(q, t[2], t[0])
	hasNeg := d1 < -tol || d2 < -tol || d3 < -tol
	hasPos := d1 > tol || d2 > tol || d3 > tol
	return !(hasNeg && hasPos)
}

// trianglesOverlap is a separating-axis test over the edge normals of
// both triangles, shrunk by tol so boundary contact is not overlap.
func trianglesOverlap(a, b Triangle2) bool {
	if math.Abs(signedArea2(a)) <= tol || math.Abs(signedArea2(b)) <= tol {
		return false // grazing slivers occlude nothing
	}
	a, b = ccw(a), ccw(b)
	return !separatedByEdge(a, b) && !separatedByEdge(b, a)
}

// separatedByEdge reports whether any edge of CCW triangle a has all of
// b on its outer side.
func separatedByEdge(a, b Triangle2) bool {
	for i := 0; i < 3; i++ {
		p0, p1 := a[i], a[(i+1)%3]
		maxSide := math.Inf(-1)
		for j := 0; j < 3; j++ {
			maxSide = math.Max(maxSide, edgeSign(b[j], p0, p1))
		}
		// Interior of a CCW triangle is on the positive side.
		if maxSide <= tol {
			return true
		}
	}
	return false
}

// edgeSign returns the cross product of (p1-p0) and (q-p0): positive if
// q is left of the directed edge.
func edgeSign(q, p0, p1 r2.Vec) float64 {
	return (p1.X-p0.X)*(q.Y-p0.Y) - (q.X-p0.X)*(p1.Y-p0.Y)
}

func distToSegment(q, a, b r2.Vec) float64 {
	ab := r2.Sub(b, a)
	len2 := r2.Norm2(ab)
	if len2 == 0 {
		return math.Hypot(q.X-a.X, q.Y-a.Y)
	}
	s := r2.Dot(r2.Sub(q, a), ab) / len2
	s = math.Max(0, math.Min(1, s))
	proj := r2.Add(a, r2.Scale(s, ab))
	return math.Hypot(q.X-proj.X, q.Y-proj.Y)
}
