// Package trimesh implements the indexed triangle mesh consumed by the
// four-axis machining planner: per-face and per-vertex normals, bounding
// box, rigid transforms and topological adjacency queries.
package trimesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/fabware/fourax/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is a mutable indexed triangle mesh. Vertices and Faces are owned
// by the caller. Cached normals and bounds go stale on any vertex move
// or transform; call UpdateNormals and UpdateBounds before geometric
// queries.
type Mesh struct {
	Vertices []r3.Vec
	Faces    [][3]int

	faceNormals   []r3.Vec
	vertexNormals []r3.Vec
	bb            d3.Box
}

// New builds a mesh from shared vertices and faces and refreshes the
// derived data. The face index triples are not copied.
func New(vertices []r3.Vec, faces [][3]int) *Mesh {
	m := &Mesh{Vertices: vertices, Faces: faces}
	m.UpdateNormals()
	m.UpdateBounds()
	return m
}

// FromTriangles builds an indexed mesh from a triangle soup, merging
// vertices closer than tol. A zero tol picks a tolerance from the
// smallest triangle side.
func FromTriangles(triangles [][3]r3.Vec, tol float64) (*Mesh, error) {
	if len(triangles) == 0 {
		return nil, errors.New("trimesh: empty triangle slice")
	}
	minSide2 := math.MaxFloat64
	bb := d3.Box{Min: d3.Elem(math.MaxFloat64), Max: d3.Elem(-math.MaxFloat64)}
	for i := range triangles {
		for j, vert := range triangles[i] {
			bb.Min = d3.MinElem(bb.Min, vert)
			bb.Max = d3.MaxElem(bb.Max, vert)
			side2 := r3.Norm2(r3.Sub(triangles[i][(j+1)%3], vert))
			minSide2 = math.Min(minSide2, side2)
		}
	}
	if tol == 0 {
		tol = math.Sqrt(minSide2) / 256
	}
	if tol <= 0 || math.IsNaN(tol) {
		return nil, errors.New("trimesh: degenerate triangle in input")
	}
	maxDim := d3.Max(bb.Size())
	if int64(maxDim/tol) <= 0 {
		return nil, errors.New("trimesh: tolerance larger than model size")
	}
	// Vertex index cache in resolution-space, same merging scheme as
	// STL importers use.
	cache := make(map[[3]int64]int)
	ri := 1 / tol
	m := &Mesh{Faces: make([][3]int, len(triangles))}
	for i, tri := range triangles {
		for j, vert := range tri {
			v := r3.Scale(ri, vert)
			key := [3]int64{int64(v.X), int64(v.Y), int64(v.Z)}
			idx, ok := cache[key]
			if !ok {
				idx = len(m.Vertices)
				cache[key] = idx
				m.Vertices = append(m.Vertices, vert)
			}
			m.Faces[i][j] = idx
		}
	}
	m.UpdateNormals()
	m.UpdateBounds()
	return m, nil
}

// Clone returns a deep copy sharing nothing with the receiver.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		Vertices: append([]r3.Vec(nil), m.Vertices...),
		Faces:    append([][3]int(nil), m.Faces...),
		bb:       m.bb,
	}
	if m.faceNormals != nil {
		c.faceNormals = append([]r3.Vec(nil), m.faceNormals...)
	}
	if m.vertexNormals != nil {
		c.vertexNormals = append([]r3.Vec(nil), m.vertexNormals...)
	}
	return c
}

// NumVertices returns the vertex count.
func (m *Mesh) NumVertices() int { return len(m.Vertices) }

// NumFaces returns the face count.
func (m *Mesh) NumFaces() int { return len(m.Faces) }

// Triangle returns the three vertex positions of face f.
func (m *Mesh) Triangle(f int) [3]r3.Vec {
	face := m.Faces[f]
	return [3]r3.Vec{m.Vertices[face[0]], m.Vertices[face[1]], m.Vertices[face[2]]}
}

// Barycenter returns the centroid of face f.
func (m *Mesh) Barycenter(f int) r3.Vec {
	t := m.Triangle(f)
	return r3.Scale(1./3., r3.Add(r3.Add(t[0], t[1]), t[2]))
}

// FaceNormal returns the cached unit normal of face f.
func (m *Mesh) FaceNormal(f int) r3.Vec { return m.faceNormals[f] }

// VertexNormal returns the cached angle-weighted unit normal of vertex v.
func (m *Mesh) VertexNormal(v int) r3.Vec { return m.vertexNormals[v] }

// Bounds returns the cached axis-aligned bounding box.
func (m *Mesh) Bounds() d3.Box { return m.bb }

// UpdateNormals recomputes face normals and angle-weighted vertex
// normals from current vertex positions.
func (m *Mesh) UpdateNormals() {
	if cap(m.faceNormals) < len(m.Faces) {
		m.faceNormals = make([]r3.Vec, len(m.Faces))
	}
	m.faceNormals = m.faceNormals[:len(m.Faces)]
	if cap(m.vertexNormals) < len(m.Vertices) {
		m.vertexNormals = make([]r3.Vec, len(m.Vertices))
	}
	m.vertexNormals = m.vertexNormals[:len(m.Vertices)]
	for i := range m.vertexNormals {
		m.vertexNormals[i] = r3.Vec{}
	}
	for f, face := range m.Faces {
		t := m.Triangle(f)
		n := TriangleNormal(t)
		m.faceNormals[f] = n
		// Weight by the vertex opening angle, as pseudo normal
		// construction does.
		for j := range face {
			s1 := r3.Sub(t[j], t[(j+1)%3])
			s2 := r3.Sub(t[j], t[(j+2)%3])
			alpha := math.Acos(math.Max(-1, math.Min(1, r3.Cos(s1, s2))))
			m.vertexNormals[face[j]] = r3.Add(m.vertexNormals[face[j]], r3.Scale(alpha, n))
		}
	}
	for i, n := range m.vertexNormals {
		if r3.Norm2(n) > 0 {
			m.vertexNormals[i] = r3.Unit(n)
		}
	}
}

// UpdateBounds recomputes the bounding box from current vertex positions.
func (m *Mesh) UpdateBounds() {
	bb := d3.Box{Min: d3.Elem(math.MaxFloat64), Max: d3.Elem(-math.MaxFloat64)}
	for _, v := range m.Vertices {
		bb.Min = d3.MinElem(bb.Min, v)
		bb.Max = d3.MaxElem(bb.Max, v)
	}
	m.bb = bb
}

// Transform applies t to every vertex in place. Normals and bounds are
// refreshed.
func (m *Mesh) Transform(t d3.Transform) {
	for i := range m.Vertices {
		m.Vertices[i] = t.Transform(m.Vertices[i])
	}
	m.UpdateNormals()
	m.UpdateBounds()
}

// Translate displaces every vertex by v in place. Normals are unchanged
// by a translation; bounds are refreshed.
func (m *Mesh) Translate(v r3.Vec) {
	for i := range m.Vertices {
		m.Vertices[i] = r3.Add(m.Vertices[i], v)
	}
	m.bb = m.bb.Translate(v)
}

// TriangleNormal returns the unit normal of a CCW-wound triangle.
func TriangleNormal(t [3]r3.Vec) r3.Vec {
	n := r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
	if r3.Norm2(n) == 0 {
		return r3.Vec{}
	}
	return r3.Unit(n)
}

// SameTopology reports whether a and b have identical connectivity:
// equal vertex counts and identical face index triples. Detail transfer
// between meshes requires it.
func SameTopology(a, b *Mesh) error {
	if a.NumVertices() != b.NumVertices() {
		return fmt.Errorf("trimesh: vertex count mismatch %d != %d", a.NumVertices(), b.NumVertices())
	}
	if a.NumFaces() != b.NumFaces() {
		return fmt.Errorf("trimesh: face count mismatch %d != %d", a.NumFaces(), b.NumFaces())
	}
	for i := range a.Faces {
		if a.Faces[i] != b.Faces[i] {
			return fmt.Errorf("trimesh: face %d connectivity mismatch", i)
		}
	}
	return nil
}
