// Package frequency restores high-frequency surface detail onto a
// smoothed mesh while keeping every face machinable from its assigned
// direction.
//
// Detail is encoded as differential coordinates, the offset of each
// vertex from the centroid of its 1-ring. Restoration iteratively moves
// every vertex toward neighborhood centroid plus stored offset, and a
// candidate move is accepted only while all faces incident to the
// vertex stay within the heightfield angle of their assigned milling
// direction. Rejected moves are halved toward the current position a
// bounded number of times before giving up for the iteration.
package frequency

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fabware/fourax/trimesh"
	"github.com/fabware/fourax/visibility"
)

// maxHalvings bounds the bisection of a rejected vertex move toward
// its current position.
const maxHalvings = 10

// DifferentialCoordinates returns, per vertex, its offset from the
// centroid of its 1-ring neighborhood. Isolated vertices get a zero
// offset.
func DifferentialCoordinates(m *trimesh.Mesh) []r3.Vec {
	adj := m.VertexVertexAdjacency()
	diff := make([]r3.Vec, m.NumVertices())
	for v := range diff {
		if len(adj[v]) == 0 {
			continue
		}
		var sum r3.Vec
		for _, nb := range adj[v] {
			sum = r3.Add(sum, m.Vertices[nb])
		}
		centroid := r3.Scale(1/float64(len(adj[v])), sum)
		diff[v] = r3.Sub(m.Vertices[v], centroid)
	}
	return diff
}

// Restore moves the vertices of m toward the detail encoded in diff
// over a fixed number of iterations. assoc maps every face to its
// direction row and dirs maps rows to unit vectors; a vertex move is
// valid only while every incident face keeps its normal within
// heightfieldAngle of its assigned direction.
//
// Each iteration reads a frozen snapshot of the positions and writes
// every vertex independently, so vertices relax in parallel and the
// result does not depend on visit order. Moves validated in isolation
// can still tilt a shared face past the limit once neighbors land
// together, so each sweep ends by reconciling the jointly committed
// positions: vertices of offending faces are pulled back toward their
// frozen positions until every moved face passes the angle test again.
// Normals and bounds of m are refreshed on return.
func Restore(m *trimesh.Mesh, diff []r3.Vec, assoc []int, dirs []r3.Vec, iterations int, heightfieldAngle float64) error {
	if len(diff) != m.NumVertices() {
		return fmt.Errorf("frequency: %d differential coordinates for %d vertices", len(diff), m.NumVertices())
	}
	if len(assoc) != m.NumFaces() {
		return fmt.Errorf("frequency: association covers %d faces, mesh has %d", len(assoc), m.NumFaces())
	}
	for f, row := range assoc {
		if row < 0 || row >= len(dirs) {
			return fmt.Errorf("frequency: face %d assigned direction %d, have %d directions", f, row, len(dirs))
		}
	}
	if iterations <= 0 {
		return errors.New("frequency: iteration count must be positive")
	}

	vvAdj := m.VertexVertexAdjacency()
	vfAdj := m.VertexFaceAdjacency()
	cosLimit := math.Cos(heightfieldAngle)
	n := m.NumVertices()

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	next := make([]r3.Vec, n)
	for iter := 0; iter < iterations; iter++ {
		var wg sync.WaitGroup
		for start := 0; start < n; start += chunk {
			end := start + chunk
			if end > n {
				end = n
			}
			wg.Add(1)
			go func(start, end int) {
				defer wg.Done()
				for v := start; v < end; v++ {
					next[v] = relaxVertex(m, v, diff, assoc, dirs, vvAdj[v], vfAdj[v], cosLimit)
				}
			}(start, end)
		}
		wg.Wait()
		reconcileCommit(m, next, assoc, dirs, cosLimit)
		m.Vertices, next = next, m.Vertices
	}
	m.UpdateNormals()
	m.UpdateBounds()
	return nil
}

// relaxVertex returns the next position for vertex v: the 1-ring
// centroid plus its differential coordinate, bisected toward the
// current position until the move passes validation or the halving
// budget runs out.
func relaxVertex(m *trimesh.Mesh, v int, diff []r3.Vec, assoc []int, dirs []r3.Vec, neighbors, incident []int, cosLimit float64) r3.Vec {
	cur := m.Vertices[v]
	if len(neighbors) == 0 {
		return cur
	}
	var sum r3.Vec
	for _, nb := range neighbors {
		sum = r3.Add(sum, m.Vertices[nb])
	}
	candidate := r3.Add(r3.Scale(1/float64(len(neighbors)), sum), diff[v])

	for h := 0; h <= maxHalvings; h++ {
		if moveKeepsMachinable(m, v, candidate, assoc, dirs, incident, cosLimit) {
			return candidate
		}
		candidate = r3.Scale(0.5, r3.Add(candidate, cur))
	}
	return cur
}

// reconcileCommit enforces the angle limit on the jointly committed
// sweep. relaxVertex validates each move against the frozen snapshot,
// so two adjacent vertices can pass individually yet tilt their shared
// face past the limit once both land. Vertices of offending faces are
// halved back toward their frozen positions, then reverted outright
// when the halving allowance is spent; a face whose vertices all sit
// at their frozen positions keeps the state it entered the sweep with.
func reconcileCommit(m *trimesh.Mesh, next []r3.Vec, assoc []int, dirs []r3.Vec, cosLimit float64) {
	prev := m.Vertices
	pulled := make([]bool, len(next))
	for pass := 0; ; pass++ {
		var offenders []int
		for f, face := range m.Faces {
			if next[face[0]] == prev[face[0]] &&
				next[face[1]] == prev[face[1]] &&
				next[face[2]] == prev[face[2]] {
				continue
			}
			t := [3]r3.Vec{next[face[0]], next[face[1]], next[face[2]]}
			if r3.Dot(trimesh.TriangleNormal(t), dirs[assoc[f]]) >= cosLimit {
				continue
			}
			for _, v := range face {
				if next[v] != prev[v] && !pulled[v] {
					pulled[v] = true
					offenders = append(offenders, v)
				}
			}
		}
		if len(offenders) == 0 {
			return
		}
		for _, v := range offenders {
			if pass < maxHalvings {
				next[v] = r3.Scale(0.5, r3.Add(next[v], prev[v]))
			} else {
				next[v] = prev[v]
			}
			pulled[v] = false
		}
	}
}

// moveKeepsMachinable reports whether placing vertex v at p keeps every
// incident face within the angle limit of its assigned direction.
func moveKeepsMachinable(m *trimesh.Mesh, v int, p r3.Vec, assoc []int, dirs []r3.Vec, incident []int, cosLimit float64) bool {
	for _, f := range incident {
		face := m.Faces[f]
		var t [3]r3.Vec
		for j, idx := range face {
			if idx == v {
				t[j] = p
			} else {
				t[j] = m.Vertices[idx]
			}
		}
		n := trimesh.TriangleNormal(t)
		if r3.Dot(n, dirs[assoc[f]]) < cosLimit {
			return false
		}
	}
	return true
}

// RecheckVisibility recomputes the visibility matrix after restoration
// and counts the faces no longer visible from their assigned direction.
// The count is a quality diagnostic: restoration validates against the
// angle limit only, so restored detail can re-occlude faces.
func RecheckVisibility(m *trimesh.Mesh, minExtremes, maxExtremes []int, assoc []int, opts visibility.Options, s visibility.Strategy) (*visibility.Result, int, error) {
	res, err := visibility.Compute(m, minExtremes, maxExtremes, opts, s)
	if err != nil {
		return nil, 0, err
	}
	if len(assoc) != res.Matrix.Faces() {
		return nil, 0, fmt.Errorf("frequency: association covers %d faces, matrix has %d", len(assoc), res.Matrix.Faces())
	}
	lost := 0
	for f, row := range assoc {
		if !res.Matrix.At(row, f) {
			lost++
		}
	}
	return res, lost, nil
}
