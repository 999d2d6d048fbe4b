package visibility

import (
	"sort"

	"github.com/fabware/fourax/spatial"
	"github.com/fabware/fourax/trimesh"
)

// ProjectionStrategy determines occlusion with a painter's algorithm:
// faces are visited nearest-first along the viewing axis, projected on
// the perpendicular plane, and tested for 2D overlap against the
// already-accepted projections. A face overlapped by a nearer accepted
// face is occluded.
type ProjectionStrategy struct{}

// CheckPair implements Strategy.
func (ProjectionStrategy) CheckPair(m *trimesh.Mesh, dirIdx, oppIdx int, cosLimit float64, vis *Matrix) error {
	order := make([]int, m.NumFaces())
	for i := range order {
		order[i] = i
	}
	// Ascending by the lowest vertex Z of each face.
	sort.Slice(order, func(i, j int) bool {
		return minZ(m, order[i]) < minZ(m, order[j])
	})

	top := spatial.NewOverlapIndex()
	for i := len(order) - 1; i >= 0; i-- {
		checkProjected(m, order[i], dirIdx, 1, cosLimit, top, vis)
	}
	if oppIdx >= 0 {
		bottom := spatial.NewOverlapIndex()
		for _, f := range order {
			checkProjected(m, f, oppIdx, -1, cosLimit, bottom, vis)
		}
	}
	return nil
}

// checkProjected marks face f visible in row dirIdx when it passes the
// angle test against signZ*Z and its projection overlaps no previously
// accepted triangle; accepted projections join the index.
func checkProjected(m *trimesh.Mesh, f, dirIdx int, signZ float64, cosLimit float64, index *spatial.OverlapIndex, vis *Matrix) {
	if signZ*m.FaceNormal(f).Z < cosLimit {
		return
	}
	t := m.Triangle(f)
	proj := spatial.Triangle2{
		{X: t[0].X, Y: t[0].Y},
		{X: t[1].X, Y: t[1].Y},
		{X: t[2].X, Y: t[2].Y},
	}
	if index.Overlaps(proj) {
		return
	}
	vis.Set(dirIdx, f, true)
	index.Insert(proj)
}

func minZ(m *trimesh.Mesh, f int) float64 {
	t := m.Triangle(f)
	z := t[0].Z
	if t[1].Z < z {
		z = t[1].Z
	}
	if t[2].Z < z {
		z = t[2].Z
	}
	return z
}
