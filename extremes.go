package fourax

import (
	"sort"

	"github.com/fabware/fourax/trimesh"
)

// extremeAlignTol is the minimum normal alignment with the outward axis
// for a face to count as part of an end cap.
const extremeAlignTol = 1e-9

// SelectExtremes walks the faces of m in barycenter order along the
// milling axis and collects, from each end, the run of faces whose
// normals lean toward the corresponding outward axis direction. These
// are the end caps cut directly along the axis instead of milled from a
// rotated direction. Face normals of m must be current.
func SelectExtremes(m *trimesh.Mesh) (minExtremes, maxExtremes []int) {
	order := make([]int, m.NumFaces())
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := m.Barycenter(order[i]), m.Barycenter(order[j])
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})

	for _, f := range order {
		if -m.FaceNormal(f).X <= extremeAlignTol {
			break
		}
		minExtremes = append(minExtremes, f)
	}
	for i := len(order) - 1; i >= 0; i-- {
		f := order[i]
		if m.FaceNormal(f).X <= extremeAlignTol {
			break
		}
		maxExtremes = append(maxExtremes, f)
	}
	return minExtremes, maxExtremes
}
