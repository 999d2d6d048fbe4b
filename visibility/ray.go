package visibility

import (
	"fmt"

	"github.com/fabware/fourax/spatial"
	"github.com/fabware/fourax/trimesh"
	"gonum.org/v1/gonum/spatial/r2"
)

// RayStrategy determines occlusion by shooting a probe line through
// every face barycenter along Z, across the full mesh extent. Per probe
// only the qualifying hit nearest each end is marked visible, covering
// the direction and its antipode with one bidirectional probe.
type RayStrategy struct{}

// CheckPair implements Strategy.
func (RayStrategy) CheckPair(m *trimesh.Mesh, dirIdx, oppIdx int, cosLimit float64, vis *Matrix) error {
	index := spatial.NewProbeIndex(m)
	bb := m.Bounds()
	zLow, zHigh := bb.Min.Z-1, bb.Max.Z+1

	for f := 0; f < m.NumFaces(); f++ {
		bar := m.Barycenter(f)
		hits := index.Stab(r2.Vec{X: bar.X, Y: bar.Y})
		// A closed surface is crossed an even number of times; fewer
		// than two hits means the input is open or non-manifold.
		if len(hits) < 2 {
			return fmt.Errorf("%w: probe through face %d intersects %d faces", ErrNonManifold, f, len(hits))
		}

		top, bottom := -1, -1
		topZ, bottomZ := zLow, zHigh
		for _, h := range hits {
			hz := m.Barycenter(h).Z
			n := m.FaceNormal(h)
			if hz > topZ && n.Z >= cosLimit {
				top, topZ = h, hz
			}
			if oppIdx >= 0 && hz < bottomZ && -n.Z >= cosLimit {
				bottom, bottomZ = h, hz
			}
		}
		if top >= 0 {
			vis.Set(dirIdx, top, true)
		}
		if oppIdx >= 0 && bottom >= 0 {
			vis.Set(oppIdx, bottom, true)
		}
	}
	return nil
}
