package visibility

import (
	"image"
	"image/color"

	"github.com/fogleman/fauxgl"

	"github.com/fabware/fourax/trimesh"
)

const defaultResolution = 1024

// RenderStrategy determines occlusion by rasterizing the mesh with an
// orthographic camera along the viewing axis, drawing every face in a
// unique flat color and reading coverage back from the color buffer.
// The depth buffer resolves occlusion.
type RenderStrategy struct {
	resolution int
	// KeepImages retains the rendered frame of every checked row in
	// Images, keyed by matrix row. Intended for diagnostics.
	KeepImages bool
	Images     map[int]image.Image
}

// NewRenderStrategy returns a render strategy rasterizing at
// resolution x resolution pixels (default 1024).
func NewRenderStrategy(resolution int) *RenderStrategy {
	if resolution <= 0 {
		resolution = defaultResolution
	}
	return &RenderStrategy{resolution: resolution, Images: make(map[int]image.Image)}
}

// CheckPair implements Strategy.
func (r *RenderStrategy) CheckPair(m *trimesh.Mesh, dirIdx, oppIdx int, cosLimit float64, vis *Matrix) error {
	r.checkOne(m, dirIdx, 1, cosLimit, vis)
	if oppIdx >= 0 {
		r.checkOne(m, oppIdx, -1, cosLimit, vis)
	}
	return nil
}

func (r *RenderStrategy) checkOne(m *trimesh.Mesh, dirIdx int, signZ float64, cosLimit float64, vis *Matrix) {
	seen, img := r.renderCoverage(m, signZ)
	for f := range seen {
		if signZ*m.FaceNormal(f).Z >= cosLimit {
			vis.Set(dirIdx, f, true)
		}
	}
	if r.KeepImages {
		r.Images[dirIdx] = img
	}
}

// renderCoverage rasterizes m viewed along signZ*Z and returns the set
// of faces with at least one covered pixel.
func (r *RenderStrategy) renderCoverage(m *trimesh.Mesh, signZ float64) (map[int]bool, image.Image) {
	bb := m.Bounds()
	size, center := bb.Size(), bb.Center()

	ctx := fauxgl.NewContext(r.resolution, r.resolution)
	ctx.ClearColorBufferWith(fauxgl.Color{})
	ctx.ClearDepthBuffer()
	ctx.Cull = fauxgl.CullNone

	eye := fauxgl.V(center.X, center.Y, center.Z+signZ*(size.Z/2+1))
	target := fauxgl.V(center.X, center.Y, center.Z)
	up := fauxgl.V(0, 1, 0)
	// Pad the frustum so boundary pixels are not clipped.
	hw := size.X/2 + size.X/100 + 1e-9
	hh := size.Y/2 + size.Y/100 + 1e-9
	matrix := fauxgl.LookAt(eye, target, up).Orthographic(-hw, hw, -hh, hh, 0, size.Z+2)

	buf := make([]*fauxgl.Triangle, 1)
	for f := 0; f < m.NumFaces(); f++ {
		t := m.Triangle(f)
		buf[0] = fauxgl.NewTriangleForPoints(
			fauxgl.V(t[0].X, t[0].Y, t[0].Z),
			fauxgl.V(t[1].X, t[1].Y, t[1].Z),
			fauxgl.V(t[2].X, t[2].Y, t[2].Z),
		)
		ctx.Shader = fauxgl.NewSolidColorShader(matrix, faceColor(f))
		ctx.DrawTriangles(buf)
	}

	img := ctx.Image()
	seen := make(map[int]bool)
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			id := int(c.R)<<16 | int(c.G)<<8 | int(c.B)
			if id > 0 && id <= m.NumFaces() {
				seen[id-1] = true
			}
		}
	}
	return seen, img
}

// faceColor packs face index f into an opaque 24-bit color; 0 is
// reserved for the background.
func faceColor(f int) fauxgl.Color {
	id := f + 1
	return fauxgl.Color{
		R: float64(id>>16&0xff) / 255,
		G: float64(id>>8&0xff) / 255,
		B: float64(id&0xff) / 255,
		A: 1,
	}
}
