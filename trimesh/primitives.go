package trimesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Simple closed test solids. The planner's tests and benchmarks build
// their fixtures from these instead of shipping model files.

// Cube returns an axis-aligned cube of the given side centered at the
// origin, triangulated into 12 CCW-wound faces.
func Cube(side float64) *Mesh {
	h := side / 2
	vertices := []r3.Vec{
		{X: -h, Y: -h, Z: -h}, {X: h, Y: -h, Z: -h}, {X: h, Y: h, Z: -h}, {X: -h, Y: h, Z: -h},
		{X: -h, Y: -h, Z: h}, {X: h, Y: -h, Z: h}, {X: h, Y: h, Z: h}, {X: -h, Y: h, Z: h},
	}
	faces := [][3]int{
		{4, 5, 6}, {4, 6, 7}, // +z
		{0, 2, 1}, {0, 3, 2}, // -z
		{1, 2, 6}, {1, 6, 5}, // +x
		{0, 4, 7}, {0, 7, 3}, // -x
		{2, 3, 7}, {2, 7, 6}, // +y
		{0, 1, 5}, {0, 5, 4}, // -y
	}
	return New(vertices, faces)
}

// UVSphere returns a closed latitude/longitude sphere of the given
// radius centered at the origin. lat is the number of latitude bands
// (>= 2), lon the number of longitude segments (>= 3).
func UVSphere(radius float64, lat, lon int) *Mesh {
	if lat < 2 || lon < 3 {
		panic("trimesh: UVSphere needs lat >= 2 and lon >= 3")
	}
	var vertices []r3.Vec
	vertices = append(vertices, r3.Vec{Z: radius}) // north pole
	for i := 1; i < lat; i++ {
		phi := math.Pi * float64(i) / float64(lat)
		for j := 0; j < lon; j++ {
			theta := 2 * math.Pi * float64(j) / float64(lon)
			vertices = append(vertices, r3.Vec{
				X: radius * math.Sin(phi) * math.Cos(theta),
				Y: radius * math.Sin(phi) * math.Sin(theta),
				Z: radius * math.Cos(phi),
			})
		}
	}
	south := len(vertices)
	vertices = append(vertices, r3.Vec{Z: -radius})

	ring := func(i, j int) int { return 1 + (i-1)*lon + j%lon }
	var faces [][3]int
	for j := 0; j < lon; j++ {
		faces = append(faces, [3]int{0, ring(1, j), ring(1, j+1)})
	}
	for i := 1; i < lat-1; i++ {
		for j := 0; j < lon; j++ {
			a, b := ring(i, j), ring(i, j+1)
			c, d := ring(i+1, j), ring(i+1, j+1)
			faces = append(faces, [3]int{a, c, d}, [3]int{a, d, b})
		}
	}
	for j := 0; j < lon; j++ {
		faces = append(faces, [3]int{south, ring(lat-1, j+1), ring(lat-1, j)})
	}
	return New(vertices, faces)
}
