package d3

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestRotationAboutMatchesR3(t *testing.T) {
	axis := r3.Unit(r3.Vec{X: 1, Y: 2, Z: -0.5})
	v := r3.Vec{X: 0.3, Y: -1.2, Z: 2}
	for _, alpha := range []float64{0, math.Pi / 3, -math.Pi / 2, math.Pi} {
		want := r3.NewRotation(alpha, axis).Rotate(v)
		got := RotationAbout(axis, alpha).Transform(v)
		if r3.Norm(r3.Sub(got, want)) > 1e-12 {
			t.Errorf("alpha %v: got %v, want %v", alpha, got, want)
		}
	}
}

func TestRotationBetween(t *testing.T) {
	cases := [][2]r3.Vec{
		{{X: 1}, {Z: 1}},
		{{X: -1}, {Z: 1}},
		{{Y: 1}, {Y: 1}},            // parallel
		{{Z: 1}, {Z: -1}},           // antiparallel
		{r3.Unit(r3.Vec{X: 1, Y: 1}), r3.Unit(r3.Vec{Y: 1, Z: -1})},
	}
	for i, c := range cases {
		got := RotationBetween(c[0], c[1]).Transform(c[0])
		if r3.Norm(r3.Sub(got, c[1])) > 1e-9 {
			t.Errorf("case %d: %v rotated to %v, want %v", i, c[0], got, c[1])
		}
	}
}
