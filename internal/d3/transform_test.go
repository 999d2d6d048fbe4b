package d3

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestTransformZeroValueIsIdentity(t *testing.T) {
	v := r3.Vec{X: 0.3, Y: -1.2, Z: 2}
	if got := (Transform{}).Transform(v); got != v {
		t.Errorf("got %v, want %v", got, v)
	}
}

func TestComposeTransformScaleTranslate(t *testing.T) {
	tr := ComposeTransform(r3.Vec{X: 1, Y: -2, Z: 3}, r3.Vec{X: 2, Y: 0.5, Z: 1}, r3.Rotation{})
	got := tr.Transform(r3.Vec{X: 1, Y: 1, Z: 1})
	want := r3.Vec{X: 3, Y: -1.5, Z: 4}
	if r3.Norm(r3.Sub(got, want)) > 1e-12 {
		t.Errorf("got %v, want %v", got, want)
	}
}
