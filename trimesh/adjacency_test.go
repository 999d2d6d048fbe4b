package trimesh

import "testing"

func TestFaceFaceAdjacencyCube(t *testing.T) {
	m := Cube(2)
	adj := m.FaceFaceAdjacency()
	if len(adj) != m.NumFaces() {
		t.Fatalf("got %d entries, want %d", len(adj), m.NumFaces())
	}
	for f, neighbors := range adj {
		if len(neighbors) != 3 {
			t.Errorf("face %d: %d neighbors, want 3", f, len(neighbors))
		}
		for _, g := range neighbors {
			if g == f {
				t.Errorf("face %d adjacent to itself", f)
			}
			if !contains(adj[g], f) {
				t.Errorf("adjacency not symmetric: %d -> %d", f, g)
			}
		}
	}
}

func TestVertexAdjacencyCube(t *testing.T) {
	m := Cube(2)
	vv := m.VertexVertexAdjacency()
	vf := m.VertexFaceAdjacency()

	totalIncidences := 0
	for v := 0; v < m.NumVertices(); v++ {
		for _, nb := range vv[v] {
			if !contains(vv[nb], v) {
				t.Errorf("vertex adjacency not symmetric: %d -> %d", v, nb)
			}
		}
		seen := map[int]bool{}
		for _, nb := range vv[v] {
			if seen[nb] {
				t.Errorf("vertex %d: duplicate neighbor %d", v, nb)
			}
			seen[nb] = true
		}
		totalIncidences += len(vf[v])
	}
	// 12 triangles with 3 corners each.
	if totalIncidences != 36 {
		t.Errorf("got %d vertex-face incidences, want 36", totalIncidences)
	}
}

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
