package trimesh

// Topological adjacency extraction. Each query walks the face list once
// and returns freshly allocated neighbor lists; callers treat the
// results as read-only while parallel stages consume them.

// FaceFaceAdjacency returns, for each face, the indices of the faces
// sharing an edge with it (up to 3). Boundary edges contribute no
// neighbor; edges shared by more than two faces contribute every
// incident face.
func (m *Mesh) FaceFaceAdjacency() [][]int {
	type edge [2]int
	edgeFaces := make(map[edge][]int, 3*len(m.Faces)/2)
	for f, face := range m.Faces {
		for j := 0; j < 3; j++ {
			e := edge{face[j], face[(j+1)%3]}
			if e[0] > e[1] {
				e[0], e[1] = e[1], e[0]
			}
			edgeFaces[e] = append(edgeFaces[e], f)
		}
	}
	adj := make([][]int, len(m.Faces))
	for f := range adj {
		adj[f] = make([]int, 0, 3)
	}
	for _, faces := range edgeFaces {
		for _, f := range faces {
			for _, g := range faces {
				if g != f {
					adj[f] = append(adj[f], g)
				}
			}
		}
	}
	return adj
}

// VertexVertexAdjacency returns the 1-ring vertex neighborhood of every
// vertex. Neighbor lists hold unique indices in first-seen order.
func (m *Mesh) VertexVertexAdjacency() [][]int {
	adj := make([][]int, len(m.Vertices))
	for _, face := range m.Faces {
		for j := 0; j < 3; j++ {
			v := face[j]
			for k := 1; k < 3; k++ {
				appendUnique(&adj[v], face[(j+k)%3])
			}
		}
	}
	return adj
}

// VertexFaceAdjacency returns, for each vertex, the faces incident to it.
func (m *Mesh) VertexFaceAdjacency() [][]int {
	adj := make([][]int, len(m.Vertices))
	for f, face := range m.Faces {
		for j := 0; j < 3; j++ {
			adj[face[j]] = append(adj[face[j]], f)
		}
	}
	return adj
}

func appendUnique(list *[]int, v int) {
	for _, existing := range *list {
		if existing == v {
			return
		}
	}
	*list = append(*list, v)
}
