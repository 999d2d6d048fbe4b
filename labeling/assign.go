package labeling

import (
	"errors"
	"fmt"

	"github.com/fabware/fourax/trimesh"
	"github.com/fabware/fourax/visibility"
)

// infeasibleCost is the data penalty for assigning a face a direction
// it is not visible from. Large enough to dominate any smoothness
// saving, small enough that a face visible from nowhere still gets a
// finite-energy label.
const infeasibleCost = 100000

// DefaultCompactness is the smoothness penalty between adjacent faces
// with different labels.
const DefaultCompactness = 2.0

// EnergySolver minimizes a Potts-style labeling energy
//
//	sum_s data(s, label[s]) + sum_{(a,b) adjacent} smooth(label[a], label[b])
//
// over nSites sites and nLabels labels. adjacency[s] lists the
// neighbors of site s; each undirected pair appears in both lists.
type EnergySolver interface {
	Solve(nSites, nLabels int, data func(site, label int) float64, smooth func(a, b int) float64, adjacency [][]int) ([]int, error)
}

// LocalMoveSolver minimizes the labeling energy with iterated
// conditional modes: every site greedily takes its locally optimal
// label given its neighbors, and sweeps repeat until a full pass makes
// no move. Each move strictly lowers the energy, so the sweep loop
// terminates; MaxSweeps is a safety cap only.
type LocalMoveSolver struct {
	// MaxSweeps caps the number of full passes. Zero means the
	// default of 100.
	MaxSweeps int
}

// Solve implements EnergySolver.
func (lm LocalMoveSolver) Solve(nSites, nLabels int, data func(site, label int) float64, smooth func(a, b int) float64, adjacency [][]int) ([]int, error) {
	if nLabels <= 0 {
		return nil, errors.New("labeling: no labels to assign")
	}
	if len(adjacency) != nSites {
		return nil, fmt.Errorf("labeling: adjacency covers %d sites, want %d", len(adjacency), nSites)
	}
	labels := make([]int, nSites)
	for s := range labels {
		best, bestCost := 0, data(s, 0)
		for l := 1; l < nLabels; l++ {
			if c := data(s, l); c < bestCost {
				best, bestCost = l, c
			}
		}
		labels[s] = best
	}

	maxSweeps := lm.MaxSweeps
	if maxSweeps <= 0 {
		maxSweeps = 100
	}
	for sweep := 0; sweep < maxSweeps; sweep++ {
		moved := false
		for s := 0; s < nSites; s++ {
			best, bestCost := labels[s], siteCost(s, labels[s], labels, data, smooth, adjacency)
			for l := 0; l < nLabels; l++ {
				if l == labels[s] {
					continue
				}
				if c := siteCost(s, l, labels, data, smooth, adjacency); c < bestCost {
					best, bestCost = l, c
				}
			}
			if best != labels[s] {
				labels[s] = best
				moved = true
			}
		}
		if !moved {
			break
		}
	}
	return labels, nil
}

func siteCost(s, l int, labels []int, data func(site, label int) float64, smooth func(a, b int) float64, adjacency [][]int) float64 {
	c := data(s, l)
	for _, nb := range adjacency[s] {
		c += smooth(l, labels[nb])
	}
	return c
}

// Assign gives every face of m exactly one direction row out of
// survived, balancing per-face visibility against patch compactness.
// The returned slice maps face index to matrix row. compactness <= 0
// selects DefaultCompactness. A non-visible face receives the label
// that least disturbs its neighborhood; it still costs infeasibleCost
// and is expected to be repaired by detail restoration downstream.
func Assign(m *trimesh.Mesh, vis *visibility.Matrix, survived []int, compactness float64, solver EnergySolver) ([]int, error) {
	if solver == nil {
		return nil, errors.New("labeling: no energy solver configured")
	}
	if len(survived) == 0 {
		return nil, errors.New("labeling: empty direction set")
	}
	if vis.Faces() != m.NumFaces() {
		return nil, fmt.Errorf("labeling: matrix covers %d faces, mesh has %d", vis.Faces(), m.NumFaces())
	}
	if compactness <= 0 {
		compactness = DefaultCompactness
	}

	adjacency := m.FaceFaceAdjacency()
	data := func(site, label int) float64 {
		if vis.At(survived[label], site) {
			return 0
		}
		return infeasibleCost
	}
	smooth := func(a, b int) float64 {
		if a == b {
			return 0
		}
		return compactness
	}

	labels, err := solver.Solve(m.NumFaces(), len(survived), data, smooth, adjacency)
	if err != nil {
		return nil, fmt.Errorf("labeling: optimization failed: %w", err)
	}
	assoc := make([]int, len(labels))
	for f, l := range labels {
		if l < 0 || l >= len(survived) {
			return nil, fmt.Errorf("labeling: solver returned label %d for face %d, want [0,%d)", l, f, len(survived))
		}
		assoc[f] = survived[l]
	}
	return assoc, nil
}
