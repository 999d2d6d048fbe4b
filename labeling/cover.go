// Package labeling reduces the sampled direction set and assigns every
// face exactly one machining direction.
package labeling

import (
	"errors"
	"math/bits"
	"sort"

	"github.com/fabware/fourax/visibility"
)

// ErrCoverUnavailable signals a covering solver that is not available
// in this build or environment. Callers degrade to the full direction
// set instead of failing.
var ErrCoverUnavailable = errors.New("labeling: covering solver unavailable")

// CoverSolver selects a minimum-cardinality subset of direction rows
// such that every face keeps at least one visible direction. It is an
// optional capability: implementations may return ErrCoverUnavailable.
type CoverSolver interface {
	MinimalCover(vis *visibility.Matrix) ([]int, error)
}

// TargetDirections returns the direction rows surviving the covering
// stage, in increasing order. A nil solver or an unavailable one keeps
// the full direction set. The two extreme rows always survive: their
// faces are cut along the axis regardless of the cover.
func TargetDirections(vis *visibility.Matrix, solver CoverSolver) ([]int, error) {
	all := make([]int, vis.Rows())
	for i := range all {
		all[i] = i
	}
	if solver == nil {
		return all, nil
	}
	cover, err := solver.MinimalCover(vis)
	if errors.Is(err, ErrCoverUnavailable) {
		return all, nil
	}
	if err != nil {
		return nil, err
	}
	keep := map[int]bool{vis.Rows() - 2: true, vis.Rows() - 1: true}
	for _, r := range cover {
		keep[r] = true
	}
	survived := make([]int, 0, len(keep))
	for r := range keep {
		survived = append(survived, r)
	}
	sort.Ints(survived)
	return survived, nil
}

// BranchBoundCover solves the 0/1 set-covering program exactly: one
// binary variable per direction row, a coverage constraint per face,
// minimizing the number of selected rows. Solved by depth-first branch
// and bound seeded with a greedy incumbent; direction counts are small
// enough that the exact search is cheap. Faces visible from no row are
// excluded from the constraints (they are reported separately as
// non-visible).
type BranchBoundCover struct {
	// MaxNodes caps the search; on exhaustion the best cover found
	// so far (at worst the greedy one) is returned. Zero means the
	// default of 1<<20.
	MaxNodes int
}

// MinimalCover implements CoverSolver.
func (c BranchBoundCover) MinimalCover(vis *visibility.Matrix) ([]int, error) {
	nRows, nFaces := vis.Rows(), vis.Faces()
	words := (nFaces + 63) / 64
	rows := make([][]uint64, nRows)
	universe := make([]uint64, words)
	for r := 0; r < nRows; r++ {
		rows[r] = make([]uint64, words)
		for f := 0; f < nFaces; f++ {
			if vis.At(r, f) {
				rows[r][f/64] |= 1 << (f % 64)
				universe[f/64] |= 1 << (f % 64)
			}
		}
	}

	best := greedyCover(rows, universe)
	maxNodes := c.MaxNodes
	if maxNodes <= 0 {
		maxNodes = 1 << 20
	}
	s := &coverSearch{rows: rows, best: best, nodes: maxNodes}
	s.branch(nil, universe)

	result := append([]int(nil), s.best...)
	sort.Ints(result)
	return result, nil
}

type coverSearch struct {
	rows  [][]uint64
	best  []int
	nodes int
}

func (s *coverSearch) branch(selected []int, uncovered []uint64) {
	if s.nodes <= 0 {
		return
	}
	s.nodes--
	if popcount(uncovered) == 0 {
		if len(selected) < len(s.best) {
			s.best = append([]int(nil), selected...)
		}
		return
	}
	if len(selected)+1 >= len(s.best) {
		return // cannot improve
	}
	// Branch on the uncovered face with the fewest covering rows.
	face := mostConstrainedFace(s.rows, uncovered)
	if face < 0 {
		return
	}
	for r := range s.rows {
		if s.rows[r][face/64]&(1<<(face%64)) == 0 {
			continue
		}
		s.branch(append(selected, r), andNot(uncovered, s.rows[r]))
	}
}

func greedyCover(rows [][]uint64, universe []uint64) []int {
	uncovered := append([]uint64(nil), universe...)
	var cover []int
	for popcount(uncovered) > 0 {
		bestRow, bestGain := -1, 0
		for r := range rows {
			gain := popcountAnd(rows[r], uncovered)
			if gain > bestGain {
				bestRow, bestGain = r, gain
			}
		}
		if bestRow < 0 {
			break // remaining faces are uncoverable
		}
		cover = append(cover, bestRow)
		uncovered = andNot(uncovered, rows[bestRow])
	}
	return cover
}

func mostConstrainedFace(rows [][]uint64, uncovered []uint64) int {
	bestFace, bestCount := -1, int(^uint(0)>>1)
	for w := range uncovered {
		word := uncovered[w]
		for word != 0 {
			f := w*64 + bits.TrailingZeros64(word)
			word &= word - 1
			count := 0
			for r := range rows {
				if rows[r][f/64]&(1<<(f%64)) != 0 {
					count++
				}
			}
			if count > 0 && count < bestCount {
				bestFace, bestCount = f, count
			}
		}
	}
	return bestFace
}

func andNot(a, b []uint64) []uint64 {
	out := make([]uint64, len(a))
	for i := range a {
		out[i] = a[i] &^ b[i]
	}
	return out
}

func popcount(a []uint64) int {
	n := 0
	for _, w := range a {
		n += bits.OnesCount64(w)
	}
	return n
}

func popcountAnd(a, b []uint64) int {
	n := 0
	for i := range a {
		n += bits.OnesCount64(a[i] & b[i])
	}
	return n
}
