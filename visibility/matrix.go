package visibility

// Matrix is a dense binary relation over (direction row, face). Rows
// 0..D-1 are the sampled directions, rows D and D+1 the -X/+X extremes.
type Matrix struct {
	rows  int
	faces int
	cells []bool
}

// NewMatrix returns an all-false matrix with the given dimensions.
func NewMatrix(rows, faces int) *Matrix {
	return &Matrix{rows: rows, faces: faces, cells: make([]bool, rows*faces)}
}

// Rows returns the number of direction rows (sampled + 2 extremes).
func (m *Matrix) Rows() int { return m.rows }

// Faces returns the number of face columns.
func (m *Matrix) Faces() int { return m.faces }

// Set marks face visible (or not) from direction row.
func (m *Matrix) Set(row, face int, v bool) { m.cells[row*m.faces+face] = v }

// At reports whether face is visible from direction row.
func (m *Matrix) At(row, face int) bool { return m.cells[row*m.faces+face] }

// NonVisible returns the faces with an all-false column: faces no
// sampled direction nor extreme can reach.
func (m *Matrix) NonVisible() []int {
	var faces []int
	for f := 0; f < m.faces; f++ {
		found := false
		for r := 0; r < m.rows && !found; r++ {
			found = m.At(r, f)
		}
		if !found {
			faces = append(faces, f)
		}
	}
	return faces
}

// Equal reports whether m and o have identical dimensions and cells.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.rows != o.rows || m.faces != o.faces {
		return false
	}
	for i := range m.cells {
		if m.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}
