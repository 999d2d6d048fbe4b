package trimesh

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/spatial/r3"
)

// Binary STL codec. The planner writes restored meshes and reads binary
// models directly; ASCII ingestion is left to callers with a full STL
// parser.

// WriteSTL writes the mesh to w in binary STL format.
func WriteSTL(w io.Writer, m *Mesh) error {
	if m.NumFaces() == 0 {
		return errors.New("trimesh: empty mesh")
	}
	header := stlHeader{Count: uint32(m.NumFaces())}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return err
	}
	var d stlTriangle
	var b [50]byte
	for f := 0; f < m.NumFaces(); f++ {
		t := m.Triangle(f)
		n := TriangleNormal(t)
		d.Normal = f32From(n)
		d.Vertex1 = f32From(t[0])
		d.Vertex2 = f32From(t[1])
		d.Vertex3 = f32From(t[2])
		d.put(b[:])
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	}
	return nil
}

// WriteSTLFile writes the mesh to path in binary STL format.
func WriteSTLFile(path string, m *Mesh) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	bw := bufio.NewWriter(file)
	if err := WriteSTL(bw, m); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadSTL reads a binary STL stream into an indexed mesh, merging
// coincident vertices. Triangles with NaN/Inf coordinates or identical
// vertices are rejected.
func ReadSTL(r io.Reader) (*Mesh, error) {
	var header stlHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.New("trimesh: EOF while reading STL header")
		}
		return nil, fmt.Errorf("trimesh: STL header read failed: %w", err)
	}
	if header.Count == 0 {
		return nil, errors.New("trimesh: STL header indicates 0 triangles")
	}
	triangles := make([][3]r3.Vec, 0, header.Count)
	var buf [50]byte
	var d stlTriangle
	for i := 0; i < int(header.Count); i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("trimesh: %d/%d STL triangles read: %w", i, header.Count, err)
		}
		d.get(buf[:])
		if err := d.validate(); err != nil {
			return nil, fmt.Errorf("trimesh: STL triangle %d: %w", i, err)
		}
		triangles = append(triangles, [3]r3.Vec{
			r3From(d.Vertex1), r3From(d.Vertex2), r3From(d.Vertex3),
		})
	}
	return FromTriangles(triangles, 0)
}

// ReadSTLFile reads a binary STL file into an indexed mesh.
func ReadSTLFile(path string) (*Mesh, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadSTL(bufio.NewReader(file))
}

// stlHeader defines the STL file header.
type stlHeader struct {
	_     [80]uint8 // Header
	Count uint32    // Number of triangles
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
	_       uint16 // Attribute byte count
}

func (t stlTriangle) put(b []byte) {
	if len(b) < 50 {
		panic("need length 50 to marshal stlTriangle")
	}
	put3F32(b, t.Normal)
	put3F32(b[12:], t.Vertex1)
	put3F32(b[24:], t.Vertex2)
	put3F32(b[36:], t.Vertex3)
	binary.LittleEndian.PutUint16(b[48:], 0)
}

func (t *stlTriangle) get(b []byte) {
	if len(b) < 50 {
		panic("need length 50 to unmarshal stlTriangle")
	}
	get3F32(b, &t.Normal)
	get3F32(b[12:], &t.Vertex1)
	get3F32(b[24:], &t.Vertex2)
	get3F32(b[36:], &t.Vertex3)
	// no attributes supported.
}

func (t stlTriangle) validate() error {
	const vertexTol = 1e-12
	if bad3F32(t.Normal) {
		return errors.New("inf/NaN normal")
	}
	if bad3F32(t.Vertex1) || bad3F32(t.Vertex2) || bad3F32(t.Vertex3) {
		return errors.New("inf/NaN vertex")
	}
	if equalWithin3F32(t.Vertex1, t.Vertex2, vertexTol) ||
		equalWithin3F32(t.Vertex2, t.Vertex3, vertexTol) ||
		equalWithin3F32(t.Vertex3, t.Vertex1, vertexTol) {
		return errors.New("degenerate triangle")
	}
	return nil
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func get3F32(b []byte, f *[3]float32) {
	_ = b[11] // early bounds check
	f[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
	f[1] = math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	f[2] = math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
}

func bad3F32(f [3]float32) bool {
	return math32.IsNaN(f[0]) || math32.IsInf(f[0], 0) ||
		math32.IsNaN(f[1]) || math32.IsInf(f[1], 0) ||
		math32.IsNaN(f[2]) || math32.IsInf(f[2], 0)
}

func equalWithin3F32(a, b [3]float32, tol float32) bool {
	return math32.Abs(a[0]-b[0]) <= tol &&
		math32.Abs(a[1]-b[1]) <= tol &&
		math32.Abs(a[2]-b[2]) <= tol
}

func f32From(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

func r3From(f [3]float32) r3.Vec {
	return r3.Vec{X: float64(f[0]), Y: float64(f[1]), Z: float64(f[2])}
}
