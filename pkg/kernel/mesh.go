package kernel

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Mesh is a triangle mesh suitable for rendering and export.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	PartName string    `json:"partName"` // which reactor shape this came from
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

func (m *Mesh) vertex(i uint32) [3]float64 {
	return [3]float64{
		float64(m.Vertices[3*i]),
		float64(m.Vertices[3*i+1]),
		float64(m.Vertices[3*i+2]),
	}
}

// Area returns the total surface area of the mesh. Disconnected parts are
// summed.
func (m *Mesh) Area() float64 {
	var area float64
	for t := 0; t+2 < len(m.Indices); t += 3 {
		a, b, c := m.vertex(m.Indices[t]), m.vertex(m.Indices[t+1]), m.vertex(m.Indices[t+2])
		ab := [3]float64{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
		ac := [3]float64{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
		cx := ab[1]*ac[2] - ab[2]*ac[1]
		cy := ab[2]*ac[0] - ab[0]*ac[2]
		cz := ab[0]*ac[1] - ab[1]*ac[0]
		area += 0.5 * math.Sqrt(cx*cx+cy*cy+cz*cz)
	}
	return area
}

// Volume returns the enclosed volume of a closed, outward-oriented mesh
// using signed tetrahedra against the origin.
func (m *Mesh) Volume() float64 {
	var vol float64
	for t := 0; t+2 < len(m.Indices); t += 3 {
		a, b, c := m.vertex(m.Indices[t]), m.vertex(m.Indices[t+1]), m.vertex(m.Indices[t+2])
		vol += a[0]*(b[1]*c[2]-b[2]*c[1]) -
			a[1]*(b[0]*c[2]-b[2]*c[0]) +
			a[2]*(b[0]*c[1]-b[1]*c[0])
	}
	return math.Abs(vol / 6)
}

// WriteSTL writes the mesh as binary STL.
func (m *Mesh) WriteSTL(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var header [80]byte
	copy(header[:], "tokamak "+m.PartName)
	if _, err := bw.Write(header[:]); err != nil {
		return fmt.Errorf("kernel: stl header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(m.TriangleCount())); err != nil {
		return fmt.Errorf("kernel: stl count: %w", err)
	}

	var rec [12]float32
	for t := 0; t+2 < len(m.Indices); t += 3 {
		i0 := m.Indices[t]
		if len(m.Normals) >= int(3*i0+3) {
			copy(rec[0:3], m.Normals[3*i0:3*i0+3])
		} else {
			rec[0], rec[1], rec[2] = 0, 0, 0
		}
		for j := 0; j < 3; j++ {
			vi := m.Indices[t+j]
			copy(rec[3+3*j:6+3*j], m.Vertices[3*vi:3*vi+3])
		}
		if err := binary.Write(bw, binary.LittleEndian, rec); err != nil {
			return fmt.Errorf("kernel: stl facet %d: %w", t/3, err)
		}
		if err := binary.Write(bw, binary.LittleEndian, uint16(0)); err != nil {
			return fmt.Errorf("kernel: stl facet %d: %w", t/3, err)
		}
	}
	return bw.Flush()
}

// SaveSTL writes the mesh as binary STL to path.
func (m *Mesh) SaveSTL(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("kernel: create %s: %w", path, err)
	}
	if err := m.WriteSTL(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
