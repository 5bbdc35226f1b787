package mesh

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// TetIndices identifies one tetrahedron of a cell decomposition. The
// tetrahedron is formed by the cell centre and three vertices of one of the
// cell's faces. FaceBasePt, FacePtA and FacePtB index into the face's vertex
// list, not into the mesh point list.
type TetIndices struct {
	Cell       int
	Face       int
	FaceBasePt int
	FacePtA    int
	FacePtB    int
}

// Mesh is the geometry and topology a field averaging pass consumes
type Mesh interface {
	NumCells() int
	NumPoints() int
	NumFaces() int

	CellVolume(cell int) float64
	CellCenter(cell int) r3.Vec
	Point(point int) r3.Vec
	FaceVertices(face int) []int

	// CellTets returns the tetrahedral decomposition of a cell. Every
	// tetrahedron belongs to exactly one cell.
	CellTets(cell int) []TetIndices
	// TetVolume is the absolute volume of a tetrahedron
	TetVolume(tet TetIndices) float64
	// Tet returns the corner coordinates, cell centre first
	Tet(tet TetIndices) Tetrahedron
	// TetPoints returns the mesh point indices of the three face corners
	TetPoints(tet TetIndices) [3]int

	// CellCells lists the cells sharing a face with cell
	CellCells(cell int) []int
}

// MeshProperties summarises the size of a mesh
type MeshProperties struct {
	NumCells  int
	NumPoints int
	NumFaces  int
	NumTets   int
}

// GetMeshProperties counts the entities of m
func GetMeshProperties(m Mesh) MeshProperties {
	props := MeshProperties{
		NumCells:  m.NumCells(),
		NumPoints: m.NumPoints(),
		NumFaces:  m.NumFaces(),
	}
	for c := 0; c < props.NumCells; c++ {
		props.NumTets += len(m.CellTets(c))
	}
	return props
}
