package mesh

import (
	"fmt"
	"sort"

	gocfdmesh "github.com/notargets/gocfd/DG3D/mesh"
	"github.com/notargets/gocfd/DG3D/mesh/readers"
	"gonum.org/v1/gonum/spatial/r3"
)

// Face definitions for tetrahedron (which 3 vertices form each face)
var tetFaceVertices = [4][3]int{
	{0, 1, 2}, // Face 0
	{0, 1, 3}, // Face 1
	{1, 2, 3}, // Face 2
	{0, 2, 3}, // Face 3
}

type faceKey [3]int

func newFaceKey(v [3]int) faceKey {
	s := v[:]
	sort.Ints(s)
	return faceKey{s[0], s[1], s[2]}
}

// NewTetMesh builds a PolyMesh from tetrahedral element-to-vertex
// connectivity. Faces shared by two elements are merged.
func NewTetMesh(points []r3.Vec, EToV [][]int) (*PolyMesh, error) {
	var (
		faces   [][]int
		cells   = make([][]int, len(EToV))
		faceMap = make(map[faceKey]int)
	)
	for k, ev := range EToV {
		if len(ev) != 4 {
			return nil, fmt.Errorf("element %d has %d vertices: only tetrahedra are supported", k, len(ev))
		}
		cells[k] = make([]int, 4)
		for f, fv := range tetFaceVertices {
			v := [3]int{ev[fv[0]], ev[fv[1]], ev[fv[2]]}
			key := newFaceKey(v)
			id, found := faceMap[key]
			if !found {
				id = len(faces)
				faceMap[key] = id
				faces = append(faces, []int{v[0], v[1], v[2]})
			}
			cells[k][f] = id
		}
	}
	return NewPolyMesh(points, faces, cells)
}

// FromGocfd converts a mesh read by the gocfd readers. Only tetrahedral
// meshes are accepted.
func FromGocfd(m *gocfdmesh.Mesh) (*PolyMesh, error) {
	if m == nil {
		return nil, fmt.Errorf("nil mesh")
	}
	points := make([]r3.Vec, len(m.Vertices))
	for i, v := range m.Vertices {
		if len(v) < 3 {
			return nil, fmt.Errorf("vertex %d has %d coordinates, need 3", i, len(v))
		}
		points[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}
	if len(m.EtoV) != m.NumElements {
		return nil, fmt.Errorf("mesh lists %d elements but EtoV has %d entries",
			m.NumElements, len(m.EtoV))
	}
	return NewTetMesh(points, m.EtoV)
}

// ReadMeshFile reads any mesh format understood by the gocfd readers
// (Gambit neutral, Gmsh) and converts it to a PolyMesh
func ReadMeshFile(path string) (*PolyMesh, error) {
	m, err := readers.ReadMeshFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mesh file %s: %w", path, err)
	}
	pm, err := FromGocfd(m)
	if err != nil {
		return nil, fmt.Errorf("mesh file %s: %w", path, err)
	}
	return pm, nil
}
