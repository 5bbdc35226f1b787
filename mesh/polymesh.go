package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// PolyMesh is a polyhedral mesh described by points, polygonal faces and
// cells bounded by faces. Cell centres, volumes and the tetrahedral
// decomposition are computed once at construction.
type PolyMesh struct {
	points    []r3.Vec
	faces     [][]int
	cells     [][]int // face indices bounding each cell
	owner     []int
	neighbour []int // -1 on boundary faces

	centres   []r3.Vec
	volumes   []float64
	tets      [][]TetIndices
	cellCells [][]int
}

var _ Mesh = (*PolyMesh)(nil)

// NewPolyMesh validates the topology and computes cell geometry.
// Faces need at least three vertices; a face may bound at most two cells.
func NewPolyMesh(points []r3.Vec, faces [][]int, cells [][]int) (*PolyMesh, error) {
	pm := &PolyMesh{
		points:    points,
		faces:     faces,
		cells:     cells,
		owner:     make([]int, len(faces)),
		neighbour: make([]int, len(faces)),
	}
	for f, verts := range faces {
		if len(verts) < 3 {
			return nil, fmt.Errorf("face %d has %d vertices, need at least 3", f, len(verts))
		}
		for _, p := range verts {
			if p < 0 || p >= len(points) {
				return nil, fmt.Errorf("face %d references point %d, mesh has %d points", f, p, len(points))
			}
		}
		pm.owner[f] = -1
		pm.neighbour[f] = -1
	}
	for c, cf := range cells {
		if len(cf) < 4 {
			return nil, fmt.Errorf("cell %d has %d faces, need at least 4", c, len(cf))
		}
		for _, f := range cf {
			if f < 0 || f >= len(faces) {
				return nil, fmt.Errorf("cell %d references face %d, mesh has %d faces", c, f, len(faces))
			}
			switch {
			case pm.owner[f] < 0:
				pm.owner[f] = c
			case pm.neighbour[f] < 0:
				pm.neighbour[f] = c
			default:
				return nil, fmt.Errorf("face %d is shared by more than two cells (%d, %d, %d)",
					f, pm.owner[f], pm.neighbour[f], c)
			}
		}
	}
	for f := range faces {
		if pm.owner[f] < 0 {
			return nil, fmt.Errorf("face %d is not used by any cell", f)
		}
	}

	if err := pm.computeGeometry(); err != nil {
		return nil, err
	}
	pm.buildCellCells()
	return pm, nil
}

// faceCentre is the vertex average, exact for triangles
func (pm *PolyMesh) faceCentre(f int) r3.Vec {
	var c r3.Vec
	for _, p := range pm.faces[f] {
		c = r3.Add(c, pm.points[p])
	}
	return r3.Scale(1/float64(len(pm.faces[f])), c)
}

// computeGeometry finds cell volumes and centroids by decomposing each cell
// into tetrahedra about an estimated centre, then builds the decomposition
// used for averaging about the true centroid.
func (pm *PolyMesh) computeGeometry() error {
	nc := len(pm.cells)
	pm.centres = make([]r3.Vec, nc)
	pm.volumes = make([]float64, nc)
	pm.tets = make([][]TetIndices, nc)

	for c, cf := range pm.cells {
		var est r3.Vec
		for _, f := range cf {
			est = r3.Add(est, pm.faceCentre(f))
		}
		est = r3.Scale(1/float64(len(cf)), est)

		var (
			vol      float64
			weighted r3.Vec
		)
		for _, f := range cf {
			verts := pm.faces[f]
			for i := 1; i < len(verts)-1; i++ {
				tet := Tetrahedron{est, pm.points[verts[0]], pm.points[verts[i]], pm.points[verts[i+1]]}
				v := tet.Volume()
				vol += v
				weighted = r3.Add(weighted, r3.Scale(v, tet.Centroid()))
			}
		}
		if vol <= 0 {
			return fmt.Errorf("cell %d has zero volume", c)
		}
		pm.volumes[c] = vol
		pm.centres[c] = r3.Scale(1/vol, weighted)

		tets := make([]TetIndices, 0, 2*len(cf))
		for _, f := range cf {
			for i := 1; i < len(pm.faces[f])-1; i++ {
				tets = append(tets, TetIndices{
					Cell:       c,
					Face:       f,
					FaceBasePt: 0,
					FacePtA:    i,
					FacePtB:    i + 1,
				})
			}
		}
		pm.tets[c] = tets
	}
	return nil
}

func (pm *PolyMesh) buildCellCells() {
	pm.cellCells = make([][]int, len(pm.cells))
	for f := range pm.faces {
		o, n := pm.owner[f], pm.neighbour[f]
		if n < 0 {
			continue
		}
		pm.cellCells[o] = append(pm.cellCells[o], n)
		pm.cellCells[n] = append(pm.cellCells[n], o)
	}
}

func (pm *PolyMesh) NumCells() int  { return len(pm.cells) }
func (pm *PolyMesh) NumPoints() int { return len(pm.points) }
func (pm *PolyMesh) NumFaces() int  { return len(pm.faces) }

func (pm *PolyMesh) CellVolume(cell int) float64 { return pm.volumes[cell] }
func (pm *PolyMesh) CellCenter(cell int) r3.Vec  { return pm.centres[cell] }
func (pm *PolyMesh) Point(point int) r3.Vec      { return pm.points[point] }
func (pm *PolyMesh) FaceVertices(face int) []int { return pm.faces[face] }
func (pm *PolyMesh) CellTets(cell int) []TetIndices {
	return pm.tets[cell]
}
func (pm *PolyMesh) CellCells(cell int) []int { return pm.cellCells[cell] }

// CellFaces lists the faces bounding a cell
func (pm *PolyMesh) CellFaces(cell int) []int { return pm.cells[cell] }

// Owner and Neighbour give the cells on either side of a face; Neighbour is
// -1 for boundary faces
func (pm *PolyMesh) Owner(face int) int     { return pm.owner[face] }
func (pm *PolyMesh) Neighbour(face int) int { return pm.neighbour[face] }

func (pm *PolyMesh) TetPoints(tet TetIndices) [3]int {
	f := pm.faces[tet.Face]
	return [3]int{f[tet.FaceBasePt], f[tet.FacePtA], f[tet.FacePtB]}
}

func (pm *PolyMesh) Tet(tet TetIndices) Tetrahedron {
	pts := pm.TetPoints(tet)
	return Tetrahedron{
		pm.centres[tet.Cell],
		pm.points[pts[0]],
		pm.points[pts[1]],
		pm.points[pts[2]],
	}
}

func (pm *PolyMesh) TetVolume(tet TetIndices) float64 {
	return pm.Tet(tet).Volume()
}
