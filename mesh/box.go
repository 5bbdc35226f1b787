package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// kuhnPaths lists the axis orderings of the six tetrahedra that split a
// hexahedron along its main diagonal
var kuhnPaths = [6][3]int{
	{0, 1, 2}, {0, 2, 1},
	{1, 0, 2}, {1, 2, 0},
	{2, 0, 1}, {2, 1, 0},
}

// NewBoxMesh builds a tetrahedral mesh of the box [lo, hi] with nx*ny*nz
// hexahedra, each split into six tetrahedra. All hexahedra use the same
// diagonal so the decomposition is conforming.
func NewBoxMesh(nx, ny, nz int, lo, hi r3.Vec) (*PolyMesh, error) {
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("invalid box resolution %dx%dx%d", nx, ny, nz)
	}
	if hi.X <= lo.X || hi.Y <= lo.Y || hi.Z <= lo.Z {
		return nil, fmt.Errorf("invalid box extent %v to %v", lo, hi)
	}
	n := [3]int{nx, ny, nz}
	pointID := func(i [3]int) int {
		return i[0] + (nx+1)*(i[1]+(ny+1)*i[2])
	}

	points := make([]r3.Vec, (nx+1)*(ny+1)*(nz+1))
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				points[pointID([3]int{i, j, k})] = r3.Vec{
					X: lo.X + (hi.X-lo.X)*float64(i)/float64(n[0]),
					Y: lo.Y + (hi.Y-lo.Y)*float64(j)/float64(n[1]),
					Z: lo.Z + (hi.Z-lo.Z)*float64(k)/float64(n[2]),
				}
			}
		}
	}

	EToV := make([][]int, 0, 6*nx*ny*nz)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				for _, path := range kuhnPaths {
					corner := [3]int{i, j, k}
					tet := []int{pointID(corner)}
					for _, axis := range path {
						corner[axis]++
						tet = append(tet, pointID(corner))
					}
					EToV = append(EToV, tet)
				}
			}
		}
	}
	return NewTetMesh(points, EToV)
}
