package mesh

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func unitTetPoints() []r3.Vec {
	return []r3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1},
	}
}

func newUnitCubeHex(t *testing.T) *PolyMesh {
	t.Helper()
	points := []r3.Vec{
		{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 1},
	}
	faces := [][]int{
		{0, 3, 2, 1}, // z = 0
		{4, 5, 6, 7}, // z = 1
		{0, 1, 5, 4}, // y = 0
		{3, 7, 6, 2}, // y = 1
		{0, 4, 7, 3}, // x = 0
		{1, 2, 6, 5}, // x = 1
	}
	pm, err := NewPolyMesh(points, faces, [][]int{{0, 1, 2, 3, 4, 5}})
	require.NoError(t, err)
	return pm
}

func TestNewTetMesh_SingleTet(t *testing.T) {
	pm, err := NewTetMesh(unitTetPoints(), [][]int{{0, 1, 2, 3}})
	require.NoError(t, err)

	props := GetMeshProperties(pm)
	assert.Equal(t, MeshProperties{NumCells: 1, NumPoints: 4, NumFaces: 4, NumTets: 4}, props)

	assert.InDelta(t, 1.0/6.0, pm.CellVolume(0), 1e-14)
	c := pm.CellCenter(0)
	assert.InDelta(t, 0.25, c.X, 1e-14)
	assert.InDelta(t, 0.25, c.Y, 1e-14)
	assert.InDelta(t, 0.25, c.Z, 1e-14)
	assert.Empty(t, pm.CellCells(0))
}

func TestPolyMesh_TetVolumesSumToCellVolume(t *testing.T) {
	box, err := NewBoxMesh(2, 3, 2, r3.Vec{}, r3.Vec{X: 1, Y: 1.5, Z: 2})
	require.NoError(t, err)

	meshes := map[string]*PolyMesh{
		"hexCell": newUnitCubeHex(t),
		"box":     box,
	}
	for name, pm := range meshes {
		t.Run(name, func(t *testing.T) {
			var total float64
			for c := 0; c < pm.NumCells(); c++ {
				var sum float64
				for _, tet := range pm.CellTets(c) {
					assert.Equal(t, c, tet.Cell)
					sum += pm.TetVolume(tet)
				}
				assert.InDelta(t, pm.CellVolume(c), sum, 1e-12, "cell %d", c)
				total += pm.CellVolume(c)
			}
			t.Logf("%s: %d cells, total volume %.6f", name, pm.NumCells(), total)
		})
	}
	assert.InDelta(t, 3.0, func() float64 {
		var v float64
		for c := 0; c < box.NumCells(); c++ {
			v += box.CellVolume(c)
		}
		return v
	}(), 1e-12)
}

func TestPolyMesh_EachTetTouchesThreeDistinctFacePoints(t *testing.T) {
	pm := newUnitCubeHex(t)
	tets := pm.CellTets(0)
	require.Len(t, tets, 12)

	touches := make(map[int]int)
	for _, tet := range tets {
		pts := pm.TetPoints(tet)
		seen := map[int]bool{}
		for _, p := range pts {
			seen[p] = true
			touches[p]++
		}
		assert.Len(t, seen, 3)
		assert.InDelta(t, 1.0/12.0, pm.TetVolume(tet), 1e-14)
	}
	// every cube corner is a corner of some face triangle
	assert.Len(t, touches, 8)
	total := 0
	for _, n := range touches {
		total += n
	}
	assert.Equal(t, 3*len(tets), total)
}

func TestNewBoxMesh_Connectivity(t *testing.T) {
	pm, err := NewBoxMesh(1, 1, 1, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)

	assert.Equal(t, 6, pm.NumCells())
	assert.Equal(t, 8, pm.NumPoints())
	// 12 boundary triangles plus 6 interior faces around the diagonal
	assert.Equal(t, 18, pm.NumFaces())
	for c := 0; c < pm.NumCells(); c++ {
		assert.InDelta(t, 1.0/6.0, pm.CellVolume(c), 1e-14)
		assert.Len(t, pm.CellCells(c), 2)
	}
}

func TestNewPolyMesh_Validation(t *testing.T) {
	points := unitTetPoints()
	testCases := []struct {
		name  string
		faces [][]int
		cells [][]int
	}{
		{"shortFace", [][]int{{0, 1}}, [][]int{{0, 0, 0, 0}}},
		{"pointOutOfRange", [][]int{{0, 1, 9}}, [][]int{{0}}},
		{"tooFewFaces", [][]int{{0, 1, 2}}, [][]int{{0}}},
		{"faceOutOfRange", [][]int{{0, 1, 2}, {0, 1, 3}, {1, 2, 3}, {0, 2, 3}}, [][]int{{0, 1, 2, 7}}},
		{"unusedFace", [][]int{{0, 1, 2}, {0, 1, 3}, {1, 2, 3}, {0, 2, 3}, {0, 1, 2}}, [][]int{{0, 1, 2, 3}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPolyMesh(points, tc.faces, tc.cells)
			assert.Error(t, err)
		})
	}

	_, err := NewTetMesh(points, [][]int{{0, 1, 2}})
	assert.Error(t, err)
	_, err = NewBoxMesh(0, 1, 1, r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	assert.Error(t, err)
}

func TestTetrahedron_BarycentricAndShapeGradients(t *testing.T) {
	tet := Tetrahedron{}
	copy(tet[:], unitTetPoints())

	lambda, err := tet.Barycentric(r3.Vec{X: 0.1, Y: 0.2, Z: 0.3})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.4, 0.1, 0.2, 0.3}, lambda[:], 1e-14)

	grads, err := tet.ShapeGradients()
	require.NoError(t, err)
	assert.InDelta(t, -1.0, grads[0].X, 1e-14)
	assert.InDelta(t, 1.0, grads[1].X, 1e-14)
	assert.InDelta(t, 1.0, grads[2].Y, 1e-14)
	assert.InDelta(t, 1.0, grads[3].Z, 1e-14)

	flat := Tetrahedron{{}, {X: 1}, {Y: 1}, {X: 1, Y: 1}}
	_, err = flat.ShapeGradients()
	assert.ErrorIs(t, err, ErrDegenerateTet)
}

func TestTetrahedron_SecondMoment(t *testing.T) {
	tet := Tetrahedron{}
	copy(tet[:], unitTetPoints())
	m := tet.SecondMoment(r3.Vec{})
	// integral of x^2 over the unit corner tetrahedron is 1/60, of xy is 1/120
	assert.InDelta(t, 1.0/60.0, m.At(0, 0), 1e-15)
	assert.InDelta(t, 1.0/120.0, m.At(0, 1), 1e-15)
	assert.InDelta(t, 1.0/60.0, m.At(2, 2), 1e-15)
}

func TestTetrahedron_QuadraturePoints(t *testing.T) {
	tet := Tetrahedron{}
	copy(tet[:], unitTetPoints())
	integrate := func(f func(x r3.Vec) float64) float64 {
		var s float64
		for _, x := range tet.QuadraturePoints() {
			s += f(x)
		}
		return s * tet.Volume() / 4
	}
	assert.InDelta(t, 1.0/6.0, integrate(func(r3.Vec) float64 { return 1 }), 1e-14)
	assert.InDelta(t, 1.0/24.0, integrate(func(x r3.Vec) float64 { return x.Y }), 1e-14)
	assert.InDelta(t, 1.0/60.0, integrate(func(x r3.Vec) float64 { return x.X * x.X }), 1e-14)
	assert.InDelta(t, 1.0/120.0, integrate(func(x r3.Vec) float64 { return x.X * x.Z }), 1e-14)
}

const singleTetNeutral = `        CONTROL INFO 2.0.0
** GAMBIT NEUTRAL FILE
Single tetrahedron
PROGRAM:                  Test     VERSION:  1.0
Mon Jan  1 00:00:00 2025
     NUMNP     NELEM     NGRPS    NBSETS     NDFCD     NDFVL
         4         1         1         1         3         3
ENDOFSECTION
   NODAL COORDINATES 2.0.0
         1   0.00000000000e+00   0.00000000000e+00   0.00000000000e+00
         2   1.00000000000e+00   0.00000000000e+00   0.00000000000e+00
         3   0.00000000000e+00   1.00000000000e+00   0.00000000000e+00
         4   0.00000000000e+00   0.00000000000e+00   1.00000000000e+00
ENDOFSECTION
   ELEMENTS/CELLS 2.0.0
         1         6         4         1         2         3         4
ENDOFSECTION
       BOUNDARY CONDITIONS 2.0.0
fixed           0         2         3         0         0         0         0         0
         1   0.00000000000e+00   0.00000000000e+00   0.00000000000e+00
         2   0.00000000000e+00   0.00000000000e+00   0.00000000000e+00
ENDOFSECTION`

func TestReadMeshFile_GambitNeutral(t *testing.T) {
	meshfile := filepath.Join(t.TempDir(), "single_tet.neu")
	require.NoError(t, os.WriteFile(meshfile, []byte(singleTetNeutral), 0o644))

	pm, err := ReadMeshFile(meshfile)
	require.NoError(t, err)
	fmt.Printf("Meshfile: %s has %d tets...\n", meshfile, pm.NumCells())

	assert.Equal(t, 1, pm.NumCells())
	assert.Equal(t, 4, pm.NumPoints())
	assert.InDelta(t, 1.0/6.0, pm.CellVolume(0), 1e-12)

	_, err = ReadMeshFile(filepath.Join(t.TempDir(), "missing.neu"))
	assert.Error(t, err)
}
