package averaging

import (
	"fmt"
	"math"

	"github.com/notargets/DGAverage/field"
	"github.com/notargets/DGAverage/mesh"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Region order of the moment method
const (
	MomentMean = iota
	MomentX
	MomentY
	MomentZ
)

// moment holds per cell the mean and the first moments of the deposited
// quantity about the cell centre, (1/V) integral (x-C)_k U dV. The gradient
// follows by inverting the cell's normalised second moment of volume, and
// values are reconstructed linearly about the centre.
type moment[T field.Value[T], G field.Value[G]] struct {
	m         *Method[T, G]
	transform []*mat.Dense // inverse normalised second moment per cell, nil when singular
	grad      []G
}

// NewMoment builds a method with four regions of nCells values: the mean
// followed by the x, y and z moments
func NewMoment[T field.Value[T], G field.Value[G]](p Params, kind field.Kind[T, G]) (*Method[T, G], error) {
	if p.Mesh == nil {
		return nil, ErrNoMesh
	}
	nCells := p.Mesh.NumCells()
	sizes := []int{nCells, nCells, nCells, nCells}
	return NewMethod(p, "moment", kind, sizes, func(m *Method[T, G]) (Strategy[T, G], error) {
		transform, err := momentTransforms(m.mesh)
		if err != nil {
			return nil, err
		}
		return &moment[T, G]{m: m, transform: transform, grad: make([]G, nCells)}, nil
	})
}

func momentTransforms(msh mesh.Mesh) ([]*mat.Dense, error) {
	transform := make([]*mat.Dense, msh.NumCells())
	for c := range transform {
		cc := msh.CellCenter(c)
		I := mat.NewSymDense(3, nil)
		for _, tet := range msh.CellTets(c) {
			I.AddSym(I, msh.Tet(tet).SecondMoment(cc))
		}
		vol := msh.CellVolume(c)
		if vol <= 0 {
			return nil, fmt.Errorf("cell %d has non-positive volume %g", c, vol)
		}
		I.ScaleSym(1/vol, I)
		tr := I.At(0, 0) + I.At(1, 1) + I.At(2, 2)
		if math.Abs(mat.Det(I)) <= 1e-12*tr*tr*tr {
			continue
		}
		var inv mat.Dense
		if err := inv.Inverse(I); err != nil {
			continue
		}
		transform[c] = &inv
	}
	return transform, nil
}

func (mo *moment[T, G]) Interpolate(p r3.Vec, tet mesh.TetIndices) T {
	c := tet.Cell
	mean := mo.m.data.At(MomentMean, c)
	d := r3.Sub(p, mo.m.mesh.CellCenter(c))
	return mean.Add(mo.m.kind.Project(mo.grad[c], d))
}

func (mo *moment[T, G]) InterpolateGrad(_ r3.Vec, tet mesh.TetIndices) G {
	return mo.grad[tet.Cell]
}

func (mo *moment[T, G]) UpdateGrad() {
	var zero G
	for c := range mo.grad {
		inv := mo.transform[c]
		if inv == nil {
			mo.grad[c] = zero
			continue
		}
		mom := [3]T{
			mo.m.data.At(MomentX, c),
			mo.m.data.At(MomentY, c),
			mo.m.data.At(MomentZ, c),
		}
		var partial [3]T
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				partial[i] = partial[i].Add(mom[j].Scale(inv.At(i, j)))
			}
		}
		mo.grad[c] = mo.m.kind.Compose(partial[0], partial[1], partial[2])
	}
}

func (mo *moment[T, G]) Clone(m *Method[T, G]) Strategy[T, G] {
	grad := make([]G, len(mo.grad))
	copy(grad, mo.grad)
	return &moment[T, G]{m: m, transform: mo.transform, grad: grad}
}
