package averaging

import (
	"math"

	"github.com/notargets/DGAverage/field"
	"github.com/notargets/DGAverage/mesh"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// basic holds one value per cell. The value is constant over the cell; the
// gradient is a least squares fit to the face neighbour values.
type basic[T field.Value[T], G field.Value[G]] struct {
	m    *Method[T, G]
	grad []G
}

// NewBasic builds a method with one region of nCells values
func NewBasic[T field.Value[T], G field.Value[G]](p Params, kind field.Kind[T, G]) (*Method[T, G], error) {
	if p.Mesh == nil {
		return nil, ErrNoMesh
	}
	nCells := p.Mesh.NumCells()
	return NewMethod(p, "basic", kind, []int{nCells}, func(m *Method[T, G]) (Strategy[T, G], error) {
		return &basic[T, G]{m: m, grad: make([]G, nCells)}, nil
	})
}

func (b *basic[T, G]) Interpolate(_ r3.Vec, tet mesh.TetIndices) T {
	return b.m.data.At(0, tet.Cell)
}

func (b *basic[T, G]) InterpolateGrad(_ r3.Vec, tet mesh.TetIndices) G {
	return b.grad[tet.Cell]
}

// UpdateGrad solves, per cell, the inverse distance squared weighted least
// squares system over the face neighbours. Cells whose neighbour offsets do
// not span three dimensions get a zero gradient.
func (b *basic[T, G]) UpdateGrad() {
	var (
		msh    = b.m.mesh
		values = b.m.data.Region(0)
		zero   G
		A      = mat.NewSymDense(3, nil)
		inv    mat.Dense
	)
	for c := range b.grad {
		b.grad[c] = zero
		nbrs := msh.CellCells(c)
		if len(nbrs) < 3 {
			continue
		}
		cc := msh.CellCenter(c)
		var rhs [3]T
		A.Zero()
		for _, n := range nbrs {
			d := r3.Sub(msh.CellCenter(n), cc)
			w := 1 / r3.Norm2(d)
			dv := values[n].Add(values[c].Scale(-1))
			comp := [3]float64{d.X, d.Y, d.Z}
			for i := 0; i < 3; i++ {
				rhs[i] = rhs[i].Add(dv.Scale(w * comp[i]))
				for j := i; j < 3; j++ {
					A.SetSym(i, j, A.At(i, j)+w*comp[i]*comp[j])
				}
			}
		}
		tr := A.At(0, 0) + A.At(1, 1) + A.At(2, 2)
		if math.Abs(mat.Det(A)) <= 1e-9*tr*tr*tr {
			continue
		}
		if err := inv.Inverse(A); err != nil {
			continue
		}
		var partial [3]T
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				partial[i] = partial[i].Add(rhs[j].Scale(inv.At(i, j)))
			}
		}
		b.grad[c] = b.m.kind.Compose(partial[0], partial[1], partial[2])
	}
}

func (b *basic[T, G]) Clone(m *Method[T, G]) Strategy[T, G] {
	grad := make([]G, len(b.grad))
	copy(grad, b.grad)
	return &basic[T, G]{m: m, grad: grad}
}
