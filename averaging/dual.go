package averaging

import (
	"github.com/notargets/DGAverage/field"
	"github.com/notargets/DGAverage/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	dualCells  = 0
	dualPoints = 1
)

// dual holds a value at every cell centre and every mesh point, and
// interpolates linearly across each tetrahedron of the decomposition
type dual[T field.Value[T], G field.Value[G]] struct {
	m *Method[T, G]
}

// NewDual builds a method with regions of nCells and nPoints values
func NewDual[T field.Value[T], G field.Value[G]](p Params, kind field.Kind[T, G]) (*Method[T, G], error) {
	if p.Mesh == nil {
		return nil, ErrNoMesh
	}
	sizes := []int{p.Mesh.NumCells(), p.Mesh.NumPoints()}
	return NewMethod(p, "dual", kind, sizes, func(m *Method[T, G]) (Strategy[T, G], error) {
		return &dual[T, G]{m: m}, nil
	})
}

// corners returns the values at the four tetrahedron corners, cell centre
// first, in the order of mesh.Tet
func (d *dual[T, G]) corners(tet mesh.TetIndices) [4]T {
	cells := d.m.data.Region(dualCells)
	points := d.m.data.Region(dualPoints)
	pts := d.m.mesh.TetPoints(tet)
	return [4]T{cells[tet.Cell], points[pts[0]], points[pts[1]], points[pts[2]]}
}

func (d *dual[T, G]) Interpolate(p r3.Vec, tet mesh.TetIndices) T {
	u := d.corners(tet)
	lambda, err := d.m.mesh.Tet(tet).Barycentric(p)
	if err != nil {
		return u[0]
	}
	var v T
	for i := range u {
		v = v.Add(u[i].Scale(lambda[i]))
	}
	return v
}

func (d *dual[T, G]) InterpolateGrad(_ r3.Vec, tet mesh.TetIndices) G {
	var (
		dx, dy, dz T
		zero       G
	)
	grads, err := d.m.mesh.Tet(tet).ShapeGradients()
	if err != nil {
		return zero
	}
	u := d.corners(tet)
	for i := range u {
		dx = dx.Add(u[i].Scale(grads[i].X))
		dy = dy.Add(u[i].Scale(grads[i].Y))
		dz = dz.Add(u[i].Scale(grads[i].Z))
	}
	return d.m.kind.Compose(dx, dy, dz)
}

// UpdateGrad has nothing to refresh: gradients follow analytically from the
// corner values
func (d *dual[T, G]) UpdateGrad() {}

func (d *dual[T, G]) Clone(m *Method[T, G]) Strategy[T, G] {
	return &dual[T, G]{m: m}
}
