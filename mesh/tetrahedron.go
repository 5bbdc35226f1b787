package mesh

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerateTet is returned for tetrahedra with no measurable volume
var ErrDegenerateTet = errors.New("degenerate tetrahedron")

// Tetrahedron holds the four corner coordinates of a tetrahedron
type Tetrahedron [4]r3.Vec

func (t Tetrahedron) SignedVolume() float64 {
	a := r3.Sub(t[1], t[0])
	b := r3.Sub(t[2], t[0])
	c := r3.Sub(t[3], t[0])
	return r3.Dot(a, r3.Cross(b, c)) / 6
}

func (t Tetrahedron) Volume() float64 { return math.Abs(t.SignedVolume()) }

func (t Tetrahedron) Centroid() r3.Vec {
	s := r3.Add(r3.Add(t[0], t[1]), r3.Add(t[2], t[3]))
	return r3.Scale(0.25, s)
}

// edgeInverse returns the inverse of the matrix whose columns are the edges
// from corner 0 to corners 1, 2 and 3
func (t Tetrahedron) edgeInverse() (*mat.Dense, error) {
	e1 := r3.Sub(t[1], t[0])
	e2 := r3.Sub(t[2], t[0])
	e3 := r3.Sub(t[3], t[0])

	// Scale-aware degeneracy test: volume against the longest edge cubed
	h := math.Max(r3.Norm(e1), math.Max(r3.Norm(e2), r3.Norm(e3)))
	if h == 0 || t.Volume() <= 1e-12*h*h*h {
		return nil, ErrDegenerateTet
	}

	A := mat.NewDense(3, 3, []float64{
		e1.X, e2.X, e3.X,
		e1.Y, e2.Y, e3.Y,
		e1.Z, e2.Z, e3.Z,
	})
	var inv mat.Dense
	if err := inv.Inverse(A); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, err
		}
	}
	return &inv, nil
}

// Barycentric returns the barycentric coordinates of p with respect to the
// four corners. The coordinates sum to one; all are non-negative when p lies
// inside the tetrahedron.
func (t Tetrahedron) Barycentric(p r3.Vec) (lambda [4]float64, err error) {
	inv, err := t.edgeInverse()
	if err != nil {
		return lambda, err
	}
	d := r3.Sub(p, t[0])
	for k := 0; k < 3; k++ {
		lambda[k+1] = inv.At(k, 0)*d.X + inv.At(k, 1)*d.Y + inv.At(k, 2)*d.Z
	}
	lambda[0] = 1 - lambda[1] - lambda[2] - lambda[3]
	return lambda, nil
}

// ShapeGradients returns the constant spatial gradients of the four linear
// barycentric shape functions
func (t Tetrahedron) ShapeGradients() (grads [4]r3.Vec, err error) {
	inv, err := t.edgeInverse()
	if err != nil {
		return grads, err
	}
	for k := 0; k < 3; k++ {
		grads[k+1] = r3.Vec{X: inv.At(k, 0), Y: inv.At(k, 1), Z: inv.At(k, 2)}
	}
	grads[0] = r3.Scale(-1, r3.Add(r3.Add(grads[1], grads[2]), grads[3]))
	return grads, nil
}

// SecondMoment returns the integral over the tetrahedron of
// (x-o)(x-o)^T as a symmetric 3x3 matrix
func (t Tetrahedron) SecondMoment(o r3.Vec) *mat.SymDense {
	v := t.Volume()
	var rel [4]r3.Vec
	var sum r3.Vec
	for i := range t {
		rel[i] = r3.Sub(t[i], o)
		sum = r3.Add(sum, rel[i])
	}
	comp := func(p r3.Vec, i int) float64 {
		return [3]float64{p.X, p.Y, p.Z}[i]
	}
	m := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			var s float64
			for _, r := range rel {
				s += comp(r, i) * comp(r, j)
			}
			s += comp(sum, i) * comp(sum, j)
			m.SetSym(i, j, v/20*s)
		}
	}
	return m
}

// Four point symmetric rule, exact for quadratic integrands
const (
	quadAlpha = 0.5854101966249685
	quadBeta  = 0.1381966011250105
)

// QuadraturePoints returns the four points of a rule integrating
// polynomials of degree two exactly. Each point carries weight Volume()/4.
func (t Tetrahedron) QuadraturePoints() (pts [4]r3.Vec) {
	for q := range pts {
		var p r3.Vec
		for i, x := range t {
			w := quadBeta
			if i == q {
				w = quadAlpha
			}
			p = r3.Add(p, r3.Scale(w, x))
		}
		pts[q] = p
	}
	return pts
}
