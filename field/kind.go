package field

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Kind binds a value type T to the type G of its spatial gradient
// (Scalar -> Vector, Vector -> Tensor) and provides the operations that need
// both types at once. Kinds are stateless; the zero value is ready to use.
type Kind[T Value[T], G Value[G]] interface {
	// Name is the value type name written with output fields
	Name() string
	// GradName is the gradient type name written with output fields
	GradName() string
	Components() int
	GradComponents() int

	// Compose assembles a gradient from the three partial derivatives
	// d/dx, d/dy and d/dz
	Compose(dx, dy, dz T) G
	// Project returns the directional derivative d . grad
	Project(g G, d r3.Vec) T

	Flatten(v T, dst []float64)
	Unflatten(src []float64) T
	FlattenGrad(g G, dst []float64)
	UnflattenGrad(src []float64) G
}

// ScalarKind binds Scalar values to Vector gradients
type ScalarKind struct{}

func (ScalarKind) Name() string        { return "scalar" }
func (ScalarKind) GradName() string    { return "vector" }
func (ScalarKind) Components() int     { return 1 }
func (ScalarKind) GradComponents() int { return 3 }

func (ScalarKind) Compose(dx, dy, dz Scalar) Vector {
	return Vector{X: float64(dx), Y: float64(dy), Z: float64(dz)}
}

func (ScalarKind) Project(g Vector, d r3.Vec) Scalar {
	return Scalar(g.Dot(d))
}

func (ScalarKind) Flatten(v Scalar, dst []float64) { dst[0] = float64(v) }
func (ScalarKind) Unflatten(src []float64) Scalar  { return Scalar(src[0]) }

func (ScalarKind) FlattenGrad(g Vector, dst []float64) {
	dst[0], dst[1], dst[2] = g.X, g.Y, g.Z
}

func (ScalarKind) UnflattenGrad(src []float64) Vector {
	return Vector{X: src[0], Y: src[1], Z: src[2]}
}

// VectorKind binds Vector values to Tensor gradients
type VectorKind struct{}

func (VectorKind) Name() string        { return "vector" }
func (VectorKind) GradName() string    { return "tensor" }
func (VectorKind) Components() int     { return 3 }
func (VectorKind) GradComponents() int { return 9 }

func (VectorKind) Compose(dx, dy, dz Vector) Tensor {
	return Tensor{
		dx.X, dx.Y, dx.Z,
		dy.X, dy.Y, dy.Z,
		dz.X, dz.Y, dz.Z,
	}
}

func (VectorKind) Project(g Tensor, d r3.Vec) Vector {
	return g.Row(0).Scale(d.X).Add(g.Row(1).Scale(d.Y)).Add(g.Row(2).Scale(d.Z))
}

func (VectorKind) Flatten(v Vector, dst []float64) {
	dst[0], dst[1], dst[2] = v.X, v.Y, v.Z
}

func (VectorKind) Unflatten(src []float64) Vector {
	return Vector{X: src[0], Y: src[1], Z: src[2]}
}

func (VectorKind) FlattenGrad(g Tensor, dst []float64) {
	copy(dst[:9], g[:])
}

func (VectorKind) UnflattenGrad(src []float64) Tensor {
	var t Tensor
	copy(t[:], src[:9])
	return t
}
