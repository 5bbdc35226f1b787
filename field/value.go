package field

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Value is implemented by every arithmetic type a region buffer can hold.
// Buffers are mutated through explicit methods rather than operators so that
// aliasing stays visible at the call site.
type Value[T any] interface {
	Add(T) T
	Scale(float64) T
}

// Scalar is a single real value
type Scalar float64

func (s Scalar) Add(o Scalar) Scalar    { return s + o }
func (s Scalar) Scale(f float64) Scalar { return Scalar(f * float64(s)) }

// Vector is a 3-component value stored as a gonum r3.Vec
type Vector r3.Vec

func NewVector(x, y, z float64) Vector { return Vector{X: x, Y: y, Z: z} }

func (v Vector) Add(o Vector) Vector     { return Vector(r3.Add(r3.Vec(v), r3.Vec(o))) }
func (v Vector) Scale(f float64) Vector  { return Vector(r3.Scale(f, r3.Vec(v))) }
func (v Vector) Vec() r3.Vec             { return r3.Vec(v) }
func (v Vector) Dot(d r3.Vec) float64    { return r3.Dot(r3.Vec(v), d) }
func (v Vector) Component(i int) float64 { return [3]float64{v.X, v.Y, v.Z}[i] }

// Tensor is a 3x3 second order tensor stored row-major.
// For a gradient of a vector U, element (i,j) holds dU_j/dx_i.
type Tensor [9]float64

func (t Tensor) Add(o Tensor) Tensor {
	for i := range t {
		t[i] += o[i]
	}
	return t
}

func (t Tensor) Scale(f float64) Tensor {
	for i := range t {
		t[i] *= f
	}
	return t
}

func (t Tensor) At(i, j int) float64 { return t[3*i+j] }

// Row returns row i as a vector
func (t Tensor) Row(i int) Vector {
	return Vector{X: t[3*i], Y: t[3*i+1], Z: t[3*i+2]}
}
