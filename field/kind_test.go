package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestScalarKind_ComposeProject(t *testing.T) {
	var k ScalarKind
	g := k.Compose(1, 2, 3)
	assert.Equal(t, NewVector(1, 2, 3), g)
	assert.Equal(t, Scalar(1*4+2*5+3*6), k.Project(g, r3.Vec{X: 4, Y: 5, Z: 6}))

	dst := make([]float64, k.GradComponents())
	k.FlattenGrad(g, dst)
	assert.Equal(t, []float64{1, 2, 3}, dst)
	assert.Equal(t, g, k.UnflattenGrad(dst))
}

func TestVectorKind_ComposeProject(t *testing.T) {
	var k VectorKind
	dx := NewVector(1, 0, 0)
	dy := NewVector(0, 2, 0)
	dz := NewVector(0, 0, 3)
	g := k.Compose(dx, dy, dz)

	assert.Equal(t, 1.0, g.At(0, 0))
	assert.Equal(t, 2.0, g.At(1, 1))
	assert.Equal(t, 3.0, g.At(2, 2))
	assert.Equal(t, 0.0, g.At(0, 1))

	// d . grad(U) for U = (x, 2y, 3z) along (1,1,1)
	assert.Equal(t, NewVector(1, 2, 3), k.Project(g, r3.Vec{X: 1, Y: 1, Z: 1}))

	buf := make([]float64, 3)
	k.Flatten(NewVector(4, 5, 6), buf)
	assert.Equal(t, NewVector(4, 5, 6), k.Unflatten(buf))

	gbuf := make([]float64, k.GradComponents())
	k.FlattenGrad(g, gbuf)
	assert.Equal(t, []float64{1, 0, 0, 0, 2, 0, 0, 0, 3}, gbuf)
	assert.Equal(t, g, k.UnflattenGrad(gbuf))
}

func TestTensor_Arithmetic(t *testing.T) {
	a := Tensor{1, 2, 3, 4, 5, 6, 7, 8, 9}
	b := a.Scale(2).Add(a)
	assert.Equal(t, Tensor{3, 6, 9, 12, 15, 18, 21, 24, 27}, b)
	// receivers are values, a is unchanged
	assert.Equal(t, 1.0, a[0])
	assert.Equal(t, NewVector(4, 5, 6), a.Row(1))
}
