package averaging

import (
	"math"
	"strings"
	"testing"

	"github.com/notargets/DGAverage/config"
	"github.com/notargets/DGAverage/field"
	"github.com/notargets/DGAverage/mesh"
	"github.com/notargets/DGAverage/metrics"
	"github.com/notargets/DGAverage/output"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func newSingleTet(t *testing.T) *mesh.PolyMesh {
	t.Helper()
	msh, err := mesh.NewTetMesh([]r3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1},
	}, [][]int{{0, 1, 2, 3}})
	require.NoError(t, err)
	return msh
}

func newBox(t *testing.T, n int) *mesh.PolyMesh {
	t.Helper()
	msh, err := mesh.NewBoxMesh(n, n, n, r3.Vec{}, r3.Vec{X: 1, Y: 2, Z: 1.5})
	require.NoError(t, err)
	return msh
}

func newFromRegistry[T field.Value[T], G field.Value[G]](t *testing.T, r *Registry[T, G],
	msh mesh.Mesh, dict config.Dict, w output.Writer) *Method[T, G] {
	t.Helper()
	m, err := New(r, Params{Name: "alpha", Time: "0", Dict: dict, Mesh: msh, Writer: w})
	require.NoError(t, err)
	return m
}

func TestNew_UnknownStrategy(t *testing.T) {
	msh := newSingleTet(t)
	m, err := New(ScalarMethods, Params{Dict: config.Dict{MethodKey: "nearest"}, Mesh: msh})
	assert.Nil(t, m)
	require.ErrorIs(t, err, ErrUnknownStrategy)
	t.Logf("%v", err)
	assert.True(t, strings.Contains(err.Error(), "[basic dual moment]"))

	_, err = New(VectorMethods, Params{Dict: config.Dict{}, Mesh: msh})
	assert.ErrorIs(t, err, config.ErrMissingKey)

	for _, name := range ScalarMethods.Names() {
		_, err = New(ScalarMethods, Params{Dict: config.Dict{MethodKey: name}})
		assert.ErrorIs(t, err, ErrNoMesh, name)
	}
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"basic", "dual", "moment"}, ScalarMethods.Names())
	assert.Equal(t, []string{"basic", "dual", "moment"}, VectorMethods.Names())

	r := NewRegistry[field.Scalar, field.Vector]()
	ctor := func(p Params) (*Method[field.Scalar, field.Vector], error) {
		return NewBasic(p, field.ScalarKind{})
	}
	require.NoError(t, r.Register("cellwise", ctor))
	assert.Error(t, r.Register("cellwise", ctor))
	_, ok := r.Lookup("cellwise")
	assert.True(t, ok)
	_, ok = r.Lookup("basic")
	assert.False(t, ok)
}

func TestNew_RegionLayout(t *testing.T) {
	msh := newBox(t, 2)
	nCells, nPoints := msh.NumCells(), msh.NumPoints()
	tests := []struct {
		name  string
		sizes []int
	}{
		{"basic", []int{nCells}},
		{"dual", []int{nCells, nPoints}},
		{"moment", []int{nCells, nCells, nCells, nCells}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFromRegistry(t, ScalarMethods, msh, config.Dict{MethodKey: tt.name}, nil)
			assert.Equal(t, tt.sizes, s.Data().Sizes())
			assert.Equal(t, tt.name, s.Type())
			assert.Equal(t, "alpha", s.Name())
			assert.Same(t, msh, s.Mesh().(*mesh.PolyMesh))
			for _, v := range s.Data().Data() {
				assert.Zero(t, v)
			}

			v := newFromRegistry(t, VectorMethods, msh, config.Dict{MethodKey: tt.name}, nil)
			assert.Equal(t, tt.sizes, v.Data().Sizes())
		})
	}
}

func TestNewMethod_Eps(t *testing.T) {
	msh := newSingleTet(t)
	m := newFromRegistry(t, ScalarMethods, msh, config.Dict{MethodKey: "basic"}, nil)
	assert.Equal(t, DefaultEps, m.Eps())

	m = newFromRegistry(t, ScalarMethods, msh, config.Dict{MethodKey: "basic", "eps": 1e-6}, nil)
	assert.Equal(t, 1e-6, m.Eps())

	_, err := New(ScalarMethods, Params{Dict: config.Dict{MethodKey: "basic", "eps": -1.0}, Mesh: msh})
	assert.Error(t, err)
	_, err = New(ScalarMethods, Params{Dict: config.Dict{MethodKey: "basic", "eps": "small"}, Mesh: msh})
	assert.Error(t, err)
}

func TestAverage_LeavesDataUnchanged(t *testing.T) {
	msh := newBox(t, 2)
	m := newFromRegistry(t, ScalarMethods, msh, config.Dict{MethodKey: "basic"}, nil)
	for c := 0; c < msh.NumCells(); c++ {
		m.Data().Set(0, c, field.Scalar(c))
	}
	before := m.Data().Clone()
	m.Average()
	assert.Equal(t, before.Data(), m.Data().Data())
}

func TestAverageWeighted_FloorsAtEps(t *testing.T) {
	msh := newSingleTet(t)
	col := metrics.NewCollector(&config.MetricsConfig{Enabled: true}, nil)
	p := Params{Name: "alpha", Dict: config.Dict{MethodKey: "dual"}, Mesh: msh, Metrics: col}

	m, err := New(ScalarMethods, p)
	require.NoError(t, err)
	p.Name = "weight"
	w, err := New(ScalarMethods, p)
	require.NoError(t, err)

	m.Data().Set(dualCells, 0, 2)
	w.Data().Set(dualCells, 0, 4)
	for i, pair := range [][2]float64{{1, 0}, {2, 1e-20}, {3, 2}, {4, 0.5}} {
		m.Data().Set(dualPoints, i, field.Scalar(pair[0]))
		w.Data().Set(dualPoints, i, field.Scalar(pair[1]))
	}
	require.NoError(t, m.AverageWeighted(w))

	assert.InDelta(t, 0.5, float64(m.Data().At(dualCells, 0)), 1e-15)
	expected := []float64{1e15, 2e15, 1.5, 8}
	for i, e := range expected {
		assert.InEpsilon(t, e, float64(m.Data().At(dualPoints, i)), 1e-12, "point %d", i)
	}
	// The weight is not modified
	assert.Equal(t, field.Scalar(0), w.Data().At(dualPoints, 0))

	exp := `
# HELP dgaverage_averaging_floored_weights_total Weight elements raised to the division floor
# TYPE dgaverage_averaging_floored_weights_total counter
dgaverage_averaging_floored_weights_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(col.Registry(), strings.NewReader(exp),
		"dgaverage_averaging_floored_weights_total"))
}

func TestAverageWeighted_ShapeMismatch(t *testing.T) {
	msh := newBox(t, 1)
	m := newFromRegistry(t, ScalarMethods, msh, config.Dict{MethodKey: "dual"}, nil)
	w := newFromRegistry(t, ScalarMethods, msh, config.Dict{MethodKey: "basic"}, nil)
	m.Data().Fill(3)
	w.Data().Fill(2)

	err := m.AverageWeighted(w)
	require.ErrorIs(t, err, ErrShapeMismatch)
	t.Logf("%v", err)
	for _, v := range m.Data().Data() {
		assert.Equal(t, field.Scalar(3), v)
	}

	err = m.AverageWeighted(nil)
	require.ErrorIs(t, err, ErrShapeMismatch)
	for _, v := range m.Data().Data() {
		assert.Equal(t, field.Scalar(3), v)
	}
}

// hostDivider performs the floored division on the host and counts calls
type hostDivider struct {
	calls int
}

func (h *hostDivider) FloorDivide(data []float64, stride int, weight []float64, eps float64) (int, error) {
	h.calls++
	floored := 0
	for i, w := range weight {
		if w < eps {
			w = eps
			floored++
		}
		for k := 0; k < stride; k++ {
			data[i*stride+k] /= w
		}
	}
	return floored, nil
}

func TestAverageWeighted_Divider(t *testing.T) {
	msh := newBox(t, 1)
	div := &hostDivider{}
	p := Params{Name: "U", Dict: config.Dict{MethodKey: "basic"}, Mesh: msh, Divider: div}
	m, err := New(VectorMethods, p)
	require.NoError(t, err)
	w, err := New(ScalarMethods, p)
	require.NoError(t, err)

	for c := 0; c < msh.NumCells(); c++ {
		m.Data().Set(0, c, field.NewVector(float64(c), 2*float64(c), 4))
		w.Data().Set(0, c, field.Scalar(c))
	}
	require.NoError(t, m.AverageWeighted(w))
	assert.Equal(t, 1, div.calls)

	got := m.Data().At(0, 0)
	assert.InEpsilon(t, 4e15, got.Z, 1e-12, "cell 0 has zero weight")
	for c := 1; c < msh.NumCells(); c++ {
		got := m.Data().At(0, c)
		assert.InDeltaSlicef(t, []float64{1, 2, 4 / float64(c)},
			[]float64{got.X, got.Y, got.Z}, 1e-14, "cell %d", c)
	}
}

func TestClone(t *testing.T) {
	msh := newBox(t, 2)
	m := newFromRegistry(t, ScalarMethods, msh, config.Dict{MethodKey: "basic"}, nil)
	for c := 0; c < msh.NumCells(); c++ {
		m.Data().Set(0, c, field.Scalar(msh.CellCenter(c).X))
	}
	m.Average()

	c := m.Clone()
	assert.Equal(t, m.Data().Data(), c.Data().Data())
	assert.Equal(t, m.Type(), c.Type())

	// Buffers and gradient state are independent after the copy
	c.Data().Fill(0)
	c.Average()
	assert.NotZero(t, float64(m.Data().At(0, 0)))
	nonZero := false
	for cell := 0; cell < msh.NumCells(); cell++ {
		tet := msh.CellTets(cell)[0]
		assert.Equal(t, field.Vector{}, c.InterpolateGrad(r3.Vec{}, tet))
		if m.InterpolateGrad(r3.Vec{}, tet) != (field.Vector{}) {
			nonZero = true
		}
	}
	assert.True(t, nonZero, "original keeps its gradients")
}

func TestAverageWeighted_RefreshesGradBeforeDividing(t *testing.T) {
	msh := newBox(t, 2)
	m := newFromRegistry(t, ScalarMethods, msh, config.Dict{MethodKey: "basic"}, nil)
	w := newFromRegistry(t, ScalarMethods, msh, config.Dict{MethodKey: "basic"}, nil)
	for c := 0; c < msh.NumCells(); c++ {
		m.Data().Set(0, c, field.Scalar(4*msh.CellCenter(c).X))
	}
	w.Data().Fill(2)

	ref := m.Clone()
	ref.Average()
	require.NoError(t, m.AverageWeighted(w))

	for c := 0; c < msh.NumCells(); c++ {
		tet := msh.CellTets(c)[0]
		assert.Equal(t, ref.InterpolateGrad(r3.Vec{}, tet), m.InterpolateGrad(r3.Vec{}, tet))
		assert.InDelta(t, 2*msh.CellCenter(c).X, float64(m.Data().At(0, c)), 1e-14)
	}
	assert.False(t, math.IsNaN(float64(m.Data().At(0, 0))))
}
