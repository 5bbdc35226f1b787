package averaging

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/notargets/DGAverage/config"
	"github.com/notargets/DGAverage/field"
	"github.com/notargets/DGAverage/mesh"
	"github.com/notargets/DGAverage/metrics"
	"github.com/notargets/DGAverage/output"
	"github.com/notargets/DGAverage/partitions"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultEps floors weights in AverageWeighted unless the dictionary sets eps
const DefaultEps = 1e-15

var ErrShapeMismatch = field.ErrShapeMismatch

// ErrNoMesh is returned when a method is built without a mesh
var ErrNoMesh = errors.New("averaging method requires a mesh")

// Params carries what every averaging method is built from. Mesh and Dict
// are borrowed; they must outlive the method.
type Params struct {
	Name string // field name, prefixed to derived field names
	Time string // time name written with derived fields
	Dict config.Dict
	Mesh mesh.Mesh

	Writer  output.Writer
	Logger  *slog.Logger
	Metrics *metrics.Collector
	// Divider, when set, performs the floored division of AverageWeighted
	Divider Divider
}

// Divider divides flattened data, stride values per weight element, by the
// weights floored at eps, returning the number of floored weights
type Divider interface {
	FloorDivide(data []float64, stride int, weight []float64, eps float64) (int, error)
}

// Strategy interpolates a method's raw region data into a value and a
// gradient anywhere inside a tetrahedron of the cell decomposition.
// Interpolate and InterpolateGrad must be deterministic and must not modify
// the method.
type Strategy[T field.Value[T], G field.Value[G]] interface {
	// UpdateGrad refreshes any gradient state derived from the region data
	UpdateGrad()
	Interpolate(p r3.Vec, tet mesh.TetIndices) T
	InterpolateGrad(p r3.Vec, tet mesh.TetIndices) G
	// Clone copies the strategy state, bound to the method copy m
	Clone(m *Method[T, G]) Strategy[T, G]
}

// Method is an averaged field: region buffers of T filled by an external
// deposition step, and a strategy turning them into values and gradients
type Method[T field.Value[T], G field.Value[G]] struct {
	name     string
	time     string
	typeName string
	dict     config.Dict
	mesh     mesh.Mesh
	kind     field.Kind[T, G]
	eps      float64
	workers  int

	// partition selects how cells are sharded across workers
	partition partitions.PartitionStrategy

	writer  output.Writer
	logger  *slog.Logger
	metrics *metrics.Collector
	divider Divider

	data     *field.RegionStore[T]
	strategy Strategy[T, G]
	plan     *shardPlan
}

// StrategyFactory builds the strategy of a method once its buffers are
// allocated. The strategy may keep m and read its data and mesh.
type StrategyFactory[T field.Value[T], G field.Value[G]] func(m *Method[T, G]) (Strategy[T, G], error)

// NewMethod allocates one zeroed buffer per entry of sizes and attaches the
// strategy built by newStrategy
func NewMethod[T field.Value[T], G field.Value[G]](p Params, typeName string, kind field.Kind[T, G],
	sizes []int, newStrategy StrategyFactory[T, G]) (*Method[T, G], error) {
	if p.Mesh == nil {
		return nil, ErrNoMesh
	}
	if newStrategy == nil {
		return nil, fmt.Errorf("averaging method %q has no strategy", typeName)
	}
	data, err := field.NewRegionStore[T](sizes)
	if err != nil {
		return nil, err
	}
	eps, err := p.Dict.LookupFloat("eps", DefaultEps)
	if err != nil {
		return nil, err
	}
	if eps <= 0 {
		return nil, fmt.Errorf("eps must be positive, got %g", eps)
	}
	workers, err := p.Dict.LookupInt("workers", runtime.GOMAXPROCS(0))
	if err != nil {
		return nil, err
	}
	strategy, err := partitions.ParseStrategy(p.Dict.LookupOrDefault("partition", "block"))
	if err != nil {
		return nil, err
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := p.Name
	if name == "" {
		name = "averaged"
	}
	m := &Method[T, G]{
		name:      name,
		time:      p.Time,
		typeName:  typeName,
		dict:      p.Dict,
		mesh:      p.Mesh,
		kind:      kind,
		eps:       eps,
		workers:   workers,
		partition: strategy,
		writer:    p.Writer,
		logger:    logger,
		metrics:   p.Metrics,
		divider:   p.Divider,
		data:      data,
	}
	if m.strategy, err = newStrategy(m); err != nil {
		return nil, err
	}
	if m.strategy == nil {
		return nil, fmt.Errorf("averaging method %q has no strategy", typeName)
	}
	return m, nil
}

// Clone deep copies the region buffers and strategy state. The mesh,
// dictionary, writer and collector are shared.
func (m *Method[T, G]) Clone() *Method[T, G] {
	c := *m
	c.data = m.data.Clone()
	if m.strategy != nil {
		c.strategy = m.strategy.Clone(&c)
	}
	return &c
}

func (m *Method[T, G]) Name() string                { return m.name }
func (m *Method[T, G]) Type() string                { return m.typeName }
func (m *Method[T, G]) Dict() config.Dict           { return m.dict }
func (m *Method[T, G]) Mesh() mesh.Mesh             { return m.mesh }
func (m *Method[T, G]) Kind() field.Kind[T, G]      { return m.kind }
func (m *Method[T, G]) Eps() float64                { return m.eps }
func (m *Method[T, G]) Data() *field.RegionStore[T] { return m.data }

// SetTime changes the time name used by subsequent writes
func (m *Method[T, G]) SetTime(time string) { m.time = time }

func (m *Method[T, G]) Interpolate(p r3.Vec, tet mesh.TetIndices) T {
	return m.strategy.Interpolate(p, tet)
}

func (m *Method[T, G]) InterpolateGrad(p r3.Vec, tet mesh.TetIndices) G {
	return m.strategy.InterpolateGrad(p, tet)
}

// Average finalises deposited data by refreshing the gradients
func (m *Method[T, G]) Average() {
	m.strategy.UpdateGrad()
	m.metrics.RecordAverage(m.typeName, false, 0)
}

// AverageWeighted refreshes the gradients and then divides every buffer
// element by the matching weight element, floored at Eps. Gradients are
// refreshed from the undivided data. A weight with a different layout is
// rejected before anything is modified.
func (m *Method[T, G]) AverageWeighted(weight *Method[field.Scalar, field.Vector]) error {
	if weight == nil {
		return fmt.Errorf("%w: %s has no weight", ErrShapeMismatch, m.name)
	}
	if !field.SameLayout(m.data.Sizes(), weight.data.Sizes()) {
		return fmt.Errorf("%w: %s %v, weight %s %v", ErrShapeMismatch,
			m.name, m.data.Sizes(), weight.name, weight.data.Sizes())
	}
	m.strategy.UpdateGrad()
	floored, err := m.divide(weight.data)
	if err != nil {
		return fmt.Errorf("failed to divide %s by weight %s: %w", m.name, weight.name, err)
	}
	if floored > 0 {
		m.logger.Debug("floored weights", "field", m.name, "count", floored, "eps", m.eps)
	}
	m.metrics.RecordAverage(m.typeName, true, floored)
	return nil
}

func (m *Method[T, G]) divide(weight *field.RegionStore[field.Scalar]) (int, error) {
	if m.divider == nil {
		return m.data.DivideFloored(weight, m.eps)
	}
	nc := m.kind.Components()
	values := m.data.Data()
	flat := make([]float64, len(values)*nc)
	for i, v := range values {
		m.kind.Flatten(v, flat[i*nc:])
	}
	w := make([]float64, weight.Len())
	for i, s := range weight.Data() {
		w[i] = float64(s)
	}
	floored, err := m.divider.FloorDivide(flat, nc, w, m.eps)
	if err != nil {
		return 0, err
	}
	for i := range values {
		values[i] = m.kind.Unflatten(flat[i*nc:])
	}
	return floored, nil
}
