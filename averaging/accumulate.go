package averaging

import (
	"fmt"
	"sync"
	"time"

	"github.com/notargets/DGAverage/field"
	"github.com/notargets/DGAverage/mesh"
	"github.com/notargets/DGAverage/output"
	"github.com/notargets/DGAverage/partitions"
)

// Derived holds the cell and point values and gradients of one
// accumulation pass
type Derived[T field.Value[T], G field.Value[G]] struct {
	CellValue  []T
	CellGrad   []G
	PointValue []T
	PointGrad  []G

	// PointVolume is the tetrahedron volume accumulated at each point
	PointVolume []float64
	// DegeneratePoints lists points no tetrahedron touched; their value and
	// gradient are zero
	DegeneratePoints []int
	Tets             int
}

// shardPlan is the cell partitioning of a mesh and the partition-local
// numbering of the points each partition touches
type shardPlan struct {
	layout    *partitions.PartitionLayout
	connector *partitions.PointConnector
	numTets   int
}

func newShardPlan(msh mesh.Mesh, workers int, strategy partitions.PartitionStrategy) (*shardPlan, error) {
	layout, err := partitions.NewCellLayout(msh.NumCells(), workers, strategy)
	if err != nil {
		return nil, err
	}
	numTets := 0
	touches := func(cell int) []int {
		tets := msh.CellTets(cell)
		numTets += len(tets)
		pts := make([]int, 0, 3*len(tets))
		for _, tet := range tets {
			p := msh.TetPoints(tet)
			pts = append(pts, p[0], p[1], p[2])
		}
		return pts
	}
	connector, err := partitions.NewPointConnector(layout, msh.NumPoints(), touches)
	if err != nil {
		return nil, err
	}
	if err := connector.Verify(3 * numTets); err != nil {
		return nil, err
	}
	return &shardPlan{layout: layout, connector: connector, numTets: numTets}, nil
}

// Accumulate visits every tetrahedron of every cell once. Each tetrahedron
// adds its volume weighted value and gradient, interpolated at the cell
// centre, to its cell, and, interpolated at each of its three face corners,
// to those points. Cell sums are divided by the cell volume and point sums
// by the volume accumulated at the point.
func (m *Method[T, G]) Accumulate() (*Derived[T, G], error) {
	start := time.Now()
	if m.plan == nil {
		plan, err := newShardPlan(m.mesh, m.workers, m.partition)
		if err != nil {
			return nil, fmt.Errorf("failed to partition mesh: %w", err)
		}
		m.plan = plan
	}
	var (
		msh     = m.mesh
		nCells  = msh.NumCells()
		nPoints = msh.NumPoints()
		nc      = m.kind.Components()
		ng      = m.kind.GradComponents()
		stride  = 1 + nc + ng // volume, value, gradient
		plan    = m.plan
	)
	d := &Derived[T, G]{
		CellValue:   make([]T, nCells),
		CellGrad:    make([]G, nCells),
		PointValue:  make([]T, nPoints),
		PointGrad:   make([]G, nPoints),
		PointVolume: make([]float64, nPoints),
		Tets:        plan.numTets,
	}

	local := partitions.NewPartitionedArray(plan.connector.LocalPointCounts(), stride)
	var wg sync.WaitGroup
	for p := range plan.layout.Partitions {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			m.accumulatePartition(d, plan.layout.Partitions[p].Cells,
				plan.connector.PickIndices[p], local.GetPartitionData(p), stride)
		}(p)
	}
	wg.Wait()

	for c := 0; c < nCells; c++ {
		inv := 1 / msh.CellVolume(c)
		d.CellValue[c] = d.CellValue[c].Scale(inv)
		d.CellGrad[c] = d.CellGrad[c].Scale(inv)
	}

	global := make([]float64, nPoints*stride)
	if err := plan.connector.Place(local, global); err != nil {
		return nil, err
	}
	for p := 0; p < nPoints; p++ {
		row := global[p*stride : (p+1)*stride]
		vol := row[0]
		d.PointVolume[p] = vol
		if vol == 0 {
			d.DegeneratePoints = append(d.DegeneratePoints, p)
			continue
		}
		d.PointValue[p] = m.kind.Unflatten(row[1:]).Scale(1 / vol)
		d.PointGrad[p] = m.kind.UnflattenGrad(row[1+nc:]).Scale(1 / vol)
	}

	if n := len(d.DegeneratePoints); n > 0 {
		m.logger.Warn("points with zero accumulated volume left at zero",
			"field", m.name, "count", n, "first", d.DegeneratePoints[0])
	}
	m.metrics.RecordPass(m.typeName, d.Tets, len(d.DegeneratePoints), time.Since(start))
	return d, nil
}

// accumulatePartition sums into the cells of one partition directly and
// into the partition's private point rows
func (m *Method[T, G]) accumulatePartition(d *Derived[T, G], cells, picks []int, rows []float64, stride int) {
	var (
		msh = m.mesh
		nc  = m.kind.Components()
		buf = make([]float64, stride-1)
		k   = 0
	)
	for _, c := range cells {
		cc := msh.CellCenter(c)
		for _, tet := range msh.CellTets(c) {
			v := msh.TetVolume(tet)
			d.CellValue[c] = d.CellValue[c].Add(m.Interpolate(cc, tet).Scale(v))
			d.CellGrad[c] = d.CellGrad[c].Add(m.InterpolateGrad(cc, tet).Scale(v))

			for _, pt := range msh.TetPoints(tet) {
				x := msh.Point(pt)
				m.kind.Flatten(m.Interpolate(x, tet), buf)
				m.kind.FlattenGrad(m.InterpolateGrad(x, tet), buf[nc:])
				row := rows[picks[k]*stride : (picks[k]+1)*stride]
				row[0] += v
				for i, b := range buf {
					row[1+i] += v * b
				}
				k++
			}
		}
	}
}

// Fields converts the derived values into output fields named
// <name>:cellValue, <name>:cellGrad, <name>:pointValue and <name>:pointGrad,
// in that order
func (d *Derived[T, G]) Fields(kind field.Kind[T, G], name, timeName string) []*output.Field {
	values := func(suffix string, assoc output.Association, n int, typ string, comps int,
		fill func(i int, dst []float64)) *output.Field {
		f := &output.Field{
			Name:        name + ":" + suffix,
			Time:        timeName,
			Association: assoc,
			Type:        typ,
			Components:  comps,
			Values:      make([]float64, n*comps),
		}
		for i := 0; i < n; i++ {
			fill(i, f.Values[i*comps:])
		}
		return f
	}
	nc, ng := kind.Components(), kind.GradComponents()
	return []*output.Field{
		values("cellValue", output.CellAssociation, len(d.CellValue), kind.Name(), nc,
			func(i int, dst []float64) { kind.Flatten(d.CellValue[i], dst) }),
		values("cellGrad", output.CellAssociation, len(d.CellGrad), kind.GradName(), ng,
			func(i int, dst []float64) { kind.FlattenGrad(d.CellGrad[i], dst) }),
		values("pointValue", output.PointAssociation, len(d.PointValue), kind.Name(), nc,
			func(i int, dst []float64) { kind.Flatten(d.PointValue[i], dst) }),
		values("pointGrad", output.PointAssociation, len(d.PointGrad), kind.GradName(), ng,
			func(i int, dst []float64) { kind.FlattenGrad(d.PointGrad[i], dst) }),
	}
}

// Write runs an accumulation pass and writes the four derived fields. The
// first failure stops the remaining writes; fields already written stay.
func (m *Method[T, G]) Write() bool {
	if m.writer == nil {
		m.logger.Error("no output writer configured", "field", m.name)
		return false
	}
	d, err := m.Accumulate()
	if err != nil {
		m.logger.Error("accumulation failed", "field", m.name, "error", err)
		return false
	}
	for _, f := range d.Fields(m.kind, m.name, m.time) {
		if err := m.writer.WriteField(f); err != nil {
			m.logger.Error("failed to write field", "field", f.Name, "time", f.Time, "error", err)
			m.metrics.RecordWrite(m.typeName, false)
			return false
		}
		m.metrics.RecordWrite(m.typeName, true)
	}
	return true
}
