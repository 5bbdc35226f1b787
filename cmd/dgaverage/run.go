package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/notargets/DGAverage/averaging"
	"github.com/notargets/DGAverage/config"
	"github.com/notargets/DGAverage/device"
	"github.com/notargets/DGAverage/field"
	"github.com/notargets/DGAverage/mesh"
	"github.com/notargets/DGAverage/metrics"
	"github.com/notargets/DGAverage/output"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

var runFlags struct {
	method string
	format string
	output string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Deposit a Gaussian pulse, average it and write the derived fields",
	Long: `Integrate a Gaussian pulse centred in the mesh over every cell into the
configured averaging method, divide by the deposited weight and write
<name>:cellValue, <name>:cellGrad, <name>:pointValue and <name>:pointGrad.

Examples:
  # Average with the configured method
  dgaverage run --config average.yaml

  # Try the moment method, writing compressed files
  dgaverage run --method moment --format zstd --output results/moment`,
	RunE: runAverage,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.method, "method", "m", "", "override the averaging method")
	runCmd.Flags().StringVarP(&runFlags.format, "format", "f", "", "override the output format (text, zstd, sqlite)")
	runCmd.Flags().StringVarP(&runFlags.output, "output", "o", "", "override the output directory")
}

func runAverage(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if runFlags.method != "" {
		cfg.Averaging[averaging.MethodKey] = runFlags.method
	}
	if runFlags.format != "" {
		cfg.Output.Format = runFlags.format
	}
	if runFlags.output != "" {
		cfg.Output.Dir = runFlags.output
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== Tetrahedral Field Averaging ===\n")
	msh, err := loadMesh(cmd, cfg.Mesh)
	if err != nil {
		return fmt.Errorf("failed to load mesh: %w", err)
	}
	props := mesh.GetMeshProperties(msh)
	fmt.Fprintf(out, "Mesh: %d cells, %d points, %d faces, %d tets\n",
		props.NumCells, props.NumPoints, props.NumFaces, props.NumTets)

	writer, closeWriter, err := newWriter(cmd, cfg.Output)
	if err != nil {
		return fmt.Errorf("failed to create output writer: %w", err)
	}
	defer closeWriter()

	params := averaging.Params{
		Name:   cfg.Field.Name,
		Time:   cfg.Output.Time,
		Dict:   cfg.Averaging,
		Mesh:   msh,
		Writer: writer,
		Logger: slog.Default(),
	}
	if cfg.Metrics.Enabled {
		params.Metrics = metrics.NewCollector(&cfg.Metrics, nil)
	}
	if cfg.Device.Enabled {
		dev, err := device.NewDevice(cfg.Device.Props)
		if err != nil {
			return err
		}
		defer dev.Free()
		div := device.NewDivider(dev)
		defer div.Free()
		fmt.Fprintf(out, "Created %s Device\n", div.Mode())
		params.Divider = div
	}

	pulse := newPulse(cfg.Field, msh)
	switch cfg.Field.Type {
	case "vector":
		err = average(cmd, averaging.VectorMethods, params, func(x r3.Vec) field.Vector {
			return field.NewVector(pulse(x), x.Y*pulse(x), 0)
		})
	default:
		err = average(cmd, averaging.ScalarMethods, params, func(x r3.Vec) field.Scalar {
			return field.Scalar(pulse(x))
		})
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Fields written to %s (%s)\n", cfg.Output.Dir, cfg.Output.Format)
	return nil
}

func loadMesh(cmd *cobra.Command, cfg config.MeshConfig) (*mesh.PolyMesh, error) {
	if cfg.File != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Loading mesh: %s\n", cfg.File)
		return mesh.ReadMeshFile(cfg.File)
	}
	b := cfg.Box
	fmt.Fprintf(cmd.OutOrStdout(), "Generating %dx%dx%d box mesh\n", b.N[0], b.N[1], b.N[2])
	return mesh.NewBoxMesh(b.N[0], b.N[1], b.N[2],
		r3.Vec{X: b.Min[0], Y: b.Min[1], Z: b.Min[2]},
		r3.Vec{X: b.Max[0], Y: b.Max[1], Z: b.Max[2]})
}

func newWriter(cmd *cobra.Command, cfg config.OutputConfig) (output.Writer, func(), error) {
	switch cfg.Format {
	case "sqlite":
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, nil, err
		}
		w, err := output.NewSQLiteWriter(filepath.Join(cfg.Dir, "fields.db"))
		if err != nil {
			return nil, nil, err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run ID: %s\n", w.RunID())
		return w, func() { w.Close() }, nil
	default:
		w, err := output.NewDirWriter(cfg.Dir, cfg.Format == "zstd", cfg.Level)
		if err != nil {
			return nil, nil, err
		}
		return w, func() {}, nil
	}
}

// newPulse returns a Gaussian pulse centred in the mesh bounding box
func newPulse(cfg config.FieldConfig, msh mesh.Mesh) func(x r3.Vec) float64 {
	lo, hi := msh.Point(0), msh.Point(0)
	for p := 1; p < msh.NumPoints(); p++ {
		x := msh.Point(p)
		lo = r3.Vec{X: math.Min(lo.X, x.X), Y: math.Min(lo.Y, x.Y), Z: math.Min(lo.Z, x.Z)}
		hi = r3.Vec{X: math.Max(hi.X, x.X), Y: math.Max(hi.Y, x.Y), Z: math.Max(hi.Z, x.Z)}
	}
	centre := r3.Scale(0.5, r3.Add(lo, hi))
	a, w := cfg.Amplitude, cfg.Width
	return func(x r3.Vec) float64 {
		return a * math.Exp(-r3.Norm2(r3.Sub(x, centre))/(w*w))
	}
}

// average deposits f into a method and a matching weight, divides by the
// weight, refreshes the gradients of the divided data and writes the derived
// fields
func average[T field.Value[T], G field.Value[G]](cmd *cobra.Command, r *averaging.Registry[T, G],
	p averaging.Params, f func(x r3.Vec) T) error {
	m, err := averaging.New(r, p)
	if err != nil {
		return err
	}
	wp := p
	wp.Name = p.Name + "Weight"
	weight, err := averaging.New(averaging.ScalarMethods, wp)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Averaging method: %s, %d regions\n", m.Type(), m.Data().NumRegions())

	deposit(m, weight, f)
	if err := m.AverageWeighted(weight); err != nil {
		return err
	}
	m.Average()
	if !m.Write() {
		return fmt.Errorf("failed to write fields of %s", m.Name())
	}
	return nil
}

// deposit integrates f and its first moments about the cell centre over
// every cell, four quadrature points per tetrahedron, into the regions the
// method reads. Cell regions are weighted by the cell volume; the point
// region of the dual method holds point samples with unit weight.
func deposit[T field.Value[T], G field.Value[G]](m *averaging.Method[T, G],
	weight *averaging.Method[field.Scalar, field.Vector], f func(x r3.Vec) T) {
	msh := m.Mesh()
	data := m.Data()
	weight.Data().Fill(1)
	for c := 0; c < msh.NumCells(); c++ {
		cc := msh.CellCenter(c)
		var (
			sum   T
			first [3]T
		)
		for _, tet := range msh.CellTets(c) {
			t := msh.Tet(tet)
			w := t.Volume() / 4
			for _, x := range t.QuadraturePoints() {
				u := f(x).Scale(w)
				d := r3.Sub(x, cc)
				sum = sum.Add(u)
				first[0] = first[0].Add(u.Scale(d.X))
				first[1] = first[1].Add(u.Scale(d.Y))
				first[2] = first[2].Add(u.Scale(d.Z))
			}
		}
		vol := field.Scalar(msh.CellVolume(c))
		data.Set(0, c, sum)
		weight.Data().Set(0, c, vol)
		if m.Type() == "moment" {
			for k := range first {
				data.Set(averaging.MomentX+k, c, first[k])
				weight.Data().Set(averaging.MomentX+k, c, vol)
			}
		}
	}
	if m.Type() == "dual" {
		for pt := 0; pt < msh.NumPoints(); pt++ {
			data.Set(1, pt, f(msh.Point(pt)))
		}
	}
}
