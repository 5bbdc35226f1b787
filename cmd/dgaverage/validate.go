package main

import (
	"fmt"

	"github.com/notargets/DGAverage/averaging"
	"github.com/notargets/DGAverage/mesh"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration, mesh and averaging method",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	msh, err := loadMesh(cmd, cfg.Mesh)
	if err != nil {
		return fmt.Errorf("failed to load mesh: %w", err)
	}
	props := mesh.GetMeshProperties(msh)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Mesh: %d cells, %d points, %d faces, %d tets\n",
		props.NumCells, props.NumPoints, props.NumFaces, props.NumTets)

	p := averaging.Params{Name: cfg.Field.Name, Dict: cfg.Averaging, Mesh: msh}
	var (
		kind    string
		regions []int
	)
	if cfg.Field.Type == "vector" {
		m, err := averaging.New(averaging.VectorMethods, p)
		if err != nil {
			return err
		}
		kind, regions = m.Type(), m.Data().Sizes()
	} else {
		m, err := averaging.New(averaging.ScalarMethods, p)
		if err != nil {
			return err
		}
		kind, regions = m.Type(), m.Data().Sizes()
	}
	fmt.Fprintf(out, "Averaging method: %s (%s), regions %v\n", kind, cfg.Field.Type, regions)
	fmt.Fprintf(out, "Output: %s (%s), time %s\n", cfg.Output.Dir, cfg.Output.Format, cfg.Output.Time)
	return nil
}
