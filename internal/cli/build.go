package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/tokamak/pkg/parametric"
)

func (a *app) buildCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "build FILE",
		Short: "Build a reactor description and export meshes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.load(a.newEngine(), args[0])
			if err != nil {
				return err
			}
			return a.produce(cmd.Context(), cmd.OutOrStdout(), r, a.outDir(out))
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory (default from config)")
	cmd.Flags().BoolVar(&a.volumes, "volumes", false, "Print each shape's volume")
	return cmd
}

func (a *app) exampleCmd() *cobra.Command {
	var (
		out    string
		sector float64
	)
	cmd := &cobra.Command{
		Use:   "example",
		Short: "Build the default segmented blanket reactor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := parametric.DefaultSegmentedBlanketReactor()
			if cmd.Flags().Changed("sector") {
				p.RotationAngle = sector
			}
			r, err := p.Build(a.kernel, a.reactorOptions()...)
			if err != nil {
				return fmt.Errorf("example: %w", err)
			}
			return a.produce(cmd.Context(), cmd.OutOrStdout(), r, a.outDir(out))
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory (default from config)")
	cmd.Flags().Float64Var(&sector, "sector", 360, "Build only this many degrees of the torus")
	cmd.Flags().BoolVar(&a.volumes, "volumes", false, "Print each shape's volume")
	return cmd
}

func (a *app) outDir(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Output.Dir
}
