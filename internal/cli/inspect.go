package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/tokamak/pkg/tessellate"
)

func (a *app) fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint FILE",
		Short: "Print shape and reactor fingerprints without building",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.load(a.newEngine(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, h := range r.Handles() {
				name, _ := r.NameOf(h)
				s, err := r.Shape(h)
				if err != nil {
					return err
				}
				fp, err := s.Fingerprint()
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s  %s\n", fp, name)
			}
			fp, err := r.Fingerprint()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s  reactor %s\n", fp, r.Name())
			return nil
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a reactor description without building it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.load(a.newEngine(), args[0])
			if err != nil {
				return err
			}
			v := r.Validate()
			w := cmd.OutOrStdout()
			for _, f := range v.Errors {
				fmt.Fprintln(w, f.Error())
			}
			for _, f := range v.Warnings {
				fmt.Fprintln(w, f.Error())
			}
			if !v.OK() {
				return fmt.Errorf("%d error(s) in %s", len(v.Errors), args[0])
			}
			fmt.Fprintf(w, "ok: %d shapes, %d warning(s)\n", r.Len(), len(v.Warnings))
			return nil
		},
	}
}

func (a *app) profileCmd() *cobra.Command {
	var (
		shapeName string
		svgPath   string
		pngPath   string
		size      int
	)
	cmd := &cobra.Command{
		Use:   "profile FILE",
		Short: "Render a shape's 2D profile as SVG or PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if svgPath == "" && pngPath == "" {
				return fmt.Errorf("profile: need --svg or --png")
			}
			r, err := a.load(a.newEngine(), args[0])
			if err != nil {
				return err
			}
			h, ok := r.Lookup(shapeName)
			if !ok {
				return fmt.Errorf("profile: no shape %q in %s", shapeName, args[0])
			}
			s, err := r.Shape(h)
			if err != nil {
				return err
			}
			opts := tessellate.PreviewOptions{Size: size, Samples: a.cfg.Kernel.CurveSamples}
			if svgPath != "" {
				if err := writeFile(svgPath, func(f *os.File) error {
					return tessellate.WriteSVG(f, s.Plan(), opts)
				}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), svgPath)
			}
			if pngPath != "" {
				if err := writeFile(pngPath, func(f *os.File) error {
					return tessellate.WritePNG(f, s.Plan(), opts)
				}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), pngPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&shapeName, "shape", "s", "", "Shape name")
	cmd.Flags().StringVar(&svgPath, "svg", "", "Write an SVG preview here")
	cmd.Flags().StringVar(&pngPath, "png", "", "Write a PNG preview here")
	cmd.Flags().IntVar(&size, "size", 512, "Longest side in pixels")
	cmd.MarkFlagRequired("shape")
	return cmd
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
