package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chazu/tokamak/pkg/store"
)

func (a *app) historyCmd() *cobra.Command {
	var (
		limit      int
		reactorArg string
		asJSON     bool
		shapes     bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Store.Disabled || a.cfg.Store.History == "" {
				return fmt.Errorf("history: build history is disabled")
			}
			h, err := store.OpenHistory(a.cfg.Store.History)
			if err != nil {
				return err
			}
			defer h.Close()

			builds, err := h.Recent(cmd.Context(), reactorArg, limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				b, _ := json.MarshalIndent(builds, "", "  ")
				fmt.Fprintln(w, string(b))
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tREACTOR\tFINGERPRINT\tSHAPES\tREBUILT\tTOOK\tSTATUS")
			for _, b := range builds {
				status := "ok"
				if !b.OK() {
					status = b.Error
				}
				fp := b.Fingerprint
				if len(fp) > 12 {
					fp = fp[:12]
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					b.ID, b.Reactor, fp, b.Shapes, b.Rebuilt, b.Took, status)
				if shapes {
					recs, err := h.Shapes(cmd.Context(), b.ID)
					if err != nil {
						return err
					}
					for _, s := range recs {
						fmt.Fprintf(tw, "\t  %s\t%s\t\t%v\t\t\n", s.Name, s.Fingerprint[:min(12, len(s.Fingerprint))], s.Rebuilt)
					}
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Max builds")
	cmd.Flags().StringVarP(&reactorArg, "reactor", "r", "", "Only builds of this reactor")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.Flags().BoolVar(&shapes, "shapes", false, "List the members of each build")
	return cmd
}
