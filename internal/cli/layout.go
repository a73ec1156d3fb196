package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"cogscreen-go/internal/config"
	"cogscreen-go/internal/tmt"

	"github.com/spf13/cobra"
)

func newLayoutCmd(projectRoot *string) *cobra.Command {
	var (
		seed   int64
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "layout <variant>",
		Short: "Generate a trail making layout and print the node positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := loadConfig(*projectRoot)
			if err != nil {
				return err
			}
			catalog, err := tmt.LoadCatalog(config.Conf.TMT.VariantsFile)
			if err != nil {
				return err
			}
			v, err := catalog.Get(args[0])
			if err != nil {
				return err
			}
			engine, err := tmt.New(log, v, tmt.Options{Seed: seed})
			if err != nil {
				return err
			}
			defer engine.Close()

			snap := engine.Snapshot()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "%s\t%gx%g\tradius %g\n", v.Title, v.Canvas.Width, v.Canvas.Height, v.Radius)
			for _, n := range snap.Nodes {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%.1f\t%.1f\n", n.ID, n.Label, n.X, n.Y)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "layout seed (0 draws a random one)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}
