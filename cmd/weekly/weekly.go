package weekly

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mhews/mhews/internal/app"
	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/risk"
)

// Command returns a cobra command that prints the seven day risk summary.
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Print the weekly risk summary",
		Long:  "Print the average risk for each of the last seven days, oldest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.BuildReports(settings)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			days, err := svc.Weekly.Weekly(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(days)
			}
			return printTable(cmd.OutOrStdout(), days)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}

func printTable(out io.Writer, days []risk.DaySummary) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tDATE\tRISK\tLABEL\tREADINGS")
	for _, d := range days {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%d\n", d.Name, d.Date, d.Risk, d.Label, d.Count)
	}
	return w.Flush()
}
