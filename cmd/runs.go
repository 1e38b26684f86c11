package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/example/srt-reserver/internal/runs"
	"github.com/spf13/cobra"
)

func newRunsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded reservation runs",
	}
	cmd.AddCommand(newRunsListCmd(g))
	return cmd
}

func newRunsListCmd(g *globalFlags) *cobra.Command {
	var limit int

	c := &cobra.Command{
		Use:   "list",
		Short: "List the most recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			svc, err := openServices(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer svc.Close()

			list, err := runs.NewRepo(svc.db).ListRecent(ctx, limit)
			if err != nil {
				return err
			}
			return writeRuns(cmd.OutOrStdout(), list, time.Now())
		},
	}
	c.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return c
}

func writeRuns(out io.Writer, list []runs.Run, now time.Time) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTRIP\tDATE\tSTARTED BY\tOUTCOME\tREFRESHES\tDURATION")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s -> %s\t%s %02d:00\t%s\t%s\t%d\t%s\n",
			r.ID, r.Departure, r.Arrival, r.TravelDate.Format("2006-01-02"), r.Hour,
			r.StartedBy, r.Outcome(), r.RefreshCount, r.Duration(now))
	}
	return tw.Flush()
}
