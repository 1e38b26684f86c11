package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/example/srt-reserver/internal/domain/trip"
	"github.com/spf13/cobra"
)

func newStationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stations",
		Short: "List station names accepted for --from and --to",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			for _, s := range trip.Stations() {
				fmt.Fprintln(out, s)
			}

			aliases := trip.Aliases()
			short := make([]string, 0, len(aliases))
			for k := range aliases {
				short = append(short, k)
			}
			sort.Strings(short)
			fmt.Fprintln(out, "\nshort names:")
			for _, k := range short {
				fmt.Fprintf(out, "  %s = %s\n", k, aliases[k])
			}

			fmt.Fprintln(out, "\nquick pick:")
			for _, row := range trip.QuickPick {
				fmt.Fprintf(out, "  %s\n", strings.Join(row, "  "))
			}
		},
	}
}
