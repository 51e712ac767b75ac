package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the site overview (admin account)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := c.StatsOverview(cmd.Context())
			if err != nil {
				return err
			}
			return writeOut(cmd, app, stats, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "Questions\t%d\n", stats.TotalPosts)
				fmt.Fprintf(tw, "Unanswered\t%d\n", stats.UnansweredPosts)
				fmt.Fprintf(tw, "Resolved\t%d\n", stats.ResolvedPosts)
				fmt.Fprintf(tw, "Lawyer responses\t%d\n", stats.LawyerResponses)
				fmt.Fprintf(tw, "Users\t%d\n", stats.TotalUsers)
				return tw.Flush()
			})
		},
	}
}
