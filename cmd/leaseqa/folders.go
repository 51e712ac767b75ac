package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newFoldersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "Folder commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			folders, err := c.ListFolders(cmd.Context())
			if err != nil {
				return err
			}
			return writeOut(cmd, app, folders, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tDISPLAY NAME\tDESCRIPTION")
				for _, f := range folders {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, f.DisplayName, oneLine(f.Description, 60))
				}
				return tw.Flush()
			})
		},
	})
	return cmd
}
