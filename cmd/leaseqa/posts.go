package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/imeyer/leaseqa/pkg/board"
	"github.com/imeyer/leaseqa/pkg/leaseqa"
	"github.com/imeyer/leaseqa/pkg/thread"
)

func newPostsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Question commands",
	}
	cmd.AddCommand(newPostsListCmd(app))
	cmd.AddCommand(newPostsShowCmd(app))
	return cmd
}

func newPostsListCmd(app *App) *cobra.Command {
	var f board.Filter
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List questions grouped by recency",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && board.ParseStatus(status) == board.StatusAll && !strings.EqualFold(status, "all") {
				return fmt.Errorf("unknown status %q: use all, open or resolved", status)
			}
			if f.Scenario != "" {
				if _, ok := board.LookupScenario(f.Scenario); !ok {
					return fmt.Errorf("unknown scenario %q", f.Scenario)
				}
			}
			f.Status = board.ParseStatus(status)

			c, err := app.client()
			if err != nil {
				return err
			}
			posts, err := c.ListPosts(cmd.Context())
			if err != nil {
				return err
			}

			view := board.NewView(posts, f, board.Options{Now: time.Now()})
			return writeOut(cmd, app, view.Groups, func(w io.Writer) error {
				return printGroups(w, view)
			})
		},
	}

	cmd.Flags().StringVarP(&f.Query, "query", "q", "", "Search summaries and details")
	cmd.Flags().StringVar(&f.Folder, "folder", "", "Only questions in this folder")
	cmd.Flags().StringVar(&f.Scenario, "scenario", "", "Only questions matching a common situation (deposit, repairs, eviction, rent, lease-break, roommates)")
	cmd.Flags().StringVar(&status, "status", "", "all, open or resolved")
	return cmd
}

func printGroups(w io.Writer, view board.View) error {
	if view.Empty() {
		fmt.Fprintln(w, "No questions match.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, g := range view.Groups {
		fmt.Fprintf(tw, "%s (%d)\n", g.Label, len(g.Posts))
		for _, p := range g.Posts {
			flags := ""
			if p.IsPinned {
				flags += "pinned "
			}
			if p.IsResolved {
				flags += "resolved"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", p.ID, oneLine(p.Summary, 60), strings.Join(p.Folders, ","), strings.TrimSpace(flags))
		}
	}
	fmt.Fprintf(tw, "\n%d of %d questions\n", view.Matched, view.Total)
	return tw.Flush()
}

func newPostsShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a question with its answers and discussion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			detail, err := c.GetPost(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeOut(cmd, app, detail, func(w io.Writer) error {
				printPost(w, detail)
				return nil
			})
		},
	}
	return cmd
}

func printPost(w io.Writer, d *leaseqa.PostDetail) {
	fmt.Fprintf(w, "%s\n", d.Summary)
	fmt.Fprintf(w, "id %s · %s · urgency %s · %d views", d.ID, d.CreatedAt.Format(time.DateOnly), d.Urgency, d.ViewCount)
	if d.IsResolved {
		fmt.Fprint(w, " · resolved")
	}
	fmt.Fprintln(w)
	if len(d.Folders) > 0 {
		fmt.Fprintf(w, "folders: %s\n", strings.Join(d.Folders, ", "))
	}
	fmt.Fprintf(w, "\n%s\n", board.PlainText(d.Details))

	fmt.Fprintf(w, "\nAnswers (%d)\n", len(d.Answers))
	for _, a := range d.Answers {
		fmt.Fprintf(w, "- [%s] %s\n", a.AnswerType, oneLine(board.PlainText(a.Content), 200))
	}

	roots := thread.Build(d.Discussions)
	fmt.Fprintf(w, "\nDiscussion (%d)\n", thread.Count(roots))
	for _, row := range thread.Rows(roots) {
		fmt.Fprintf(w, "%s- %s\n", strings.Repeat("  ", row.Depth), oneLine(board.PlainText(row.Discussion.Content), 200))
	}
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
