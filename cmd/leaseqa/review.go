package main

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imeyer/leaseqa/pkg/api"
	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

func newReviewCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "AI lease review commands",
	}
	cmd.AddCommand(newReviewSubmitCmd(app))
	return cmd
}

func newReviewSubmitCmd(app *App) *cobra.Command {
	var text, title string

	cmd := &cobra.Command{
		Use:   "submit [file]",
		Short: "Submit a lease file, or --text, for review",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := api.ReviewInput{Title: title, Text: strings.TrimSpace(text)}

			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in.File = &api.File{
					Name:        filepath.Base(args[0]),
					ContentType: mime.TypeByExtension(filepath.Ext(args[0])),
					Content:     f,
				}
			}
			if in.File == nil && in.Text == "" {
				return errors.New("give a lease file or --text")
			}

			c, err := app.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			review, err := c.CreateReview(cmd.Context(), in)
			if err != nil {
				return err
			}
			return writeOut(cmd, app, review, func(w io.Writer) error {
				printReview(w, review)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Lease text to review instead of a file")
	cmd.Flags().StringVar(&title, "title", "", "Title for the review")
	return cmd
}

func printReview(w io.Writer, r *leaseqa.Review) {
	fmt.Fprintf(w, "Review %s\n\n%s\n", r.ID, r.Analysis.Summary)
	for _, level := range []struct {
		name  string
		items []string
	}{
		{"High risk", r.Analysis.HighRisk},
		{"Medium risk", r.Analysis.MediumRisk},
		{"Low risk", r.Analysis.LowRisk},
		{"Recommendations", r.Analysis.Recommendations},
	} {
		if len(level.items) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", level.name)
		for _, it := range level.items {
			fmt.Fprintf(w, "- %s\n", it)
		}
	}
}
