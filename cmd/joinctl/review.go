package main

import (
	"context"
	"fmt"

	"github.com/joinhub/console/internal/models"
	"github.com/joinhub/console/internal/review"
	"github.com/spf13/cobra"
)

func newReviewCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Moderate join requests",
	}

	board := func() (*review.Board, error) {
		client, err := opts.client()
		if err != nil {
			return nil, err
		}
		return review.NewBoard(client, opts.log().Named("review")), nil
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List join requests (pending by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, ok := models.ParseReviewFilter(status)
			if !ok {
				return fmt.Errorf("unknown status %q (want pending, approved, rejected or all)", status)
			}
			b, err := board()
			if err != nil {
				return err
			}
			entries, err := b.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return opts.printer(cmd).reviews(filter, entries)
		},
	}
	list.Flags().StringVarP(&status, "status", "s", string(review.DefaultFilter), "pending, approved, rejected or all")

	decide := func(use, short string, target models.ReviewStatus) *cobra.Command {
		return &cobra.Command{
			Use:   use + " ID",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				b, err := board()
				if err != nil {
					return err
				}
				entry, err := findEntry(cmd.Context(), b, args[0])
				if err != nil {
					return err
				}
				if !review.CanSet(entry, target) {
					return fmt.Errorf("join request %s is already %s", entry.ID, target)
				}

				// reload the pending view so the output shows what is left to moderate
				if _, err := b.List(cmd.Context(), review.DefaultFilter); err != nil {
					return err
				}
				entries, err := b.SetStatus(cmd.Context(), entry.ID, target)
				if err != nil {
					return err
				}
				out := opts.printer(cmd)
				out.success("%s is now %s", entry.ProjectName, target)
				return out.reviews(b.Filter(), entries)
			},
		}
	}

	var outDir string
	result := &cobra.Command{
		Use:   "result ID",
		Short: "Download a join request's result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := board()
			if err != nil {
				return err
			}
			entry, err := findEntry(cmd.Context(), b, args[0])
			if err != nil {
				return err
			}
			d, err := b.Result(cmd.Context(), entry)
			if err != nil {
				return err
			}
			return save(cmd, opts, outDir, d)
		},
	}
	result.Flags().StringVarP(&outDir, "out", "d", ".", "Directory to save into")

	cmd.AddCommand(
		list,
		decide("approve", "Approve a join request", models.ReviewStatusApproved),
		decide("reject", "Reject a join request", models.ReviewStatusRejected),
		decide("reopen", "Move a join request back to pending", models.ReviewStatusPending),
		result,
	)
	return cmd
}

// findEntry looks id up among all join requests.
func findEntry(ctx context.Context, b *review.Board, id string) (models.ReviewEntry, error) {
	entries, err := b.List(ctx, models.ReviewStatusAll)
	if err != nil {
		return models.ReviewEntry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return models.ReviewEntry{}, fmt.Errorf("join request not found: %s", id)
}
