package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/photo-to-post/internal/post"
)

var statusCmd = &cobra.Command{
	Use:   "status [post-id]",
	Short: "Show pipeline counts, or one post's full state",
	Args:  cobra.MaximumNArgs(1),
	Run:   runStatus,
}

func runStatus(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	a, err := boot(ctx, "status", bootOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("Startup failed")
	}

	if len(args) == 1 {
		showPost(cmd, a, args[0])
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tPOSTS")
	for _, stage := range post.Stages {
		posts, err := a.store.ListByStatus(ctx, stage)
		if err != nil {
			log.Fatal().Err(err).Str("stage", string(stage)).Msg("Failed listing posts")
		}
		fmt.Fprintf(w, "%s\t%d\n", stage, len(posts))
	}
	w.Flush()
}

func showPost(cmd *cobra.Command, a *app, id string) {
	ctx := cmd.Context()

	p, err := a.store.GetPost(ctx, id)
	if err != nil {
		log.Fatal().Err(err).Str("postId", id).Msg("Failed loading post")
	}
	if p == nil {
		log.Fatal().Str("postId", id).Msg("Post not found")
	}

	fmt.Printf("Post %s (%s)\n", p.ID, p.Status)
	fmt.Printf("  Location: %s\n", p.LocationDisplay())
	fmt.Printf("  Photos:   %d\n", len(p.Photos))
	if p.ScheduledAt != nil {
		fmt.Printf("  Slot:     %s\n", p.ScheduledAt.Format("2006-01-02 15:04"))
	}
	if p.PublishedAt != nil {
		fmt.Printf("  Published: %s (instagram id %s)\n",
			p.PublishedAt.Format("2006-01-02 15:04"), p.InstagramPostID)
	}

	attempt, err := a.store.GetAttempt(ctx, id)
	if err != nil {
		log.Fatal().Err(err).Str("postId", id).Msg("Failed loading publish attempt")
	}
	if attempt == nil {
		return
	}

	fmt.Printf("  Attempt:  phase=%s staged=%d/%d polls=%d\n",
		attempt.Phase, attempt.StagedCount(), len(attempt.Photos), attempt.PollAttempts)
	if attempt.FailedPhoto > 0 {
		fmt.Printf("  Failed photo: #%d (%s)\n",
			attempt.FailedPhoto, attempt.Photos[attempt.FailedPhoto-1].Filename)
	}
	if attempt.LastError != "" {
		fmt.Printf("  Last error: %s\n", attempt.LastError)
	}
}
