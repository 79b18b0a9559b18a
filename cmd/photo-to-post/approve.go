package main

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/photo-to-post/internal/post"
)

var approveCmd = &cobra.Command{
	Use:   "approve <post-id>...",
	Short: "Approve draft posts for scheduling",
	Args:  cobra.MinimumNArgs(1),
	Run:   runApprove,
}

func runApprove(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	a, err := boot(ctx, "approve", bootOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("Startup failed")
	}

	for _, id := range args {
		p, err := a.store.GetPost(ctx, id)
		if err != nil {
			log.Fatal().Err(err).Str("postId", id).Msg("Failed loading post")
		}
		if p == nil {
			log.Error().Str("postId", id).Msg("Post not found")
			continue
		}

		now := time.Now()
		p.ApprovedAt = &now
		if err := a.store.UpdateStatus(ctx, p, post.StatusApproved); err != nil {
			log.Error().Err(err).Str("postId", id).Msg("Approval failed")
			continue
		}
		log.Info().Str("postId", id).Str("location", p.LocationDisplay()).Msg("Post approved")
	}
}
