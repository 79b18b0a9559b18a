package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish <post-id>",
	Short: "Publish one scheduled post now",
	Long: `Drives a single scheduled post through the full publish protocol: photo
hosting, media container creation, processing wait, carousel assembly, and
the publish call. A previously failed attempt resumes from its recorded
progress instead of restarting.`,
	Args: cobra.ExactArgs(1),
	Run:  runPublish,
}

func runPublish(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	a, err := boot(ctx, "publish", bootOptions{needPublish: true})
	if err != nil {
		log.Fatal().Err(err).Msg("Startup failed")
	}

	if err := a.machine.Publish(ctx, args[0]); err != nil {
		log.Fatal().Err(err).Str("postId", args[0]).Msg("Publish failed")
	}
}
