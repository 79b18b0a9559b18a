package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/photo-to-post/internal/publish"
)

var autoPublishOnceFlag bool

var autoPublishCmd = &cobra.Command{
	Use:   "auto-publish",
	Short: "Run the periodic auto-publish sweep",
	Long: `Sweeps the scheduled posts on a cron cadence and publishes every post
whose slot time has elapsed. Posts later than the configured max delay are
skipped with a warning so a long outage does not flood the account. With
--once a single sweep runs immediately and the command exits.`,
	Run: runAutoPublish,
}

func init() {
	autoPublishCmd.Flags().BoolVar(&autoPublishOnceFlag, "once", false, "Run a single sweep and exit")
}

func runAutoPublish(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := boot(ctx, "auto-publish", bootOptions{needPublish: true})
	if err != nil {
		log.Fatal().Err(err).Msg("Startup failed")
	}

	if autoPublishOnceFlag {
		reportOutcomes(a.machine.SweepDue(ctx, time.Now(), a.settings.Publish.MaxDelay))
		return
	}

	driver := publish.NewDriver(a.machine, a.settings.Publish.Sweep, a.settings.Publish.MaxDelay)
	if err := driver.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed starting auto-publish driver")
	}
	<-ctx.Done()
	driver.Stop()
}

func reportOutcomes(outcomes []publish.Outcome) {
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			log.Error().Err(o.Err).Str("postId", o.PostID).Msg("Publish failed")
		case o.Skipped != "":
			log.Warn().Str("postId", o.PostID).Str("reason", o.Skipped).Msg("Post skipped")
		default:
			log.Info().Str("postId", o.PostID).Msg("Post published")
		}
	}
}
