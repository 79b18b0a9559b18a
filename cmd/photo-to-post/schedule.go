package main

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/photo-to-post/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Assign publish slots to all approved posts",
	Long: `Runs one assignment pass: every approved post gets a future publish slot
honouring posts-per-week capacity, preferred times of day, and either the
country diversity constraint or grid grouping, depending on configuration.`,
	Run: runSchedule,
}

func runSchedule(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	a, err := boot(ctx, "schedule", bootOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("Startup failed")
	}

	cfg, err := schedulingConfig(a.settings)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid scheduling configuration")
	}

	assignments, err := schedule.NewEngine(a.store).Run(ctx, cfg, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("Scheduling failed")
	}

	log.Info().Int("scheduled", len(assignments)).Msg("Scheduling complete")
}
