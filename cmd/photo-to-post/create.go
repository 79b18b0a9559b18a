package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/photo-to-post/internal/creator"
)

var createDirFlag string

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create draft posts from a classified photo directory",
	Long: `Scans a classified photo tree laid out as {dir}/{country}/{city}/photo.jpg,
groups photos by place and capture day, and creates draft carousel posts.
When a Gemini API key is configured, each draft gets an AI caption and
hashtags; otherwise drafts are created with empty captions for manual
editing.`,
	Run: runCreate,
}

func init() {
	createCmd.Flags().StringVarP(&createDirFlag, "dir", "d", "classified", "Classified photo directory")
}

func runCreate(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	if info, err := os.Stat(createDirFlag); err != nil || !info.IsDir() {
		log.Fatal().Str("dir", createDirFlag).Msg("Classified directory not found")
	}

	a, err := boot(ctx, "create", bootOptions{needGemini: true})
	if err != nil {
		log.Fatal().Err(err).Msg("Startup failed")
	}

	c := creator.New(a.store, a.generator, a.settings.Hashtags)
	created, err := c.CreateFromDir(ctx, createDirFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Draft creation failed")
	}

	log.Info().Int("drafts", len(created)).Msg("Draft creation complete")
	for _, p := range created {
		log.Info().Str("postId", p.ID).Str("location", p.LocationDisplay()).
			Int("photos", len(p.Photos)).Msg("Created")
	}
}
