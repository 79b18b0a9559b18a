// photo-to-post turns classified photo directories into scheduled and
// published Instagram carousel posts.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fpang/photo-to-post/internal/logging"
)

var configFlag string

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "photo-to-post",
	Short: "Photo-to-post carousel pipeline for Instagram",
	Long: `photo-to-post drives classified travel photos through the full posting
pipeline: draft carousel creation with AI captions, constraint-aware
scheduling, and publication through the Instagram Graph API.

Examples:
  photo-to-post create --dir ./classified
  photo-to-post schedule
  photo-to-post publish <post-id>
  photo-to-post auto-publish
  photo-to-post calendar`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		logging.Init()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to YAML config file (default: environment only)")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(autoPublishCmd)
	rootCmd.AddCommand(calendarCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
