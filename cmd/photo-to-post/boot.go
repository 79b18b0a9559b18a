package main

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-to-post/internal/caption"
	"github.com/fpang/photo-to-post/internal/config"
	"github.com/fpang/photo-to-post/internal/instagram"
	"github.com/fpang/photo-to-post/internal/logging"
	"github.com/fpang/photo-to-post/internal/media"
	"github.com/fpang/photo-to-post/internal/publish"
	"github.com/fpang/photo-to-post/internal/schedule"
	"github.com/fpang/photo-to-post/internal/store"
)

// app holds the wired components shared by the subcommands. Commands that
// only read or schedule do not force Instagram credentials to exist.
type app struct {
	settings  *config.Settings
	store     store.PostStore
	stager    *media.Stager
	generator caption.Generator
	machine   *publish.Machine
}

// bootOptions selects which external surfaces a command needs.
type bootOptions struct {
	needPublish bool
	needGemini  bool
}

// boot loads settings, wires AWS clients, and builds the component graph.
func boot(ctx context.Context, command string, opts bootOptions) (*app, error) {
	bootStart := time.Now()

	settings, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", awsCfg.Region).Msg("AWS config loaded")

	if opts.needPublish || opts.needGemini {
		if err := settings.ResolveSecrets(ctx, ssm.NewFromConfig(awsCfg)); err != nil {
			if opts.needPublish {
				return nil, err
			}
			log.Warn().Err(err).Msg("Secrets unavailable, continuing without publish credentials")
		}
	}

	a := &app{
		settings: settings,
		store:    store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), settings.AWS.Table),
	}

	if opts.needPublish {
		if settings.AWS.Bucket == "" {
			return nil, fmt.Errorf("media bucket is required: set MEDIA_BUCKET or aws.bucket")
		}
		s3Client := s3.NewFromConfig(awsCfg)
		a.stager = media.NewStager(s3Client, s3.NewPresignClient(s3Client), settings.AWS.Bucket)

		api := instagram.NewClient(settings.Instagram.AccessToken, settings.Instagram.UserID)
		a.machine = publish.NewMachine(a.store, api, a.stager, publish.Config{
			MaxTransportRetries: settings.Publish.MaxTransportRetries,
			RetryBackoff:        settings.Publish.RetryBackoff,
			PollInterval:        settings.Publish.PollInterval,
			MaxPollAttempts:     settings.Publish.MaxPollAttempts,
		})
	}

	if opts.needGemini && settings.Gemini.APIKey != "" {
		client, err := caption.NewGeminiClient(ctx, settings.Gemini.APIKey)
		if err != nil {
			return nil, fmt.Errorf("create Gemini client: %w", err)
		}
		a.generator = caption.NewGeminiGenerator(client, settings.Gemini.Model)
	}

	logging.NewStartupLogger(command).
		Resource("table", settings.AWS.Table).
		Resource("bucket", settings.AWS.Bucket).
		Feature("gemini", a.generator != nil).
		Feature("gridMode", settings.Scheduling.GridMode).
		Config("postsPerWeek", fmt.Sprintf("%d", settings.Scheduling.PostsPerWeek)).
		InitDuration(time.Since(bootStart)).
		Log()
	return a, nil
}

// schedulingConfig converts settings into an engine config, parsing the
// preferred time strings.
func schedulingConfig(s *config.Settings) (schedule.Config, error) {
	times := make([]schedule.TimeOfDay, 0, len(s.Scheduling.PreferredTimes))
	for _, raw := range s.Scheduling.PreferredTimes {
		t, err := schedule.ParseTimeOfDay(raw)
		if err != nil {
			return schedule.Config{}, err
		}
		times = append(times, t)
	}
	return schedule.Config{
		PostsPerWeek:              s.Scheduling.PostsPerWeek,
		PreferredTimes:            times,
		GridMode:                  s.Scheduling.GridMode,
		MaxConsecutiveSameCountry: s.Scheduling.MaxConsecutiveSameCountry,
	}, nil
}
