// Package config loads application settings from a YAML file and the
// environment, with secrets optionally resolved from SSM Parameter Store.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-to-post/internal/caption"
)

// Settings holds all application configuration.
type Settings struct {
	Scheduling Scheduling             `yaml:"scheduling"`
	Hashtags   caption.HashtagConfig  `yaml:"hashtags"`
	Publish    Publish                `yaml:"publish"`
	AWS        AWS                    `yaml:"aws"`
	Instagram  Instagram              `yaml:"instagram"`
	Gemini     Gemini                 `yaml:"gemini"`
}

// Scheduling mirrors the assignment engine's knobs.
type Scheduling struct {
	PostsPerWeek              int      `yaml:"posts_per_week" env:"POSTS_PER_WEEK" env-default:"3"`
	PreferredTimes            []string `yaml:"preferred_times" env:"PREFERRED_TIMES" env-default:"18:00"`
	GridMode                  bool     `yaml:"grid_mode" env:"GRID_MODE"`
	MaxConsecutiveSameCountry int      `yaml:"max_consecutive_same_country" env:"MAX_CONSECUTIVE_SAME_COUNTRY" env-default:"2"`
}

// Publish bounds the state machine and the auto-publish driver.
type Publish struct {
	MaxTransportRetries int           `yaml:"max_transport_retries" env:"PUBLISH_MAX_RETRIES" env-default:"3"`
	RetryBackoff        time.Duration `yaml:"retry_backoff" env:"PUBLISH_RETRY_BACKOFF" env-default:"5s"`
	PollInterval        time.Duration `yaml:"poll_interval" env:"PUBLISH_POLL_INTERVAL" env-default:"10s"`
	MaxPollAttempts     int           `yaml:"max_poll_attempts" env:"PUBLISH_MAX_POLLS" env-default:"30"`

	// Sweep is the auto-publish cron expression (seconds field included).
	Sweep string `yaml:"sweep" env:"PUBLISH_SWEEP" env-default:"0 */15 * * * *"`

	// MaxDelay skips posts that are too late to auto-publish. Zero
	// disables the guard.
	MaxDelay time.Duration `yaml:"max_delay" env:"PUBLISH_MAX_DELAY" env-default:"24h"`
}

// AWS names the storage resources.
type AWS struct {
	Table  string `yaml:"table" env:"POSTS_TABLE" env-default:"photo-to-post"`
	Bucket string `yaml:"bucket" env:"MEDIA_BUCKET"`
}

// Instagram holds Graph API credentials. Empty values fall back to SSM.
type Instagram struct {
	AccessToken string `yaml:"-" env:"INSTAGRAM_ACCESS_TOKEN"`
	UserID      string `yaml:"-" env:"INSTAGRAM_USER_ID"`

	TokenParam  string `yaml:"token_param" env:"SSM_INSTAGRAM_TOKEN_PARAM" env-default:"/photo-to-post/prod/instagram-access-token"`
	UserIDParam string `yaml:"user_id_param" env:"SSM_INSTAGRAM_USER_ID_PARAM" env-default:"/photo-to-post/prod/instagram-user-id"`
}

// Gemini holds the caption model settings. An empty APIKey falls back to SSM.
type Gemini struct {
	APIKey   string `yaml:"-" env:"GEMINI_API_KEY"`
	Model    string `yaml:"model" env:"GEMINI_MODEL"`
	KeyParam string `yaml:"key_param" env:"SSM_GEMINI_KEY_PARAM" env-default:"/photo-to-post/prod/gemini-api-key"`
}

// Load reads settings from the optional YAML file at path, then the
// environment. A .env file is honoured for local development.
func Load(path string) (*Settings, error) {
	_ = godotenv.Load()

	var s Settings
	if path != "" {
		if err := cleanenv.ReadConfig(path, &s); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&s); err != nil {
		return nil, fmt.Errorf("read config from environment: %w", err)
	}
	return &s, nil
}

// ResolveSecrets fills missing credentials from SSM Parameter Store.
// Instagram credentials are required; a missing Gemini key only disables
// caption generation.
func (s *Settings) ResolveSecrets(ctx context.Context, client *ssm.Client) error {
	if s.Instagram.AccessToken == "" {
		v, err := getParameter(ctx, client, s.Instagram.TokenParam)
		if err != nil {
			return fmt.Errorf("resolve instagram access token: %w", err)
		}
		s.Instagram.AccessToken = v
	}
	if s.Instagram.UserID == "" {
		v, err := getParameter(ctx, client, s.Instagram.UserIDParam)
		if err != nil {
			return fmt.Errorf("resolve instagram user id: %w", err)
		}
		s.Instagram.UserID = v
	}

	if s.Gemini.APIKey == "" {
		v, err := getParameter(ctx, client, s.Gemini.KeyParam)
		if err != nil {
			log.Warn().Err(err).Str("param", s.Gemini.KeyParam).
				Msg("Gemini API key unavailable, caption generation disabled")
		} else {
			s.Gemini.APIKey = v
			os.Setenv("GEMINI_API_KEY", v)
		}
	}
	return nil
}

func getParameter(ctx context.Context, client *ssm.Client, name string) (string, error) {
	start := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", err
	}
	log.Debug().Str("param", name).Dur("elapsed", time.Since(start)).Msg("Parameter loaded from SSM")
	return *result.Parameter.Value, nil
}
