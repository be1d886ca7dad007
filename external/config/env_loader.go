package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/streamscribe/internal/config"
)

type envConfig struct {
	Env      string `env:"ENV" envDefault:"production"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	SampleRate         int           `env:"SAMPLE_RATE" envDefault:"16000"`
	WindowDuration     time.Duration `env:"WINDOW_DURATION" envDefault:"1s"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"10m"`
	ReaperInterval     time.Duration `env:"REAPER_INTERVAL" envDefault:"60s"`
	DisconnectGrace    time.Duration `env:"DISCONNECT_GRACE" envDefault:"5s"`
	ProviderTimeout    time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"0s"`

	DefaultLanguage       string `env:"DEFAULT_LANGUAGE"`
	TranscriptionProvider string `env:"TRANSCRIPTION_PROVIDER" envDefault:"whisper"`

	WhisperURL    string `env:"WHISPER_URL"`
	WhisperAPIKey string `env:"WHISPER_API_KEY"`
	WhisperModel  string `env:"WHISPER_MODEL" envDefault:"whisper-1"`

	GoogleCloudProjectID       string `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"long"`

	ArchiveDriver string `env:"ARCHIVE_DRIVER" envDefault:"none"`
	DatabaseURL   string `env:"DATABASE_URL"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"./data/streamscribe.db"`

	NATSURL           string `env:"NATS_URL"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"streamscribe.results"`

	TranscriptWebhookURL string `env:"TRANSCRIPT_WEBHOOK_URL"`
	DiscordToken         string `env:"DISCORD_TOKEN"`
	DiscordChannelID     string `env:"DISCORD_CHANNEL_ID"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	MetricsEnabled bool     `env:"METRICS_ENABLED" envDefault:"true"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		HTTPAddr:                   raw.HTTPAddr,
		SampleRate:                 raw.SampleRate,
		WindowDuration:             raw.WindowDuration,
		SessionIdleTimeout:         raw.SessionIdleTimeout,
		ReaperInterval:             raw.ReaperInterval,
		DisconnectGrace:            raw.DisconnectGrace,
		ProviderTimeout:            raw.ProviderTimeout,
		DefaultLanguage:            raw.DefaultLanguage,
		TranscriptionProvider:      strings.ToLower(strings.TrimSpace(raw.TranscriptionProvider)),
		WhisperURL:                 strings.TrimRight(raw.WhisperURL, "/"),
		WhisperAPIKey:              raw.WhisperAPIKey,
		WhisperModel:               raw.WhisperModel,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		ArchiveDriver:              strings.ToLower(strings.TrimSpace(raw.ArchiveDriver)),
		DatabaseURL:                raw.DatabaseURL,
		SQLitePath:                 raw.SQLitePath,
		NATSURL:                    raw.NATSURL,
		NATSSubjectPrefix:          raw.NATSSubjectPrefix,
		TranscriptWebhookURL:       raw.TranscriptWebhookURL,
		DiscordToken:               raw.DiscordToken,
		DiscordChannelID:           raw.DiscordChannelID,
		AllowedOrigins:             trimOrigins(raw.AllowedOrigins),
		MetricsEnabled:             raw.MetricsEnabled,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func trimOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
